// Package quic implements protocol.Endpoint over QUIC. Each peer gets one
// bidirectional stream carrying length-prefixed frames.
package quic

import (
	"context"
	stderrors "errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/protocol"
)

const handshakeTimeout = 10 * time.Second

var (
	_ protocol.Dialer   = (*Dialer)(nil)
	_ protocol.Endpoint = (*Endpoint)(nil)
)

// Dialer creates QUIC endpoints.
type Dialer struct {
	cfg    protocol.Config
	logger log.Log
}

func NewDialer(cfg protocol.Config, logger log.Log) *Dialer {
	return &Dialer{cfg: cfg, logger: logger.With(log.String("transport", "quic"))}
}

func (d *Dialer) Name() string { return "quic" }

func (d *Dialer) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:       d.cfg.IdleTimeout,
		KeepAlivePeriod:      d.cfg.KeepAlive,
		HandshakeIdleTimeout: handshakeTimeout,
	}
}

// Listen starts a server endpoint with a freshly generated self-signed
// certificate.
func (d *Dialer) Listen(_ context.Context, addr string) (protocol.Endpoint, error) {
	tlsConfig, err := GenerateSelfSignedTLS()
	if err != nil {
		return nil, err
	}
	listener, err := quic.ListenAddr(addr, tlsConfig, d.quicConfig())
	if err != nil {
		d.logger.Error("Failed to listen", log.String("addr", addr), log.Error(err))
		return nil, errors.Wrapf(protocol.ErrListenFailed, "%s: %v", addr, err)
	}

	ep := newEndpoint(d.cfg, d.logger, listener.Addr())
	ep.listener = listener
	ep.wg.Add(1)
	go ep.acceptLoop()

	ep.logger.Info("QUIC endpoint listening", log.String("addr", listener.Addr().String()))
	return ep, nil
}

// Dial connects to a server endpoint. The server is the only peer of the
// returned endpoint.
func (d *Dialer) Dial(ctx context.Context, addr string) (protocol.Endpoint, error) {
	conn, err := quic.DialAddr(ctx, addr, clientTLS(d.cfg.InsecureSkipVerify), d.quicConfig())
	if err != nil {
		d.logger.Error("Failed to dial", log.String("addr", addr), log.Error(err))
		return nil, errors.Wrapf(protocol.ErrDialFailed, "%s: %v", addr, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, errors.Wrapf(protocol.ErrDialFailed, "open stream: %v", err)
	}
	// the server accepts the stream only once data arrives on it
	if err = writeFrame(stream, nil, 0); err != nil {
		_ = conn.CloseWithError(0, "hello failed")
		return nil, errors.Wrapf(protocol.ErrDialFailed, "hello: %v", err)
	}

	ep := newEndpoint(d.cfg, d.logger, conn.LocalAddr())
	if err = ep.attach(conn, stream); err != nil {
		_ = conn.CloseWithError(0, "endpoint closed")
		return nil, err
	}
	return ep, nil
}

// Endpoint is a QUIC server or client endpoint.
type Endpoint struct {
	*protocol.PeerTable

	cfg      protocol.Config
	logger   log.Log
	addr     net.Addr
	listener *quic.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newEndpoint(cfg protocol.Config, logger log.Log, addr net.Addr) *Endpoint {
	ctx, cancel := context.WithCancel(context.Background())
	return &Endpoint{
		PeerTable: protocol.NewPeerTable(),
		cfg:       cfg,
		logger:    logger,
		addr:      addr,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (e *Endpoint) Addr() net.Addr {
	return e.addr
}

func (e *Endpoint) acceptLoop() {
	defer e.wg.Done()
	for {
		conn, err := e.listener.Accept(e.ctx)
		if err != nil {
			if e.ctx.Err() == nil {
				e.logger.Error("Failed to accept connection", log.Error(err))
			}
			return
		}
		e.wg.Add(1)
		go e.handshake(conn)
	}
}

// handshake waits for the client's stream and its empty hello frame.
func (e *Endpoint) handshake(conn *quic.Conn) {
	defer e.wg.Done()

	ctx, cancel := context.WithTimeout(e.ctx, handshakeTimeout)
	stream, err := conn.AcceptStream(ctx)
	cancel()
	if err != nil {
		e.logger.Warn("Peer opened no stream", log.String("remote_addr", conn.RemoteAddr().String()), log.Error(err))
		_ = conn.CloseWithError(0, "no stream")
		return
	}

	_ = stream.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if _, err = readFrame(stream, e.cfg.MaxFrameSize); err != nil {
		e.logger.Warn("Bad hello frame", log.String("remote_addr", conn.RemoteAddr().String()), log.Error(err))
		_ = conn.CloseWithError(0, "bad hello")
		return
	}
	_ = stream.SetReadDeadline(time.Time{})

	if err = e.attach(conn, stream); err != nil {
		_ = conn.CloseWithError(0, "endpoint closed")
	}
}

func (e *Endpoint) attach(conn *quic.Conn, stream *quic.Stream) error {
	id := protocol.PeerID(uuid.NewString())
	remote := conn.RemoteAddr().String()
	pc := &peerConn{conn: conn, stream: stream, cfg: e.cfg}
	if err := e.PeerTable.Add(id, remote, pc); err != nil {
		return err
	}

	e.logger.Info("Peer connected", log.String("peer", string(id)), log.String("remote_addr", remote))
	e.wg.Add(1)
	go e.readLoop(id, remote, pc)
	return nil
}

func (e *Endpoint) readLoop(id protocol.PeerID, remote string, pc *peerConn) {
	defer e.wg.Done()
	for {
		if e.cfg.ReadTimeout > 0 {
			_ = pc.stream.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout))
		}
		data, err := readFrame(pc.stream, e.cfg.MaxFrameSize)
		if err != nil {
			if !e.PeerTable.IsClosed() {
				e.logger.Info("Peer disconnected", log.String("peer", string(id)), log.Error(err))
			}
			e.PeerTable.Remove(id, remote)
			_ = pc.Close()
			return
		}
		e.PeerTable.Receive(id, remote, data)
	}
}

// Close disconnects every peer and stops listening. It waits for the
// transport goroutines to exit.
func (e *Endpoint) Close() error {
	first, err := e.PeerTable.Close()
	if !first {
		return nil
	}
	e.cancel()
	if e.listener != nil {
		if lerr := e.listener.Close(); lerr != nil {
			err = stderrors.Join(err, lerr)
		}
	}
	e.wg.Wait()
	e.logger.Info("QUIC endpoint closed")
	return err
}

type peerConn struct {
	conn   *quic.Conn
	stream *quic.Stream
	cfg    protocol.Config

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *peerConn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := writeFrame(c.stream, data, c.cfg.MaxFrameSize); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

func (c *peerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.CloseWithError(0, "connection closed")
	})
	return err
}
