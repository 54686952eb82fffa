// Package websocket implements protocol.Endpoint over WebSocket. Packets are
// sent as binary frames on the Path route.
package websocket

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/protocol"
)

// Path is the route the server upgrades on.
const Path = "/net"

const closeGracePeriod = time.Second

var (
	_ protocol.Dialer   = (*Dialer)(nil)
	_ protocol.Endpoint = (*Endpoint)(nil)
)

// Dialer creates WebSocket endpoints.
type Dialer struct {
	cfg    protocol.Config
	logger log.Log
}

func NewDialer(cfg protocol.Config, logger log.Log) *Dialer {
	return &Dialer{cfg: cfg, logger: logger.With(log.String("transport", "websocket"))}
}

func (d *Dialer) Name() string { return "websocket" }

// Listen serves WebSocket upgrades on addr.
func (d *Dialer) Listen(_ context.Context, addr string) (protocol.Endpoint, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		d.logger.Error("Failed to listen", log.String("addr", addr), log.Error(err))
		return nil, errors.Wrapf(protocol.ErrListenFailed, "%s: %v", addr, err)
	}

	ep := newEndpoint(d.cfg, d.logger, ln.Addr())
	ep.upgrader = websocket.Upgrader{
		ReadBufferSize:  d.cfg.BufferSize,
		WriteBufferSize: d.cfg.BufferSize,
		// peers are game clients, not browsers
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, ep.handleUpgrade)
	ep.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       d.cfg.IdleTimeout,
	}

	ep.wg.Add(1)
	go func() {
		defer ep.wg.Done()
		if err := ep.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ep.logger.Error("WebSocket server error", log.Error(err))
		}
	}()

	ep.logger.Info("WebSocket endpoint listening", log.String("addr", ln.Addr().String()))
	return ep, nil
}

// Dial connects to a server endpoint at addr (host:port).
func (d *Dialer) Dial(ctx context.Context, addr string) (protocol.Endpoint, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   d.cfg.BufferSize,
		WriteBufferSize:  d.cfg.BufferSize,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, "ws://"+addr+Path, nil)
	if err != nil {
		d.logger.Error("Failed to dial", log.String("addr", addr), log.Error(err))
		return nil, errors.Wrapf(protocol.ErrDialFailed, "%s: %v", addr, err)
	}

	ep := newEndpoint(d.cfg, d.logger, conn.LocalAddr())
	if err = ep.attach(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ep, nil
}

// Endpoint is a WebSocket server or client endpoint.
type Endpoint struct {
	*protocol.PeerTable

	cfg      protocol.Config
	logger   log.Log
	addr     net.Addr
	server   *http.Server
	upgrader websocket.Upgrader

	wg sync.WaitGroup
}

func newEndpoint(cfg protocol.Config, logger log.Log, addr net.Addr) *Endpoint {
	return &Endpoint{
		PeerTable: protocol.NewPeerTable(),
		cfg:       cfg,
		logger:    logger,
		addr:      addr,
	}
}

func (e *Endpoint) Addr() net.Addr {
	return e.addr
}

func (e *Endpoint) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Error("WebSocket upgrade failed", log.Error(err))
		return
	}
	if err = e.attach(conn); err != nil {
		_ = conn.Close()
	}
}

func (e *Endpoint) attach(conn *websocket.Conn) error {
	id := protocol.PeerID(uuid.NewString())
	remote := conn.RemoteAddr().String()
	if e.cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(int64(e.cfg.MaxFrameSize))
	}
	pc := &peerConn{conn: conn, cfg: e.cfg}
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
			_ = pc.conn.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout))
		}
		messageType, data, err := pc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !e.PeerTable.IsClosed() {
				e.logger.Warn("WebSocket read error", log.String("peer", string(id)), log.Error(err))
			}
			e.PeerTable.Remove(id, remote)
			_ = pc.Close()
			e.logger.Info("Peer disconnected", log.String("peer", string(id)))
			return
		}
		// only binary frames carry packets
		if messageType != websocket.BinaryMessage {
			continue
		}
		e.PeerTable.Receive(id, remote, data)
	}
}

// Close disconnects every peer and stops the server. It waits for the
// transport goroutines to exit.
func (e *Endpoint) Close() error {
	first, err := e.PeerTable.Close()
	if !first {
		return nil
	}
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if serr := e.server.Shutdown(ctx); serr != nil {
			err = stderrors.Join(err, errors.Wrap(serr, "failed to shutdown HTTP server"))
		}
		cancel()
	}
	e.wg.Wait()
	e.logger.Info("WebSocket endpoint closed")
	return err
}

type peerConn struct {
	conn *websocket.Conn
	cfg  protocol.Config

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *peerConn) Send(data []byte) error {
	if c.cfg.MaxFrameSize > 0 && uint64(len(data)) > uint64(c.cfg.MaxFrameSize) {
		return errors.Wrapf(protocol.ErrFrameTooLarge, "%d > %d", len(data), c.cfg.MaxFrameSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Close sends a close frame and drops the connection.
func (c *peerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		err = c.conn.Close()
	})
	return err
}
