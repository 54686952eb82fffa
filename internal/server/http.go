package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/observability/log"
)

// StatusServer serves read-only host status over HTTP. Handlers only read the
// server's atomic counters; they never touch the simulation.
type StatusServer struct {
	server *http.Server
	host   *Server
	logger log.Log
	addr   net.Addr
	done   chan struct{}
}

func NewStatusServer(host *Server, logger log.Log) *StatusServer {
	s := &StatusServer{
		host:   host,
		logger: logger.With(log.String("component", "status")),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start listens on addr and serves in the background.
func (s *StatusServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "status listen on %s", addr)
	}
	s.addr = ln.Addr()
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server error", log.Error(err))
		}
	}()

	s.logger.Info("Status server listening", log.String("addr", s.addr.String()))
	return nil
}

func (s *StatusServer) Addr() net.Addr {
	return s.addr
}

func (s *StatusServer) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if s.done != nil {
		<-s.done
	}
	return err
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.host.GetStats().Running {
		http.Error(w, "stopped", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

func (s *StatusServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := json.Marshal(s.host.GetStats())
	if err != nil {
		s.logger.Error("Failed to encode stats", log.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// StatusAddr returns the status endpoint address while the server runs.
func (s *Server) StatusAddr() (net.Addr, bool) {
	if s.status == nil || s.status.Addr() == nil {
		return nil, false
	}
	return s.status.Addr(), true
}
