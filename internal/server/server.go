// Package server hosts a simulation: it owns the bus and the entity manager,
// activates the built-in and plugin systems, and drives the tick loop.
package server

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/simcore/internal/config"
	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/plugin"
)

// Server runs one simulation. After Start the bus, the manager and every
// system belong to the tick goroutine; other goroutines talk to them through
// Post.
type Server struct {
	config config.Config
	logger log.Log

	bus      *bus.Bus
	inbox    *bus.Inbox
	manager  *entity.Manager
	loader   *plugin.Loader
	messages *messages.Factory

	simTime float64

	// readable from any goroutine
	frame        atomic.Uint64
	simTimeBits  atomic.Uint64
	entityCount  atomic.Int64
	handlerFails atomic.Uint64

	status *StatusServer

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	// Background workers
	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

// NewServer creates a stopped server. Nothing is loaded until Start.
func NewServer(cfg config.Config, logger log.Log) *Server {
	b := bus.New()
	s := &Server{
		config:   cfg,
		logger:   logger.With(log.String("component", "server")),
		bus:      b,
		inbox:    bus.NewInbox(),
		messages: messages.NewFactory(),
	}
	s.manager = entity.NewManager(b, logger)
	s.loader = plugin.NewLoader(s.manager, logger)

	s.logger.Info("Server created",
		log.Int("tick_rate", cfg.Tick.Rate),
		log.String("network_mode", cfg.Network.Mode))
	return s
}

func (s *Server) Manager() *entity.Manager {
	return s.manager
}

func (s *Server) Loader() *plugin.Loader {
	return s.loader
}

// Post queues msg for emission at the start of the next tick. Safe from any
// goroutine.
func (s *Server) Post(msg bus.Message) {
	s.inbox.Post(msg)
}

// Start builds the simulation and starts the tick loop. A failed setup leaves
// the server stopped.
func (s *Server) Start(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}

	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	s.logger.Info("Starting server")

	if err := s.setup(ctx); err != nil {
		s.logger.Error("Server setup failed", log.Error(err))
		s.teardown()
		atomic.StoreInt32(&s.running, 0)
		return err
	}

	if s.config.Status.Addr != "" {
		s.status = NewStatusServer(s, s.logger)
		if err := s.status.Start(s.config.Status.Addr); err != nil {
			s.teardown()
			atomic.StoreInt32(&s.running, 0)
			return err
		}
	}

	s.stopChan = make(chan struct{})
	s.workerGroup.Add(1)
	go func() {
		defer s.workerGroup.Done()
		s.run(ctx)
	}()

	s.logger.Info("Server started successfully")
	return nil
}

// Stop ends the tick loop, then unloads every system. The loop finishes the
// tick in progress first.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping server")

	close(s.stopChan)
	s.workerGroup.Wait()

	var all error
	if s.status != nil {
		all = s.status.Stop(ctx)
		s.status = nil
	}
	all = stderrors.Join(all, s.teardown())

	s.logger.Info("Server stopped", log.Uint64("frames", s.frame.Load()))
	return all
}

// Close stops the server if needed. A closed server cannot be restarted.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil // Already closed
	}

	s.logger.Info("Closing server")

	var err error
	if atomic.LoadInt32(&s.running) == 1 {
		err = s.Stop(context.Background())
	}

	s.logger.Info("Server closed")
	return err
}

func (s *Server) teardown() error {
	if err := s.loader.UnloadAllPlugins(); err != nil {
		s.logger.Warn("Unload failed", log.Error(err))
		return err
	}
	return nil
}

// GetStats returns server statistics
func (s *Server) GetStats() Stats {
	return Stats{
		Frames:         s.frame.Load(),
		SimulationTime: math.Float64frombits(s.simTimeBits.Load()),
		Entities:       s.entityCount.Load(),
		HandlerErrors:  s.handlerFails.Load(),
		Running:        atomic.LoadInt32(&s.running) == 1,
	}
}

// Stats contains server statistics
type Stats struct {
	Frames         uint64  `json:"frames"`
	SimulationTime float64 `json:"simulation_time"`
	Entities       int64   `json:"entities"`
	HandlerErrors  uint64  `json:"handler_errors"`
	Running        bool    `json:"running"`
}

func (s *Server) run(ctx context.Context) {
	interval := s.config.Tick.Interval()
	s.logger.Debug("Tick loop started", log.Duration("interval", interval))
	defer s.logger.Debug("Tick loop stopped")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			s.Tick(now.Sub(last).Seconds())
			last = now
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		}
	}
}

// Tick drains the inbox, then emits one TickMessage. Handler errors are
// logged and counted; they never stop the simulation. Must only be called
// from the goroutine that owns the bus.
func (s *Server) Tick(deltaSeconds float64) {
	if err := s.inbox.Drain(s.bus); err != nil {
		s.handlerFailed("inbox", err)
	}

	s.simTime += deltaSeconds
	frame := s.frame.Load()
	msg := messages.TickMessage{
		DeltaSeconds:   deltaSeconds,
		SimulationTime: s.simTime,
		Frame:          frame,
	}
	if err := s.bus.EmitMessage(msg); err != nil {
		s.handlerFailed("tick", err)
	}

	s.frame.Store(frame + 1)
	s.simTimeBits.Store(math.Float64bits(s.simTime))
	s.entityCount.Store(int64(s.manager.EntityCount()))
}

func (s *Server) handlerFailed(stage string, err error) {
	s.handlerFails.Add(1)
	s.logger.Warn("Message handler failed",
		log.String("stage", stage),
		log.Uint64("frame", s.frame.Load()),
		log.Error(err))
}
