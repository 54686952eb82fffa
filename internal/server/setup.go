package server

import (
	"context"
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/config"
	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/network"
	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/protocol"
	"github.com/zeusync/simcore/internal/core/protocol/quic"
	"github.com/zeusync/simcore/internal/core/protocol/websocket"
	"github.com/zeusync/simcore/internal/core/scene"
	"github.com/zeusync/simcore/internal/core/scene/yamlenc"
	"github.com/zeusync/simcore/internal/core/wire"
)

// setup registers the built-in factories, loads plugins, starts systems,
// loads the configured scene and brings the network up, in that order.
func (s *Server) setup(ctx context.Context) error {
	netCfg, err := s.networkConfig()
	if err != nil {
		return err
	}
	s.loader.AddFactory(scene.NewFactory(s.sceneConfig()))
	s.loader.AddFactory(network.NewFactory(netCfg))

	for _, dir := range s.config.Plugins.Dirs {
		n, err := s.loader.LoadPluginsInDir(ctx, dir)
		if err != nil {
			// broken modules are skipped, the rest still count
			s.logger.Warn("Some plugins failed to load", log.String("dir", dir), log.Error(err))
		}
		s.logger.Info("Plugins loaded", log.String("dir", dir), log.Int("factories", n))
	}

	if err = s.startSystems(); err != nil {
		return err
	}
	if err = s.loadScene(); err != nil {
		return err
	}
	return s.startNetwork(ctx)
}

func (s *Server) sceneConfig() scene.Config {
	cfg := scene.Config{DataPaths: s.config.Scene.DataPaths}
	if s.config.Scene.Encoder == "yaml" {
		cfg.NewEncoder = yamlenc.NewEncoder
	}
	return cfg
}

func (s *Server) networkConfig() (network.Config, error) {
	n := s.config.Network
	cfg := network.Config{}
	if n.Mode == "server" {
		cfg.BindHost = n.Host
	}
	for _, name := range n.Forward {
		cfg.Forward = append(cfg.Forward, ids.SID(name))
	}

	codec, err := wire.New(n.Codec, s.messages)
	if err != nil {
		return network.Config{}, err
	}
	cfg.Codec = codec

	dialer, err := newDialer(n, s.logger)
	if err != nil {
		return network.Config{}, err
	}
	cfg.Dialer = dialer
	return cfg, nil
}

// newDialer returns nil for an empty transport; the net system then refuses
// to start an endpoint.
func newDialer(n config.NetworkConfig, logger log.Log) (protocol.Dialer, error) {
	pcfg := protocol.DefaultConfig()
	if n.MaxFrameSize > 0 {
		pcfg.MaxFrameSize = n.MaxFrameSize
	}
	if n.WriteTimeout > 0 {
		pcfg.WriteTimeout = n.WriteTimeout
	}
	if n.IdleTimeout > 0 {
		pcfg.IdleTimeout = n.IdleTimeout
	}

	switch n.Transport {
	case "":
		return nil, nil
	case "websocket":
		return websocket.NewDialer(pcfg, logger), nil
	case "quic":
		return quic.NewDialer(pcfg, logger), nil
	default:
		return nil, errors.Wrapf(ErrUnknownTransport, "%q", n.Transport)
	}
}

// startSystems activates the configured component types, or every registered
// factory when none are listed. The map system always starts; the net system
// starts whenever the network is on.
func (s *Server) startSystems() error {
	var types []ids.StringID
	if len(s.config.Plugins.Start) == 0 {
		for _, f := range s.loader.Factories() {
			types = append(types, f.Type())
		}
	} else {
		types = append(types, scene.TypeMap)
		for _, name := range s.config.Plugins.Start {
			types = append(types, ids.SID(name))
		}
		if s.networkEnabled() {
			types = append(types, network.TypeNet)
		}
	}
	return s.loader.StartEntitySystems(types...)
}

func (s *Server) networkEnabled() bool {
	switch s.config.Network.Mode {
	case "server", "client":
		return true
	default:
		return false
	}
}

func (s *Server) loadScene() error {
	maps, err := entity.SystemAs[*scene.MapSystem](s.manager, scene.TypeMap)
	if err != nil {
		return errors.Wrapf(ErrSystemNotStarted, "%v", err)
	}

	if file := s.config.Scene.SceneFile; file != "" {
		if err = maps.LoadScene(file); err != nil {
			return err
		}
	}

	var all error
	for _, path := range s.config.Scene.Maps {
		if maps.IsMapLoaded(path) {
			continue
		}
		if err = maps.LoadMap(path); err != nil {
			all = stderrors.Join(all, err)
		}
	}
	return all
}

func (s *Server) startNetwork(ctx context.Context) error {
	if !s.networkEnabled() {
		return nil
	}
	net, err := entity.SystemAs[*network.NetSystem](s.manager, network.TypeNet)
	if err != nil {
		return errors.Wrapf(ErrSystemNotStarted, "%v", err)
	}

	n := s.config.Network
	if n.Mode == "server" {
		return net.InitializeServer(ctx, n.Port)
	}
	return net.Connect(ctx, n.Host, n.Port)
}

// NetSystem returns the running network system, if any.
func (s *Server) NetSystem() (*network.NetSystem, bool) {
	net, err := entity.SystemAs[*network.NetSystem](s.manager, network.TypeNet)
	return net, err == nil
}

// MapSystem returns the running map system, if any.
func (s *Server) MapSystem() (*scene.MapSystem, bool) {
	maps, err := entity.SystemAs[*scene.MapSystem](s.manager, scene.TypeMap)
	return maps, err == nil
}
