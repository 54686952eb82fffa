// Package config loads the host configuration: defaults, then an optional YAML
// file, then SIMCORE_* environment overrides.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SIMCORE_"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Tick    TickConfig    `yaml:"tick" envPrefix:"TICK_"`
	Plugins PluginsConfig `yaml:"plugins" envPrefix:"PLUGINS_"`
	Scene   SceneConfig   `yaml:"scene" envPrefix:"SCENE_"`
	Network NetworkConfig `yaml:"network" envPrefix:"NETWORK_"`
	Status  StatusConfig  `yaml:"status" envPrefix:"STATUS_"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LEVEL"`
	Encoding string `yaml:"encoding" env:"ENCODING"`
}

type TickConfig struct {
	// Rate is the number of ticks per second.
	Rate int `yaml:"rate" env:"RATE"`
}

// Interval is the wall time between two ticks.
func (c TickConfig) Interval() time.Duration {
	if c.Rate <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(c.Rate)
}

type PluginsConfig struct {
	// Dirs are scanned for plugin modules in order.
	Dirs []string `yaml:"dirs" env:"DIRS"`
	// Start lists the component types to activate. Empty starts every
	// registered factory.
	Start []string `yaml:"start" env:"START"`
}

type SceneConfig struct {
	DataPaths []string `yaml:"data_paths" env:"DATA_PATHS"`
	// Encoder is "yaml" or "none".
	Encoder   string   `yaml:"encoder" env:"ENCODER"`
	SceneFile string   `yaml:"scene_file" env:"SCENE_FILE"`
	Maps      []string `yaml:"maps" env:"MAPS"`
}

type NetworkConfig struct {
	// Transport is "websocket", "quic" or empty for none.
	Transport string `yaml:"transport" env:"TRANSPORT"`
	Codec     string `yaml:"codec" env:"CODEC"`
	// Mode is "off", "server" or "client".
	Mode string `yaml:"mode" env:"MODE"`
	// Host is the bind host in server mode and the remote host in client mode.
	Host         string        `yaml:"host" env:"HOST"`
	Port         int           `yaml:"port" env:"PORT"`
	Forward      []string      `yaml:"forward" env:"FORWARD"`
	MaxFrameSize uint32        `yaml:"max_frame_size" env:"MAX_FRAME_SIZE"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
}

type StatusConfig struct {
	// Addr is the HTTP listen address of the status endpoint. Empty disables it.
	Addr string `yaml:"addr" env:"ADDR"`
}

// Default returns a configuration that runs the simulation offline at 60Hz.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Tick: TickConfig{Rate: 60},
		Scene: SceneConfig{
			DataPaths: []string{"."},
			Encoder:   "yaml",
		},
		Network: NetworkConfig{
			Transport:    "websocket",
			Codec:        "proto",
			Mode:         "off",
			Port:         7777,
			MaxFrameSize: 1024 * 1024,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, errors.Wrap(err, "parse env")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log.encoding %q", c.Log.Encoding)
	}

	if c.Tick.Rate <= 0 || c.Tick.Rate > 1000 {
		return errors.Wrapf(ErrInvalidConfig, "tick.rate %d out of range 1..1000", c.Tick.Rate)
	}

	switch c.Scene.Encoder {
	case "yaml", "none":
	default:
		return errors.Wrapf(ErrInvalidConfig, "scene.encoder %q", c.Scene.Encoder)
	}
	if c.Scene.Encoder == "none" && (c.Scene.SceneFile != "" || len(c.Scene.Maps) > 0) {
		return errors.Wrap(ErrInvalidConfig, "scene files need an encoder")
	}

	n := c.Network
	switch n.Transport {
	case "", "websocket", "quic":
	default:
		return errors.Wrapf(ErrInvalidConfig, "network.transport %q", n.Transport)
	}
	switch n.Codec {
	case "", "proto", "protobuf", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "network.codec %q", n.Codec)
	}
	if n.Port < 0 || n.Port > 65535 {
		return errors.Wrapf(ErrInvalidConfig, "network.port %d", n.Port)
	}
	switch n.Mode {
	case "", "off":
	case "server":
		if n.Transport == "" {
			return errors.Wrap(ErrInvalidConfig, "server mode needs a transport")
		}
	case "client":
		if n.Transport == "" {
			return errors.Wrap(ErrInvalidConfig, "client mode needs a transport")
		}
		if n.Host == "" || n.Port == 0 {
			return errors.Wrap(ErrInvalidConfig, "client mode needs network.host and network.port")
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "network.mode %q", n.Mode)
	}
	return nil
}
