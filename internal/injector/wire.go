//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/simcore/internal/config"
	"github.com/zeusync/simcore/internal/server"
)

// InitializeServer loads the config at path and builds a stopped server.
func InitializeServer(path string) (*server.Server, error) {
	wire.Build(config.Load, ProvideLogger, server.NewServer)
	return nil, nil
}
