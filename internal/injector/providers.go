package injector

import (
	"github.com/zeusync/simcore/internal/config"
	"github.com/zeusync/simcore/internal/core/observability/log"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg config.Config) log.Log {
	return log.NewWithOptions(log.Options{
		Level:    log.ParseLevel(cfg.Log.Level),
		Encoding: cfg.Log.Encoding,
	})
}
