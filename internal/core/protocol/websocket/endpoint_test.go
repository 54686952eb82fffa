package websocket

import (
	"testing"

	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/protocol"
	"github.com/zeusync/simcore/internal/core/protocol/endpointtest"
)

func TestLoopback(t *testing.T) {
	endpointtest.Loopback(t, NewDialer(protocol.DefaultConfig(), log.NewNop()))
}
