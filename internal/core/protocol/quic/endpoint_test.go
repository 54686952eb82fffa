package quic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/protocol"
	"github.com/zeusync/simcore/internal/core/protocol/endpointtest"
)

func TestLoopback(t *testing.T) {
	endpointtest.Loopback(t, NewDialer(protocol.DefaultConfig(), log.NewNop()))
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("abc"), 16))
	require.NoError(t, writeFrame(&buf, nil, 16))
	assert.Equal(t, 4+3+4, buf.Len())

	got, err := readFrame(&buf, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got, err = readFrame(&buf, 16)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, writeFrame(&buf, make([]byte, 17), 16), protocol.ErrFrameTooLarge)

	buf.Reset()
	require.NoError(t, writeFrame(&buf, make([]byte, 17), 0))
	_, err = readFrame(&buf, 16)
	assert.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}
