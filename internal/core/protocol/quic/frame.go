package quic

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/protocol"
	"github.com/zeusync/simcore/pkg/generic"
)

// Frame layout:
// [4 bytes: payload length, big endian]
// [N bytes: payload]
const frameHeaderSize = 4

// write buffers above this size are not pooled
const maxPooledFrame = 64 * 1024

var framePool = generic.NewPool(func() *[]byte {
	b := make([]byte, 0, 4096)
	return &b
}).WithKeep(func(b *[]byte) bool {
	return cap(*b) <= maxPooledFrame
}).WithReset(func(b *[]byte) *[]byte {
	*b = (*b)[:0]
	return b
})

func writeFrame(w io.Writer, data []byte, maxSize uint32) error {
	if maxSize > 0 && uint64(len(data)) > uint64(maxSize) {
		return errors.Wrapf(protocol.ErrFrameTooLarge, "%d > %d", len(data), maxSize)
	}
	buf := framePool.Get()
	defer framePool.Put(buf)

	frame := binary.BigEndian.AppendUint32(*buf, uint32(len(data)))
	frame = append(frame, data...)
	*buf = frame
	_, err := w.Write(frame)
	return err
}

func readFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if maxSize > 0 && size > maxSize {
		return nil, errors.Wrapf(protocol.ErrFrameTooLarge, "%d > %d", size, maxSize)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
