package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by decode helpers when data ends before the
// declared length.
var ErrShortBuffer = errors.New("wire: buffer too short")

func encodeUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func decodeUint16(data []byte) (uint16, []byte, error) {
	if len(data) < 2 {
		return 0, nil, ErrShortBuffer
	}
	return binary.LittleEndian.Uint16(data), data[2:], nil
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func decodeUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(data), data[4:], nil
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func decodeUint64(data []byte) (uint64, []byte, error) {
	if len(data) < 8 {
		return 0, nil, ErrShortBuffer
	}
	return binary.LittleEndian.Uint64(data), data[8:], nil
}

// encodeBytesLP prepends a uint32 LE length prefix to b.
func encodeBytesLP(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(out, uint32(len(b)))
	copy(out[4:], b)
	return out
}

// decodeBytesLP reads a uint32 LE length-prefixed byte slice, returning the
// payload and the remaining data.
func decodeBytesLP(data []byte) ([]byte, []byte, error) {
	n, rest, err := decodeUint32(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < uint64(n) {
		return nil, nil, ErrShortBuffer
	}
	return rest[:n], rest[n:], nil
}

func decodeFixedBytes(data []byte, n int) ([]byte, []byte, error) {
	if len(data) < n {
		return nil, nil, ErrShortBuffer
	}
	return data[:n], data[n:], nil
}

// MessageKind tags the concrete variant of a tagged-union wire message, for
// dispatch and logging without a type switch at every call site.
type MessageKind byte

func (k MessageKind) String() string {
	if s, ok := messageKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("MessageKind(%d)", byte(k))
}

var messageKindNames = map[MessageKind]string{}

func registerKindName(k MessageKind, name string) MessageKind {
	messageKindNames[k] = name
	return k
}
