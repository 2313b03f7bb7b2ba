package nonce

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/frostsnap/core/group"
	"github.com/frostsnap/core/wire"
)

// DeriveNonce deterministically derives the hiding and binding nonce
// scalars for one index of one stream, from a device's long-term secret
// and the stream id. Determinism is what lets a device recover its nonce
// stream after a crash without ever persisting the nonces themselves: as
// long as the device remembers which index it has already released (the
// write-ahead counter), it can always regenerate what comes after.
func DeriveNonce(g group.Group, longTermSecret []byte, stream StreamId, index uint32) (hiding, binding group.Scalar, err error) {
	salt := make([]byte, 16+4)
	copy(salt, stream[:])
	binary.LittleEndian.PutUint32(salt[16:], index)

	h := hkdf.New(sha256.New, longTermSecret, salt, []byte("frostsnap-nonce"))

	hidingBytes := make([]byte, 32)
	if _, err := io.ReadFull(h, hidingBytes); err != nil {
		return nil, nil, err
	}
	bindingBytes := make([]byte, 32)
	if _, err := io.ReadFull(h, bindingBytes); err != nil {
		return nil, nil, err
	}

	hiding, err = g.NewScalar().SetBytes(hidingBytes)
	if err != nil {
		return nil, nil, err
	}
	binding, err = g.NewScalar().SetBytes(bindingBytes)
	if err != nil {
		return nil, nil, err
	}
	return hiding, binding, nil
}

// DeriveBinonce derives and immediately publishes the public binonce
// (hiding and binding points) for one stream index, without exposing the
// underlying scalars to the caller.
func DeriveBinonce(g group.Group, longTermSecret []byte, stream StreamId, index uint32) (wire.Binonce, error) {
	hiding, binding, err := DeriveNonce(g, longTermSecret, stream, index)
	if err != nil {
		return wire.Binonce{}, err
	}
	hidingPoint := g.NewPoint().ScalarMult(hiding, g.Generator())
	bindingPoint := g.NewPoint().ScalarMult(binding, g.Generator())
	return wire.Binonce{
		Hiding:  append([]byte(nil), hidingPoint.Bytes()...),
		Binding: append([]byte(nil), bindingPoint.Bytes()...),
	}, nil
}
