package wire

import "encoding/hex"

// DeviceId identifies one hardware wallet: the compressed encoding of its
// per-device identity public key, fixed at the factory and never rotated.
type DeviceId [33]byte

func (d DeviceId) String() string { return hex.EncodeToString(d[:]) }

// KeyId identifies one access structure (one FROST public key) independent
// of how many devices hold shares of it.
type KeyId [32]byte

func (k KeyId) String() string { return hex.EncodeToString(k[:]) }

// SessionHash is the transcript hash devices compare to agree a DKG run
// produced the same access structure everywhere, before any device commits
// to using it.
type SessionHash [32]byte

func (s SessionHash) String() string { return hex.EncodeToString(s[:]) }

// SignSessionId identifies one signing session: the hash of the canonical
// encoding of its SignRequest.
type SignSessionId [32]byte

func (s SignSessionId) String() string { return hex.EncodeToString(s[:]) }

// KeygenId is a transient correlation id for one in-progress distributed
// key generation run, minted when the coordinator starts it and used only
// for logging/tracking purposes in the window before the run either
// produces a KeyId or fails — unlike KeyId, it carries no cryptographic
// meaning, so it's a plain random 16 bytes rather than a hash.
type KeygenId [16]byte

func (k KeygenId) String() string { return hex.EncodeToString(k[:]) }

// NonceStreamId identifies one per-device deterministic nonce stream within
// an access structure.
type NonceStreamId [16]byte

func (s NonceStreamId) String() string { return hex.EncodeToString(s[:]) }

// ShareIndex is a non-zero scalar identifying a share within an access
// structure. It's carried on the wire as raw scalar bytes; interpreting it
// as a group.Scalar for arithmetic is the caller's job, since wire has no
// notion of which curve is in play.
type ShareIndex [32]byte

func (s ShareIndex) String() string { return hex.EncodeToString(s[:]) }

// IsZero reports whether s is the all-zero (and therefore invalid) index.
func (s ShareIndex) IsZero() bool {
	for _, b := range s {
		if b != 0 {
			return false
		}
	}
	return true
}

// ShareIndexFromUint packs a small integer into a ShareIndex, big-endian in
// the low bytes, for use with sequential participant numbering.
func ShareIndexFromUint(n uint32) ShareIndex {
	var idx ShareIndex
	idx[28] = byte(n >> 24)
	idx[29] = byte(n >> 16)
	idx[30] = byte(n >> 8)
	idx[31] = byte(n)
	return idx
}

// ShareIndexToUint reverses ShareIndexFromUint, reporting false if idx
// carries any nonzero byte outside the low 4 bytes ShareIndexFromUint
// populates (i.e. it wasn't built from a small sequential number).
func ShareIndexToUint(idx ShareIndex) (uint32, bool) {
	for _, b := range idx[:28] {
		if b != 0 {
			return 0, false
		}
	}
	return uint32(idx[28])<<24 | uint32(idx[29])<<16 | uint32(idx[30])<<8 | uint32(idx[31]), true
}

// GroupPoint is a compressed curve point carried on the wire: 33 bytes,
// matching secp256k1's compressed encoding (the production curve); a
// BabyJubJub point is re-encoded by the caller since it needs a different
// fixed width.
type GroupPoint []byte

// GroupScalar is a 32-byte curve scalar carried on the wire.
type GroupScalar [32]byte

// Binonce is a FROST signing binonce: two compressed points, hiding then
// binding, 33 bytes each.
type Binonce struct {
	Hiding  GroupPoint
	Binding GroupPoint
}

func (b Binonce) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, len(b.Hiding)+len(b.Binding)+8)
	out = append(out, encodeBytesLP(b.Hiding)...)
	out = append(out, encodeBytesLP(b.Binding)...)
	return out, nil
}

func (b *Binonce) UnmarshalBinary(data []byte) error {
	hiding, rest, err := decodeBytesLP(data)
	if err != nil {
		return err
	}
	binding, _, err := decodeBytesLP(rest)
	if err != nil {
		return err
	}
	b.Hiding = append([]byte(nil), hiding...)
	b.Binding = append([]byte(nil), binding...)
	return nil
}

// SignatureShare is one signer's partial signature scalar for a signing
// session.
type SignatureShare GroupScalar

// EncodedSignature is a complete Schnorr signature in its 64-byte R||s
// encoding, chosen so it crosses FFI boundaries (the simulator, a mobile
// binding) without further decoding.
type EncodedSignature [64]byte

func (s EncodedSignature) String() string { return hex.EncodeToString(s[:]) }
