package nonce

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"

	"github.com/frostsnap/core/wire"
)

// StreamId identifies one per-device deterministic nonce stream within an
// access structure.
type StreamId = wire.NonceStreamId

// RandomStreamId draws a fresh stream id from rng (crypto/rand.Reader if
// rng is nil).
func RandomStreamId(rng io.Reader) (StreamId, error) {
	if rng == nil {
		rng = rand.Reader
	}
	var id StreamId
	if _, err := io.ReadFull(rng, id[:]); err != nil {
		return StreamId{}, err
	}
	return id, nil
}

// Segment is a contiguous run of a device's nonce stream, starting at
// Index. Two segments with the same StreamId can be merged with Extend as
// long as their index ranges overlap or abut.
type Segment struct {
	StreamID StreamId
	Nonces   []wire.Binonce
	Index    uint32
}

// ErrStreamIDMismatch is returned by Extend/CheckCanExtend when the two
// segments belong to different streams.
var ErrStreamIDMismatch = errors.New("nonce: segment stream ids don't match")

// ErrOverflow is returned by Extend/CheckCanExtend when merging the two
// segments' index ranges would overflow a uint32.
var ErrOverflow = errors.New("nonce: segment index range overflows")

// IndexAfterLast is the index one past this segment's last nonce, or false
// if the segment's range already overflows uint32.
func (s Segment) IndexAfterLast() (uint32, bool) {
	sum := uint64(s.Index) + uint64(len(s.Nonces))
	if sum > uint64(^uint32(0)) {
		return 0, false
	}
	return uint32(sum), true
}

func (s Segment) getNonce(index uint32) (wire.Binonce, bool) {
	if index < s.Index {
		return wire.Binonce{}, false
	}
	offset := index - s.Index
	if int(offset) >= len(s.Nonces) {
		return wire.Binonce{}, false
	}
	return s.Nonces[offset], true
}

// SigningReqSubSegment is a prefix taken from a Segment for use in one
// signing session, along with how many nonces the segment has left after
// the prefix is consumed — the coordinator tells the device this so it
// knows when to replenish.
type SigningReqSubSegment struct {
	Segment   Segment
	Remaining uint32
}

// CoordState is the coordinator's durable record of where it believes a
// device's nonce stream currently stands.
func (s SigningReqSubSegment) CoordState() CoordNonceStreamState {
	return CoordNonceStreamState{
		StreamID:  s.Segment.StreamID,
		Index:     s.Segment.Index,
		Remaining: s.Remaining,
	}
}

// SigningReqSubSegment takes the first length nonces of s for a signing
// request, returning false if s doesn't have that many.
func (s Segment) SigningReqSubSegment(length int) (SigningReqSubSegment, bool) {
	if length > len(s.Nonces) {
		return SigningReqSubSegment{}, false
	}
	remaining := len(s.Nonces) - length
	if remaining > int(^uint32(0)) {
		return SigningReqSubSegment{}, false
	}
	sub := Segment{
		StreamID: s.StreamID,
		Nonces:   append([]wire.Binonce(nil), s.Nonces[:length]...),
		Index:    s.Index,
	}
	return SigningReqSubSegment{Segment: sub, Remaining: uint32(remaining)}, true
}

// DeleteUpTo drops every nonce with index strictly less than upToButNotIncluding,
// reports whether anything was actually dropped.
func (s *Segment) DeleteUpTo(upToButNotIncluding uint32) bool {
	var toDelete uint32
	if upToButNotIncluding > s.Index {
		toDelete = upToButNotIncluding - s.Index
	}
	if int(toDelete) > len(s.Nonces) {
		toDelete = uint32(len(s.Nonces))
	}
	if toDelete == 0 {
		return false
	}
	s.Nonces = s.Nonces[toDelete:]
	s.Index += toDelete
	return true
}

// extend computes the merged segment without mutating s, mirroring the
// original's private helper so Extend and CheckCanExtend share one
// implementation.
func (s Segment) extend(other Segment) (Segment, error) {
	curr := s
	if s.StreamID != other.StreamID {
		return Segment{}, ErrStreamIDMismatch
	}
	if _, ok := other.IndexAfterLast(); !ok {
		return Segment{}, ErrOverflow
	}

	var connect bool
	if other.Index > curr.Index {
		connect = curr.Index+uint32(len(s.Nonces)) >= other.Index
	} else {
		connect = other.Index+uint32(len(other.Nonces)) >= curr.Index
	}

	if !connect || len(curr.Nonces) == 0 {
		if len(curr.Nonces) > len(other.Nonces) {
			return curr, nil
		}
		return other, nil
	}

	newStart := curr.Index
	if other.Index < newStart {
		newStart = other.Index
	}
	currEnd, _ := curr.IndexAfterLast()
	currEnd--
	otherEnd, _ := other.IndexAfterLast()
	otherEnd--
	newEnd := currEnd
	if otherEnd > newEnd {
		newEnd = otherEnd
	}

	for curr.Index > newStart {
		curr.Index--
		n, ok := other.getNonce(curr.Index)
		if !ok {
			return Segment{}, errors.New("nonce: extend invariant violated: missing nonce")
		}
		curr.Nonces = append([]wire.Binonce{n}, curr.Nonces...)
	}
	for currEnd < newEnd {
		currEnd++
		n, ok := other.getNonce(currEnd)
		if !ok {
			return Segment{}, errors.New("nonce: extend invariant violated: missing nonce")
		}
		curr.Nonces = append(curr.Nonces, n)
	}

	return curr, nil
}

// Extend merges other into s in place, reporting whether s actually
// changed. Returns an error if the two segments are incompatible (distinct
// stream ids, or a merge that would overflow).
func (s *Segment) Extend(other Segment) (bool, error) {
	merged, err := s.extend(other)
	if err != nil {
		return false, err
	}
	if !segmentsEqual(merged, *s) {
		*s = merged
		return true, nil
	}
	return false, nil
}

// CheckCanExtend reports whether Extend(other) would succeed, without
// mutating s.
func (s Segment) CheckCanExtend(other Segment) error {
	_, err := s.extend(other)
	return err
}

func segmentsEqual(a, b Segment) bool {
	if a.StreamID != b.StreamID || a.Index != b.Index || len(a.Nonces) != len(b.Nonces) {
		return false
	}
	for i := range a.Nonces {
		if !binoncesEqual(a.Nonces[i], b.Nonces[i]) {
			return false
		}
	}
	return true
}

func binoncesEqual(a, b wire.Binonce) bool {
	return bytes.Equal(a.Hiding, b.Hiding) && bytes.Equal(a.Binding, b.Binding)
}

// CoordNonceStreamState is the coordinator's durable bookkeeping for one
// device's nonce stream: where it currently starts, and how many nonces
// remain uncommitted.
type CoordNonceStreamState struct {
	StreamID  StreamId
	Index     uint32
	Remaining uint32
}

// AfterSigning advances the state past nSigs consumed nonces.
func (c CoordNonceStreamState) AfterSigning(nSigs int) (CoordNonceStreamState, error) {
	if uint64(c.Index)+uint64(nSigs) > uint64(^uint32(0)) {
		return CoordNonceStreamState{}, ErrOverflow
	}
	if nSigs > int(c.Remaining) {
		return CoordNonceStreamState{}, errors.New("nonce: cannot consume more nonces than remain")
	}
	c.Index += uint32(nSigs)
	c.Remaining -= uint32(nSigs)
	return c, nil
}
