package nonce

import (
	"crypto/rand"
	"fmt"
	"io"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/frostsnap/core/wire"
)

// Cache is the coordinator's nonce bookkeeping across every device it
// knows about: for each device, one Segment per stream id. It never lets a
// nonce be handed out twice.
type Cache struct {
	byDevice map[wire.DeviceId]map[StreamId]*Segment
	// used tracks, per device, which of its streams are already committed
	// to an in-flight signing session so a second session can't also draw
	// from them.
	used map[wire.DeviceId]*bitset.BitSet
	// streamIndex assigns each device's stream ids a stable small integer
	// so they can be tracked in a BitSet.
	streamIndex map[wire.DeviceId]map[StreamId]uint
}

// NewCache returns an empty nonce cache.
func NewCache() *Cache {
	return &Cache{
		byDevice:    make(map[wire.DeviceId]map[StreamId]*Segment),
		used:        make(map[wire.DeviceId]*bitset.BitSet),
		streamIndex: make(map[wire.DeviceId]map[StreamId]uint),
	}
}

func (c *Cache) streamBit(device wire.DeviceId, stream StreamId) uint {
	idx, ok := c.streamIndex[device]
	if !ok {
		idx = make(map[StreamId]uint)
		c.streamIndex[device] = idx
	}
	bit, ok := idx[stream]
	if !ok {
		bit = uint(len(idx))
		idx[stream] = bit
	}
	return bit
}

// ExtendSegment folds newSegment into the cache for device, creating the
// stream's entry if it doesn't exist yet. Reports whether the cache
// actually changed.
func (c *Cache) ExtendSegment(device wire.DeviceId, newSegment Segment) (bool, error) {
	streams, ok := c.byDevice[device]
	if !ok {
		streams = make(map[StreamId]*Segment)
		c.byDevice[device] = streams
	}
	segment, ok := streams[newSegment.StreamID]
	if !ok {
		segment = &Segment{StreamID: newSegment.StreamID}
		streams[newSegment.StreamID] = segment
	}
	return segment.Extend(newSegment)
}

// CheckCanExtend reports whether ExtendSegment(device, newSegment) would
// succeed, without mutating the cache.
func (c *Cache) CheckCanExtend(device wire.DeviceId, newSegment Segment) error {
	streams, ok := c.byDevice[device]
	if !ok {
		return nil
	}
	segment, ok := streams[newSegment.StreamID]
	if !ok {
		return nil
	}
	return segment.CheckCanExtend(newSegment)
}

// NotEnoughNonces is returned by NewSigningSession when a device doesn't
// have enough spare nonces in any unused stream.
type NotEnoughNonces struct {
	DeviceID  wire.DeviceId
	Available int
	Need      int
}

func (e *NotEnoughNonces) Error() string {
	return fmt.Sprintf("coordinator doesn't have enough nonces for %s: has %d, needs %d",
		e.DeviceID, e.Available, e.Need)
}

// NewSigningSession picks one not-already-in-use nonce stream per device
// and carves nNonces off its front for a new signing session, marking those
// streams used so a concurrent session can't also draw from them. On
// failure for any one device, no cache state is committed.
func (c *Cache) NewSigningSession(devices []wire.DeviceId, nNonces int) (map[wire.DeviceId]SigningReqSubSegment, error) {
	chosen := make(map[wire.DeviceId]SigningReqSubSegment, len(devices))
	chosenStreamBits := make(map[wire.DeviceId]uint)

	for _, device := range devices {
		streams := c.byDevice[device]
		usedBits := c.used[device]

		var streamIDs []StreamId
		for id := range streams {
			streamIDs = append(streamIDs, id)
		}
		sort.Slice(streamIDs, func(i, j int) bool {
			return streamIDs[i].String() < streamIDs[j].String()
		})

		available := 0
		found := false
		for _, id := range streamIDs {
			bit := c.streamBit(device, id)
			if usedBits != nil && usedBits.Test(bit) {
				continue
			}
			segment := streams[id]
			if _, ok := segment.IndexAfterLast(); !ok {
				continue
			}
			if sub, ok := segment.SigningReqSubSegment(nNonces); ok {
				chosen[device] = sub
				chosenStreamBits[device] = bit
				found = true
				break
			}
			if len(segment.Nonces) > available {
				available = len(segment.Nonces)
			}
		}

		if !found {
			return nil, &NotEnoughNonces{DeviceID: device, Available: available, Need: nNonces}
		}
	}

	for device, bit := range chosenStreamBits {
		set := c.used[device]
		if set == nil {
			set = bitset.New(64)
			c.used[device] = set
		}
		set.Set(bit)
	}

	return chosen, nil
}

// Consume advances the cached segment for device/stream past
// upToButNotIncluding. Panics if the segment's current index is already
// past that point — a coordinator bug, not a runtime condition to recover
// from, since it means the coordinator tried to consume nonces it had
// already consumed.
func (c *Cache) Consume(device wire.DeviceId, stream StreamId, upToButNotIncluding uint32) bool {
	streams, ok := c.byDevice[device]
	if !ok {
		return false
	}
	segment, ok := streams[stream]
	if !ok {
		return false
	}
	if segment.Index > upToButNotIncluding {
		panic(fmt.Sprintf("nonce: tried to consume nonces already past: index %d > consumption point %d",
			segment.Index, upToButNotIncluding))
	}
	return segment.DeleteUpTo(upToButNotIncluding)
}

// Release un-marks a device's chosen stream as used so a later signing
// session can draw from it again. It consumes nothing: whatever nonces are
// still cached on the stream become available to the next session.
func (c *Cache) Release(device wire.DeviceId, stream StreamId) {
	set, ok := c.used[device]
	if !ok {
		return
	}
	set.Clear(c.streamBit(device, stream))
}

// NoncesAvailable reports, per not-in-use stream, how many nonces are
// currently cached for device.
func (c *Cache) NoncesAvailable(device wire.DeviceId) map[StreamId]uint32 {
	out := make(map[StreamId]uint32)
	streams := c.byDevice[device]
	usedBits := c.used[device]
	for id, segment := range streams {
		bit := c.streamBit(device, id)
		if usedBits != nil && usedBits.Test(bit) {
			continue
		}
		if len(segment.Nonces) > 0 {
			out[id] = uint32(len(segment.Nonces))
		}
	}
	return out
}

// GenerateNonceStreamOpeningRequests reports the CoordNonceStreamState the
// coordinator should request replenishment for: fresh random stream ids up
// to minStreams if the device doesn't have enough yet, plus the current
// state of every stream it already has.
func (c *Cache) GenerateNonceStreamOpeningRequests(device wire.DeviceId, minStreams int, rng io.Reader) ([]CoordNonceStreamState, error) {
	if rng == nil {
		rng = rand.Reader
	}
	streams := c.byDevice[device]
	var out []CoordNonceStreamState

	newStreamsNeeded := minStreams - len(streams)
	for i := 0; i < newStreamsNeeded; i++ {
		id, err := RandomStreamId(rng)
		if err != nil {
			return nil, err
		}
		out = append(out, CoordNonceStreamState{StreamID: id, Index: 0, Remaining: 0})
	}

	for id, segment := range streams {
		out = append(out, CoordNonceStreamState{
			StreamID:  id,
			Index:     segment.Index,
			Remaining: uint32(len(segment.Nonces)),
		})
	}

	return out, nil
}
