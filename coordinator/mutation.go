package coordinator

import (
	"fmt"

	"github.com/frostsnap/core/nonce"
	"github.com/frostsnap/core/persist"
	"github.com/frostsnap/core/wire"
)

// mutationVersion is carried on every mutation variant so a reader can
// recognize and reject a newer format it doesn't understand, rather than
// silently misinterpreting it.
const mutationVersion uint8 = 1

// ErrUnsupportedVersion is returned when replaying a mutation tagged with a
// version newer than this build understands.
type ErrUnsupportedVersion struct {
	Tag     string
	Version uint8
}

func (e *ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("coordinator: mutation %q has version %d, newer than this build supports", e.Tag, e.Version)
}

// KeyMutation records a FrostKey coming into existence once its DKG
// session hash has been acknowledged by every participant.
type KeyMutation struct {
	Version uint8
	Key     FrostKey
}

// NonceSegmentMutation records an extension of one device's cached nonce
// segment for one stream.
type NonceSegmentMutation struct {
	Version uint8
	Device  wire.DeviceId
	Segment nonce.Segment
}

// NonceConsumedMutation records a device's stream advancing past a
// consumed signing session.
type NonceConsumedMutation struct {
	Version uint8
	Device  wire.DeviceId
	Stream  nonce.StreamId
	UpTo    uint32
}

// SigningSessionMutation records a signing session's durable state coming
// into existence, staged by StartSign before its RequestSign is handed
// back to the caller.
type SigningSessionMutation struct {
	Version uint8
	Session wire.SigningSessionState
}

// SigningSessionShareMutation records one signer's signature share
// arriving into the currently staged signing session.
type SigningSessionShareMutation struct {
	Version    uint8
	ShareIndex wire.ShareIndex
	Share      wire.SignatureShare
}

// SigningSessionClearMutation records a signing session's completion or
// cancellation; its durable state is dropped afterward, matching the
// lifecycle in spec.md's SigningSessionState entry.
type SigningSessionClearMutation struct {
	Version uint8
}

// frostKeysTag is the stream tag FrostKeys persists its mutations under in
// a shared persist.MutationLog.
const frostKeysTag = "frost_keys"

// FrostKeysTag returns the mutation log tag FrostKeys is persisted under,
// for callers that need to seed or inspect a log directly (e.g. restoring
// a coordinator from storage without replaying a live DKG).
func FrostKeysTag() string { return frostKeysTag }

// persistFrostKeys applies one FrostKeys mutation to log, matching the
// PersistFunc signature persist.Persisted[FrostKeys] needs.
func persistFrostKeys(log persist.MutationLog, value *FrostKeys, update any) error {
	switch u := update.(type) {
	case KeyMutation:
		if u.Version > mutationVersion {
			return &ErrUnsupportedVersion{Tag: frostKeysTag, Version: u.Version}
		}
	case NonceSegmentMutation:
		if u.Version > mutationVersion {
			return &ErrUnsupportedVersion{Tag: frostKeysTag, Version: u.Version}
		}
	case NonceConsumedMutation:
		if u.Version > mutationVersion {
			return &ErrUnsupportedVersion{Tag: frostKeysTag, Version: u.Version}
		}
	case SigningSessionMutation:
		if u.Version > mutationVersion {
			return &ErrUnsupportedVersion{Tag: frostKeysTag, Version: u.Version}
		}
	case SigningSessionShareMutation:
		if u.Version > mutationVersion {
			return &ErrUnsupportedVersion{Tag: frostKeysTag, Version: u.Version}
		}
	case SigningSessionClearMutation:
		if u.Version > mutationVersion {
			return &ErrUnsupportedVersion{Tag: frostKeysTag, Version: u.Version}
		}
	default:
		return fmt.Errorf("coordinator: unknown mutation type %T", update)
	}
	return log.Append(frostKeysTag, update)
}

// ReplayFrostKeys rebuilds a FrostKeys value from every mutation recorded
// under frostKeysTag in log, in order. Used to restore state after a
// restart instead of keeping a live-only aggregate.
func ReplayFrostKeys(log *persist.MemoryLog) (FrostKeys, error) {
	state := NewFrostKeys()
	for _, update := range log.EntriesForTag(frostKeysTag) {
		switch u := update.(type) {
		case KeyMutation:
			state.Keys[u.Key.KeyID] = &u.Key
		case NonceSegmentMutation:
			if _, err := state.Nonces.ExtendSegment(u.Device, u.Segment); err != nil {
				return FrostKeys{}, err
			}
		case NonceConsumedMutation:
			state.Nonces.Consume(u.Device, u.Stream, u.UpTo)
		case SigningSessionMutation:
			session := u.Session
			state.Signing = &session
		case SigningSessionShareMutation:
			if state.Signing != nil {
				if state.Signing.Shares == nil {
					state.Signing.Shares = make(map[wire.ShareIndex]wire.SignatureShare)
				}
				state.Signing.Shares[u.ShareIndex] = u.Share
			}
		case SigningSessionClearMutation:
			state.Signing = nil
		default:
			return FrostKeys{}, fmt.Errorf("coordinator: unknown replayed mutation type %T", update)
		}
	}
	excludeLingeringSigningSessionNonces(&state)
	return state, nil
}

// excludeLingeringSigningSessionNonces enforces nonce non-reuse across a
// coordinator restart. If a signing session's durable record survived
// without the in-memory Sign protocol that was driving it (the
// coordinator crashed between staging the session and finalizing it), the
// nonce sub-segment it reserved for each signer is marked consumed so a
// later session can never be handed the same (device, stream, index)
// triple again. The stalled session itself can't be resumed this way —
// nothing holds the shares it was waiting on anymore — but the nonces it
// claimed must never come back into circulation.
func excludeLingeringSigningSessionNonces(state *FrostKeys) {
	if state.Signing == nil {
		return
	}
	key := state.Keys[state.Signing.KeyID]
	if key == nil {
		return
	}
	for device, stream := range state.Signing.StreamFor {
		idx, ok := key.DeviceToShareIndex[device]
		if !ok {
			continue
		}
		reqNonces, ok := state.Signing.Request.Nonces[idx]
		if !ok {
			continue
		}
		state.Nonces.Consume(device, stream, uint32(reqNonces.Start)+1)
	}
}
