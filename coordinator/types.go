package coordinator

import (
	"github.com/frostsnap/core/nonce"
	"github.com/frostsnap/core/wire"
)

// FrostKey is the coordinator's read model of one finalized access
// structure: which devices hold a share, at what threshold, under what
// group key.
type FrostKey struct {
	KeyID              wire.KeyId
	KeyName            wire.KeyName
	Threshold          int
	GroupKey           wire.GroupPoint
	DeviceToShareIndex map[wire.DeviceId]wire.ShareIndex
	// DeviceToPublicKey is each device's implied individual public key
	// share, derived once from the DKG broadcasts at finalization time
	// (the same Feldman evaluation every device performs to verify its
	// own private share). Used by Restoration to check a device's
	// CheckShareBackupReply without needing the broadcasts replayed.
	DeviceToPublicKey map[wire.DeviceId]wire.GroupPoint
}

// Devices returns this key's participating devices in no particular
// order.
func (k *FrostKey) Devices() []wire.DeviceId {
	out := make([]wire.DeviceId, 0, len(k.DeviceToShareIndex))
	for id := range k.DeviceToShareIndex {
		out = append(out, id)
	}
	return out
}

// FrostKeys is the coordinator's whole durable aggregate: every finalized
// key, the nonce cache shared across all of them, and at most one
// in-progress signing session's durable state. Wrapped in a
// persist.Persisted so every mutation to any of them is staged and
// persisted together.
type FrostKeys struct {
	Keys   map[wire.KeyId]*FrostKey
	Nonces *nonce.Cache
	// Signing is the durable record of whichever signing session StartSign
	// last staged, nil once it completes or is cancelled. Surviving here
	// across a coordinator restart is what lets the nonce cache rebuild
	// (see ReplayFrostKeys) exclude the session's reserved sub-segment
	// from future allocation even though the in-memory Sign protocol that
	// was driving it is gone.
	Signing *wire.SigningSessionState
}

// NewFrostKeys returns an empty aggregate.
func NewFrostKeys() FrostKeys {
	return FrostKeys{
		Keys:   make(map[wire.KeyId]*FrostKey),
		Nonces: nonce.NewCache(),
	}
}
