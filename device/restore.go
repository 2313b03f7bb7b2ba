package device

import (
	"github.com/frostsnap/core/wire"
)

// RestoreKeyShare rebuilds the in-memory state confirmKeyGen committed for
// one key, for a Device being brought back up after a restart from its
// persisted wire.SaveKey message. It's the read side of the write-ahead
// storage sends HandleCoordinatorMessage/ConfirmPrompt already produce.
//
// released is the nonce stream's next unpublished index, recovered from
// whatever counter the storage layer last durably recorded for this
// stream (see wire.ExpendNonce). Both stream counters start at released.
// Passing 0 when no prior counter is known makes every RequestSign fail
// the range check (ErrNonceRangeMismatch) until the device answers a
// RequestNonces; that answer re-derives nonces from index 0, so indices
// the device published before the restart are published and accepted
// again.
func RestoreKeyShare(d *Device, share wire.PairedSecretShare, keyName wire.KeyName, streamID wire.NonceStreamId, released uint32) {
	d.Keys[share.KeyID] = share
	d.keyNames[share.KeyID] = keyName
	d.Streams[share.KeyID] = &streamState{ID: streamID, Released: released, Expended: released}
}
