// Package coordinator implements the host-side half of frostsnap: the
// party that talks to every device over a link, drives distributed key
// generation and signing to completion, and keeps the durable record of
// which keys exist and which nonces have been spent.
//
// See doc.go for the package overview and protocol.go for how Coordinator
// dispatches to whichever Protocol is currently active.
package coordinator

import (
	"errors"
	"fmt"

	"github.com/frostsnap/core/frost"
	"github.com/frostsnap/core/group"
	"github.com/frostsnap/core/nonce"
	"github.com/frostsnap/core/persist"
	"github.com/frostsnap/core/wire"
)

// ErrProtocolBusy is returned when starting a new protocol while one is
// already active; the coordinator only ever drives one at a time.
var ErrProtocolBusy = errors.New("coordinator: another protocol is already in progress")

// ErrUnknownKey is returned when a signing or restoration request names a
// key id the coordinator has no record of.
var ErrUnknownKey = errors.New("coordinator: no key with that id")

// Coordinator is the top-level state machine a host process drives: one
// DeviceToCoordinatorMessage in, zero or more CoordinatorSend out, plus
// whatever durable mutations that message implied.
type Coordinator struct {
	group group.Group
	log   persist.MutationLog
	keys  *persist.Persisted[FrostKeys]

	active     Protocol
	lastResult *keygenOrSignResult
}

// keygenOrSignResult remembers the outcome of the most recently completed
// protocol so a caller can retrieve it after IsComplete turns true, since
// Coordinator itself doesn't return protocol results synchronously from
// ProcessDeviceMessage.
type keygenOrSignResult struct {
	key *FrostKey
	sig *frost.Signature
}

// New builds a Coordinator backed by log. When log is a *persist.MemoryLog,
// FrostKeys are replayed from its entries under frostKeysTag so a restart
// picks up where it left off; any other MutationLog starts from empty
// FrostKeys. If a signing session was staged but never finished, its
// reserved nonce sub-segment is excluded from the rebuilt cache
// (excludeLingeringSigningSessionNonces) so it can never be handed to a
// second session.
func New(g group.Group, log persist.MutationLog) (*Coordinator, error) {
	initial := NewFrostKeys()
	if memLog, ok := log.(*persist.MemoryLog); ok {
		replayed, err := ReplayFrostKeys(memLog)
		if err != nil {
			return nil, err
		}
		initial = replayed
	}
	return &Coordinator{
		group: g,
		log:   log,
		keys:  persist.NewPersisted(frostKeysTag, initial, persistFrostKeys),
	}, nil
}

// Keys returns the coordinator's known keys, keyed by id.
func (c *Coordinator) Keys() map[wire.KeyId]*FrostKey {
	out := make(map[wire.KeyId]*FrostKey, len(c.keys.Value.Keys))
	for id, k := range c.keys.Value.Keys {
		out[id] = k
	}
	return out
}

// BeginKeygen starts a fresh distributed key generation session across
// devices. Fails if another protocol is already active.
func (c *Coordinator) BeginKeygen(devices []wire.DeviceId, threshold int, keyName wire.KeyName) ([]wire.CoordinatorSend, error) {
	if c.active != nil && c.active.IsComplete() == NotComplete {
		return nil, ErrProtocolBusy
	}
	kg, err := NewKeyGen(c.group, devices, threshold, keyName, c.onKeygenComplete)
	if err != nil {
		return nil, err
	}
	c.active = kg
	c.lastResult = nil
	return kg.Poll(), nil
}

// onKeygenComplete is KeyGen's onComplete callback: it durably records the
// new key before anything downstream (a UI report, a later sign request)
// can observe it.
func (c *Coordinator) onKeygenComplete(key FrostKey) {
	_, err := c.keys.Mutate(c.log, func(v *FrostKeys) (any, any, error) {
		v.Keys[key.KeyID] = &key
		return nil, KeyMutation{Version: mutationVersion, Key: key}, nil
	})
	if err != nil {
		return
	}
	c.lastResult = &keygenOrSignResult{key: &key}
}

// StartSign begins a signing session for task against keyID, using signers
// as the signing set. Fails if another protocol is active, the key is
// unknown, or the cache can't spare a nonce for every signer.
//
// Before returning, the session's SigningSessionState is staged durably
// (SigningSessionMutation) — the request handed back to the caller for
// RequestSign never leaves this call without its reserved nonce
// sub-segment already being crash-safe, per the nonce non-reuse invariant.
func (c *Coordinator) StartSign(task wire.SignTask, keyID wire.KeyId, signers []wire.DeviceId) ([]wire.CoordinatorSend, error) {
	if c.active != nil && c.active.IsComplete() == NotComplete {
		return nil, ErrProtocolBusy
	}
	key, ok := c.keys.Value.Keys[keyID]
	if !ok {
		return nil, ErrUnknownKey
	}
	sign, err := NewSign(c.group, key, c.keys.Value.Nonces, signers, task, c.onSignComplete)
	if err != nil {
		return nil, err
	}
	sign.OnNonceExtend = c.onNonceExtend
	sign.OnNonceConsume = c.onNonceConsume
	sign.OnShareReceived = c.onShareReceived
	sign.OnSessionDone = c.onSigningSessionDone

	session := sign.State()
	if _, err := c.keys.Mutate(c.log, func(v *FrostKeys) (any, any, error) {
		v.Signing = &session
		return nil, SigningSessionMutation{Version: mutationVersion, Session: session}, nil
	}); err != nil {
		return nil, fmt.Errorf("coordinator: staging signing session state: %w", err)
	}

	c.active = sign
	c.lastResult = nil
	sends := append([]wire.CoordinatorSend{wire.CoordinatorSendSigningSessionStore{Session: session}}, sign.Poll()...)
	return sends, nil
}

func (c *Coordinator) onSignComplete(sig *frost.Signature) {
	c.lastResult = &keygenOrSignResult{sig: sig}
}

// onShareReceived persists one signer's share into the staged signing
// session the instant Sign records it, so a crash mid-session never loses
// shares already collected.
func (c *Coordinator) onShareReceived(idx wire.ShareIndex, share wire.SignatureShare) {
	_, _ = c.keys.Mutate(c.log, func(v *FrostKeys) (any, any, error) {
		if v.Signing != nil {
			if v.Signing.Shares == nil {
				v.Signing.Shares = make(map[wire.ShareIndex]wire.SignatureShare)
			}
			v.Signing.Shares[idx] = share
		}
		return nil, SigningSessionShareMutation{Version: mutationVersion, ShareIndex: idx, Share: share}, nil
	})
}

// onSigningSessionDone drops the staged signing session's durable record
// once Sign can never touch it again, whether it finished or was
// cancelled.
func (c *Coordinator) onSigningSessionDone() {
	_, _ = c.keys.Mutate(c.log, func(v *FrostKeys) (any, any, error) {
		v.Signing = nil
		return nil, SigningSessionClearMutation{Version: mutationVersion}, nil
	})
}

// onNonceExtend persists a device's reported fresh nonces the instant Sign
// folds them into the shared cache, since the cache mutation and the log
// entry describing it must land together or not at all.
func (c *Coordinator) onNonceExtend(device wire.DeviceId, seg nonce.Segment) {
	_ = c.log.Append(frostKeysTag, NonceSegmentMutation{Version: mutationVersion, Device: device, Segment: seg})
}

// onNonceConsume persists a signing session's nonce consumption the instant
// Sign commits it, for the same reason as onNonceExtend.
func (c *Coordinator) onNonceConsume(device wire.DeviceId, stream nonce.StreamId, upTo uint32) {
	_ = c.log.Append(frostKeysTag, NonceConsumedMutation{Version: mutationVersion, Device: device, Stream: stream, UpTo: upTo})
}

// RecordNonces folds a device's freshly published nonce batch for one
// stream into the shared cache, persisting the extension before it can be
// drawn on by a later StartSign.
func (c *Coordinator) RecordNonces(device wire.DeviceId, streamID nonce.StreamId, dn wire.DeviceNonces) error {
	seg := nonce.Segment{StreamID: streamID, Nonces: dn.Nonces, Index: uint32(dn.StartIndex)}
	_, err := c.keys.Mutate(c.log, func(v *FrostKeys) (any, any, error) {
		if _, err := v.Nonces.ExtendSegment(device, seg); err != nil {
			return nil, nil, err
		}
		return nil, NonceSegmentMutation{Version: mutationVersion, Device: device, Segment: seg}, nil
	})
	return err
}

// BeginRestoration starts a restoration check of key's devices.
func (c *Coordinator) BeginRestoration(keyID wire.KeyId) ([]wire.CoordinatorSend, error) {
	if c.active != nil && c.active.IsComplete() == NotComplete {
		return nil, ErrProtocolBusy
	}
	key, ok := c.keys.Value.Keys[keyID]
	if !ok {
		return nil, ErrUnknownKey
	}
	r := NewRestoration(key, key.Devices())
	c.active = r
	c.lastResult = nil
	return r.Poll(), nil
}

// WaitForDevice starts the trivial single-device protocol, sending msg to
// target and completing on its first reply.
func (c *Coordinator) WaitForDevice(target wire.DeviceId, msg wire.CoordinatorToDeviceMessage) ([]wire.CoordinatorSend, error) {
	if c.active != nil && c.active.IsComplete() == NotComplete {
		return nil, ErrProtocolBusy
	}
	w := NewWaitForSingleDevice(target, msg)
	c.active = w
	c.lastResult = nil
	return w.Poll(), nil
}

// ProcessDeviceMessage routes msg from a device to whichever protocol is
// currently active. Returns an empty slice, not an error, if no protocol is
// running — a stray message from a device the coordinator isn't currently
// listening to is dropped, not fatal.
func (c *Coordinator) ProcessDeviceMessage(from wire.DeviceId, msg wire.DeviceToCoordinatorMessage) ([]wire.CoordinatorSend, error) {
	if c.active == nil {
		return nil, nil
	}
	sends, err := c.active.ProcessDeviceMessage(from, msg)
	if err != nil {
		return sends, fmt.Errorf("coordinator: processing message from %s: %w", from, err)
	}
	return sends, nil
}

// CancelActive abandons whatever protocol is currently running.
func (c *Coordinator) CancelActive() []wire.CoordinatorSend {
	if c.active == nil {
		return nil
	}
	return c.active.Cancel()
}

// ActiveCompletion reports the currently active protocol's completion
// state, or CompletedOK if nothing is running.
func (c *Coordinator) ActiveCompletion() Completion {
	if c.active == nil {
		return CompletedOK
	}
	return c.active.IsComplete()
}

// LastKeyGenerated returns the key most recently finalized by a completed
// BeginKeygen session, or nil if the last completed session wasn't a
// successful keygen.
func (c *Coordinator) LastKeyGenerated() *FrostKey {
	if c.lastResult == nil {
		return nil
	}
	return c.lastResult.key
}

// LastSignature returns the signature most recently produced by a
// completed StartSign session, or nil if the last completed session wasn't
// a successful sign.
func (c *Coordinator) LastSignature() *frost.Signature {
	if c.lastResult == nil {
		return nil
	}
	return c.lastResult.sig
}
