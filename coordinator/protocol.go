package coordinator

import "github.com/frostsnap/core/wire"

// Completion reports whether a Protocol has run to conclusion and how.
type Completion int

const (
	// NotComplete means the protocol still expects more device messages.
	NotComplete Completion = iota
	// CompletedOK means the protocol reached its goal successfully.
	CompletedOK
	// CompletedFailed means the protocol aborted (disconnect, rejection,
	// verification failure) before reaching its goal.
	CompletedFailed
)

// Protocol is the single active multi-round exchange the Coordinator is
// driving with a set of devices at any one time: key generation, signing,
// restoration, or waiting for a single device to register.
//
// Exactly one Protocol runs at a time; the Coordinator routes every
// DeviceToCoordinatorMessage to it until IsComplete stops returning
// NotComplete.
type Protocol interface {
	// Poll returns the sends this protocol currently wants dispatched
	// (e.g. its initial messages right after being started).
	Poll() []wire.CoordinatorSend
	// ProcessDeviceMessage advances the protocol with a message from one
	// participating device, returning whatever it wants sent in response.
	ProcessDeviceMessage(from wire.DeviceId, msg wire.DeviceToCoordinatorMessage) ([]wire.CoordinatorSend, error)
	// Cancel abandons the protocol, returning whatever cancellation
	// notice should be broadcast to participants.
	Cancel() []wire.CoordinatorSend
	// IsComplete reports whether the protocol has concluded.
	IsComplete() Completion
}
