package device

import (
	"github.com/frostsnap/core/frost"
	"github.com/frostsnap/core/group"
	"github.com/frostsnap/core/wire"
	"github.com/frostsnap/core/workflow"
)

// State is the tagged variant of what a Device's protocol handling is in
// the middle of. It tracks crypto-protocol progress; what the user sees is
// tracked separately in the device's workflow.State.
type State interface {
	isDeviceState()
}

// Idle is the zero State: the device isn't in the middle of any multi-round
// protocol.
type Idle struct{}

func (Idle) isDeviceState() {}

// KeyGenRunning holds an in-progress DKG round this device is a participant
// in, from DoKeyGen up to the FinishKeyGen transcript check.
type KeyGenRunning struct {
	KeyName      wire.KeyName
	Threshold    int
	MyID         int
	MyShareIndex wire.ShareIndex
	IDs          []int // every participant's id, including this device's
	Participant  *frost.Participant
	Broadcast    *frost.Round1Data
}

func (*KeyGenRunning) isDeviceState() {}

// KeyGenAwaitingConfirm holds a finalized key share this device has
// verified but not yet committed to: it's waiting for the user to confirm
// the session hash shown on screen before SaveKey is emitted.
type KeyGenAwaitingConfirm struct {
	Share       wire.PairedSecretShare
	KeyName     wire.KeyName
	SessionHash wire.SessionHash
}

func (*KeyGenAwaitingConfirm) isDeviceState() {}

// SignAwaitingConfirm holds a validated signing request this device is
// showing the user before producing its signature share.
type SignAwaitingConfirm struct {
	Request     wire.SignRequest
	MyShare     wire.PairedSecretShare
	MyID        int
	NonceStart  uint32
	NonceCount  uint32
	Commitments []*frost.SigningCommitment
	Nonce       *frost.SigningNonce
	KeyShare    *frost.KeyShare
}

func (*SignAwaitingConfirm) isDeviceState() {}

// DisplayBackupRunning tracks a display-backup request from the coordinator
// awaiting the user's confirmation before the words are shown.
type DisplayBackupRunning struct {
	KeyID   wire.KeyId
	KeyName wire.KeyName
}

func (*DisplayBackupRunning) isDeviceState() {}

// LoadBackupRunning tracks a backup the user has keyed in, awaiting
// confirmation before it's adopted as a held share.
type LoadBackupRunning struct {
	Share wire.PairedSecretShare
}

func (*LoadBackupRunning) isDeviceState() {}

// streamState is a device's bookkeeping for one key's deterministic nonce
// stream: how many nonces it has generated and released to the coordinator
// so far, and how many of those have actually been consumed by a signing
// session. Both counters only ever move forward.
type streamState struct {
	ID        wire.NonceStreamId
	Released  uint32 // next index that would be handed out by RequestNonces
	Expended  uint32 // next index a signing session is allowed to consume
}

// nonceBatchSize is how many nonces a device publishes per NonceResponse.
const nonceBatchSize = 32

// Device is the hardware wallet's in-memory protocol state. See the package
// doc comment for its concurrency contract.
type Device struct {
	Group          group.Group
	ID             wire.DeviceId
	Name           *wire.DeviceName
	LongTermSecret []byte

	Keys     map[wire.KeyId]wire.PairedSecretShare
	keyNames map[wire.KeyId]wire.KeyName
	Streams  map[wire.KeyId]*streamState

	lastBackupKey *wire.KeyId

	Protocol State
	Workflow workflow.State
}

// New creates a Device with no keys, ready to receive coordinator messages.
// longTermSecret seeds every deterministic nonce stream this device will
// ever derive and must never be reused across two different devices.
func New(g group.Group, id wire.DeviceId, longTermSecret []byte) *Device {
	return &Device{
		Group:          g,
		ID:             id,
		LongTermSecret: longTermSecret,
		Keys:           make(map[wire.KeyId]wire.PairedSecretShare),
		keyNames:       make(map[wire.KeyId]wire.KeyName),
		Streams:        make(map[wire.KeyId]*streamState),
		Protocol:       Idle{},
		Workflow:       workflow.None{},
	}
}
