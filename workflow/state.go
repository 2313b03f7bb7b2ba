package workflow

import (
	"time"

	"github.com/frostsnap/core/backup"
	"github.com/frostsnap/core/wire"
)

// State is what the device is currently presenting: waiting for something,
// prompting the user to confirm an action, or showing a result. Exactly one
// concrete type below satisfies it at a time.
type State interface {
	isWorkflowState()
}

// None is the zero State, used before anything has ever been set.
type None struct{}

func (None) isWorkflowState() {}

// WaitingForState wraps a WaitingFor variant: the device has nothing to show
// the user beyond its current idle reason.
type WaitingForState struct {
	WaitingFor WaitingFor
}

func (WaitingForState) isWorkflowState() {}

// UserPrompt asks the user to hold a button to confirm prompt. HoldDuration
// is how long the hold must be sustained, set by NewUserPrompt according to
// the prompt's severity.
type UserPrompt struct {
	Prompt       Prompt
	HoldDuration time.Duration
}

func (UserPrompt) isWorkflowState() {}

// HoldToConfirm is the hold duration for ordinary confirmations.
const HoldToConfirm = 600 * time.Millisecond

// LongHoldToConfirm is the hold duration for destructive confirmations
// (wiping a device).
const LongHoldToConfirm = 6 * time.Second

// NewUserPrompt builds a UserPrompt with the hold duration appropriate to
// prompt's kind.
func NewUserPrompt(prompt Prompt) UserPrompt {
	hold := HoldToConfirm
	if _, ok := prompt.(WipeDevice); ok {
		hold = LongHoldToConfirm
	}
	return UserPrompt{Prompt: prompt, HoldDuration: hold}
}

// NamingDevice is shown while the device is being assigned or confirming a
// new name.
type NamingDevice struct {
	Old *wire.DeviceName // nil if the device has no name yet
	New wire.DeviceName
}

func (NamingDevice) isWorkflowState() {}

// DisplayBackup shows a reconstructed share backup for the named key.
type DisplayBackup struct {
	KeyName wire.KeyName
	Backup  backup.ShareBackup
}

func (DisplayBackup) isWorkflowState() {}

// EnteringBackupState wraps an EnteringBackupStage: the user is keying in a
// backup's words.
type EnteringBackupState struct {
	Stage EnteringBackupStage
}

func (EnteringBackupState) isWorkflowState() {}

// DisplayAddress shows a derived receiving address.
type DisplayAddress struct {
	Address   string
	BIP32Path string
	// Seed marks the address as a randomized verification address (the
	// original Rust side carries a u32 animation seed here; since that
	// seed never affects protocol semantics, it's reduced to a bool
	// flagging "this is a seeded/randomized display" for the interaction
	// layer).
	Seed bool
}

func (DisplayAddress) isWorkflowState() {}

// FirmwareUpgradeState wraps a FirmwareUpgradeStatus.
type FirmwareUpgradeState struct {
	Status FirmwareUpgradeStatus
}

func (FirmwareUpgradeState) isWorkflowState() {}

// Debug shows an arbitrary diagnostic string, bypassing the rest of the
// workflow model.
type Debug struct {
	Message string
}

func (Debug) isWorkflowState() {}

// Cancel applies the device's single cancellation policy (spec invariant
// 8): a no-op from any WaitingFor state; from a NewName prompt it falls
// back to naming the device rather than discarding the in-progress name;
// from every other UserPrompt, NamingDevice, DisplayBackup, DisplayAddress,
// EnteringBackup, or FirmwareUpgrade state, it returns to
// WaitingFor(CoordinatorInstruction); None and Debug are left unchanged.
func Cancel(current State) State {
	switch s := current.(type) {
	case UserPrompt:
		if newName, ok := s.Prompt.(NewName); ok {
			return NamingDevice{Old: newName.Old, New: newName.New}
		}
		return waitingForInstruction()
	case NamingDevice, DisplayBackup, DisplayAddress, EnteringBackupState, FirmwareUpgradeState:
		return waitingForInstruction()
	case WaitingForState, None, Debug:
		return current
	default:
		return current
	}
}

func waitingForInstruction() State {
	return WaitingForState{WaitingFor: CoordinatorInstruction{CompletedTask: nil}}
}
