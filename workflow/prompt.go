package workflow

import (
	"github.com/frostsnap/core/backup"
	"github.com/frostsnap/core/wire"
)

// Prompt is a tagged variant of the confirmations a device can ask its user
// to hold-to-confirm.
type Prompt interface {
	isPrompt()
}

// KeyGenConfirm asks the user to confirm participation in a key generation
// round. Digest identifies the keygen transcript being confirmed — the
// device-core phase object the original carries here belongs to a package
// this one can't depend on without an import cycle, so only the bytes
// needed to show and later verify the confirmation travel with the prompt.
type KeyGenConfirm struct {
	Digest [32]byte
}

func (KeyGenConfirm) isPrompt() {}

// SigningConfirm asks the user to confirm signing a task, identified by its
// digest (see wire.SignTask.Digest).
type SigningConfirm struct {
	Digest [32]byte
}

func (SigningConfirm) isPrompt() {}

// NewName asks the user to confirm a proposed device name.
type NewName struct {
	Old *wire.DeviceName // nil if the device has no name yet
	New wire.DeviceName
}

func (NewName) isPrompt() {}

// DisplayBackupRequest asks the user to confirm they want their backup
// words displayed on screen.
type DisplayBackupRequest struct {
	KeyName wire.KeyName
}

func (DisplayBackupRequest) isPrompt() {}

// ConfirmFirmwareUpgrade asks the user to confirm flashing new firmware,
// identified by its digest and expected size.
type ConfirmFirmwareUpgrade struct {
	FirmwareDigest [32]byte
	Size           uint32
}

func (ConfirmFirmwareUpgrade) isPrompt() {}

// ConfirmLoadBackup asks the user to confirm restoring from a share backup
// they just entered.
type ConfirmLoadBackup struct {
	ShareBackup backup.ShareBackup
}

func (ConfirmLoadBackup) isPrompt() {}

// WipeDevice asks the user to confirm erasing all device state. Uses
// LongHoldToConfirm rather than HoldToConfirm.
type WipeDevice struct{}

func (WipeDevice) isPrompt() {}
