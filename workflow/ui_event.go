package workflow

import (
	"github.com/frostsnap/core/backup"
	"github.com/frostsnap/core/wire"
)

// UiEvent is a tagged variant of the outcomes a user's hold-to-confirm or
// data-entry action can produce, handed back to the device core to resume
// whatever protocol was waiting on it.
type UiEvent interface {
	isUiEvent()
}

// KeyGenConfirmed reports that the user confirmed a KeyGenConfirm prompt.
type KeyGenConfirmed struct {
	Digest [32]byte
}

func (KeyGenConfirmed) isUiEvent() {}

// SigningConfirmed reports that the user confirmed a SigningConfirm prompt.
type SigningConfirmed struct {
	Digest [32]byte
}

func (SigningConfirmed) isUiEvent() {}

// NameConfirmed reports the name the user accepted.
type NameConfirmed struct {
	Name wire.DeviceName
}

func (NameConfirmed) isUiEvent() {}

// EnteredShareBackup reports a backup share the user finished keying in.
type EnteredShareBackup struct {
	ShareBackup backup.ShareBackup
}

func (EnteredShareBackup) isUiEvent() {}

// BackupRequestConfirmed reports that the user confirmed a
// DisplayBackupRequest prompt.
type BackupRequestConfirmed struct{}

func (BackupRequestConfirmed) isUiEvent() {}

// UpgradeConfirmed reports that the user confirmed a ConfirmFirmwareUpgrade
// prompt.
type UpgradeConfirmed struct{}

func (UpgradeConfirmed) isUiEvent() {}

// WipeDataConfirmed reports that the user confirmed a WipeDevice prompt.
type WipeDataConfirmed struct{}

func (WipeDataConfirmed) isUiEvent() {}
