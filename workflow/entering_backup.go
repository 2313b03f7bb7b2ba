package workflow

// EnteringBackupStage is a tagged variant of where the user is in keying in
// a backup's 25 words. The original carries a concrete screen widget per
// stage; that's a rendering concern this package doesn't own, so each stage
// here carries only the data the device core needs to resume once entry
// finishes.
type EnteringBackupStage interface {
	isEnteringBackupStage()
}

// EnteringBackupInit is the stage before the user has entered anything.
type EnteringBackupInit struct{}

func (EnteringBackupInit) isEnteringBackupStage() {}

// EnteringBackupShareIndex is the stage where the user is entering which
// share index this backup belongs to.
type EnteringBackupShareIndex struct{}

func (EnteringBackupShareIndex) isEnteringBackupStage() {}

// EnteringBackupShare is the stage where the user is entering the backup's
// word sequence itself.
type EnteringBackupShare struct{}

func (EnteringBackupShare) isEnteringBackupStage() {}
