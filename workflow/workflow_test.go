package workflow

import (
	"testing"

	"github.com/frostsnap/core/backup"
	"github.com/frostsnap/core/wire"
)

func TestCancelFromWaitingForIsEffectivelyNoOp(t *testing.T) {
	start := WaitingForState{WaitingFor: LookingForUpstream{JTAG: true}}
	got := Cancel(start)
	want := start
	if got != want {
		t.Errorf("Cancel(%+v) = %+v, want %+v", start, got, want)
	}
}

func TestCancelFromUserPromptReturnsToWaitingForInstruction(t *testing.T) {
	start := NewUserPrompt(WipeDevice{})
	got := Cancel(start)
	want := WaitingForState{WaitingFor: CoordinatorInstruction{CompletedTask: nil}}
	if got != want {
		t.Errorf("Cancel(%+v) = %+v, want %+v", start, got, want)
	}
}

func TestCancelFromNewNamePromptReturnsToNamingDevice(t *testing.T) {
	oldName := wire.TruncateDeviceName("old-name")
	newName := wire.TruncateDeviceName("new-name")
	start := NewUserPrompt(NewName{Old: &oldName, New: newName})

	got := Cancel(start)
	want := NamingDevice{Old: &oldName, New: newName}
	if got != want {
		t.Errorf("Cancel(%+v) = %+v, want %+v", start, got, want)
	}
}

func TestCancelFromDisplayBackupReturnsToWaitingForInstruction(t *testing.T) {
	keyName := wire.TruncateKeyName("my-key")
	start := DisplayBackup{KeyName: keyName, Backup: backup.ShareBackup{}}

	got := Cancel(start)
	want := WaitingForState{WaitingFor: CoordinatorInstruction{CompletedTask: nil}}
	if got != want {
		t.Errorf("Cancel(%+v) = %+v, want %+v", start, got, want)
	}
}

func TestCancelFromNoneAndDebugAreUnchanged(t *testing.T) {
	if got := Cancel(None{}); got != (None{}) {
		t.Errorf("Cancel(None{}) = %+v, want None{}", got)
	}
	debug := Debug{Message: "diagnostic"}
	if got := Cancel(debug); got != debug {
		t.Errorf("Cancel(%+v) = %+v, want unchanged", debug, got)
	}
}

func TestNewUserPromptHoldDuration(t *testing.T) {
	ordinary := NewUserPrompt(WipeDevice{})
	if ordinary.HoldDuration != LongHoldToConfirm {
		t.Errorf("WipeDevice hold duration: got %v want %v", ordinary.HoldDuration, LongHoldToConfirm)
	}

	other := NewUserPrompt(BackupRequestConfirmedPrompt())
	if other.HoldDuration != HoldToConfirm {
		t.Errorf("ordinary prompt hold duration: got %v want %v", other.HoldDuration, HoldToConfirm)
	}
}

// BackupRequestConfirmedPrompt is a tiny test helper standing in for any
// non-WipeDevice prompt.
func BackupRequestConfirmedPrompt() Prompt {
	return DisplayBackupRequest{KeyName: wire.TruncateKeyName("k")}
}

func TestBusyTaskString(t *testing.T) {
	cases := map[BusyTask]string{
		BusyKeyGen:           "key_gen",
		BusySigning:          "signing",
		BusyVerifyingShare:   "verifying_share",
		BusyLoading:          "loading",
		BusyGeneratingNonces: "generating_nonces",
	}
	for task, want := range cases {
		if got := task.String(); got != want {
			t.Errorf("BusyTask(%d).String() = %q, want %q", task, got, want)
		}
	}
}

func TestFirmwareUpgradeStateHoldsStatus(t *testing.T) {
	s := FirmwareUpgradeState{Status: Download{Progress: 0.5}}
	dl, ok := s.Status.(Download)
	if !ok {
		t.Fatalf("expected Download, got %T", s.Status)
	}
	if dl.Progress != 0.5 {
		t.Errorf("progress: got %v want 0.5", dl.Progress)
	}
}
