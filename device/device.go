package device

import (
	"errors"

	"github.com/frostsnap/core/wire"
	"github.com/frostsnap/core/workflow"
)

// ErrNoActivePrompt is returned by ConfirmPrompt when the device isn't
// currently showing anything to confirm.
var ErrNoActivePrompt = errors.New("device: no active prompt to confirm")

// HandleCoordinatorMessage is the single entry point for a message arriving
// from upstream. Messages that don't apply to the device's current state
// (wrong key, wrong round, stale session) are dropped silently rather than
// returned as an error: a coordinator retrying or a device that missed a
// round shouldn't be able to crash its peer. Two cases do return an error:
// a message type the device doesn't handle, and a RequestSign whose nonces
// don't match the device's stream (ErrNonceRangeMismatch, ErrNonceMismatch).
func (d *Device) HandleCoordinatorMessage(msg wire.CoordinatorToDeviceMessage) ([]wire.DeviceSend, error) {
	switch m := msg.(type) {
	case wire.DoKeyGen:
		return d.handleDoKeyGen(m)
	case wire.FinishKeyGen:
		return d.handleFinishKeyGen(m)
	case wire.RequestSign:
		return d.handleRequestSign(m)
	case wire.RequestNonces:
		storage, coord, err := d.handleRequestNonces()
		if err != nil {
			return nil, err
		}
		return append(storage, coord...), nil
	case wire.DisplayBackup:
		return d.handleDisplayBackup(m)
	case wire.CheckShareBackup:
		return d.handleCheckShareBackup()
	default:
		return nil, errors.New("device: unknown coordinator message")
	}
}

// ConfirmPrompt resolves whatever the device is currently holding the user
// at a hold-to-confirm for.
func (d *Device) ConfirmPrompt() ([]wire.DeviceSend, error) {
	prompt, ok := d.Workflow.(workflow.UserPrompt)
	if !ok {
		return nil, ErrNoActivePrompt
	}
	switch prompt.Prompt.(type) {
	case workflow.KeyGenConfirm:
		return d.confirmKeyGen()
	case workflow.SigningConfirm:
		return d.confirmSign()
	case workflow.DisplayBackupRequest:
		return d.confirmDisplayBackup()
	case workflow.ConfirmLoadBackup:
		return d.confirmLoadBackup(), nil
	default:
		return nil, ErrNoActivePrompt
	}
}

// CancelPrompt abandons whatever the device is currently showing the user,
// applying the device's single cancellation policy and reporting it
// upstream.
func (d *Device) CancelPrompt() []wire.DeviceSend {
	task, ok := taskKindFor(d.Workflow)
	d.Workflow = workflow.Cancel(d.Workflow)
	d.Protocol = Idle{}
	if !ok {
		return nil
	}
	return []wire.DeviceSend{wire.DeviceSendToUser{Message: wire.Canceled{Task: task}}}
}

func taskKindFor(state workflow.State) (wire.TaskKind, bool) {
	switch s := state.(type) {
	case workflow.UserPrompt:
		switch s.Prompt.(type) {
		case workflow.KeyGenConfirm:
			return wire.TaskKeyGen, true
		case workflow.SigningConfirm:
			return wire.TaskSign, true
		case workflow.DisplayBackupRequest:
			return wire.TaskDisplayBackup, true
		case workflow.ConfirmLoadBackup:
			return wire.TaskLoadBackup, true
		}
	case workflow.EnteringBackupState:
		return wire.TaskLoadBackup, true
	}
	return wire.TaskKind(0), false
}

// HandleUiEvent resumes whatever protocol was waiting on a user interaction
// outcome that isn't a plain hold-to-confirm (naming, backup entry).
func (d *Device) HandleUiEvent(evt workflow.UiEvent) []wire.DeviceSend {
	switch e := evt.(type) {
	case workflow.EnteredShareBackup:
		return d.HandleEnteredShareBackup(e.ShareBackup)
	default:
		return nil
	}
}
