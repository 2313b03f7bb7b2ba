package coordinator

import "github.com/frostsnap/core/wire"

// WaitForSingleDevice is the trivial protocol used by flows that only ever
// address one device at a time (backup display, device naming): it sends
// one initial message and completes the instant that device replies with
// anything at all, without caring what kind of reply it was.
type WaitForSingleDevice struct {
	target  wire.DeviceId
	pending []wire.CoordinatorSend
	done    bool
}

// NewWaitForSingleDevice starts the protocol, queuing msg for delivery to
// target.
func NewWaitForSingleDevice(target wire.DeviceId, msg wire.CoordinatorToDeviceMessage) *WaitForSingleDevice {
	return &WaitForSingleDevice{
		target:  target,
		pending: []wire.CoordinatorSend{wire.CoordinatorSendToDevice{Message: msg, Destinations: []wire.DeviceId{target}}},
	}
}

func (w *WaitForSingleDevice) Poll() []wire.CoordinatorSend {
	out := w.pending
	w.pending = nil
	return out
}

func (w *WaitForSingleDevice) IsComplete() Completion {
	if w.done {
		return CompletedOK
	}
	return NotComplete
}

func (w *WaitForSingleDevice) Cancel() []wire.CoordinatorSend {
	w.done = true
	return nil
}

func (w *WaitForSingleDevice) ProcessDeviceMessage(from wire.DeviceId, _ wire.DeviceToCoordinatorMessage) ([]wire.CoordinatorSend, error) {
	if from != w.target {
		return nil, nil
	}
	w.done = true
	return nil, nil
}
