package workflow

// FirmwareUpgradeStatus is a tagged variant of the phases an in-progress
// firmware upgrade moves through.
type FirmwareUpgradeStatus interface {
	isFirmwareUpgradeStatus()
}

// Erase is shown while the target flash region is being erased ahead of
// writing the new image.
type Erase struct {
	Progress float32
}

func (Erase) isFirmwareUpgradeStatus() {}

// Download is shown while the new image is being streamed in and written.
type Download struct {
	Progress float32
}

func (Download) isFirmwareUpgradeStatus() {}

// Passive is shown when the device is a pass-through link in the chain for
// an upgrade targeting a different device and has nothing of its own to
// report.
type Passive struct{}

func (Passive) isFirmwareUpgradeStatus() {}
