package workflow

// BusyTask names an operation the device is in the middle of that has no
// user-facing prompt of its own (no hold-to-confirm, no data entry) but
// that the interaction layer should still show a spinner for.
type BusyTask int

const (
	BusyKeyGen BusyTask = iota
	BusySigning
	BusyVerifyingShare
	BusyLoading
	BusyGeneratingNonces
)

func (t BusyTask) String() string {
	switch t {
	case BusyKeyGen:
		return "key_gen"
	case BusySigning:
		return "signing"
	case BusyVerifyingShare:
		return "verifying_share"
	case BusyLoading:
		return "loading"
	case BusyGeneratingNonces:
		return "generating_nonces"
	default:
		return "unknown"
	}
}
