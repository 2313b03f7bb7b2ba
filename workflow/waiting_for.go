package workflow

// WaitingFor is a tagged variant describing why the device currently has
// nothing to show beyond "waiting".
type WaitingFor interface {
	isWaitingFor()
}

// LookingForUpstream is shown while physically scanning for an upstream
// device to chain to.
type LookingForUpstream struct {
	// JTAG is true when the search is happening over the JTAG debug link
	// rather than the production UART chain.
	JTAG bool
}

func (LookingForUpstream) isWaitingFor() {}

// CoordinatorAnnounceAck is shown after announcing upstream, before the
// coordinator has acknowledged.
type CoordinatorAnnounceAck struct{}

func (CoordinatorAnnounceAck) isWaitingFor() {}

// CoordinatorInstruction is the device's default idle state: nothing in
// flight, waiting for the coordinator to ask for something. CompletedTask,
// when set, is the event that just finished (so the interaction layer can
// show a brief confirmation before settling into idle).
type CoordinatorInstruction struct {
	CompletedTask UiEvent // nil if nothing just completed
}

func (CoordinatorInstruction) isWaitingFor() {}

// CoordinatorResponse is shown after sending a message to the coordinator,
// while awaiting its reply.
type CoordinatorResponse struct {
	Response WaitingResponse
}

func (CoordinatorResponse) isWaitingFor() {}

// WaitingResponse names which outstanding coordinator reply is being
// awaited.
type WaitingResponse int

const (
	WaitingResponseKeyGen WaitingResponse = iota
)
