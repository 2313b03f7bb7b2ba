package link

import "io"

// Port is the physical (or simulated) byte stream a PortManager reads
// frames from and writes frames to: one serial port, one daisy chain.
// Closing it must unblock any in-progress Read.
type Port interface {
	io.ReadWriteCloser
}

// outboxCapacity bounds how many pending outbound frames a port can queue
// before it's considered stuck. A device that stops draining its upstream
// buffer (firmware hang, disconnected cable) shouldn't let one chain back
// up memory without limit.
const outboxCapacity = 64

// ErrOutboxFull is returned by PortManager.Send when a port's outbound
// queue is already at capacity. Per the link layer's fatal-overflow
// policy, a caller should treat this as the port going away, not retry
// indefinitely.
type ErrOutboxFull struct {
	Port string
}

func (e *ErrOutboxFull) Error() string {
	return "link: outbox full for port " + e.Port
}
