package link

import "github.com/frostsnap/core/wire"

// ChangeKind distinguishes the two events a PortManager ever reports about
// a device's reachability.
type ChangeKind int

const (
	// DeviceConnected fires for every device registered on a port once
	// DebounceWindow passes with no further AnnounceUpstream on that port.
	// Name is the zero DeviceName unless a NameResponse arrived on the
	// port after the device's last AnnounceUpstream.
	DeviceConnected ChangeKind = iota
	// DeviceDisconnected fires when a port that a device was registered on
	// is lost (read error, Close, or explicit RemovePort).
	DeviceDisconnected
)

func (k ChangeKind) String() string {
	if k == DeviceConnected {
		return "connected"
	}
	return "disconnected"
}

// DeviceChange is one device-reachability event, delivered to the
// coordinator over PortManager.Changes().
type DeviceChange struct {
	Kind     ChangeKind
	DeviceID wire.DeviceId
	Name     wire.DeviceName
	Port     string
}

// InboundFrame is one protocol frame that arrived from a registered
// device, delivered over PortManager.Inbound().
type InboundFrame struct {
	DeviceID wire.DeviceId
	Payload  []byte
}

// registry tracks which port each known device last registered on. Not
// safe for concurrent use by itself — PortManager holds its mu around
// every access.
type registry struct {
	portFor map[wire.DeviceId]string
	nameFor map[wire.DeviceId]wire.DeviceName
}

func newRegistry() *registry {
	return &registry{
		portFor: make(map[wire.DeviceId]string),
		nameFor: make(map[wire.DeviceId]wire.DeviceName),
	}
}

func (r *registry) register(port string, id wire.DeviceId, name wire.DeviceName) {
	r.portFor[id] = port
	r.nameFor[id] = name
}

func (r *registry) portOf(id wire.DeviceId) (string, bool) {
	p, ok := r.portFor[id]
	return p, ok
}

// forget removes every device registered on port, returning their ids so
// the caller can report DeviceDisconnected for each.
func (r *registry) forget(port string) []wire.DeviceId {
	var gone []wire.DeviceId
	for id, p := range r.portFor {
		if p == port {
			gone = append(gone, id)
		}
	}
	for _, id := range gone {
		delete(r.portFor, id)
		delete(r.nameFor, id)
	}
	return gone
}

func (r *registry) devicesOn(port string) []wire.DeviceId {
	var out []wire.DeviceId
	for id, p := range r.portFor {
		if p == port {
			out = append(out, id)
		}
	}
	return out
}
