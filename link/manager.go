package link

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/frostsnap/core/wire"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DebounceWindow is how long a port must go quiet — no new
// AnnounceUpstream arriving — before the coordinator treats its device set
// as settled. A device chain powering on enumerates one device at a time
// as each link downstream comes up; reporting DeviceConnected the instant
// the first one announces would make a caller see a device set that's
// still growing.
const DebounceWindow = 2 * time.Second

// HandshakeWindow is a 5-second bound named for the registration
// handshake. PortManager does not reference it: an AnnounceUpstream is
// acknowledged when it arrives, and no handshake timeout is applied.
const HandshakeWindow = 5 * time.Second

// isControlKind reports whether a frame payload's leading kind byte
// belongs to the link-control range (20-23), distinct from every
// CoordinatorToDeviceMessage/DeviceToCoordinatorMessage kind (1-15).
func isControlKind(kind wire.MessageKind) bool {
	return kind >= wire.KindAnnounceUpstream && kind <= wire.KindNameResponse
}

type portState struct {
	name    string
	port    Port
	outbox  chan []byte
	convID  uint16
	decoder *wire.Decoder

	debounceTimer *time.Timer
	settled       bool
}

// PortManager owns a reader and a writer goroutine per registered
// physical port, decodes
// frames arriving on it, runs the AnnounceUpstream/AnnounceAck
// registration handshake, and routes outbound frames to whichever port a
// destination device is registered on. All coordinator-facing
// communication happens over Changes() and Inbound() — bounded channels,
// never direct callbacks — so the manager's goroutines never block on
// coordinator-side work.
type PortManager struct {
	log *zap.Logger

	mu    sync.Mutex
	ports map[string]*portState
	reg   *registry

	changes chan DeviceChange
	inbound chan InboundFrame

	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPortManager returns a PortManager ready to have ports added to it.
// logger may be nil, in which case a no-op logger (zap.NewNop) is used.
func NewPortManager(logger *zap.Logger) *PortManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	eg, ctx := errgroup.WithContext(ctx)
	return &PortManager{
		log:     logger,
		ports:   make(map[string]*portState),
		reg:     newRegistry(),
		changes: make(chan DeviceChange, 64),
		inbound: make(chan InboundFrame, 256),
		eg:      eg,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Changes returns the channel DeviceConnected/DeviceDisconnected events are
// delivered on.
func (m *PortManager) Changes() <-chan DeviceChange { return m.changes }

// Inbound returns the channel routed device frames are delivered on.
func (m *PortManager) Inbound() <-chan InboundFrame { return m.inbound }

// AddPort registers a new physical port under name and starts two
// goroutines for it: one reading and decoding frames, one writing queued
// outbound frames. Safe to call while other ports are
// already running.
func (m *PortManager) AddPort(name string, p Port) {
	m.mu.Lock()
	ps := &portState{
		name:    name,
		port:    p,
		outbox:  make(chan []byte, outboxCapacity),
		decoder: wire.NewDecoder(wire.DirectionUpstream),
	}
	m.ports[name] = ps
	m.mu.Unlock()

	m.eg.Go(func() error { return m.readLoop(ps) })
	m.eg.Go(func() error { return m.writeLoop(ps) })
}

// RemovePort closes and forgets a port, reporting DeviceDisconnected for
// every device that was registered on it.
func (m *PortManager) RemovePort(name string) {
	m.mu.Lock()
	ps, ok := m.ports[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.ports, name)
	gone := m.reg.forget(name)
	m.mu.Unlock()

	ps.port.Close()
	for _, id := range gone {
		m.changes <- DeviceChange{Kind: DeviceDisconnected, DeviceID: id, Port: name}
	}
}

// Wait blocks until every port goroutine has exited, which happens once
// Close is called or every port's Read returns an error.
func (m *PortManager) Wait() error {
	return m.eg.Wait()
}

// Close stops every port goroutine and closes every registered port.
func (m *PortManager) Close() {
	m.cancel()
	m.mu.Lock()
	ports := make([]*portState, 0, len(m.ports))
	for _, ps := range m.ports {
		ports = append(ports, ps)
	}
	m.mu.Unlock()
	for _, ps := range ports {
		ps.port.Close()
	}
}

func (m *PortManager) readLoop(ps *portState) error {
	buf := make([]byte, 4096)
	for {
		n, err := ps.port.Read(buf)
		if n > 0 {
			ps.decoder.Feed(buf[:n])
			for {
				frame, ferr := ps.decoder.Next()
				if ferr == wire.ErrIncomplete {
					break
				}
				if _, corrupt := ferr.(*wire.ErrCorrupt); corrupt {
					m.log.Sugar().Warnw("link: resynchronising after corrupt frame", "port", ps.name)
					continue
				}
				if ferr != nil {
					break
				}
				m.handleFrame(ps, frame)
			}
		}
		if err != nil {
			if err != io.EOF {
				m.log.Sugar().Warnw("link: port read failed", "port", ps.name, "error", err)
			}
			m.RemovePort(ps.name)
			return nil
		}
		select {
		case <-m.ctx.Done():
			return nil
		default:
		}
	}
}

func (m *PortManager) writeLoop(ps *portState) error {
	for {
		select {
		case <-m.ctx.Done():
			return nil
		case payload, ok := <-ps.outbox:
			if !ok {
				return nil
			}
			if _, err := ps.port.Write(payload); err != nil {
				m.log.Sugar().Warnw("link: port write failed", "port", ps.name, "error", err)
				m.RemovePort(ps.name)
				return nil
			}
		}
	}
}

func (m *PortManager) handleFrame(ps *portState, frame wire.Frame) {
	if len(frame.Payload) == 0 {
		return
	}
	kind := wire.MessageKind(frame.Payload[0])
	if isControlKind(kind) {
		m.handleControl(ps, frame)
		return
	}

	m.mu.Lock()
	var from wire.DeviceId
	found := false
	for _, id := range m.reg.devicesOn(ps.name) {
		from = id
		found = true
		break
	}
	m.mu.Unlock()
	if !found {
		m.log.Sugar().Debugw("link: dropping frame from unregistered port", "port", ps.name)
		return
	}

	m.inbound <- InboundFrame{DeviceID: from, Payload: frame.Payload}
}

func (m *PortManager) handleControl(ps *portState, frame wire.Frame) {
	msg, err := wire.DecodeLinkControlMessage(frame.Payload)
	if err != nil {
		m.log.Sugar().Warnw("link: malformed control frame", "port", ps.name, "error", err)
		return
	}
	switch ctrl := msg.(type) {
	case wire.AnnounceUpstream:
		m.handleAnnounce(ps, frame.ConversationID, ctrl)
	case wire.NameResponse:
		m.mu.Lock()
		for id := range m.reg.portFor {
			if p, _ := m.reg.portOf(id); p == ps.name {
				m.reg.nameFor[id] = ctrl.Name
			}
		}
		m.mu.Unlock()
	default:
		// AnnounceAck/RequestName are coordinator-to-device; a device
		// shouldn't ever send one upstream.
	}
}

// handleAnnounce completes the registration handshake for a newly seen
// device: acknowledges it, registers it against its port, and arms the
// port's debounce timer so DeviceConnected fires once the chain settles
// rather than once per device as each one enumerates in turn.
func (m *PortManager) handleAnnounce(ps *portState, convID uint16, ann wire.AnnounceUpstream) {
	ack, err := wire.EncodeLinkControlMessage(wire.AnnounceAck{})
	if err == nil {
		m.sendRaw(ps, convID, ack)
	}

	m.mu.Lock()
	m.reg.register(ps.name, ann.DeviceID, wire.DeviceName{})
	if ps.debounceTimer != nil {
		ps.debounceTimer.Stop()
	}
	ps.settled = false
	ps.debounceTimer = time.AfterFunc(DebounceWindow, func() { m.settlePort(ps) })
	m.mu.Unlock()
}

// settlePort reports every device currently registered on ps as connected,
// once the port has gone quiet for DebounceWindow.
func (m *PortManager) settlePort(ps *portState) {
	m.mu.Lock()
	ps.settled = true
	ids := m.reg.devicesOn(ps.name)
	names := make(map[wire.DeviceId]wire.DeviceName, len(ids))
	for _, id := range ids {
		names[id] = m.reg.nameFor[id]
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.changes <- DeviceChange{Kind: DeviceConnected, DeviceID: id, Name: names[id], Port: ps.name}
	}
}

// Send routes payload to destination's registered port. destination being
// the zero DeviceId broadcasts to every port.
func (m *PortManager) Send(destination wire.DeviceId, payload []byte) error {
	var zero wire.DeviceId
	m.mu.Lock()
	defer m.mu.Unlock()

	if destination == zero {
		for _, ps := range m.ports {
			if err := m.enqueue(ps, payload); err != nil {
				return err
			}
		}
		return nil
	}

	portName, ok := m.reg.portOf(destination)
	if !ok {
		return nil
	}
	ps, ok := m.ports[portName]
	if !ok {
		return nil
	}
	return m.enqueue(ps, payload)
}

func (m *PortManager) enqueue(ps *portState, payload []byte) error {
	frame := wire.Frame{Magic: wire.MagicRecvDownstream, ConversationID: ps.convID, Payload: payload}
	ps.convID++
	select {
	case ps.outbox <- frame.Encode():
		return nil
	default:
		return &ErrOutboxFull{Port: ps.name}
	}
}

func (m *PortManager) sendRaw(ps *portState, convID uint16, payload []byte) {
	frame := wire.Frame{Magic: wire.MagicRecvDownstream, ConversationID: convID, Payload: payload}
	select {
	case ps.outbox <- frame.Encode():
	default:
		m.log.Sugar().Warnw("link: dropped control reply, outbox full", "port", ps.name)
	}
}
