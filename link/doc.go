// Package link implements the daisy-chain transport between the
// coordinator and its devices: physical port discovery, the
// AnnounceUpstream/AnnounceAck registration handshake, frame routing to
// and from registered devices, and the debounce window that lets a chain
// of devices settle before the coordinator treats its device set as
// stable.
//
// A PortManager owns a reader and a writer goroutine per physical port
// (see manager.go) and
// communicates with the rest of the coordinator only over the bounded
// channels Changes() and Inbound() returns — nothing here ever reaches
// into coordinator state directly, matching the "protocol owner thread" /
// "port-manager thread" split described for the core coordinator loop.
package link
