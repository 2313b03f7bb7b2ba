// Package device implements the hardware wallet's state machine: the
// embedded counterpart that holds a device's shares, advances its nonce
// counters, and drives the interactive confirmation workflow a user sees on
// the device's own screen.
//
// A Device is deliberately not safe for concurrent use — the real target
// is a single-threaded microcontroller event loop, and nothing here should
// make it look otherwise. HandleCoordinatorMessage is the single entry
// point for protocol messages; ConfirmPrompt and CancelPrompt are the two
// edges a user interaction can take. Every call returns the []wire.DeviceSend
// values the caller (the embedded main loop, or a host-side simulation
// harness) is responsible for actually dispatching — to the coordinator, to
// the user-facing workflow, or to local storage.
package device
