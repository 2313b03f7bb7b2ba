// Package workflow models what a device is currently presenting to its
// user: a tagged variant (State) mutated by the device core as protocol
// events arrive, and observed by the surrounding interaction layer to drive
// whatever display it owns. Cancellation is defined once, centrally, here
// (Cancel) rather than by each caller re-deriving the fallback state.
package workflow
