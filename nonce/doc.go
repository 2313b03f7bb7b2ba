// Package nonce implements the per-device deterministic nonce stream model:
// device-side segment bookkeeping and the coordinator-side cache that
// allocates nonce sub-segments to signing sessions without ever reusing a
// committed nonce.
package nonce
