// Package wire implements the bit-exact frame codec and message taxonomy
// carried over the daisy-chain serial bus: length-delimited, CRC-checked
// frames with a magic-byte handshake, and the tagged-union message types
// exchanged between devices, the coordinator, and the user-facing layer.
package wire
