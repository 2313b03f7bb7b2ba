// Package secp implements group.Group for secp256k1, Bitcoin's curve.
//
// It follows the same wrapping pattern as the bjj package (mutable-receiver
// methods over a third-party element type) but binds to
// github.com/decred/dcrd/dcrec/secp256k1/v4 instead of gnark-crypto, since
// FROST signatures over Bitcoin taproot/legacy outputs must use secp256k1.
package secp
