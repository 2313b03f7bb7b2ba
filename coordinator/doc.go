// Package coordinator implements the host side of the threshold signing
// protocol: it drives devices through DKG and signing, owns the nonce
// cache across every registered device, and stages durable mutations for
// whatever storage backend the host embeds it in.
//
// A Coordinator never talks to a transport directly. It consumes
// DeviceToCoordinatorMessages (delivered by the link layer) and produces
// CoordinatorSends for the caller to route. Durable state goes to the
// MutationLog: key and signing-session updates through persist.Persisted,
// nonce-cache updates appended directly. A restart rebuilds the keys and
// the nonce cache from that log; a protocol that was still running is not
// resumed.
package coordinator
