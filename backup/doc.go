// Package backup implements the share-backup and recovery contract assumed
// by the device and coordinator cores: Shamir-style secret sharing over any
// [group.Group], human-transcribable 25-word encoding of a single share, and
// foreign-share-resistant recovery from a pool of mixed share images.
package backup
