// Package persist implements the write-ahead mutation-log contract shared
// by coordinator and device storage: a value is mutated in memory, the
// resulting update is durably appended before the mutation's effects are
// allowed to leave the process, and the value can be rebuilt by replaying
// the log from its initial state.
//
// Go's generics don't support associated types the way Rust's Persist
// trait does, so the per-value Update type is carried as `any` here rather
// than as a second type parameter pinned to T; MutationLog implementations
// are expected to tag updates so they can be replayed without external
// type information (see MemoryLog).
package persist
