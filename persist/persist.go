package persist

import "fmt"

// MutationLog is the durable append-only sink a Persisted[T] writes
// updates to before letting a mutation's effects be observed elsewhere.
// Implementations decide how updates are serialized and replayed; see
// MemoryLog for a process-local reference implementation.
type MutationLog interface {
	// Append durably records one tagged update. Must not return until the
	// update is safe to crash after.
	Append(tag string, update any) error
}

// PersistFunc writes one staged update for a value of type T to log.
type PersistFunc[T any] func(log MutationLog, value *T, update any) error

// TakeStagedFunc drains and returns whatever update(s) a value has
// accumulated since the last drain, or ok=false if there's nothing to
// persist.
type TakeStagedFunc[T any] func(value *T) (update any, ok bool)

// Persisted wraps a value of type T together with the function that knows
// how to turn one of its updates into a durable log entry. Every mutation
// that should survive a crash goes through Mutate, StagedMutate, or
// MutateNoPersist — never by mutating Value directly.
type Persisted[T any] struct {
	Value T
	tag   string

	persist    PersistFunc[T]
	takeStaged TakeStagedFunc[T]
}

// NewPersisted wraps an already-initialized value. tag identifies this
// value's update stream within a shared MutationLog (e.g. "access_structure:<key_id>").
func NewPersisted[T any](tag string, value T, persist PersistFunc[T]) *Persisted[T] {
	return &Persisted[T]{Value: value, tag: tag, persist: persist}
}

// WithTakeStaged attaches staged-update draining, enabling StagedMutate.
// Returns p for chaining.
func (p *Persisted[T]) WithTakeStaged(takeStaged TakeStagedFunc[T]) *Persisted[T] {
	p.takeStaged = takeStaged
	return p
}

// Mutate applies mutator to the wrapped value and persists the update it
// returns before returning mutator's result. The durability ordering is
// the whole point: the update is appended to log before Mutate returns, so
// a caller relaying the mutation's effects onward (e.g. sending a message)
// never does so ahead of the write that makes it safe to.
func (p *Persisted[T]) Mutate(log MutationLog, mutator func(*T) (result any, update any, err error)) (any, error) {
	result, update, err := mutator(&p.Value)
	if err != nil {
		return nil, err
	}
	if p.persist == nil {
		return nil, fmt.Errorf("persist: %q has no PersistFunc configured", p.tag)
	}
	if err := p.persist(log, &p.Value, update); err != nil {
		return nil, err
	}
	return result, nil
}

// StagedMutate applies mutator, then drains whatever update(s) the value
// staged internally during the call (via its own TakeStagedFunc) and
// persists those, instead of requiring mutator to hand back the update
// itself. Useful when a single mutator call can stage more than one
// logically-distinct update.
func (p *Persisted[T]) StagedMutate(log MutationLog, mutator func(*T) (any, error)) (any, error) {
	if p.takeStaged == nil {
		return nil, fmt.Errorf("persist: %q has no TakeStagedFunc configured", p.tag)
	}
	result, err := mutator(&p.Value)
	if err != nil {
		return nil, err
	}
	if update, ok := p.takeStaged(&p.Value); ok {
		if p.persist == nil {
			return nil, fmt.Errorf("persist: %q has no PersistFunc configured", p.tag)
		}
		if err := p.persist(log, &p.Value, update); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// MutateNoPersist grants direct mutable access to Value, opting out of the
// durability guarantee entirely. Named loudly on purpose: every call site
// is a place where a crash between the mutation and the next persisted
// update can lose state, and that should be a deliberate, visible choice.
func (p *Persisted[T]) MutateNoPersist() *T {
	return &p.Value
}

// MultiMutate2 runs two mutators against two distinct Persisted values and
// persists both updates, or neither if either mutator errors. Go's lack of
// variadic generics rules out a single combinator for an arbitrary number
// of legs the way the original's tuple macro does; MultiMutate2/3 cover the
// cases this module actually needs (an access structure update alongside a
// nonce cache update, or a signing session alongside both of those).
func MultiMutate2[A, B any](log MutationLog, a *Persisted[A], runA func(*A) (any, any, error), b *Persisted[B], runB func(*B) (any, any, error)) (any, any, error) {
	resA, updA, err := runA(&a.Value)
	if err != nil {
		return nil, nil, err
	}
	resB, updB, err := runB(&b.Value)
	if err != nil {
		return nil, nil, err
	}
	if err := a.persist(log, &a.Value, updA); err != nil {
		return nil, nil, err
	}
	if err := b.persist(log, &b.Value, updB); err != nil {
		return nil, nil, err
	}
	return resA, resB, nil
}

// MultiMutate3 is MultiMutate2 extended to three legs.
func MultiMutate3[A, B, C any](
	log MutationLog,
	a *Persisted[A], runA func(*A) (any, any, error),
	b *Persisted[B], runB func(*B) (any, any, error),
	c *Persisted[C], runC func(*C) (any, any, error),
) (any, any, any, error) {
	resA, updA, err := runA(&a.Value)
	if err != nil {
		return nil, nil, nil, err
	}
	resB, updB, err := runB(&b.Value)
	if err != nil {
		return nil, nil, nil, err
	}
	resC, updC, err := runC(&c.Value)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := a.persist(log, &a.Value, updA); err != nil {
		return nil, nil, nil, err
	}
	if err := b.persist(log, &b.Value, updB); err != nil {
		return nil, nil, nil, err
	}
	if err := c.persist(log, &c.Value, updC); err != nil {
		return nil, nil, nil, err
	}
	return resA, resB, resC, nil
}
