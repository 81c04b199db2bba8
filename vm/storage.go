package vm

import "sync/atomic"

// ---------------------------------------------------------------------------
// Shared element storage
// ---------------------------------------------------------------------------

// storage is a reference-counted element buffer. Array values holding
// the same storage share it until a write is needed, at which point the
// writer clones (copy-on-write). The machine retains at its duplication
// points (dup, over, constant push, binding load) and releases on
// discard; a missed release only overcounts, which disables in-place
// reuse for that buffer but can never let two values observe the same
// mutation.
type storage[T any] struct {
	refs  atomic.Int64
	elems []T
}

func newStorage[T any](elems []T) *storage[T] {
	s := &storage[T]{elems: elems}
	s.refs.Store(1)
	return s
}

func (s *storage[T]) retain() *storage[T] {
	s.refs.Add(1)
	return s
}

func (s *storage[T]) release() {
	s.refs.Add(-1)
}

// unique reports whether exactly one value references this storage.
func (s *storage[T]) unique() bool {
	return s.refs.Load() == 1
}

// mut returns storage safe to write through: the receiver when unique,
// otherwise a fresh clone with its own count.
func (s *storage[T]) mut() *storage[T] {
	if s.unique() {
		return s
	}
	return newStorage(append([]T(nil), s.elems...))
}
