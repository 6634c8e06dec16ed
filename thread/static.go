package thread

import "sync"

// Static is a guarded cell holding at most one value, typically a worker
// holder shared by a whole subsystem. The zero value is empty and ready
// to use. Initialize succeeds exactly once per occupancy; after
// Uninitialize the cell can be initialized again.
//
// Access goes through read or write guards so that concurrent readers
// proceed in parallel while a writer gets exclusive access.
type Static[H any] struct {
	mu    sync.RWMutex
	value *H
}

// Initialize stores h. It fails with ErrInitialized when the cell is
// already occupied, leaving the existing value untouched.
func (s *Static[H]) Initialize(h H) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value != nil {
		return ErrInitialized
	}
	s.value = &h
	return nil
}

// Uninitialize empties the cell and returns the value it held. The
// second result is false when the cell was already empty. It blocks
// until outstanding guards are released.
func (s *Static[H]) Uninitialize() (H, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		var zero H
		return zero, false
	}
	h := *s.value
	s.value = nil
	return h, true
}

// IsInitialized reports whether the cell currently holds a value.
func (s *Static[H]) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value != nil
}

// IsUninitialized is the negation of IsInitialized.
func (s *Static[H]) IsUninitialized() bool { return !s.IsInitialized() }

// TryGet returns a read guard for the held value. Multiple read guards
// may be outstanding at once. It fails with ErrUninitialized when the
// cell is empty. The guard must be released.
func (s *Static[H]) TryGet() (*Guard[H], error) {
	s.mu.RLock()
	if s.value == nil {
		s.mu.RUnlock()
		return nil, ErrUninitialized
	}
	return &Guard[H]{value: s.value, release: s.mu.RUnlock}, nil
}

// TryGetMut returns a write guard with exclusive access to the held
// value. It fails with ErrUninitialized when the cell is empty. The
// guard must be released.
func (s *Static[H]) TryGetMut() (*GuardMut[H], error) {
	s.mu.Lock()
	if s.value == nil {
		s.mu.Unlock()
		return nil, ErrUninitialized
	}
	return &GuardMut[H]{value: s.value, release: s.mu.Unlock}, nil
}

// Guard is a released-once read guard over a Static's value.
type Guard[H any] struct {
	value   *H
	release func()
	once    sync.Once
}

// Value returns the guarded value. It must not be used after Release.
func (g *Guard[H]) Value() *H { return g.value }

// Release unlocks the guard. Safe to call more than once.
func (g *Guard[H]) Release() { g.once.Do(g.release) }

// GuardMut is a released-once write guard over a Static's value.
type GuardMut[H any] struct {
	value   *H
	release func()
	once    sync.Once
}

// Value returns the guarded value. It must not be used after Release.
func (g *GuardMut[H]) Value() *H { return g.value }

// Release unlocks the guard. Safe to call more than once.
func (g *GuardMut[H]) Release() { g.once.Do(g.release) }
