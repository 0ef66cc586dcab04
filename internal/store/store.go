// Package store holds the capsule state shared by the orchestrator and
// every renderer. Only the orchestrator writes; any number of readers take
// snapshots or wait for the next change.
package store

import (
	"sync"

	"github.com/Sruimeng/vestige/internal/capsule"
)

// SystemState is the coarse phase of the acquisition flow.
type SystemState string

const (
	StateIdle         SystemState = "IDLE"
	StateScrolling    SystemState = "SCROLLING"
	StateChecking     SystemState = "CHECKING"
	StateConstructing SystemState = "CONSTRUCTING"
	StateLoadingModel SystemState = "LOADING_MODEL"
	StateMaterialized SystemState = "MATERIALIZED"
	StateError        SystemState = "ERROR"
)

// States lists every SystemState in lifecycle order.
var States = []SystemState{
	StateIdle,
	StateScrolling,
	StateChecking,
	StateConstructing,
	StateLoadingModel,
	StateMaterialized,
	StateError,
}

// Valid reports whether s is a known state.
func (s SystemState) Valid() bool {
	for _, v := range States {
		if v == s {
			return true
		}
	}
	return false
}

// Busy reports whether a fetch cycle is in flight.
func (s SystemState) Busy() bool {
	return s == StateChecking || s == StateConstructing || s == StateLoadingModel
}

// Snapshot is an immutable copy of the store contents.
type Snapshot struct {
	Year     int           `json:"year"`
	State    SystemState   `json:"system_state"`
	Capsule  *capsule.Data `json:"capsule"`
	Error    string        `json:"error,omitempty"`
	Progress int           `json:"progress"`

	// Version increments on every mutation
	Version uint64 `json:"version"`
}

func initial() Snapshot {
	return Snapshot{Year: capsule.DefaultYear, State: StateIdle}
}

// Store is the capsule state container.
type Store struct {
	mu      sync.RWMutex
	snap    Snapshot
	changed chan struct{}
}

// New returns a store holding the initial snapshot (2026, IDLE, no capsule,
// no error, progress 0).
func New() *Store {
	return &Store{snap: initial(), changed: make(chan struct{})}
}

// Snapshot returns the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Year returns the displayed year.
func (s *Store) Year() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Year
}

// State returns the current system state.
func (s *Store) State() SystemState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.State
}

// Capsule returns the last committed capsule, or nil.
func (s *Store) Capsule() *capsule.Data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Capsule
}

// Progress returns the current progress percentage.
func (s *Store) Progress() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Progress
}

// Watch returns a channel that is closed on the next mutation.
func (s *Store) Watch() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// SetYear sets the displayed year.
func (s *Store) SetYear(year int) {
	s.mutate(func(snap *Snapshot) { snap.Year = year })
}

// SetState sets the system state.
func (s *Store) SetState(state SystemState) {
	s.mutate(func(snap *Snapshot) { snap.State = state })
}

// SetCapsule replaces the capsule wholesale.
func (s *Store) SetCapsule(data capsule.Data) {
	s.mutate(func(snap *Snapshot) { snap.Capsule = &data })
}

// ClearCapsule drops the capsule.
func (s *Store) ClearCapsule() {
	s.mutate(func(snap *Snapshot) { snap.Capsule = nil })
}

// SetError sets the error text; empty clears it.
func (s *Store) SetError(msg string) {
	s.mutate(func(snap *Snapshot) { snap.Error = msg })
}

// SetProgress sets progress, clamped to [0, 100].
func (s *Store) SetProgress(p int) {
	p = min(max(p, 0), 100)
	s.mutate(func(snap *Snapshot) { snap.Progress = p })
}

// Reset restores the initial snapshot.
func (s *Store) Reset() {
	s.mutate(func(snap *Snapshot) {
		v := snap.Version
		*snap = initial()
		snap.Version = v
	})
}

func (s *Store) mutate(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.snap.Version++
	ch := s.changed
	s.changed = make(chan struct{})
	s.mu.Unlock()
	close(ch)
}
