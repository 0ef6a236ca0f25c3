package session

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Repository defines the concurrency-safe contract for accessing and mutating
// in-memory session state.
type Repository interface {
	// EnsureSession returns the session for id, creating it with defaults if
	// it has never been seen.
	EnsureSession(id ID) Snapshot

	// ApplyControl records a control command against the session, creating it
	// if needed. Skip commands that repeat the previous skip are ignored and
	// reported with Accepted=false; every other command is accepted.
	// The caller is responsible for validating action and value.
	ApplyControl(id ID, action Action, value *float64) (ControlResult, Snapshot)

	// UpdateURL overwrites the session's source URL, creating the session if
	// needed.
	UpdateURL(id ID, url string) Snapshot

	// GetStatus returns a snapshot of the session. It never creates a session;
	// ErrUnknownSession is returned for ids that were never seen or have been
	// evicted.
	GetStatus(id ID) (Snapshot, error)

	// Evict removes sessions whose last mutation happened before idleBefore
	// and returns their ids.
	Evict(idleBefore time.Time) []ID

	// Len returns the number of live sessions. Used for metrics.
	Len() int
}

// ErrUnknownSession is returned when reading a session that does not exist.
var ErrUnknownSession = errors.New("unknown session")

// InMemoryRepository is a concurrency-safe in-memory implementation of Repository.
// It uses a Store for persistence; by default that is an InMemoryStore.
type InMemoryRepository struct {
	mu    sync.RWMutex
	store Store
	seq   uint64 // last version handed out; guarded by mu
}

// NewInMemoryRepository constructs a new repository with a default in-memory store.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithStore(NewInMemoryStore())
}

// NewInMemoryRepositoryWithStore constructs a repository that uses the given Store.
func NewInMemoryRepositoryWithStore(store Store) *InMemoryRepository {
	return &InMemoryRepository{store: store}
}

// EnsureSession implements Repository.EnsureSession.
func (r *InMemoryRepository) EnsureSession(id ID) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getOrCreateLocked(id).snapshot()
}

// ApplyControl implements Repository.ApplyControl.
func (r *InMemoryRepository) ApplyControl(id ID, action Action, value *float64) (ControlResult, Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.getOrCreateLocked(id)
	res := ControlResult{Action: action, Value: copyValue(value), SessionID: id}

	if action == ActionSkip {
		if value == nil {
			return res, s.snapshot()
		}
		dir := skipDirection(*value, s.LastSkipValue, s.LastSkipDirection)
		res.Direction = dir
		if s.LastSkipValue != nil && *value == *s.LastSkipValue && dir == s.LastSkipDirection {
			// Repeated identical skip signal.
			return res, s.snapshot()
		}
		s.LastSkipValue = copyValue(value)
		s.LastSkipDirection = dir
	}

	switch action {
	case ActionPlay:
		s.Status = StatusPlay
	case ActionPause:
		s.Status = StatusPause
	case ActionStop:
		s.Status = StatusStop
	case ActionVolume:
		if value != nil {
			s.Volume = clampVolume(*value)
		}
	}

	s.Action = action
	s.Value = copyValue(value)
	r.touchLocked(s)
	res.Accepted = true

	return res, s.snapshot()
}

// UpdateURL implements Repository.UpdateURL.
func (r *InMemoryRepository) UpdateURL(id ID, url string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.getOrCreateLocked(id)
	s.URL = url
	r.touchLocked(s)
	return s.snapshot()
}

// GetStatus implements Repository.GetStatus.
func (r *InMemoryRepository) GetStatus(id ID) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.store.Get(id)
	if !ok {
		return Snapshot{}, ErrUnknownSession
	}
	return s.snapshot(), nil
}

// Evict implements Repository.Evict.
func (r *InMemoryRepository) Evict(idleBefore time.Time) []ID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []ID
	for _, id := range r.store.IDs() {
		s, ok := r.store.Get(id)
		if !ok || !s.UpdatedAt.Before(idleBefore) {
			continue
		}
		r.store.Delete(id)
		evicted = append(evicted, id)
	}
	return evicted
}

// Len implements Repository.Len.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.store.IDs())
}

// getOrCreateLocked returns an existing session or creates one with defaults.
// Caller must hold r.mu in write mode.
func (r *InMemoryRepository) getOrCreateLocked(id ID) *Session {
	if s, ok := r.store.Get(id); ok {
		return s
	}

	s := newSession(id, time.Now().UTC())
	r.seq++
	s.Version = r.seq
	r.store.Set(s)
	return s
}

// touchLocked stamps a mutation of s with the next version.
// Caller must hold r.mu in write mode.
func (r *InMemoryRepository) touchLocked(s *Session) {
	r.seq++
	s.Version = r.seq
	s.UpdatedAt = time.Now().UTC()
}

// skipDirection compares a skip value with the previous accepted one. A value
// equal to the previous one keeps the previous direction.
func skipDirection(value float64, last *float64, lastDir Direction) Direction {
	switch {
	case last == nil || value > *last:
		return DirectionForward
	case value < *last:
		return DirectionBackward
	default:
		return lastDir
	}
}

func clampVolume(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
