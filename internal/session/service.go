package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAction is returned for control commands outside the supported set
// or with a payload the command cannot use.
var ErrInvalidAction = errors.New("invalid action")

// Notifier receives a snapshot after every accepted mutation. Notify calls
// for one session may arrive out of order; Snapshot.Version says which is
// newer.
type Notifier interface {
	Notify(Snapshot)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Snapshot)

// Notify implements Notifier.
func (f NotifierFunc) Notify(s Snapshot) { f(s) }

// Service validates control commands, delegates state changes to the
// Repository and publishes the resulting snapshots.
type Service struct {
	repo     Repository
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
}

// NewService returns a Service backed by repo. Sessions idle for longer than
// ttl are removed by EvictIdle; ttl <= 0 keeps sessions for the life of the
// process. notifier may be nil.
func NewService(repo Repository, notifier Notifier, ttl time.Duration) *Service {
	if notifier == nil {
		notifier = NotifierFunc(func(Snapshot) {})
	}
	return &Service{repo: repo, notifier: notifier, ttl: ttl, now: time.Now}
}

// ParseAction maps a command name to an Action.
func ParseAction(name string) (Action, error) {
	switch a := Action(name); a {
	case ActionPlay, ActionPause, ActionStop, ActionSkip, ActionVolume:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, name)
	}
}

// ValidateControl checks that value is usable with action.
func ValidateControl(action Action, value *float64) error {
	switch action {
	case ActionSkip:
		if value == nil {
			return fmt.Errorf("%w: skip requires a numeric value", ErrInvalidAction)
		}
	case ActionVolume:
		if value == nil {
			return fmt.Errorf("%w: volume requires a numeric value", ErrInvalidAction)
		}
		if *value < 0 || *value > 100 {
			return fmt.Errorf("%w: volume must be between 0 and 100", ErrInvalidAction)
		}
	}
	return nil
}

// EnsureSession returns the session for id, creating it if needed.
func (s *Service) EnsureSession(id ID) Snapshot {
	return s.repo.EnsureSession(id)
}

// ApplyControl validates and applies a control command.
func (s *Service) ApplyControl(id ID, name string, value *float64) (ControlResult, error) {
	action, err := ParseAction(name)
	if err != nil {
		return ControlResult{}, err
	}
	if err := ValidateControl(action, value); err != nil {
		return ControlResult{}, err
	}

	res, snap := s.repo.ApplyControl(id, action, value)
	if res.Accepted {
		s.notifier.Notify(snap)
	}
	return res, nil
}

// UpdateURL sets the source URL of a session.
func (s *Service) UpdateURL(id ID, url string) Snapshot {
	snap := s.repo.UpdateURL(id, url)
	s.notifier.Notify(snap)
	return snap
}

// GetStatus returns the current snapshot of a session or ErrUnknownSession.
func (s *Service) GetStatus(id ID) (Snapshot, error) {
	return s.repo.GetStatus(id)
}

// ActiveSessions returns the number of live sessions.
func (s *Service) ActiveSessions() int {
	return s.repo.Len()
}

// EvictIdle removes sessions that have not been mutated within the TTL.
func (s *Service) EvictIdle() []ID {
	if s.ttl <= 0 {
		return nil
	}
	return s.repo.Evict(s.now().UTC().Add(-s.ttl))
}

// RunJanitor calls EvictIdle every interval until ctx is done. onEvict, if
// not nil, is called with the ids removed by each non-empty pass.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration, onEvict func([]ID)) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.EvictIdle(); len(evicted) > 0 && onEvict != nil {
				onEvict(evicted)
			}
		}
	}
}
