package session

import "time"

// ID identifies a playback-control session. It is an opaque, caller-supplied
// token and is never validated for shape.
type ID string

// Status is the desired playback status of a session.
type Status string

const (
	StatusPlay  Status = "play"
	StatusPause Status = "pause"
	StatusStop  Status = "stop"
)

// DefaultVolume is the volume a session starts with.
const DefaultVolume = 100

// Action names a control command.
type Action string

const (
	ActionPlay   Action = "play"
	ActionPause  Action = "pause"
	ActionStop   Action = "stop"
	ActionSkip   Action = "skip"
	ActionVolume Action = "volume"
)

// Direction is the direction of a skip relative to the previous accepted skip.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// Session is the in-memory state held for one session id.
type Session struct {
	ID     ID
	URL    string
	Status Status
	Volume int

	// Action and Value describe the last accepted control command.
	Action Action
	Value  *float64

	// Skip bookkeeping, used only for skip de-duplication.
	LastSkipValue     *float64
	LastSkipDirection Direction

	// Version orders the session's states. It grows with every accepted
	// mutation and is never reused, even after eviction.
	Version   uint64
	UpdatedAt time.Time
}

// Snapshot is a read-only copy of a session as exposed to callers.
type Snapshot struct {
	SessionID ID        `json:"sessionId"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	Volume    int       `json:"volume"`
	Action    Action    `json:"action,omitempty"`
	Value     *float64  `json:"value"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ControlResult reports the outcome of a control command.
type ControlResult struct {
	Accepted  bool      `json:"accepted"`
	Action    Action    `json:"action"`
	Value     *float64  `json:"value"`
	SessionID ID        `json:"sessionId"`
	Direction Direction `json:"direction,omitempty"`
}

func newSession(id ID, now time.Time) *Session {
	return &Session{
		ID:        id,
		Status:    StatusStop,
		Volume:    DefaultVolume,
		UpdatedAt: now,
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		SessionID: s.ID,
		URL:       s.URL,
		Status:    s.Status,
		Volume:    s.Volume,
		Action:    s.Action,
		Value:     copyValue(s.Value),
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
	}
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
