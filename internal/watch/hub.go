// Package watch pushes session snapshots to live watchers: in-process
// subscribers, websocket clients and an MQTT broker.
package watch

import (
	"sync"

	"media-relay/internal/session"
)

// Hub keeps the subscribers of each session and hands them every new
// snapshot. Delivery never blocks: a subscriber that has not consumed the
// previous snapshot only ever sees the newest one. Snapshots older than one
// a subscriber was already handed are dropped, so notifications that race
// each other never leave a watcher on a stale state.
type Hub struct {
	mu   sync.Mutex
	subs map[session.ID]map[*Subscription]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[session.ID]map[*Subscription]struct{})}
}

// Subscription receives snapshots of one session.
type Subscription struct {
	id   session.ID
	ch   chan session.Snapshot
	hub  *Hub
	once sync.Once
	last uint64 // version of the newest snapshot queued; guarded by hub.mu
}

// C returns the channel snapshots are delivered on. It is closed by Close.
func (s *Subscription) C() <-chan session.Snapshot {
	return s.ch
}

// Close removes the subscription from its hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		if set, ok := s.hub.subs[s.id]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.hub.subs, s.id)
			}
		}
		close(s.ch)
	})
}

// Subscribe registers a subscriber for id. The session need not exist yet.
func (h *Hub) Subscribe(id session.ID) *Subscription {
	sub := &Subscription{id: id, ch: make(chan session.Snapshot, 1), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[id]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[id] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Notify implements session.Notifier.
func (h *Hub) Notify(snap session.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[snap.SessionID] {
		if snap.Version <= sub.last {
			continue
		}
		sub.last = snap.Version
		select {
		case sub.ch <- snap:
			continue
		default:
		}
		// Replace the stale snapshot.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snap:
		default:
		}
	}
}

// Subscribers returns the number of subscribers watching id.
func (h *Hub) Subscribers(id session.ID) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs[id])
}

// Fanout passes each snapshot to several notifiers in order.
type Fanout []session.Notifier

// Notify implements session.Notifier.
func (f Fanout) Notify(snap session.Snapshot) {
	for _, n := range f {
		if n != nil {
			n.Notify(snap)
		}
	}
}
