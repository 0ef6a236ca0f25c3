package session

// Store is the persistence abstraction for session state.
// The Repository uses Store for all reads and writes and serializes access to
// it, so implementations need not be safe for concurrent use.
type Store interface {
	Get(id ID) (*Session, bool)
	Set(s *Session)
	Delete(id ID)
	IDs() []ID
}

// InMemoryStore is an in-memory implementation of Store. State lives for the
// lifetime of the process.
type InMemoryStore struct {
	sessions map[ID]*Session
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[ID]*Session),
	}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(id ID) (*Session, bool) {
	st, ok := s.sessions[id]
	return st, ok
}

// Set implements Store.Set.
func (s *InMemoryStore) Set(st *Session) {
	s.sessions[st.ID] = st
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(id ID) {
	delete(s.sessions, id)
}

// IDs implements Store.IDs.
func (s *InMemoryStore) IDs() []ID {
	ids := make([]ID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}
