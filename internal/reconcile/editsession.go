package reconcile

import (
	"ProposalDesk/internal/domain"
	"sync"
)

// EditSession holds a trader's in-progress edit of one account's order.
// Sessions are keyed by account key value and live entirely outside the
// snapshot data model, so an edit never aliases the immutable account
// snapshot it was started from.
type EditSession struct {
	Account     domain.AccountKey
	EditedSize  *int64
	EditedPrice *int64
}

// EditSessionStore tracks at most one edit session per account.
type EditSessionStore struct {
	mu       sync.Mutex
	sessions map[domain.AccountKey]*EditSession
}

func NewEditSessionStore() *EditSessionStore {
	return &EditSessionStore{sessions: make(map[domain.AccountKey]*EditSession)}
}

// Begin opens (or returns the existing) session for an account.
func (s *EditSessionStore) Begin(key domain.AccountKey) *EditSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess
	}
	sess := &EditSession{Account: key}
	s.sessions[key] = sess
	return sess
}

// SetSize records an edited size on the account's session.
func (s *EditSessionStore) SetSize(key domain.AccountKey, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = &EditSession{Account: key}
		s.sessions[key] = sess
	}
	v := size
	sess.EditedSize = &v
}

// SetPrice records an edited price on the account's session.
func (s *EditSessionStore) SetPrice(key domain.AccountKey, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = &EditSession{Account: key}
		s.sessions[key] = sess
	}
	v := price
	sess.EditedPrice = &v
}

// Get returns the session for an account, if any.
func (s *EditSessionStore) Get(key domain.AccountKey) (*EditSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

// Clear drops the session after the edit is submitted or abandoned.
func (s *EditSessionStore) Clear(key domain.AccountKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}
