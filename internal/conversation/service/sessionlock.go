package service

import "sync"

// sessionLocks serializes turn processing per (tenant, session) key while
// leaving other sessions free to run in parallel. Entries are reference
// counted so the map does not grow with dead sessions.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (s *sessionLocks) Lock(key string) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sessionLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
}

func (s *sessionLocks) Unlock(key string) {
	s.mu.Lock()
	l := s.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()

	l.mu.Unlock()
}
