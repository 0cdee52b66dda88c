package identity

import (
	"context"
	"sync"
)

// Static keeps users and group assignments in memory for local runs and tests.
type Static struct {
	mu      sync.Mutex
	users   map[string]User
	updates []GroupUpdate
	// FailUpdates makes UpdateUserGroup return the given error.
	FailUpdates error
}

func NewStatic(users ...User) *Static {
	s := &Static{users: make(map[string]User)}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s
}

func (s *Static) GetUserByIdentity(_ context.Context, guid string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[guid]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *Static) UpdateUserGroup(_ context.Context, guid string, update GroupUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdates != nil {
		return s.FailUpdates
	}
	u, ok := s.users[guid]
	if !ok {
		return ErrUserNotFound
	}
	u.Groups = []Group{{Name: update.GroupName, Level: 1}}
	s.users[guid] = u
	s.updates = append(s.updates, update)
	return nil
}

// Updates returns the group updates applied so far.
func (s *Static) Updates() []GroupUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GroupUpdate(nil), s.updates...)
}
