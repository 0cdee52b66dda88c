package store

import (
	"context"
	"slices"

	"compliance/internal/staff/models"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
)

type InMemoryStore struct {
	users *memtx.Table[models.StaffUser]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: memtx.NewTable[models.StaffUser]()}
}

func (s *InMemoryStore) FindByID(_ context.Context, id int64) (*models.StaffUser, error) {
	u, ok := s.users.Get(id)
	if !ok || !u.Visible() {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *InMemoryStore) FindByAuthGUID(_ context.Context, guid string) (*models.StaffUser, error) {
	rows := s.users.Select(func(u models.StaffUser) bool { return u.Visible() && u.AuthUserGUID == guid })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) FindByIDs(_ context.Context, ids []int64) ([]*models.StaffUser, error) {
	rows := s.users.Select(func(u models.StaffUser) bool { return u.Visible() && slices.Contains(ids, u.ID) })
	return ptrs(rows), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.StaffUser, error) {
	return ptrs(s.users.Select(func(u models.StaffUser) bool { return u.Visible() })), nil
}

func (s *InMemoryStore) Create(ctx context.Context, u *models.StaffUser) error {
	if len(s.users.Select(func(cur models.StaffUser) bool { return cur.Visible() && cur.AuthUserGUID == u.AuthUserGUID })) > 0 {
		return sentinel.ErrAlreadyUsed
	}
	*u = s.users.Insert(ctx, func(id int64) models.StaffUser {
		row := *u
		row.ID = id
		row.Permission = ""
		return row
	})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, u *models.StaffUser) error {
	row := *u
	row.Permission = ""
	return s.users.Put(ctx, u.ID, row)
}

func ptrs[T any](rows []T) []*T {
	out := make([]*T, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out
}
