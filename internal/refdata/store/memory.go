package store

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"compliance/internal/refdata/models"
	"compliance/pkg/domain"
	"compliance/pkg/platform/memtx"
	"compliance/pkg/platform/sentinel"
)

// InMemoryStore keeps reference data in journalled tables.
type InMemoryStore struct {
	agencies  *memtx.Table[models.Agency]
	topics    *memtx.Table[models.Topic]
	positions *memtx.Table[models.Position]
	sources   *memtx.Table[models.RequirementSource]
	options   *memtx.Table[models.KindOption]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		agencies:  memtx.NewTable[models.Agency](),
		topics:    memtx.NewTable[models.Topic](),
		positions: memtx.NewTable[models.Position](),
		sources:   memtx.NewTable[models.RequirementSource](),
		options:   memtx.NewTable[models.KindOption](),
	}
}

func (s *InMemoryStore) ListAgencies(_ context.Context) ([]*models.Agency, error) {
	rows := s.agencies.Select(func(a models.Agency) bool { return a.Visible() })
	slices.SortStableFunc(rows, func(a, b models.Agency) int { return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) })
	return ptrs(rows), nil
}

func (s *InMemoryStore) FindAgency(_ context.Context, id int64) (*models.Agency, error) {
	a, ok := s.agencies.Get(id)
	if !ok || !a.Visible() {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

func (s *InMemoryStore) FindAgencyByName(_ context.Context, name string) (*models.Agency, error) {
	rows := s.agencies.Select(func(a models.Agency) bool { return a.Visible() && strings.EqualFold(a.Name, name) })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) CreateAgency(ctx context.Context, a *models.Agency) error {
	if s.agencyNameTaken(a.Name, 0) {
		return sentinel.ErrAlreadyUsed
	}
	row := s.agencies.Insert(ctx, func(id int64) models.Agency {
		a.ID = id
		return *a
	})
	*a = row
	return nil
}

func (s *InMemoryStore) UpdateAgency(ctx context.Context, a *models.Agency) error {
	if a.Visible() && s.agencyNameTaken(a.Name, a.ID) {
		return sentinel.ErrAlreadyUsed
	}
	return s.agencies.Put(ctx, a.ID, *a)
}

func (s *InMemoryStore) UpsertAgency(ctx context.Context, a *models.Agency) error {
	if s.agencyNameTaken(a.Name, a.ID) {
		return sentinel.ErrAlreadyUsed
	}
	if prev, ok := s.agencies.Get(a.ID); ok {
		a.Audit = prev.Audit
		a.Touch(ctx)
	}
	s.agencies.Upsert(ctx, a.ID, *a)
	return nil
}

func (s *InMemoryStore) agencyNameTaken(name string, selfID int64) bool {
	return len(s.agencies.Select(func(a models.Agency) bool {
		return a.Visible() && a.ID != selfID && strings.EqualFold(a.Name, name)
	})) > 0
}

func (s *InMemoryStore) ListTopics(_ context.Context) ([]*models.Topic, error) {
	rows := s.topics.Select(func(t models.Topic) bool { return t.Visible() })
	slices.SortStableFunc(rows, func(a, b models.Topic) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)))
	})
	return ptrs(rows), nil
}

func (s *InMemoryStore) FindTopic(_ context.Context, id int64) (*models.Topic, error) {
	t, ok := s.topics.Get(id)
	if !ok || !t.Visible() {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *InMemoryStore) FindTopicByName(_ context.Context, name string) (*models.Topic, error) {
	rows := s.topics.Select(func(t models.Topic) bool { return t.Visible() && strings.EqualFold(t.Name, name) })
	if len(rows) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return &rows[0], nil
}

func (s *InMemoryStore) CreateTopic(ctx context.Context, t *models.Topic) error {
	if s.topicNameTaken(t.Name, 0) {
		return sentinel.ErrAlreadyUsed
	}
	row := s.topics.Insert(ctx, func(id int64) models.Topic {
		t.ID = id
		return *t
	})
	*t = row
	return nil
}

func (s *InMemoryStore) UpdateTopic(ctx context.Context, t *models.Topic) error {
	if t.Visible() && s.topicNameTaken(t.Name, t.ID) {
		return sentinel.ErrAlreadyUsed
	}
	return s.topics.Put(ctx, t.ID, *t)
}

func (s *InMemoryStore) UpsertTopic(ctx context.Context, t *models.Topic) error {
	if s.topicNameTaken(t.Name, t.ID) {
		return sentinel.ErrAlreadyUsed
	}
	if prev, ok := s.topics.Get(t.ID); ok {
		t.Audit = prev.Audit
		t.Touch(ctx)
	}
	s.topics.Upsert(ctx, t.ID, *t)
	return nil
}

func (s *InMemoryStore) topicNameTaken(name string, selfID int64) bool {
	return len(s.topics.Select(func(t models.Topic) bool {
		return t.Visible() && t.ID != selfID && strings.EqualFold(t.Name, name)
	})) > 0
}

func (s *InMemoryStore) ListPositions(_ context.Context) ([]*models.Position, error) {
	rows := s.positions.Select(func(p models.Position) bool { return p.Visible() })
	slices.SortStableFunc(rows, func(a, b models.Position) int { return cmp.Compare(a.SortOrder, b.SortOrder) })
	return ptrs(rows), nil
}

func (s *InMemoryStore) FindPosition(_ context.Context, id int64) (*models.Position, error) {
	p, ok := s.positions.Get(id)
	if !ok || !p.Visible() {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) UpsertPosition(ctx context.Context, p *models.Position) error {
	if prev, ok := s.positions.Get(p.ID); ok {
		p.Audit = prev.Audit
		p.Touch(ctx)
	}
	s.positions.Upsert(ctx, p.ID, *p)
	return nil
}

func (s *InMemoryStore) ListRequirementSources(_ context.Context) ([]*models.RequirementSource, error) {
	rows := s.sources.Select(func(r models.RequirementSource) bool { return r.Visible() })
	slices.SortStableFunc(rows, func(a, b models.RequirementSource) int { return cmp.Compare(a.SortOrder, b.SortOrder) })
	return ptrs(rows), nil
}

func (s *InMemoryStore) UpsertRequirementSource(ctx context.Context, rs *models.RequirementSource) error {
	if prev, ok := s.sources.Get(rs.ID); ok {
		rs.Audit = prev.Audit
		rs.Touch(ctx)
	}
	s.sources.Upsert(ctx, rs.ID, *rs)
	return nil
}

func (s *InMemoryStore) ListOptions(_ context.Context, kind models.OptionKind) ([]domain.Option, error) {
	rows := s.options.Select(func(o models.KindOption) bool { return o.Kind == kind })
	slices.SortStableFunc(rows, func(a, b models.KindOption) int {
		return cmp.Or(cmp.Compare(a.SortOrder, b.SortOrder), cmp.Compare(a.ID, b.ID))
	})
	out := make([]domain.Option, 0, len(rows))
	for _, o := range rows {
		out = append(out, o.Option)
	}
	return out, nil
}

// UpsertOption keys options by (kind, id); the table's own row id is internal.
func (s *InMemoryStore) UpsertOption(ctx context.Context, o models.KindOption) error {
	updated := s.options.UpdateWhere(ctx, func(cur models.KindOption) bool {
		return cur.Kind == o.Kind && cur.ID == o.ID
	}, func(models.KindOption) models.KindOption { return o })
	if updated == 0 {
		s.options.Insert(ctx, func(int64) models.KindOption { return o })
	}
	return nil
}

func ptrs[T any](rows []T) []*T {
	out := make([]*T, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out
}
