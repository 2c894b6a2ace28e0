package store

import (
	"context"
	"sort"
	"sync"

	"credentials/internal/template/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

// InMemory holds templates and assets. Writes register tx.OnRollback
// compensations so a failed journal run leaves no trace, and calls from
// outside a run wait on tx.Shared.
type InMemory struct {
	mu          sync.RWMutex
	nextTplID   int64
	nextAssetID int64
	templates   map[int64]*models.Template
	assets      map[int64]*models.Asset
}

func NewInMemory() *InMemory {
	return &InMemory{
		templates: make(map[int64]*models.Template),
		assets:    make(map[int64]*models.Asset),
	}
}

func copyTemplate(t *models.Template) *models.Template {
	out := *t
	if t.OrganizationID != nil {
		org := *t.OrganizationID
		out.OrganizationID = &org
	}
	return &out
}

func (s *InMemory) CreateTemplate(ctx context.Context, t *models.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTplID++
	now := requestcontext.Now(ctx)
	t.ID = s.nextTplID
	t.Created = now
	t.Modified = now
	s.templates[t.ID] = copyTemplate(t)

	id := t.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.templates, id)
	})
	return nil
}

// UpdateTemplate replaces the mutable fields of the stored template.
func (s *InMemory) UpdateTemplate(ctx context.Context, t *models.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.templates[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	before := copyTemplate(cur)
	next := copyTemplate(t)
	next.Created = cur.Created
	next.Modified = requestcontext.Now(ctx)
	s.templates[t.ID] = next
	*t = *copyTemplate(next)

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.templates[before.ID] = before
	})
	return nil
}

func (s *InMemory) FindTemplate(ctx context.Context, id int64) (*models.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyTemplate(t), nil
}

func (s *InMemory) FindTemplates(ctx context.Context, ids []int64) ([]*models.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Template, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.templates[id]; ok {
			out = append(out, copyTemplate(t))
		}
	}
	sortTemplates(out)
	return out, nil
}

func (s *InMemory) ListTemplates(ctx context.Context, filter models.Filter) ([]*models.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Template, 0, len(s.templates))
	for _, t := range s.templates {
		if filter.Matches(t) {
			out = append(out, copyTemplate(t))
		}
	}
	sortTemplates(out)
	return out, nil
}

func (s *InMemory) DeleteTemplate(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.templates, id)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.templates[id] = t
	})
	return nil
}

func (s *InMemory) CreateAsset(ctx context.Context, a *models.Asset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAssetID++
	now := requestcontext.Now(ctx)
	a.ID = s.nextAssetID
	a.Created = now
	a.Modified = now
	stored := *a
	s.assets[a.ID] = &stored

	id := a.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.assets, id)
	})
	return nil
}

func (s *InMemory) SetAssetFile(ctx context.Context, id int64, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	before := *a
	a.AssetFile = key
	a.Modified = requestcontext.Now(ctx)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.assets[id]; ok {
			*cur = before
		}
	})
	return nil
}

func (s *InMemory) FindAsset(ctx context.Context, id int64) (*models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (s *InMemory) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) DeleteAsset(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.assets, id)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.assets[id] = a
	})
	return nil
}

// AssetCount reports the number of stored assets.
func (s *InMemory) AssetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assets)
}

func sortTemplates(ts []*models.Template) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
