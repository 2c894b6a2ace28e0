package store

import (
	"context"
	"sort"
	"sync"

	"credentials/internal/signatory/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

// InMemory stores signatories in a map. Writes register compensations so a
// failed tx.Journal run leaves no row behind, and every call outside a run
// waits on tx.Shared so a run's uncommitted rows stay invisible.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*models.Signatory
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[int64]*models.Signatory)}
}

func (s *InMemory) Create(ctx context.Context, sig *models.Signatory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := requestcontext.Now(ctx)
	sig.ID = s.nextID
	sig.Created = now
	sig.Modified = now
	stored := *sig
	s.rows[sig.ID] = &stored

	id := sig.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rows, id)
	})
	return nil
}

func (s *InMemory) SetImage(ctx context.Context, id int64, key string) error {
	defer tx.Shared(ctx)()
	return s.mutate(ctx, id, func(sig *models.Signatory) {
		sig.Image = key
	})
}

func (s *InMemory) Update(ctx context.Context, id int64, name, title string) (*models.Signatory, error) {
	defer tx.Shared(ctx)()
	if err := s.mutate(ctx, id, func(sig *models.Signatory) {
		sig.Name = name
		sig.Title = title
	}); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

func (s *InMemory) mutate(ctx context.Context, id int64, fn func(*models.Signatory)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	before := *sig
	fn(sig)
	sig.Modified = requestcontext.Now(ctx)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.rows[id]; ok {
			*cur = before
		}
	})
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id int64) (*models.Signatory, error) {
	defer tx.Shared(ctx)()
	return s.find(ctx, id)
}

func (s *InMemory) find(ctx context.Context, id int64) (*models.Signatory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.rows[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *sig
	return &out, nil
}

func (s *InMemory) FindByIDs(ctx context.Context, ids []int64) ([]*models.Signatory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Signatory, 0, len(ids))
	for _, id := range ids {
		if sig, ok := s.rows[id]; ok {
			cp := *sig
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) List(ctx context.Context) ([]*models.Signatory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Signatory, 0, len(s.rows))
	for _, sig := range s.rows {
		cp := *sig
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes the row. Reference checks live in the service since the
// memory store does not know about certificate definitions.
func (s *InMemory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.rows[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.rows, id)
	removed := *sig
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows[id] = &removed
	})
	return nil
}

// Len reports the number of stored rows.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
