package store

import (
	"context"
	"sort"
	"sync"

	"credentials/internal/site/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/requestcontext"
)

// InMemory keeps sites in maps guarded by one mutex, so the domain
// uniqueness check and the insert happen in a single critical section.
type InMemory struct {
	mu       sync.RWMutex
	nextID   int64
	sites    map[int64]*models.Site
	byDomain map[string]int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		sites:    make(map[int64]*models.Site),
		byDomain: make(map[string]int64),
	}
}

func (s *InMemory) Create(ctx context.Context, site *models.Site) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byDomain[site.Domain]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.nextID++
	now := requestcontext.Now(ctx)
	site.ID = s.nextID
	site.Created = now
	site.Modified = now
	stored := *site
	s.sites[site.ID] = &stored
	s.byDomain[site.Domain] = site.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id int64) (*models.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *site
	return &out, nil
}

func (s *InMemory) FindByDomain(ctx context.Context, domain string) (*models.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	id, ok := s.byDomain[domain]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *InMemory) List(ctx context.Context) ([]*models.Site, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Site, 0, len(s.sites))
	for _, site := range s.sites {
		cp := *site
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
