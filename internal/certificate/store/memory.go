package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"credentials/internal/certificate/models"
	"credentials/internal/domain"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

type courseKey struct {
	courseID string
	certType domain.CertificateType
	siteID   int64
}

// InMemory keeps both definition kinds behind one lock. The course key index
// is checked and written in the same critical section as the insert. Calls
// from outside a tx.Journal run wait on tx.Shared.
type InMemory struct {
	mu          sync.RWMutex
	nextCourse  int64
	nextProgram int64
	courses     map[int64]*models.CourseCertificate
	programs    map[int64]*models.ProgramCertificate
	courseIndex map[courseKey]int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		courses:     make(map[int64]*models.CourseCertificate),
		programs:    make(map[int64]*models.ProgramCertificate),
		courseIndex: make(map[courseKey]int64),
	}
}

func copyBase(b models.Base) models.Base {
	b.SignatoryIDs = append([]int64{}, b.SignatoryIDs...)
	b.TemplateIDs = append([]int64{}, b.TemplateIDs...)
	return b
}

func copyCourse(c *models.CourseCertificate) *models.CourseCertificate {
	out := *c
	out.Base = copyBase(c.Base)
	return &out
}

func copyProgram(p *models.ProgramCertificate) *models.ProgramCertificate {
	out := *p
	out.Base = copyBase(p.Base)
	return &out
}

func stamp(ctx context.Context, b *models.Base) {
	now := requestcontext.Now(ctx)
	b.Created = now
	b.Modified = now
	if b.SignatoryIDs == nil {
		b.SignatoryIDs = []int64{}
	}
	if b.TemplateIDs == nil {
		b.TemplateIDs = []int64{}
	}
}

func (s *InMemory) CreateCourse(ctx context.Context, c *models.CourseCertificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	key := courseKey{courseID: c.CourseID, certType: c.CertificateType, siteID: c.SiteID}
	if _, taken := s.courseIndex[key]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.nextCourse++
	c.ID = s.nextCourse
	stamp(ctx, &c.Base)
	s.courses[c.ID] = copyCourse(c)
	s.courseIndex[key] = c.ID

	id := c.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.courses, id)
		delete(s.courseIndex, key)
	})
	return nil
}

func (s *InMemory) CreateProgram(ctx context.Context, p *models.ProgramCertificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProgram++
	p.ID = s.nextProgram
	stamp(ctx, &p.Base)
	s.programs[p.ID] = copyProgram(p)

	id := p.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.programs, id)
	})
	return nil
}

func (s *InMemory) FindCourse(ctx context.Context, id int64) (*models.CourseCertificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyCourse(c), nil
}

func (s *InMemory) FindProgram(ctx context.Context, id int64) (*models.ProgramCertificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.programs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyProgram(p), nil
}

func (s *InMemory) FindCourseByKey(ctx context.Context, courseID string, certType domain.CertificateType, siteID int64) (*models.CourseCertificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.courseIndex[courseKey{courseID: courseID, certType: certType, siteID: siteID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyCourse(s.courses[id]), nil
}

func (s *InMemory) ListCourses(ctx context.Context, filter models.CourseFilter) ([]*models.CourseCertificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.CourseCertificate{}
	for _, c := range s.courses {
		if filter.Matches(c) {
			out = append(out, copyCourse(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]*models.ProgramCertificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.ProgramCertificate{}
	for _, p := range s.programs {
		if filter.Matches(p) {
			out = append(out, copyProgram(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// base returns the live Base of ref. Callers hold the write lock.
func (s *InMemory) base(ref models.Ref) (*models.Base, bool) {
	switch ref.Kind {
	case models.KindCourse:
		if c, ok := s.courses[ref.ID]; ok {
			return &c.Base, true
		}
	case models.KindProgram:
		if p, ok := s.programs[ref.ID]; ok {
			return &p.Base, true
		}
	}
	return nil, false
}

func (s *InMemory) mutate(ctx context.Context, ref models.Ref, fn func(*models.Base) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.base(ref)
	if !ok {
		return sentinel.ErrNotFound
	}
	before := copyBase(*b)
	if !fn(b) {
		return nil
	}
	b.Modified = requestcontext.Now(ctx)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.base(ref); ok {
			*cur = before
		}
	})
	return nil
}

func (s *InMemory) SetActive(ctx context.Context, ref models.Ref, active bool) error {
	return s.mutate(ctx, ref, func(b *models.Base) bool {
		b.IsActive = active
		return true
	})
}

func (s *InMemory) AttachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) error {
	return s.mutate(ctx, ref, func(b *models.Base) bool {
		return insertID(&b.SignatoryIDs, signatoryID)
	})
}

func (s *InMemory) DetachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) error {
	return s.mutate(ctx, ref, func(b *models.Base) bool {
		return removeID(&b.SignatoryIDs, signatoryID)
	})
}

func (s *InMemory) AttachTemplate(ctx context.Context, ref models.Ref, templateID int64) error {
	return s.mutate(ctx, ref, func(b *models.Base) bool {
		return insertID(&b.TemplateIDs, templateID)
	})
}

func (s *InMemory) DetachTemplate(ctx context.Context, ref models.Ref, templateID int64) error {
	return s.mutate(ctx, ref, func(b *models.Base) bool {
		return removeID(&b.TemplateIDs, templateID)
	})
}

func (s *InMemory) Exists(ctx context.Context, ref models.Ref) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.base(ref)
	return ok, nil
}

func (s *InMemory) SignatoryInUse(ctx context.Context, signatoryID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	defer tx.Shared(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.courses {
		if slices.Contains(c.SignatoryIDs, signatoryID) {
			return true, nil
		}
	}
	for _, p := range s.programs {
		if slices.Contains(p.SignatoryIDs, signatoryID) {
			return true, nil
		}
	}
	return false, nil
}

// RemoveTemplate drops templateID from every definition.
func (s *InMemory) RemoveTemplate(ctx context.Context, templateID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer tx.Shared(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	var touched []models.Ref
	for _, c := range s.courses {
		if removeID(&c.TemplateIDs, templateID) {
			touched = append(touched, c.Ref())
		}
	}
	for _, p := range s.programs {
		if removeID(&p.TemplateIDs, templateID) {
			touched = append(touched, p.Ref())
		}
	}
	if len(touched) == 0 {
		return nil
	}
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, ref := range touched {
			if b, ok := s.base(ref); ok {
				insertID(&b.TemplateIDs, templateID)
			}
		}
	})
	return nil
}

func insertID(ids *[]int64, id int64) bool {
	i, found := slices.BinarySearch(*ids, id)
	if found {
		return false
	}
	*ids = slices.Insert(*ids, i, id)
	return true
}

func removeID(ids *[]int64, id int64) bool {
	i, found := slices.BinarySearch(*ids, id)
	if !found {
		return false
	}
	*ids = slices.Delete(*ids, i, i+1)
	return true
}
