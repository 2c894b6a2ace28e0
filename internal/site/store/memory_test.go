package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credentials/internal/site/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/requestcontext"
)

type SiteStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestSiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SiteStoreSuite))
}

func (s *SiteStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *SiteStoreSuite) TestCreateAndLookups() {
	site, err := models.NewSite("example.com", "Example")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, site))
	s.Equal(int64(1), site.ID)
	s.Equal(s.now, site.Created)
	s.Equal(s.now, site.Modified)

	byID, err := s.store.FindByID(s.ctx, site.ID)
	s.Require().NoError(err)
	s.Equal("Example", byID.Name)

	byDomain, err := s.store.FindByDomain(s.ctx, "example.com")
	s.Require().NoError(err)
	s.Equal(site.ID, byDomain.ID)

	_, err = s.store.FindByID(s.ctx, 99)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *SiteStoreSuite) TestDuplicateDomain() {
	first, _ := models.NewSite("a.example", "A")
	s.Require().NoError(s.store.Create(s.ctx, first))

	second, _ := models.NewSite("a.example", "Other")
	s.ErrorIs(s.store.Create(s.ctx, second), sentinel.ErrAlreadyUsed)

	sites, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(sites, 1)
}

func (s *SiteStoreSuite) TestConcurrentCreateSameDomain() {
	const goroutines = 50
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			site, _ := models.NewSite("race.example", "Race")
			err := s.store.Create(s.ctx, site)
			switch {
			case err == nil:
				successCount.Add(1)
			case err == sentinel.ErrAlreadyUsed:
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *SiteStoreSuite) TestReturnedCopiesAreDetached() {
	site, _ := models.NewSite("copy.example", "Copy")
	s.Require().NoError(s.store.Create(s.ctx, site))

	found, err := s.store.FindByID(s.ctx, site.ID)
	s.Require().NoError(err)
	found.Name = "mutated"

	again, err := s.store.FindByID(s.ctx, site.ID)
	s.Require().NoError(err)
	s.Equal("Copy", again.Name)
}
