//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"credentials/internal/certificate/models"
	"credentials/internal/certificate/store"
	"credentials/internal/domain"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateAll(ctx))
	s.Require().NoError(s.postgres.Exec(ctx, `INSERT INTO site (domain, name) VALUES ('pg.example', 'PG')`))
	s.Require().NoError(s.postgres.Exec(ctx, `INSERT INTO signatory (name, title) VALUES ('Ada', 'Dean'), ('Grace', 'Admiral')`))
	s.Require().NoError(s.postgres.Exec(ctx, `INSERT INTO certificatetemplate (name, content) VALUES ('T', 'c')`))
}

func course(courseID string) *models.CourseCertificate {
	return &models.CourseCertificate{
		Base:            models.Base{SiteID: 1},
		CourseID:        courseID,
		CertificateType: domain.CertificateTypeVerified,
	}
}

func (s *PostgresStoreSuite) TestConcurrentDuplicateDefinition() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateCourse(ctx, course("course-v1:org+race+2024"))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestUnknownSiteIsNotFound() {
	c := course("a/b/c")
	c.SiteID = 999
	s.ErrorIs(s.store.CreateCourse(context.Background(), c), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRelationsRoundTrip() {
	ctx := context.Background()
	c := course("a/b/c")
	c.Title = "Demo"
	s.Require().NoError(s.store.CreateCourse(ctx, c))
	ref := c.Ref()

	s.Require().NoError(s.store.AttachSignatory(ctx, ref, 2))
	s.Require().NoError(s.store.AttachSignatory(ctx, ref, 1))
	s.Require().NoError(s.store.AttachSignatory(ctx, ref, 1))
	s.Require().NoError(s.store.AttachTemplate(ctx, ref, 1))
	s.ErrorIs(s.store.AttachSignatory(ctx, ref, 50), sentinel.ErrNotFound)
	s.ErrorIs(s.store.AttachTemplate(ctx, models.CourseRef(c.ID+1), 1), sentinel.ErrNotFound)

	found, err := s.store.FindCourseByKey(ctx, "a/b/c", domain.CertificateTypeVerified, 1)
	s.Require().NoError(err)
	s.Equal("Demo", found.Title)
	s.Equal([]int64{1, 2}, found.SignatoryIDs)
	s.Equal([]int64{1}, found.TemplateIDs)

	inUse, err := s.store.SignatoryInUse(ctx, 2)
	s.Require().NoError(err)
	s.True(inUse)

	s.Require().NoError(s.store.DetachSignatory(ctx, ref, 2))
	s.Require().NoError(s.store.RemoveTemplate(ctx, 1))
	s.Require().NoError(s.store.SetActive(ctx, ref, true))

	found, err = s.store.FindCourse(ctx, c.ID)
	s.Require().NoError(err)
	s.True(found.IsActive)
	s.Equal([]int64{1}, found.SignatoryIDs)
	s.Empty(found.TemplateIDs)
}

func (s *PostgresStoreSuite) TestProgramsAndExists() {
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		s.Require().NoError(s.store.CreateProgram(ctx, &models.ProgramCertificate{Base: models.Base{SiteID: 1}, ProgramID: 5}))
	}
	ps, err := s.store.ListPrograms(ctx, models.ProgramFilter{ProgramID: 5, SiteID: 1})
	s.Require().NoError(err)
	s.Len(ps, 2)

	ok, err := s.store.Exists(ctx, models.ProgramRef(ps[0].ID))
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.Exists(ctx, models.CourseRef(ps[0].ID))
	s.Require().NoError(err)
	s.False(ok)
}
