//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	certmodels "credentials/internal/certificate/models"
	"credentials/internal/credential/models"
	"credentials/internal/credential/store"
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
	s.Require().NoError(s.postgres.Exec(ctx,
		`INSERT INTO coursecertificate (course_id, certificate_type, site_id) VALUES ('org/course/run', 'honor', 1)`))
	s.Require().NoError(s.postgres.Exec(ctx, `INSERT INTO programcertificate (program_id, site_id) VALUES (5, 1)`))
}

func newCred(username string, ref certmodels.Ref) *models.UserCredential {
	cred, err := models.NewUserCredential(username, ref, uuid.New())
	if err != nil {
		panic(err)
	}
	return cred
}

func (s *PostgresStoreSuite) TestConcurrentDuplicateAward() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newCred("alice", certmodels.CourseRef(1)))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one award should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestUnknownDefinition() {
	ctx := context.Background()
	s.ErrorIs(s.store.Create(ctx, newCred("alice", certmodels.CourseRef(42))), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Create(ctx, newCred("alice", certmodels.ProgramRef(42))), sentinel.ErrNotFound)

	s.NoError(s.store.Create(ctx, newCred("alice", certmodels.CourseRef(1))))
	s.NoError(s.store.Create(ctx, newCred("alice", certmodels.ProgramRef(1))), "kinds do not share the award key")
}

func (s *PostgresStoreSuite) TestLifecycle() {
	ctx := context.Background()
	cred := newCred("alice", certmodels.CourseRef(1))
	s.Require().NoError(s.store.Create(ctx, cred))

	found, err := s.store.FindByUUID(ctx, cred.UUID)
	s.Require().NoError(err)
	s.Equal(cred.ID, found.ID)
	s.Equal(models.StatusAwarded, found.Status)
	s.Empty(found.DownloadURL)

	updated, err := s.store.SetDownloadURL(ctx, cred.ID, "https://files.example.org/a.pdf")
	s.Require().NoError(err)
	s.Equal("https://files.example.org/a.pdf", updated.DownloadURL)

	revoked, changed, err := s.store.Revoke(ctx, cred.ID)
	s.Require().NoError(err)
	s.True(changed)
	s.Equal(models.StatusRevoked, revoked.Status)
	_, changed, err = s.store.Revoke(ctx, cred.ID)
	s.Require().NoError(err)
	s.False(changed)
	_, _, err = s.store.Revoke(ctx, 999)
	s.ErrorIs(err, sentinel.ErrNotFound)

	byDef, err := s.store.ListByDefinition(ctx, certmodels.CourseRef(1))
	s.Require().NoError(err)
	s.Len(byDef, 1)
}

func (s *PostgresStoreSuite) TestAttributesCascadeOnDelete() {
	ctx := context.Background()
	cred := newCred("alice", certmodels.CourseRef(1))
	s.Require().NoError(s.store.Create(ctx, cred))

	for _, v := range []string{"A", "B"} {
		attr, err := models.NewAttribute(cred.ID, "grade", "score", v)
		s.Require().NoError(err)
		s.Require().NoError(s.store.AddAttribute(ctx, attr))
	}
	orphan, _ := models.NewAttribute(999, "grade", "score", "C")
	s.ErrorIs(s.store.AddAttribute(ctx, orphan), sentinel.ErrNotFound)

	attrs, err := s.store.ListAttributes(ctx, cred.ID, "grade")
	s.Require().NoError(err)
	s.Require().Len(attrs, 2)
	s.Equal("A", attrs[0].Value)
	s.Equal("B", attrs[1].Value)

	s.Require().NoError(s.store.Delete(ctx, cred.ID))
	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx, `SELECT count(*) FROM usercredentialattribute`).Scan(&n))
	s.Zero(n)
	s.ErrorIs(s.store.Delete(ctx, cred.ID), sentinel.ErrNotFound)
}
