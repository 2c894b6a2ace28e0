//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"credentials/internal/signatory/models"
	"credentials/internal/signatory/store"
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
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestCreateUpdateFind() {
	ctx := context.Background()
	sig := &models.Signatory{Name: "Ada", Title: "Dean"}
	s.Require().NoError(s.store.Create(ctx, sig))
	s.NotZero(sig.ID)

	s.Require().NoError(s.store.SetImage(ctx, sig.ID, "signatories/1/ada.png"))
	updated, err := s.store.Update(ctx, sig.ID, "Ada King", "Provost")
	s.Require().NoError(err)
	s.Equal("signatories/1/ada.png", updated.Image)
	s.Equal("Ada King, Provost", updated.String())

	found, err := s.store.FindByIDs(ctx, []int64{sig.ID, sig.ID + 10})
	s.Require().NoError(err)
	s.Len(found, 1)

	_, err = s.store.FindByID(ctx, sig.ID+10)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteReferencedSignatoryFails() {
	ctx := context.Background()
	sig := &models.Signatory{Name: "Ada", Title: "Dean"}
	s.Require().NoError(s.store.Create(ctx, sig))

	s.Require().NoError(s.postgres.Exec(ctx, `INSERT INTO site (domain, name) VALUES ('ref.example', 'Ref')`))
	s.Require().NoError(s.postgres.Exec(ctx, `INSERT INTO programcertificate (program_id, site_id) VALUES (7, 1)`))
	s.Require().NoError(s.postgres.Exec(ctx,
		`INSERT INTO programcertificate_signatories (programcertificate_id, signatory_id) VALUES (1, $1)`, sig.ID))

	s.ErrorIs(s.store.Delete(ctx, sig.ID), sentinel.ErrInUse)

	s.Require().NoError(s.postgres.Exec(ctx, `DELETE FROM programcertificate_signatories`))
	s.NoError(s.store.Delete(ctx, sig.ID))
	s.ErrorIs(s.store.Delete(ctx, sig.ID), sentinel.ErrNotFound)
}
