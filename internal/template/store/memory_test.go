package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credentials/internal/domain"
	"credentials/internal/template/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

type TemplateStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestTemplateStoreSuite(t *testing.T) {
	suite.Run(t, new(TemplateStoreSuite))
}

func (s *TemplateStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *TemplateStoreSuite) TestTemplateCopiesAreDetached() {
	org := int64(9)
	t := &models.Template{Name: "A", Content: "c", OrganizationID: &org}
	s.Require().NoError(s.store.CreateTemplate(s.ctx, t))
	s.Equal(s.now, t.Created)

	found, err := s.store.FindTemplate(s.ctx, t.ID)
	s.Require().NoError(err)
	*found.OrganizationID = 100

	again, err := s.store.FindTemplate(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(int64(9), *again.OrganizationID)
}

func (s *TemplateStoreSuite) TestListFilters() {
	s.Require().NoError(s.store.CreateTemplate(s.ctx, &models.Template{Name: "h", Content: "c", CertificateType: domain.CertificateTypeHonor}))
	s.Require().NoError(s.store.CreateTemplate(s.ctx, &models.Template{Name: "v", Content: "c", CertificateType: domain.CertificateTypeVerified}))

	all, err := s.store.ListTemplates(s.ctx, models.Filter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	honor, err := s.store.ListTemplates(s.ctx, models.Filter{CertificateType: domain.CertificateTypeHonor})
	s.Require().NoError(err)
	s.Require().Len(honor, 1)
	s.Equal("h", honor[0].Name)
}

func (s *TemplateStoreSuite) TestRollbackRestoresAssetAndTemplate() {
	tpl := &models.Template{Name: "keep", Content: "c"}
	s.Require().NoError(s.store.CreateTemplate(s.ctx, tpl))

	err := tx.Journal{}.RunInTx(s.ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.CreateAsset(ctx, &models.Asset{Name: "tmp"}))
		s.Require().NoError(s.store.DeleteTemplate(ctx, tpl.ID))
		return errors.New("abort")
	})
	s.Error(err)

	s.Equal(0, s.store.AssetCount())
	_, err = s.store.FindTemplate(s.ctx, tpl.ID)
	s.NoError(err)
}

func (s *TemplateStoreSuite) TestMissingRows() {
	s.ErrorIs(s.store.UpdateTemplate(s.ctx, &models.Template{ID: 3}), sentinel.ErrNotFound)
	s.ErrorIs(s.store.DeleteTemplate(s.ctx, 3), sentinel.ErrNotFound)
	s.ErrorIs(s.store.SetAssetFile(s.ctx, 3, "k"), sentinel.ErrNotFound)
	s.ErrorIs(s.store.DeleteAsset(s.ctx, 3), sentinel.ErrNotFound)
}
