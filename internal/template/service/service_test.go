package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"credentials/internal/domain"
	"credentials/internal/platform/filestore"
	"credentials/internal/template/models"
	"credentials/internal/template/store"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/tx"
)

type recordingUnlinker struct {
	removed []int64
	err     error
}

func (u *recordingUnlinker) RemoveTemplate(_ context.Context, id int64) error {
	if u.err != nil {
		return u.err
	}
	u.removed = append(u.removed, id)
	return nil
}

type failingAssetFile struct {
	*store.InMemory
}

func (failingAssetFile) SetAssetFile(context.Context, int64, string) error {
	return errors.New("db down")
}

type ServiceSuite struct {
	suite.Suite
	store    *store.InMemory
	files    *filestore.Memory
	unlinker *recordingUnlinker
	svc      *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.files = filestore.NewMemory()
	s.unlinker = &recordingUnlinker{}
	s.svc = New(s.store, s.store, s.files, tx.Journal{}, WithUnlinker(s.unlinker))
	s.ctx = context.Background()
}

func (s *ServiceSuite) TestTemplateCRUD() {
	org := int64(4)
	created, err := s.svc.CreateTemplate(s.ctx, TemplateRequest{
		Name: "Verified", Content: "<h1>{{course}}</h1>", CertificateType: "verified", OrganizationID: &org,
	})
	s.Require().NoError(err)
	_, err = s.svc.CreateTemplate(s.ctx, TemplateRequest{Name: "Verified", Content: "same name is allowed"})
	s.Require().NoError(err)

	verified, err := s.svc.ListTemplates(s.ctx, models.Filter{CertificateType: domain.CertificateTypeVerified})
	s.Require().NoError(err)
	s.Require().Len(verified, 1)
	s.Equal(created.ID, verified[0].ID)

	byName, err := s.svc.ListTemplates(s.ctx, models.Filter{Name: "Verified"})
	s.Require().NoError(err)
	s.Len(byName, 2)

	updated, err := s.svc.UpdateTemplate(s.ctx, created.ID, TemplateRequest{Name: "Honor", Content: "c", CertificateType: "honor"})
	s.Require().NoError(err)
	s.Equal(domain.CertificateTypeHonor, updated.CertificateType)
	s.Nil(updated.OrganizationID)
	s.Equal(created.Created, updated.Created)

	_, err = s.svc.UpdateTemplate(s.ctx, 404, TemplateRequest{Name: "x", Content: "y"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	got, err := s.svc.GetTemplates(s.ctx, []int64{created.ID, 99})
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *ServiceSuite) TestDeleteTemplateUnlinksDefinitions() {
	t, err := s.svc.CreateTemplate(s.ctx, TemplateRequest{Name: "T", Content: "c"})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.DeleteTemplate(s.ctx, t.ID))
	s.Equal([]int64{t.ID}, s.unlinker.removed)

	exists, err := s.svc.TemplateExists(s.ctx, t.ID)
	s.Require().NoError(err)
	s.False(exists)

	s.True(dErrors.HasCode(s.svc.DeleteTemplate(s.ctx, t.ID), dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteTemplateKeepsRowWhenUnlinkFails() {
	t, err := s.svc.CreateTemplate(s.ctx, TemplateRequest{Name: "T", Content: "c"})
	s.Require().NoError(err)
	s.unlinker.err = errors.New("db down")

	s.True(dErrors.HasCode(s.svc.DeleteTemplate(s.ctx, t.ID), dErrors.CodeInternal))
	_, err = s.svc.GetTemplate(s.ctx, t.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestAssetReuploadReplacesStoredFile() {
	asset, err := s.svc.UploadAsset(s.ctx, "logo", models.Upload{Filename: "picture1.jpg", Data: []byte("one")})
	s.Require().NoError(err)
	s.Equal("credential_certificate_template_assets/1/picture1.jpg", asset.AssetFile)
	s.Equal("logo", asset.String())

	s.Run("same filename keeps the path and overwrites the content", func() {
		again, err := s.svc.ReplaceAssetFile(s.ctx, asset.ID, models.Upload{Filename: "picture1.jpg", Data: []byte("two")})
		s.Require().NoError(err)
		s.Equal(asset.AssetFile, again.AssetFile)
		data, err := filestore.ReadAll(s.ctx, s.files, again.AssetFile)
		s.Require().NoError(err)
		s.Equal([]byte("two"), data)
		s.Equal(1, s.files.Len())
	})

	s.Run("new filename moves the record and removes the old file", func() {
		moved, err := s.svc.ReplaceAssetFile(s.ctx, asset.ID, models.Upload{Filename: "picture2.jpg", Data: []byte("three")})
		s.Require().NoError(err)
		s.Equal("credential_certificate_template_assets/1/picture2.jpg", moved.AssetFile)

		exists, err := s.files.Exists(s.ctx, asset.AssetFile)
		s.Require().NoError(err)
		s.False(exists)
		s.Equal(1, s.files.Len())
	})
}

func (s *ServiceSuite) TestFailedReuploadKeepsLiveFile() {
	asset, err := s.svc.UploadAsset(s.ctx, "logo", models.Upload{Filename: "picture1.jpg", Data: []byte("one")})
	s.Require().NoError(err)
	broken := New(s.store, failingAssetFile{s.store}, s.files, tx.Journal{})

	s.Run("same filename restores the replaced bytes", func() {
		_, err := broken.ReplaceAssetFile(s.ctx, asset.ID, models.Upload{Filename: "picture1.jpg", Data: []byte("two")})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		data, err := filestore.ReadAll(s.ctx, s.files, asset.AssetFile)
		s.Require().NoError(err)
		s.Equal([]byte("one"), data)
	})

	s.Run("new filename leaves no stray file", func() {
		_, err := broken.ReplaceAssetFile(s.ctx, asset.ID, models.Upload{Filename: "picture2.jpg", Data: []byte("three")})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		s.Equal(1, s.files.Len())
		got, err := s.svc.GetAsset(s.ctx, asset.ID)
		s.Require().NoError(err)
		s.Equal(asset.AssetFile, got.AssetFile)
	})
}

func (s *ServiceSuite) TestUploadAssetValidation() {
	_, err := s.svc.UploadAsset(s.ctx, "", models.Upload{Filename: "a.png", Data: []byte("x")})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.UploadAsset(s.ctx, "bg", models.Upload{Filename: "a.png"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	s.Equal(0, s.store.AssetCount())
	s.Equal(0, s.files.Len())
}

func (s *ServiceSuite) TestDeleteAssetRemovesFile() {
	asset, err := s.svc.UploadAsset(s.ctx, "bg", models.Upload{Filename: "bg.png", Data: []byte("x")})
	s.Require().NoError(err)

	rc, key, err := s.svc.OpenAssetFile(s.ctx, asset.ID)
	s.Require().NoError(err)
	rc.Close()
	s.Equal(asset.AssetFile, key)

	s.Require().NoError(s.svc.DeleteAsset(s.ctx, asset.ID))
	s.Equal(0, s.files.Len())
	_, err = s.svc.GetAsset(s.ctx, asset.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
