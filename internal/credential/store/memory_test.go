package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	certmodels "credentials/internal/certificate/models"
	"credentials/internal/credential/models"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/requestcontext"
)

type CredentialStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestCredentialStoreSuite(t *testing.T) {
	suite.Run(t, new(CredentialStoreSuite))
}

func (s *CredentialStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
}

func (s *CredentialStoreSuite) create(username string, ref certmodels.Ref) *models.UserCredential {
	cred, err := models.NewUserCredential(username, ref, uuid.New())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, cred))
	return cred
}

func (s *CredentialStoreSuite) TestAwardKeyIsUnique() {
	first := s.create("alice", certmodels.CourseRef(1))
	s.Equal(requestcontext.Now(s.ctx), first.Created)

	dup, _ := models.NewUserCredential("alice", certmodels.CourseRef(1), uuid.New())
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrAlreadyUsed)

	s.create("alice", certmodels.ProgramRef(1))
	s.create("bob", certmodels.CourseRef(1))

	taken, _ := models.NewUserCredential("carol", certmodels.CourseRef(2), first.UUID)
	s.ErrorIs(s.store.Create(s.ctx, taken), sentinel.ErrAlreadyUsed)

	byUser, err := s.store.ListByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(byUser, 2)

	byDef, err := s.store.ListByDefinition(s.ctx, certmodels.CourseRef(1))
	s.Require().NoError(err)
	s.Len(byDef, 2)
}

func (s *CredentialStoreSuite) TestRevoke() {
	cred := s.create("alice", certmodels.CourseRef(1))

	out, changed, err := s.store.Revoke(s.ctx, cred.ID)
	s.Require().NoError(err)
	s.True(changed)
	s.Equal(models.StatusRevoked, out.Status)

	_, changed, err = s.store.Revoke(s.ctx, cred.ID)
	s.Require().NoError(err)
	s.False(changed)

	_, _, err = s.store.Revoke(s.ctx, 99)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *CredentialStoreSuite) TestReturnedCopiesAreDetached() {
	cred := s.create("alice", certmodels.CourseRef(1))
	found, err := s.store.FindByUUID(s.ctx, cred.UUID)
	s.Require().NoError(err)
	found.Status = models.StatusRevoked

	again, err := s.store.FindByID(s.ctx, cred.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAwarded, again.Status)
}

func (s *CredentialStoreSuite) TestAttributesCascade() {
	cred := s.create("alice", certmodels.CourseRef(1))
	other := s.create("bob", certmodels.CourseRef(1))

	for _, v := range []string{"1", "2"} {
		attr, err := models.NewAttribute(cred.ID, "ns", "k", v)
		s.Require().NoError(err)
		s.Require().NoError(s.store.AddAttribute(s.ctx, attr))
	}
	attr, _ := models.NewAttribute(other.ID, "ns", "k", "x")
	s.Require().NoError(s.store.AddAttribute(s.ctx, attr))

	orphan, _ := models.NewAttribute(404, "ns", "k", "x")
	s.ErrorIs(s.store.AddAttribute(s.ctx, orphan), sentinel.ErrNotFound)

	attrs, err := s.store.ListAttributes(s.ctx, cred.ID, "ns")
	s.Require().NoError(err)
	s.Require().Len(attrs, 2)
	s.Equal("1", attrs[0].Value)

	none, err := s.store.ListAttributes(s.ctx, cred.ID, "other")
	s.Require().NoError(err)
	s.Empty(none)

	s.Require().NoError(s.store.Delete(s.ctx, cred.ID))
	s.Equal(1, s.store.AttributeCount())
	s.ErrorIs(s.store.Delete(s.ctx, cred.ID), sentinel.ErrNotFound)

	s.create("alice", certmodels.CourseRef(1))
}

func (s *CredentialStoreSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	cred, _ := models.NewUserCredential("alice", certmodels.CourseRef(1), uuid.New())
	s.ErrorIs(s.store.Create(ctx, cred), context.Canceled)
}
