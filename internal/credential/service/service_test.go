package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks DefinitionResolver,SignatoryLoader,TemplateLoader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"credentials/internal/audit"
	certmodels "credentials/internal/certificate/models"
	"credentials/internal/credential/metrics"
	"credentials/internal/credential/models"
	"credentials/internal/credential/service/mocks"
	"credentials/internal/credential/store"
	sigmodels "credentials/internal/signatory/models"
	tplmodels "credentials/internal/template/models"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/requestcontext"
)

// =============================================================================
// Credential Ledger Service Test Suite
// =============================================================================
// The ledger owns award uniqueness, the awarded->revoked transition and
// attribute rows. Definitions are resolved through a mock so the tests pin
// down how resolver failures surface.

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	resolver  *mocks.MockDefinitionResolver
	store     *store.InMemory
	metrics   *metrics.Metrics
	publisher *audit.Recorder
	svc       *Service
	course    *certmodels.CourseCertificate
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockDefinitionResolver(s.ctrl)
	s.store = store.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.publisher = audit.NewRecorder()
	s.course = &certmodels.CourseCertificate{
		Base:            certmodels.Base{ID: 7, SiteID: 1, SignatoryIDs: []int64{1}, TemplateIDs: []int64{3}},
		CourseID:        "org/course/run",
		CertificateType: "honor",
	}
	s.svc = New(s.store, s.resolver,
		WithMetrics(s.metrics),
		WithPublisher(s.publisher),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) expectCourse() {
	s.resolver.EXPECT().Resolve(gomock.Any(), certmodels.CourseRef(7)).Return(s.course, nil).AnyTimes()
}

func (s *ServiceSuite) award(username string) *models.UserCredential {
	cred, err := s.svc.Award(s.ctx, username, certmodels.CourseRef(7))
	s.Require().NoError(err)
	return cred
}

func (s *ServiceSuite) TestAward() {
	s.expectCourse()

	s.Run("first award succeeds with a fresh uuid", func() {
		cred := s.award("alice")
		s.Equal(models.StatusAwarded, cred.Status)
		s.NotEqual(uuid.Nil, cred.UUID)
		s.Equal("alice, awarded", cred.String())
		s.Equal(1.0, promtest.ToFloat64(s.metrics.AwardsTotal.WithLabelValues("course_certificate")))

		events := s.publisher.Events()
		s.Require().Len(events, 1)
		s.Equal(audit.ActionCredentialAwarded, events[0].Action)
		s.Equal(cred.UUID.String(), events[0].CredentialUUID)
	})

	s.Run("second award for the same pair is a duplicate", func() {
		_, err := s.svc.Award(s.ctx, "alice", certmodels.CourseRef(7))
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateAward))
		s.Equal(1.0, promtest.ToFloat64(s.metrics.DuplicateAwards))
		s.Len(s.publisher.Events(), 1)
	})

	s.Run("another user can hold the same definition", func() {
		bob := s.award("bob")
		creds, err := s.svc.FindByDefinition(s.ctx, certmodels.CourseRef(7))
		s.Require().NoError(err)
		s.Len(creds, 2)
		s.Equal(bob.ID, creds[1].ID)
	})

	s.Run("blank username is a validation error", func() {
		_, err := s.svc.Award(s.ctx, "  ", certmodels.CourseRef(7))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestAwardUnknownDefinition() {
	s.Run("resolver miss surfaces as unknown definition", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), certmodels.ProgramRef(99)).
			Return(nil, dErrors.New(dErrors.CodeUnknownDefinition, "credential definition program_certificate:99 does not exist"))

		_, err := s.svc.Award(s.ctx, "alice", certmodels.ProgramRef(99))
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownDefinition))
	})

	s.Run("invalid kind never reaches the resolver", func() {
		_, err := s.svc.Award(s.ctx, "alice", certmodels.Ref{Kind: "badge", ID: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownDefinition))
	})

	s.Empty(s.publisher.Events())
}

func (s *ServiceSuite) TestConcurrentAwardsYieldOneRow() {
	s.expectCourse()

	const workers = 50
	var wg sync.WaitGroup
	var ok, dup atomic.Int32
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.svc.Award(s.ctx, "alice", certmodels.CourseRef(7))
			switch {
			case err == nil:
				ok.Add(1)
			case dErrors.HasCode(err, dErrors.CodeDuplicateAward):
				dup.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(workers-1), dup.Load())
	creds, err := s.svc.FindByUser(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(creds, 1)
}

func (s *ServiceSuite) TestRevokeIsIdempotent() {
	s.expectCourse()
	cred := s.award("alice")

	revoked, err := s.svc.Revoke(s.ctx, cred.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, revoked.Status)

	again, err := s.svc.Revoke(s.ctx, cred.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, again.Status)
	s.Equal(cred.UUID, again.UUID)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.Revocations))
	events := s.publisher.Events()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionCredentialRevoked, events[1].Action)
	s.Equal("revoked", events[1].Status)

	_, err = s.svc.Revoke(s.ctx, 404)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Award(s.ctx, "alice", certmodels.CourseRef(7))
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateAward), "revoked credentials still occupy the award key")
}

func (s *ServiceSuite) TestGetByUUID() {
	s.expectCourse()
	cred := s.award("alice")

	found, err := s.svc.GetByUUID(s.ctx, cred.UUID.String())
	s.Require().NoError(err)
	s.Equal(cred.ID, found.ID)

	_, err = s.svc.GetByUUID(s.ctx, "not-a-uuid")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.GetByUUID(s.ctx, uuid.NewString())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSetDownloadURL() {
	s.expectCourse()
	cred := s.award("alice")

	updated, err := s.svc.SetDownloadURL(s.ctx, cred.ID, "https://files.example.org/alice.pdf")
	s.Require().NoError(err)
	s.Equal("https://files.example.org/alice.pdf", updated.DownloadURL)

	for _, bad := range []string{"ftp://files.example.org/x", "/relative/path", "https://"} {
		_, err = s.svc.SetDownloadURL(s.ctx, cred.ID, bad)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), bad)
	}

	cleared, err := s.svc.SetDownloadURL(s.ctx, cred.ID, "")
	s.Require().NoError(err)
	s.Empty(cleared.DownloadURL)
}

func (s *ServiceSuite) TestAttributes() {
	s.expectCourse()
	cred := s.award("alice")

	_, err := s.svc.SetAttribute(s.ctx, cred.ID, "grade", "score", "A")
	s.Require().NoError(err)
	_, err = s.svc.SetAttribute(s.ctx, cred.ID, "grade", "score", "B")
	s.Require().NoError(err)
	_, err = s.svc.SetAttribute(s.ctx, cred.ID, "profile", "display_name", "Alice A.")
	s.Require().NoError(err)

	grade, err := s.svc.GetAttributes(s.ctx, cred.ID, "grade")
	s.Require().NoError(err)
	s.Require().Len(grade, 2)
	s.Equal("A", grade[0].Value)
	s.Equal("B", grade[1].Value)

	all, err := s.svc.GetAttributes(s.ctx, cred.ID, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	_, err = s.svc.SetAttribute(s.ctx, 404, "grade", "score", "A")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.svc.GetAttributes(s.ctx, 404, "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.svc.SetAttribute(s.ctx, cred.ID, "", "score", "A")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestDeleteCascadesAttributes() {
	s.expectCourse()
	cred := s.award("alice")
	_, err := s.svc.SetAttribute(s.ctx, cred.ID, "grade", "score", "A")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(s.ctx, cred.ID))
	s.Equal(0, s.store.AttributeCount())

	_, err = s.svc.Get(s.ctx, cred.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.True(dErrors.HasCode(s.svc.Delete(s.ctx, cred.ID), dErrors.CodeNotFound))

	events := s.publisher.Events()
	s.Equal(audit.ActionCredentialDeleted, events[len(events)-1].Action)

	again := s.award("alice")
	s.NotEqual(cred.UUID, again.UUID)
}

func (s *ServiceSuite) TestPublisherFailureDoesNotFailAward() {
	s.expectCourse()
	s.publisher.FailWith(errors.New("broker down"))

	cred, err := s.svc.Award(s.ctx, "alice", certmodels.CourseRef(7))
	s.Require().NoError(err)
	s.NotZero(cred.ID)
}

func (s *ServiceSuite) TestRenderContext() {
	s.expectCourse()
	sigs := mocks.NewMockSignatoryLoader(s.ctrl)
	tpls := mocks.NewMockTemplateLoader(s.ctrl)
	svc := New(s.store, s.resolver, WithRenderSources(sigs, tpls))

	cred, err := svc.Award(s.ctx, "alice", certmodels.CourseRef(7))
	s.Require().NoError(err)
	_, err = svc.SetAttribute(s.ctx, cred.ID, "grade", "score", "A")
	s.Require().NoError(err)

	s.Run("loads definition attributes signatories and templates", func() {
		sigs.EXPECT().GetSignatories(gomock.Any(), []int64{1}).
			Return([]*sigmodels.Signatory{{ID: 1, Name: "Dean"}}, nil)
		tpls.EXPECT().GetTemplates(gomock.Any(), []int64{3}).
			Return([]*tplmodels.Template{{ID: 3, Name: "Honor"}}, nil)

		rc, err := svc.RenderContext(s.ctx, cred.UUID.String())
		s.Require().NoError(err)
		s.Equal(cred.ID, rc.Credential.ID)
		s.Equal(s.course, rc.Definition)
		s.Len(rc.Attributes, 1)
		s.Equal("Dean", rc.Signatories[0].Name)
		s.Equal("Honor", rc.Templates[0].Name)
	})

	s.Run("loader failure fails the whole context", func() {
		sigs.EXPECT().GetSignatories(gomock.Any(), []int64{1}).
			Return(nil, dErrors.New(dErrors.CodeInternal, "signatory store failure"))
		tpls.EXPECT().GetTemplates(gomock.Any(), []int64{3}).
			Return([]*tplmodels.Template{}, nil).AnyTimes()

		_, err := svc.RenderContext(s.ctx, cred.UUID.String())
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("unknown uuid is not found", func() {
		_, err := svc.RenderContext(s.ctx, uuid.NewString())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
