package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"credentials/internal/audit"
	certmodels "credentials/internal/certificate/models"
	"credentials/internal/credential/metrics"
	"credentials/internal/credential/models"
	sigmodels "credentials/internal/signatory/models"
	tplmodels "credentials/internal/template/models"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/requestcontext"
)

var tracer = otel.Tracer("credentials/internal/credential/service")

const maxDownloadURLLength = 255

// Store is the ledger plus its attribute rows.
type Store interface {
	Create(ctx context.Context, cred *models.UserCredential) error
	FindByID(ctx context.Context, id int64) (*models.UserCredential, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*models.UserCredential, error)
	ListByUsername(ctx context.Context, username string) ([]*models.UserCredential, error)
	ListByDefinition(ctx context.Context, ref certmodels.Ref) ([]*models.UserCredential, error)
	Revoke(ctx context.Context, id int64) (*models.UserCredential, bool, error)
	SetDownloadURL(ctx context.Context, id int64, url string) (*models.UserCredential, error)
	Delete(ctx context.Context, id int64) error
	AddAttribute(ctx context.Context, attr *models.Attribute) error
	ListAttributes(ctx context.Context, credentialID int64, namespace string) ([]*models.Attribute, error)
}

// DefinitionResolver maps a credential reference to its definition.
// Missing targets are reported as CodeUnknownDefinition.
type DefinitionResolver interface {
	Resolve(ctx context.Context, ref certmodels.Ref) (certmodels.Definition, error)
}

type SignatoryLoader interface {
	GetSignatories(ctx context.Context, ids []int64) ([]*sigmodels.Signatory, error)
}

type TemplateLoader interface {
	GetTemplates(ctx context.Context, ids []int64) ([]*tplmodels.Template, error)
}

// Service is the user credential ledger.
type Service struct {
	store       Store
	definitions DefinitionResolver
	signatories SignatoryLoader
	templates   TemplateLoader
	publisher   audit.Publisher
	metrics     *metrics.Metrics
	newUUID     func() uuid.UUID
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithRenderSources supplies the loaders RenderContext needs.
func WithRenderSources(signatories SignatoryLoader, templates TemplateLoader) Option {
	return func(s *Service) {
		s.signatories = signatories
		s.templates = templates
	}
}

func WithUUIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Service) {
		s.newUUID = gen
	}
}

func New(store Store, definitions DefinitionResolver, opts ...Option) *Service {
	s := &Service{
		store:       store,
		definitions: definitions,
		newUUID:     uuid.New,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Award records that username earned the definition ref. Inactive
// definitions can still be awarded.
func (s *Service) Award(ctx context.Context, username string, ref certmodels.Ref) (*models.UserCredential, error) {
	ctx, span := tracer.Start(ctx, "credential.Award")
	defer span.End()
	start := time.Now()

	if err := ref.Validate(); err != nil {
		return nil, unknownDefinition(ref)
	}
	cred, err := models.NewUserCredential(username, ref, s.newUUID())
	if err != nil {
		return nil, err
	}
	if _, err := s.definitions.Resolve(ctx, ref); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, cred); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			if s.metrics != nil {
				s.metrics.IncrementDuplicate()
			}
			return nil, dErrors.New(dErrors.CodeDuplicateAward, "user already holds this credential")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, unknownDefinition(ref)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "award timed out")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to award credential")
	}

	if s.metrics != nil {
		s.metrics.IncrementAwarded(string(ref.Kind))
		s.metrics.ObserveAward(start)
	}
	s.logger.InfoContext(ctx, "credential awarded",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", cred.ID,
		"credential_uuid", cred.UUID.String(),
		"definition", ref.String(),
	)
	s.emit(ctx, audit.ActionCredentialAwarded, cred)
	return cred, nil
}

// Revoke marks the credential revoked. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, id int64) (*models.UserCredential, error) {
	ctx, span := tracer.Start(ctx, "credential.Revoke")
	defer span.End()

	cred, changed, err := s.store.Revoke(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	if changed {
		if s.metrics != nil {
			s.metrics.IncrementRevoked()
		}
		s.logger.InfoContext(ctx, "credential revoked",
			"request_id", requestcontext.RequestID(ctx),
			"credential_id", cred.ID,
		)
		s.emit(ctx, audit.ActionCredentialRevoked, cred)
	}
	return cred, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.UserCredential, error) {
	cred, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	return cred, nil
}

func (s *Service) GetByUUID(ctx context.Context, raw string) (*models.UserCredential, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid credential uuid")
	}
	cred, err := s.store.FindByUUID(ctx, id)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	return cred, nil
}

func (s *Service) FindByUser(ctx context.Context, username string) ([]*models.UserCredential, error) {
	username, err := models.ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	creds, err := s.store.ListByUsername(ctx, username)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return creds, nil
}

func (s *Service) FindByDefinition(ctx context.Context, ref certmodels.Ref) ([]*models.UserCredential, error) {
	if err := ref.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	creds, err := s.store.ListByDefinition(ctx, ref)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return creds, nil
}

// SetDownloadURL records where the rendered credential can be fetched. An
// empty url clears it.
func (s *Service) SetDownloadURL(ctx context.Context, id int64, rawURL string) (*models.UserCredential, error) {
	if rawURL != "" {
		if len(rawURL) > maxDownloadURLLength {
			return nil, dErrors.New(dErrors.CodeValidation, "download_url must be at most 255 characters")
		}
		u, err := url.ParseRequestURI(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "download_url must be an absolute http(s) URL")
		}
	}
	cred, err := s.store.SetDownloadURL(ctx, id, rawURL)
	if err != nil {
		return nil, s.lookupErr(err)
	}
	return cred, nil
}

// Delete removes the credential together with its attributes.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "credential.Delete")
	defer span.End()

	cred, err := s.store.FindByID(ctx, id)
	if err != nil {
		return s.lookupErr(err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.lookupErr(err)
	}
	s.logger.InfoContext(ctx, "credential deleted",
		"request_id", requestcontext.RequestID(ctx),
		"credential_id", id,
	)
	s.emit(ctx, audit.ActionCredentialDeleted, cred)
	return nil
}

// SetAttribute appends an attribute row. Repeating the same namespace and
// name adds another row.
func (s *Service) SetAttribute(ctx context.Context, credentialID int64, namespace, name, value string) (*models.Attribute, error) {
	attr, err := models.NewAttribute(credentialID, namespace, name, value)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddAttribute(ctx, attr); err != nil {
		return nil, s.lookupErr(err)
	}
	return attr, nil
}

// GetAttributes lists a credential's attributes, optionally for one namespace.
func (s *Service) GetAttributes(ctx context.Context, credentialID int64, namespace string) ([]*models.Attribute, error) {
	if _, err := s.store.FindByID(ctx, credentialID); err != nil {
		return nil, s.lookupErr(err)
	}
	attrs, err := s.store.ListAttributes(ctx, credentialID, namespace)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attributes")
	}
	return attrs, nil
}

// RenderContext is everything a renderer needs for one credential.
type RenderContext struct {
	Credential  *models.UserCredential
	Definition  certmodels.Definition
	Attributes  []*models.Attribute
	Signatories []*sigmodels.Signatory
	Templates   []*tplmodels.Template
}

// RenderContext loads the credential by uuid, then its definition and
// attributes concurrently, then the definition's signatories and templates.
func (s *Service) RenderContext(ctx context.Context, rawUUID string) (*RenderContext, error) {
	ctx, span := tracer.Start(ctx, "credential.RenderContext")
	defer span.End()

	cred, err := s.GetByUUID(ctx, rawUUID)
	if err != nil {
		return nil, err
	}
	out := &RenderContext{Credential: cred}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		def, err := s.definitions.Resolve(gctx, cred.Credential)
		if err != nil {
			return err
		}
		out.Definition = def
		return nil
	})
	g.Go(func() error {
		attrs, err := s.store.ListAttributes(gctx, cred.ID, "")
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attributes")
		}
		out.Attributes = attrs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := out.Definition.Common()
	out.Signatories = []*sigmodels.Signatory{}
	out.Templates = []*tplmodels.Template{}
	g, gctx = errgroup.WithContext(ctx)
	if s.signatories != nil {
		g.Go(func() error {
			sigs, err := s.signatories.GetSignatories(gctx, base.SignatoryIDs)
			if err != nil {
				return err
			}
			out.Signatories = sigs
			return nil
		})
	}
	if s.templates != nil {
		g.Go(func() error {
			tpls, err := s.templates.GetTemplates(gctx, base.TemplateIDs)
			if err != nil {
				return err
			}
			out.Templates = tpls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func unknownDefinition(ref certmodels.Ref) error {
	return dErrors.New(dErrors.CodeUnknownDefinition, "credential definition "+ref.String()+" does not exist")
}

func (s *Service) lookupErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "credential not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "credential operation timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "credential store failure")
}

// emit publishes after the write has committed. Failures are logged only.
func (s *Service) emit(ctx context.Context, action audit.Action, cred *models.UserCredential) {
	if s.publisher == nil {
		return
	}
	event := audit.Event{
		Action:         action,
		Timestamp:      requestcontext.Now(ctx),
		RequestID:      requestcontext.RequestID(ctx),
		Username:       cred.Username,
		CredentialID:   cred.ID,
		CredentialUUID: cred.UUID.String(),
		DefinitionKind: string(cred.Credential.Kind),
		DefinitionID:   cred.Credential.ID,
		Status:         string(cred.Status),
	}
	if err := s.publisher.Emit(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish credential event",
			"request_id", event.RequestID,
			"action", action,
			"credential_id", cred.ID,
			"error", err,
		)
	}
}
