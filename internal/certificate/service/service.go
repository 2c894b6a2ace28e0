package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"credentials/internal/certificate/metrics"
	"credentials/internal/certificate/models"
	"credentials/internal/domain"
	"credentials/pkg/coursekey"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/platform/tx"
	"credentials/pkg/requestcontext"
)

var tracer = otel.Tracer("credentials/internal/certificate/service")

type Store interface {
	CreateCourse(ctx context.Context, c *models.CourseCertificate) error
	CreateProgram(ctx context.Context, p *models.ProgramCertificate) error
	FindCourse(ctx context.Context, id int64) (*models.CourseCertificate, error)
	FindProgram(ctx context.Context, id int64) (*models.ProgramCertificate, error)
	FindCourseByKey(ctx context.Context, courseID string, certType domain.CertificateType, siteID int64) (*models.CourseCertificate, error)
	ListCourses(ctx context.Context, filter models.CourseFilter) ([]*models.CourseCertificate, error)
	ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]*models.ProgramCertificate, error)
	SetActive(ctx context.Context, ref models.Ref, active bool) error
	AttachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) error
	DetachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) error
	AttachTemplate(ctx context.Context, ref models.Ref, templateID int64) error
	DetachTemplate(ctx context.Context, ref models.Ref, templateID int64) error
	Exists(ctx context.Context, ref models.Ref) (bool, error)
	SignatoryInUse(ctx context.Context, signatoryID int64) (bool, error)
	RemoveTemplate(ctx context.Context, templateID int64) error
}

type SiteChecker interface {
	SiteExists(ctx context.Context, id int64) (bool, error)
}

type SignatoryChecker interface {
	SignatoryExists(ctx context.Context, id int64) (bool, error)
}

type TemplateChecker interface {
	TemplateExists(ctx context.Context, id int64) (bool, error)
}

// Service owns course and program certificate definitions.
type Service struct {
	store       Store
	sites       SiteChecker
	signatories SignatoryChecker
	templates   TemplateChecker
	tx          tx.Runner
	metrics     *metrics.Metrics
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

// WithRunner sets the transaction runner that makes the existence checks
// and the link write of an attach one unit. Defaults to tx.Journal.
func WithRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func New(store Store, sites SiteChecker, signatories SignatoryChecker, templates TemplateChecker, opts ...Option) *Service {
	s := &Service{
		store:       store,
		sites:       sites,
		signatories: signatories,
		templates:   templates,
		tx:          tx.Journal{},
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateCourseCertificateRequest struct {
	CourseID        string
	CertificateType string
	SiteID          int64
	Title           string
}

type CreateProgramCertificateRequest struct {
	ProgramID int64
	SiteID    int64
	Title     string
}

// CreateCourseCertificate stores a new, inactive course definition.
// Duplicates are detected by the store's unique key only.
func (s *Service) CreateCourseCertificate(ctx context.Context, req CreateCourseCertificateRequest) (*models.CourseCertificate, error) {
	ctx, span := tracer.Start(ctx, "certificate.CreateCourseCertificate")
	defer span.End()
	start := time.Now()

	key, err := coursekey.Normalize(req.CourseID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	certType, err := domain.ParseCertificateType(req.CertificateType)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.requireSite(ctx, req.SiteID); err != nil {
		return nil, err
	}

	c := &models.CourseCertificate{
		Base:            models.Base{SiteID: req.SiteID, Title: req.Title},
		CourseID:        key,
		CertificateType: certType,
	}
	if err := s.store.CreateCourse(ctx, c); err != nil {
		return nil, s.createErr(ctx, models.KindCourse, err)
	}
	s.created(ctx, c.Ref(), start)
	return c, nil
}

func (s *Service) CreateProgramCertificate(ctx context.Context, req CreateProgramCertificateRequest) (*models.ProgramCertificate, error) {
	ctx, span := tracer.Start(ctx, "certificate.CreateProgramCertificate")
	defer span.End()
	start := time.Now()

	if req.ProgramID <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "program_id must be positive")
	}
	if err := s.requireSite(ctx, req.SiteID); err != nil {
		return nil, err
	}
	p := &models.ProgramCertificate{
		Base:      models.Base{SiteID: req.SiteID, Title: req.Title},
		ProgramID: req.ProgramID,
	}
	if err := s.store.CreateProgram(ctx, p); err != nil {
		return nil, s.createErr(ctx, models.KindProgram, err)
	}
	s.created(ctx, p.Ref(), start)
	return p, nil
}

func (s *Service) requireSite(ctx context.Context, siteID int64) error {
	if siteID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "site_id is required")
	}
	ok, err := s.sites.SiteExists(ctx, siteID)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "site not found")
	}
	return nil
}

func (s *Service) createErr(ctx context.Context, kind models.Kind, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		if s.metrics != nil {
			s.metrics.IncrementDuplicate(kind)
		}
		s.logger.InfoContext(ctx, "duplicate definition rejected",
			"request_id", requestcontext.RequestID(ctx),
			"kind", kind,
		)
		return dErrors.New(dErrors.CodeDuplicateDefinition, "certificate definition already exists")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "site not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "definition create timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certificate definition")
}

func (s *Service) created(ctx context.Context, ref models.Ref, start time.Time) {
	if s.metrics != nil {
		s.metrics.IncrementCreated(ref.Kind)
		s.metrics.ObserveCreate(start)
	}
	s.logger.InfoContext(ctx, "certificate definition created",
		"request_id", requestcontext.RequestID(ctx),
		"kind", ref.Kind,
		"definition_id", ref.ID,
	)
}

// Get loads a definition by reference. A miss is CodeNotFound.
func (s *Service) Get(ctx context.Context, ref models.Ref) (models.Definition, error) {
	if err := ref.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	var (
		def models.Definition
		err error
	)
	switch ref.Kind {
	case models.KindCourse:
		var c *models.CourseCertificate
		c, err = s.store.FindCourse(ctx, ref.ID)
		def = c
	case models.KindProgram:
		var p *models.ProgramCertificate
		p, err = s.store.FindProgram(ctx, ref.ID)
		def = p
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "certificate definition not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate definition")
	}
	return def, nil
}

// Resolve is Get for callers holding a credential's reference: an invalid
// or missing target is CodeUnknownDefinition.
func (s *Service) Resolve(ctx context.Context, ref models.Ref) (models.Definition, error) {
	ctx, span := tracer.Start(ctx, "certificate.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(ref.Kind)), attribute.Int64("definition_id", ref.ID))

	def, err := s.Get(ctx, ref)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, dErrors.New(dErrors.CodeUnknownDefinition, "credential definition "+ref.String()+" does not exist")
		}
		return nil, err
	}
	return def, nil
}

// DefinitionExists reports whether ref names a stored definition.
func (s *Service) DefinitionExists(ctx context.Context, ref models.Ref) (bool, error) {
	if ref.Validate() != nil {
		return false, nil
	}
	ok, err := s.store.Exists(ctx, ref)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check certificate definition")
	}
	return ok, nil
}

func (s *Service) SetActive(ctx context.Context, ref models.Ref, active bool) (models.Definition, error) {
	if err := ref.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.SetActive(ctx, ref, active); err != nil {
		return nil, s.mutateErr(err)
	}
	s.logger.InfoContext(ctx, "certificate definition activation changed",
		"request_id", requestcontext.RequestID(ctx),
		"kind", ref.Kind,
		"definition_id", ref.ID,
		"is_active", active,
	)
	return s.Get(ctx, ref)
}

// AttachSignatory links a signatory to a definition. Linking twice is a no-op.
// The signatory cannot be deleted between the check and the link.
func (s *Service) AttachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) (models.Definition, error) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireTarget(ctx, ref, "signatory", signatoryID, s.signatories.SignatoryExists); err != nil {
			return err
		}
		if err := s.store.AttachSignatory(ctx, ref, signatoryID); err != nil {
			return s.mutateErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, s.txErr(err)
	}
	return s.Get(ctx, ref)
}

func (s *Service) DetachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) (models.Definition, error) {
	if err := ref.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.DetachSignatory(ctx, ref, signatoryID); err != nil {
		return nil, s.mutateErr(err)
	}
	return s.Get(ctx, ref)
}

// AttachTemplate links a template to a definition. Linking twice is a no-op.
func (s *Service) AttachTemplate(ctx context.Context, ref models.Ref, templateID int64) (models.Definition, error) {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireTarget(ctx, ref, "template", templateID, s.templates.TemplateExists); err != nil {
			return err
		}
		if err := s.store.AttachTemplate(ctx, ref, templateID); err != nil {
			return s.mutateErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, s.txErr(err)
	}
	return s.Get(ctx, ref)
}

func (s *Service) DetachTemplate(ctx context.Context, ref models.Ref, templateID int64) (models.Definition, error) {
	if err := ref.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := s.store.DetachTemplate(ctx, ref, templateID); err != nil {
		return nil, s.mutateErr(err)
	}
	return s.Get(ctx, ref)
}

func (s *Service) requireTarget(ctx context.Context, ref models.Ref, what string, id int64, exists func(context.Context, int64) (bool, error)) error {
	if err := ref.Validate(); err != nil {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	ok, err := s.store.Exists(ctx, ref)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check certificate definition")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "certificate definition not found")
	}
	ok, err = exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return nil
}

func (s *Service) txErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "certificate link aborted")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit certificate link")
}

func (s *Service) mutateErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "certificate definition not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update certificate definition")
}

// FindCourseCertificate returns the single definition for the triple.
func (s *Service) FindCourseCertificate(ctx context.Context, courseID, certificateType string, siteID int64) (*models.CourseCertificate, error) {
	key, err := coursekey.Normalize(courseID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	certType, err := domain.ParseCertificateType(certificateType)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	c, err := s.store.FindCourseByKey(ctx, key, certType, siteID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "course certificate not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load course certificate")
	}
	return c, nil
}

type CourseQuery struct {
	CourseID        string
	CertificateType string
	SiteID          int64
}

func (s *Service) FindCourseCertificates(ctx context.Context, q CourseQuery) ([]*models.CourseCertificate, error) {
	filter := models.CourseFilter{SiteID: q.SiteID}
	if q.CourseID != "" {
		key, err := coursekey.Normalize(q.CourseID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		filter.CourseID = key
	}
	if q.CertificateType != "" {
		ct, err := domain.ParseCertificateType(q.CertificateType)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		filter.CertificateType = ct
	}
	cs, err := s.store.ListCourses(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list course certificates")
	}
	return cs, nil
}

// FindProgramCertificates lists a site's program definitions, optionally for one program.
func (s *Service) FindProgramCertificates(ctx context.Context, programID, siteID int64) ([]*models.ProgramCertificate, error) {
	if programID < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "program_id must be positive")
	}
	ps, err := s.store.ListPrograms(ctx, models.ProgramFilter{ProgramID: programID, SiteID: siteID})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list program certificates")
	}
	return ps, nil
}

// SignatoryInUse reports whether any definition links the signatory.
func (s *Service) SignatoryInUse(ctx context.Context, signatoryID int64) (bool, error) {
	return s.store.SignatoryInUse(ctx, signatoryID)
}

// RemoveTemplate unlinks a template from every definition; the template
// service calls it inside its delete transaction.
func (s *Service) RemoveTemplate(ctx context.Context, templateID int64) error {
	return s.store.RemoveTemplate(ctx, templateID)
}
