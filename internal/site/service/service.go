package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"

	"credentials/internal/site/models"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/sentinel"
	"credentials/pkg/requestcontext"
)

var tracer = otel.Tracer("credentials/internal/site/service")

type Store interface {
	Create(ctx context.Context, site *models.Site) error
	FindByID(ctx context.Context, id int64) (*models.Site, error)
	FindByDomain(ctx context.Context, domain string) (*models.Site, error)
	List(ctx context.Context) ([]*models.Site, error)
}

// Service manages the sites certificate definitions are scoped to.
type Service struct {
	sites  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(sites Store, opts ...Option) *Service {
	s := &Service{sites: sites, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateSite(ctx context.Context, domain, name string) (*models.Site, error) {
	ctx, span := tracer.Start(ctx, "site.CreateSite")
	defer span.End()

	site, err := models.NewSite(domain, name)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if err := s.sites.Create(ctx, site); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "site domain already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create site")
	}
	s.logger.InfoContext(ctx, "site created",
		"request_id", requestcontext.RequestID(ctx),
		"site_id", site.ID,
		"domain", site.Domain,
	)
	return site, nil
}

func (s *Service) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	site, err := s.sites.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "site not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load site")
	}
	return site, nil
}

func (s *Service) GetSiteByDomain(ctx context.Context, domain string) (*models.Site, error) {
	site, err := s.sites.FindByDomain(ctx, domain)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "site not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load site")
	}
	return site, nil
}

func (s *Service) ListSites(ctx context.Context) ([]*models.Site, error) {
	sites, err := s.sites.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sites")
	}
	return sites, nil
}

// SiteExists lets other modules check a site reference without loading it.
func (s *Service) SiteExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.sites.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load site")
	}
	return true, nil
}
