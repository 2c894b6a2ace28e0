// Package certificate owns course and program certificate definitions and
// their links to signatories and templates.
package certificate

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"credentials/internal/certificate/handler"
	"credentials/internal/certificate/metrics"
	"credentials/internal/certificate/models"
	"credentials/internal/certificate/service"
	"credentials/pkg/platform/tx"
)

type (
	Service    = service.Service
	Store      = service.Store
	Handler    = handler.Handler
	Definition = models.Definition
	Ref        = models.Ref
	Kind       = models.Kind
)

func NewService(store service.Store, sites service.SiteChecker, signatories service.SignatoryChecker, templates service.TemplateChecker, runner tx.Runner, reg prometheus.Registerer, logger *slog.Logger) *Service {
	return service.New(store, sites, signatories, templates,
		service.WithRunner(runner),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(reg)),
	)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
