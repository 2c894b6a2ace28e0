// Package credential is the ledger of credentials awarded to users and the
// attributes attached to them.
package credential

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"credentials/internal/audit"
	"credentials/internal/credential/handler"
	"credentials/internal/credential/metrics"
	"credentials/internal/credential/models"
	"credentials/internal/credential/service"
)

type (
	Service        = service.Service
	Store          = service.Store
	Handler        = handler.Handler
	UserCredential = models.UserCredential
	Attribute      = models.Attribute
)

// Sources are the collaborators the ledger reads from.
type Sources struct {
	Definitions service.DefinitionResolver
	Signatories service.SignatoryLoader
	Templates   service.TemplateLoader
}

func NewService(store service.Store, src Sources, publisher audit.Publisher, reg prometheus.Registerer, logger *slog.Logger) *Service {
	return service.New(store, src.Definitions,
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(reg)),
		service.WithPublisher(publisher),
		service.WithRenderSources(src.Signatories, src.Templates),
	)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
