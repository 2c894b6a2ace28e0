// Package template stores certificate templates and the asset files their
// content references.
package template

import (
	"log/slog"

	"credentials/internal/platform/filestore"
	"credentials/internal/template/handler"
	"credentials/internal/template/service"
	"credentials/pkg/platform/tx"
)

type Service = service.Service

type Handler = handler.Handler

type Store interface {
	service.TemplateStore
	service.AssetStore
}

func NewService(store Store, files filestore.Storage, runner tx.Runner, logger *slog.Logger) *Service {
	return service.New(store, store, files, runner, service.WithLogger(logger))
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
