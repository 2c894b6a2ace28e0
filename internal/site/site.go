// Package site is the registry of sites certificate definitions belong to.
package site

import (
	"log/slog"

	"credentials/internal/site/handler"
	"credentials/internal/site/service"
)

type Service = service.Service

type Handler = handler.Handler

type Store = service.Store

func NewService(store service.Store, logger *slog.Logger) *Service {
	return service.New(store, service.WithLogger(logger))
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
