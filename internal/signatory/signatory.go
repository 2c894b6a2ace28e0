// Package signatory manages the people whose signatures appear on
// certificates, together with their stored signature images.
package signatory

import (
	"log/slog"

	"credentials/internal/platform/filestore"
	"credentials/internal/signatory/handler"
	"credentials/internal/signatory/models"
	"credentials/internal/signatory/service"
	"credentials/pkg/platform/tx"
)

type Service = service.Service

type Handler = handler.Handler

type UsageChecker = service.UsageChecker

type Store = service.Store

func NewService(store service.Store, files filestore.Storage, runner tx.Runner, maxImageBytes int64, logger *slog.Logger) *Service {
	opts := []service.Option{service.WithLogger(logger)}
	if maxImageBytes > 0 {
		opts = append(opts, service.WithImagePolicy(models.ImagePolicy{MaxBytes: maxImageBytes}))
	}
	return service.New(store, files, runner, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
