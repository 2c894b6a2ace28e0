package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"credentials/internal/signatory/models"
	"credentials/internal/signatory/service"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/httputil"
	"credentials/pkg/requestcontext"
)

type Service interface {
	CreateSignatory(ctx context.Context, req service.CreateRequest) (*models.Signatory, error)
	GetSignatory(ctx context.Context, id int64) (*models.Signatory, error)
	ListSignatories(ctx context.Context) ([]*models.Signatory, error)
	UpdateSignatory(ctx context.Context, id int64, name, title string) (*models.Signatory, error)
	ReplaceSignatoryImage(ctx context.Context, id int64, upload models.Upload) (*models.Signatory, error)
	OpenSignatoryImage(ctx context.Context, id int64) (io.ReadCloser, string, error)
	DeleteSignatory(ctx context.Context, id int64) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/signatories", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Patch("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
		r.Put("/{id}/image", h.HandleReplaceImage)
		r.Get("/{id}/image", h.HandleImage)
	})
}

// HandleCreate accepts multipart fields name and title plus the image under "file".
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	fields, filename, data, err := httputil.ReadUpload(w, r, "file")
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read signatory upload", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	sig, err := h.service.CreateSignatory(ctx, service.CreateRequest{
		Name:   fields["name"],
		Title:  fields["title"],
		Upload: models.Upload{Filename: filename, Data: data},
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create signatory", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSignatoryResponse(sig))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sig, err := h.service.GetSignatory(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSignatoryResponse(sig))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	sigs, err := h.service.ListSignatories(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]SignatoryResponse, 0, len(sigs))
	for _, s := range sigs {
		resp = append(resp, toSignatoryResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateSignatoryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sig, err := h.service.UpdateSignatory(ctx, id, req.Name, req.Title)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSignatoryResponse(sig))
}

func (h *Handler) HandleReplaceImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	_, filename, data, err := httputil.ReadUpload(w, r, "file")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if filename == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidImage, "image is required"))
		return
	}
	sig, err := h.service.ReplaceSignatoryImage(ctx, id, models.Upload{Filename: filename, Data: data})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to replace signatory image", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSignatoryResponse(sig))
}

func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rc, key, err := h.service.OpenSignatoryImage(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "failed to stream signatory image",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteSignatory(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
