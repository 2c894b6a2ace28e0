package handler

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"credentials/internal/domain"
	"credentials/internal/template/models"
	"credentials/internal/template/service"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/httputil"
	"credentials/pkg/requestcontext"
)

type Service interface {
	CreateTemplate(ctx context.Context, req service.TemplateRequest) (*models.Template, error)
	GetTemplate(ctx context.Context, id int64) (*models.Template, error)
	ListTemplates(ctx context.Context, filter models.Filter) ([]*models.Template, error)
	UpdateTemplate(ctx context.Context, id int64, req service.TemplateRequest) (*models.Template, error)
	DeleteTemplate(ctx context.Context, id int64) error

	UploadAsset(ctx context.Context, name string, upload models.Upload) (*models.Asset, error)
	ReplaceAssetFile(ctx context.Context, id int64, upload models.Upload) (*models.Asset, error)
	GetAsset(ctx context.Context, id int64) (*models.Asset, error)
	ListAssets(ctx context.Context) ([]*models.Asset, error)
	OpenAssetFile(ctx context.Context, id int64) (io.ReadCloser, string, error)
	DeleteAsset(ctx context.Context, id int64) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
	r.Route("/template-assets", func(r chi.Router) {
		r.Post("/", h.HandleUploadAsset)
		r.Get("/", h.HandleListAssets)
		r.Get("/{id}", h.HandleGetAsset)
		r.Delete("/{id}", h.HandleDeleteAsset)
		r.Put("/{id}/file", h.HandleReplaceAssetFile)
		r.Get("/{id}/file", h.HandleAssetFile)
	})
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TemplateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	t, err := h.service.CreateTemplate(ctx, toServiceRequest(req))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create template", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTemplateResponse(t))
}

// HandleList supports the name, certificate_type and organization_id query filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.Filter{Name: q.Get("name")}
	if raw := q.Get("certificate_type"); raw != "" {
		ct, err := domain.ParseCertificateType(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
			return
		}
		filter.CertificateType = ct
	}
	if raw := q.Get("organization_id"); raw != "" {
		org, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid organization_id"))
			return
		}
		filter.OrganizationID = &org
	}
	ts, err := h.service.ListTemplates(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]TemplateResponse, 0, len(ts))
	for _, t := range ts {
		resp = append(resp, toTemplateResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TemplateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	t, err := h.service.UpdateTemplate(ctx, id, toServiceRequest(req))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTemplateResponse(t))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteTemplate(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUploadAsset accepts the multipart field name and the file under "file".
func (h *Handler) HandleUploadAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	fields, filename, data, err := httputil.ReadUpload(w, r, "file")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.UploadAsset(ctx, fields["name"], models.Upload{Filename: filename, Data: data})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to upload asset", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAssetResponse(a))
}

func (h *Handler) HandleReplaceAssetFile(w http.ResponseWriter, r *http.Request) {
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
	a, err := h.service.ReplaceAssetFile(r.Context(), id, models.Upload{Filename: filename, Data: data})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAssetResponse(a))
}

func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	as, err := h.service.ListAssets(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]AssetResponse, 0, len(as))
	for _, a := range as {
		resp = append(resp, toAssetResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.service.GetAsset(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAssetResponse(a))
}

func (h *Handler) HandleAssetFile(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rc, key, err := h.service.OpenAssetFile(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": path.Base(key)}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "failed to stream asset file",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
	}
}

func (h *Handler) HandleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteAsset(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toServiceRequest(req *TemplateRequest) service.TemplateRequest {
	return service.TemplateRequest{
		Name:            req.Name,
		Content:         req.Content,
		CertificateType: req.CertificateType,
		OrganizationID:  req.OrganizationID,
	}
}
