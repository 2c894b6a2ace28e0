package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credentials/internal/site/models"
	"credentials/pkg/platform/httputil"
	"credentials/pkg/requestcontext"
)

type Service interface {
	CreateSite(ctx context.Context, domain, name string) (*models.Site, error)
	GetSite(ctx context.Context, id int64) (*models.Site, error)
	ListSites(ctx context.Context) ([]*models.Site, error)
}

// Handler exposes the site registry over HTTP.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/sites", h.HandleCreate)
	r.Get("/sites", h.HandleList)
	r.Get("/sites/{id}", h.HandleGet)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateSiteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	site, err := h.service.CreateSite(ctx, req.Domain, req.Name)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create site", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSiteResponse(site))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	site, err := h.service.GetSite(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSiteResponse(site))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	sites, err := h.service.ListSites(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]SiteResponse, 0, len(sites))
	for _, s := range sites {
		resp = append(resp, toSiteResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
