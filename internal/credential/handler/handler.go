package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	certmodels "credentials/internal/certificate/models"
	"credentials/internal/credential/models"
	"credentials/internal/credential/service"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/httputil"
	"credentials/pkg/requestcontext"
)

type Service interface {
	Award(ctx context.Context, username string, ref certmodels.Ref) (*models.UserCredential, error)
	Revoke(ctx context.Context, id int64) (*models.UserCredential, error)
	Get(ctx context.Context, id int64) (*models.UserCredential, error)
	GetByUUID(ctx context.Context, raw string) (*models.UserCredential, error)
	FindByUser(ctx context.Context, username string) ([]*models.UserCredential, error)
	FindByDefinition(ctx context.Context, ref certmodels.Ref) ([]*models.UserCredential, error)
	SetDownloadURL(ctx context.Context, id int64, url string) (*models.UserCredential, error)
	Delete(ctx context.Context, id int64) error
	SetAttribute(ctx context.Context, credentialID int64, namespace, name, value string) (*models.Attribute, error)
	GetAttributes(ctx context.Context, credentialID int64, namespace string) ([]*models.Attribute, error)
	RenderContext(ctx context.Context, rawUUID string) (*service.RenderContext, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/credentials", func(r chi.Router) {
		r.Post("/", h.HandleAward)
		r.Get("/", h.HandleList)
		r.Get("/uuid/{uuid}", h.HandleGetByUUID)
		r.Get("/uuid/{uuid}/render", h.HandleRender)
		r.Get("/{id}", h.HandleGet)
		r.Delete("/{id}", h.HandleDelete)
		r.Post("/{id}/revoke", h.HandleRevoke)
		r.Put("/{id}/download-url", h.HandleSetDownloadURL)
		r.Post("/{id}/attributes", h.HandleAddAttribute)
		r.Get("/{id}/attributes", h.HandleListAttributes)
	})
}

func (h *Handler) HandleAward(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AwardRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	cred, err := h.service.Award(ctx, req.Username, req.Ref())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to award credential",
			"request_id", requestID,
			"username", req.Username,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// HandleList filters by username or by credential_kind plus credential_id.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		creds []*models.UserCredential
		err   error
	)
	switch {
	case q.Get("username") != "":
		creds, err = h.service.FindByUser(r.Context(), q.Get("username"))
	case q.Get("credential_kind") != "":
		var ref certmodels.Ref
		if ref, err = definitionQuery(q.Get("credential_kind"), q.Get("credential_id")); err == nil {
			creds, err = h.service.FindByDefinition(r.Context(), ref)
		}
	default:
		err = dErrors.New(dErrors.CodeBadRequest, "username or credential_kind is required")
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialList(creds))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cred, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

func (h *Handler) HandleGetByUUID(w http.ResponseWriter, r *http.Request) {
	cred, err := h.service.GetByUUID(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

func (h *Handler) HandleRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc, err := h.service.RenderContext(ctx, chi.URLParam(r, "uuid"))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to build render context",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRenderResponse(rc))
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cred, err := h.service.Revoke(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

func (h *Handler) HandleSetDownloadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DownloadURLRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	cred, err := h.service.SetDownloadURL(ctx, id, req.DownloadURL)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCredentialResponse(cred))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAddAttribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AttributeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if _, err := h.service.SetAttribute(ctx, id, req.Namespace, req.Name, req.Value); err != nil {
		httputil.WriteError(w, err)
		return
	}
	attrs, err := h.service.GetAttributes(ctx, id, req.Namespace)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAttributeList(attrs))
}

func (h *Handler) HandleListAttributes(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attrs, err := h.service.GetAttributes(r.Context(), id, r.URL.Query().Get("namespace"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAttributeList(attrs))
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid id")
	}
	return id, nil
}
