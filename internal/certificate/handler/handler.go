package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"credentials/internal/certificate/models"
	"credentials/internal/certificate/service"
	dErrors "credentials/pkg/domain-errors"
	"credentials/pkg/platform/httputil"
	"credentials/pkg/requestcontext"
)

type Service interface {
	CreateCourseCertificate(ctx context.Context, req service.CreateCourseCertificateRequest) (*models.CourseCertificate, error)
	CreateProgramCertificate(ctx context.Context, req service.CreateProgramCertificateRequest) (*models.ProgramCertificate, error)
	Get(ctx context.Context, ref models.Ref) (models.Definition, error)
	SetActive(ctx context.Context, ref models.Ref, active bool) (models.Definition, error)
	AttachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) (models.Definition, error)
	DetachSignatory(ctx context.Context, ref models.Ref, signatoryID int64) (models.Definition, error)
	AttachTemplate(ctx context.Context, ref models.Ref, templateID int64) (models.Definition, error)
	DetachTemplate(ctx context.Context, ref models.Ref, templateID int64) (models.Definition, error)
	FindCourseCertificate(ctx context.Context, courseID, certificateType string, siteID int64) (*models.CourseCertificate, error)
	FindCourseCertificates(ctx context.Context, q service.CourseQuery) ([]*models.CourseCertificate, error)
	FindProgramCertificates(ctx context.Context, programID, siteID int64) ([]*models.ProgramCertificate, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/course-certificates", func(r chi.Router) {
		r.Post("/", h.HandleCreateCourse)
		r.Get("/", h.HandleListCourses)
		r.Get("/lookup", h.HandleLookupCourse)
		h.registerDefinition(r, models.KindCourse)
	})
	r.Route("/program-certificates", func(r chi.Router) {
		r.Post("/", h.HandleCreateProgram)
		r.Get("/", h.HandleListPrograms)
		h.registerDefinition(r, models.KindProgram)
	})
}

func (h *Handler) registerDefinition(r chi.Router, kind models.Kind) {
	r.Get("/{id}", h.withRef(kind, h.handleGet))
	r.Put("/{id}/active", h.withRef(kind, h.handleSetActive))
	r.Put("/{id}/signatories/{targetID}", h.withRef(kind, h.handleLink(h.service.AttachSignatory)))
	r.Delete("/{id}/signatories/{targetID}", h.withRef(kind, h.handleLink(h.service.DetachSignatory)))
	r.Put("/{id}/templates/{targetID}", h.withRef(kind, h.handleLink(h.service.AttachTemplate)))
	r.Delete("/{id}/templates/{targetID}", h.withRef(kind, h.handleLink(h.service.DetachTemplate)))
}

type refHandler func(w http.ResponseWriter, r *http.Request, ref models.Ref)

func (h *Handler) withRef(kind models.Kind, next refHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httputil.PathID(r, "id")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		next(w, r, models.Ref{Kind: kind, ID: id})
	}
}

func (h *Handler) HandleCreateCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateCourseCertificateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.CreateCourseCertificate(ctx, service.CreateCourseCertificateRequest{
		CourseID:        req.CourseID,
		CertificateType: req.CertificateType,
		SiteID:          req.SiteID,
		Title:           req.Title,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create course certificate", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDefinitionResponse(c))
}

func (h *Handler) HandleCreateProgram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateProgramCertificateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.CreateProgramCertificate(ctx, service.CreateProgramCertificateRequest{
		ProgramID: req.ProgramID,
		SiteID:    req.SiteID,
		Title:     req.Title,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create program certificate", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDefinitionResponse(p))
}

// HandleListCourses requires site_id and accepts course_id and certificate_type.
func (h *Handler) HandleListCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID, err := queryID(q.Get("site_id"), "site_id", true)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cs, err := h.service.FindCourseCertificates(r.Context(), service.CourseQuery{
		CourseID:        q.Get("course_id"),
		CertificateType: q.Get("certificate_type"),
		SiteID:          siteID,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]DefinitionResponse, 0, len(cs))
	for _, c := range cs {
		resp = append(resp, toDefinitionResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleLookupCourse returns the one definition for course_id, certificate_type and site_id.
func (h *Handler) HandleLookupCourse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID, err := queryID(q.Get("site_id"), "site_id", true)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.FindCourseCertificate(r.Context(), q.Get("course_id"), q.Get("certificate_type"), siteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDefinitionResponse(c))
}

func (h *Handler) HandleListPrograms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	siteID, err := queryID(q.Get("site_id"), "site_id", true)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	programID, err := queryID(q.Get("program_id"), "program_id", false)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ps, err := h.service.FindProgramCertificates(r.Context(), programID, siteID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := make([]DefinitionResponse, 0, len(ps))
	for _, p := range ps {
		resp = append(resp, toDefinitionResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, ref models.Ref) {
	def, err := h.service.Get(r.Context(), ref)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDefinitionResponse(def))
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request, ref models.Ref) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SetActiveRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	def, err := h.service.SetActive(ctx, ref, *req.IsActive)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDefinitionResponse(def))
}

type linkFunc func(ctx context.Context, ref models.Ref, targetID int64) (models.Definition, error)

func (h *Handler) handleLink(fn linkFunc) refHandler {
	return func(w http.ResponseWriter, r *http.Request, ref models.Ref) {
		targetID, err := httputil.PathID(r, "targetID")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		def, err := fn(r.Context(), ref, targetID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toDefinitionResponse(def))
	}
}

func queryID(raw, name string, required bool) (int64, error) {
	if raw == "" {
		if required {
			return 0, dErrors.New(dErrors.CodeBadRequest, name+" is required")
		}
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+name)
	}
	return id, nil
}
