package handler

import (
	"strings"
	"time"

	"credentials/internal/certificate/models"
)

// CreateCourseCertificateRequest is the body of POST /course-certificates.
type CreateCourseCertificateRequest struct {
	CourseID        string `json:"course_id" validate:"required,max=255"`
	CertificateType string `json:"certificate_type" validate:"required"`
	SiteID          int64  `json:"site_id" validate:"required,gt=0"`
	Title           string `json:"title,omitempty" validate:"max=255"`
}

func (r *CreateCourseCertificateRequest) Normalize() {
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.CertificateType = strings.TrimSpace(r.CertificateType)
	r.Title = strings.TrimSpace(r.Title)
}

// CreateProgramCertificateRequest is the body of POST /program-certificates.
type CreateProgramCertificateRequest struct {
	ProgramID int64  `json:"program_id" validate:"required,gt=0"`
	SiteID    int64  `json:"site_id" validate:"required,gt=0"`
	Title     string `json:"title,omitempty" validate:"max=255"`
}

func (r *CreateProgramCertificateRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type DefinitionResponse struct {
	Kind            models.Kind `json:"kind"`
	ID              int64       `json:"id"`
	IsActive        bool        `json:"is_active"`
	Title           string      `json:"title,omitempty"`
	SiteID          int64       `json:"site_id"`
	CourseID        string      `json:"course_id,omitempty"`
	CertificateType string      `json:"certificate_type,omitempty"`
	ProgramID       int64       `json:"program_id,omitempty"`
	SignatoryIDs    []int64     `json:"signatory_ids"`
	TemplateIDs     []int64     `json:"template_ids"`
	Display         string      `json:"display"`
	Created         time.Time   `json:"created"`
	Modified        time.Time   `json:"modified"`
}

func toDefinitionResponse(def models.Definition) DefinitionResponse {
	b := def.Common()
	resp := DefinitionResponse{
		Kind:         def.Ref().Kind,
		ID:           b.ID,
		IsActive:     b.IsActive,
		Title:        b.Title,
		SiteID:       b.SiteID,
		SignatoryIDs: b.SignatoryIDs,
		TemplateIDs:  b.TemplateIDs,
		Display:      def.String(),
		Created:      b.Created,
		Modified:     b.Modified,
	}
	switch d := def.(type) {
	case *models.CourseCertificate:
		resp.CourseID = d.CourseID
		resp.CertificateType = string(d.CertificateType)
	case *models.ProgramCertificate:
		resp.ProgramID = d.ProgramID
	}
	if resp.SignatoryIDs == nil {
		resp.SignatoryIDs = []int64{}
	}
	if resp.TemplateIDs == nil {
		resp.TemplateIDs = []int64{}
	}
	return resp
}
