package handler

import (
	"strings"
	"time"

	"credentials/internal/template/models"
)

// TemplateRequest is the body of POST /templates and PUT /templates/{id}.
type TemplateRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	Content         string `json:"content" validate:"required"`
	CertificateType string `json:"certificate_type,omitempty" validate:"omitempty,oneof=honor verified professional"`
	OrganizationID  *int64 `json:"organization_id,omitempty" validate:"omitempty,gt=0"`
}

func (r *TemplateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.CertificateType = strings.ToLower(strings.TrimSpace(r.CertificateType))
}

type TemplateResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Content         string    `json:"content"`
	CertificateType string    `json:"certificate_type,omitempty"`
	OrganizationID  *int64    `json:"organization_id,omitempty"`
	Created         time.Time `json:"created"`
	Modified        time.Time `json:"modified"`
}

func toTemplateResponse(t *models.Template) TemplateResponse {
	return TemplateResponse{
		ID:              t.ID,
		Name:            t.Name,
		Content:         t.Content,
		CertificateType: string(t.CertificateType),
		OrganizationID:  t.OrganizationID,
		Created:         t.Created,
		Modified:        t.Modified,
	}
}

type AssetResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AssetFile string    `json:"asset_file"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

func toAssetResponse(a *models.Asset) AssetResponse {
	return AssetResponse{ID: a.ID, Name: a.Name, AssetFile: a.AssetFile, Created: a.Created, Modified: a.Modified}
}
