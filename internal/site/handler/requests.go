package handler

import (
	"strings"

	"credentials/internal/site/models"
)

// CreateSiteRequest is the body of POST /sites.
type CreateSiteRequest struct {
	Domain string `json:"domain" validate:"required,max=100"`
	Name   string `json:"name" validate:"required,max=50"`
}

func (r *CreateSiteRequest) Normalize() {
	r.Domain = strings.TrimSpace(r.Domain)
	r.Name = strings.TrimSpace(r.Name)
}

type SiteResponse struct {
	ID     int64  `json:"id"`
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

func toSiteResponse(s *models.Site) SiteResponse {
	return SiteResponse{ID: s.ID, Domain: s.Domain, Name: s.Name}
}
