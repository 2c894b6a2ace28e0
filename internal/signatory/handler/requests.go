package handler

import (
	"strings"
	"time"

	"credentials/internal/signatory/models"
)

// UpdateSignatoryRequest is the body of PATCH /signatories/{id}.
type UpdateSignatoryRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Title string `json:"title" validate:"required,max=255"`
}

func (r *UpdateSignatoryRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Title = strings.TrimSpace(r.Title)
}

type SignatoryResponse struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Image    string    `json:"image"`
	Display  string    `json:"display"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

func toSignatoryResponse(s *models.Signatory) SignatoryResponse {
	return SignatoryResponse{
		ID:       s.ID,
		Name:     s.Name,
		Title:    s.Title,
		Image:    s.Image,
		Display:  s.String(),
		Created:  s.Created,
		Modified: s.Modified,
	}
}
