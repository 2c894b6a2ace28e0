package handler

import (
	"strings"
	"time"

	certmodels "credentials/internal/certificate/models"
	"credentials/internal/credential/models"
	"credentials/internal/credential/service"
	dErrors "credentials/pkg/domain-errors"
)

// AwardRequest is the body of POST /credentials.
type AwardRequest struct {
	Username       string `json:"username" validate:"required,max=255"`
	CredentialKind string `json:"credential_kind" validate:"required"`
	CredentialID   int64  `json:"credential_id" validate:"required,gt=0"`
}

func (r *AwardRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.CredentialKind = strings.TrimSpace(r.CredentialKind)
}

func (r *AwardRequest) Ref() certmodels.Ref {
	return certmodels.Ref{Kind: certmodels.Kind(r.CredentialKind), ID: r.CredentialID}
}

type DownloadURLRequest struct {
	DownloadURL string `json:"download_url" validate:"max=255"`
}

func (r *DownloadURLRequest) Normalize() {
	r.DownloadURL = strings.TrimSpace(r.DownloadURL)
}

type AttributeRequest struct {
	Namespace string `json:"namespace" validate:"required,max=255"`
	Name      string `json:"name" validate:"required,max=255"`
	Value     string `json:"value" validate:"max=255"`
}

func (r *AttributeRequest) Normalize() {
	r.Namespace = strings.TrimSpace(r.Namespace)
	r.Name = strings.TrimSpace(r.Name)
}

type CredentialResponse struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	CredentialKind string    `json:"credential_kind"`
	CredentialID   int64     `json:"credential_id"`
	Status         string    `json:"status"`
	UUID           string    `json:"uuid"`
	DownloadURL    string    `json:"download_url,omitempty"`
	Display        string    `json:"display"`
	Created        time.Time `json:"created"`
	Modified       time.Time `json:"modified"`
}

func toCredentialResponse(c *models.UserCredential) CredentialResponse {
	return CredentialResponse{
		ID:             c.ID,
		Username:       c.Username,
		CredentialKind: string(c.Credential.Kind),
		CredentialID:   c.Credential.ID,
		Status:         string(c.Status),
		UUID:           c.UUID.String(),
		DownloadURL:    c.DownloadURL,
		Display:        c.String(),
		Created:        c.Created,
		Modified:       c.Modified,
	}
}

func toCredentialList(cs []*models.UserCredential) []CredentialResponse {
	out := make([]CredentialResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCredentialResponse(c))
	}
	return out
}

type AttributeResponse struct {
	ID        int64     `json:"id"`
	Namespace string    `json:"namespace"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Created   time.Time `json:"created"`
}

func toAttributeList(as []*models.Attribute) []AttributeResponse {
	out := make([]AttributeResponse, 0, len(as))
	for _, a := range as {
		out = append(out, AttributeResponse{
			ID:        a.ID,
			Namespace: a.Namespace,
			Name:      a.Name,
			Value:     a.Value,
			Created:   a.Created,
		})
	}
	return out
}

type RenderDefinition struct {
	Kind     string `json:"kind"`
	ID       int64  `json:"id"`
	Title    string `json:"title,omitempty"`
	SiteID   int64  `json:"site_id"`
	IsActive bool   `json:"is_active"`
	Display  string `json:"display"`
}

type RenderSignatory struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Image string `json:"image"`
}

type RenderTemplate struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// RenderResponse is what a renderer reads to display one credential.
type RenderResponse struct {
	Credential  CredentialResponse  `json:"credential"`
	Definition  RenderDefinition    `json:"definition"`
	Attributes  []AttributeResponse `json:"attributes"`
	Signatories []RenderSignatory   `json:"signatories"`
	Templates   []RenderTemplate    `json:"templates"`
}

func toRenderResponse(rc *service.RenderContext) RenderResponse {
	base := rc.Definition.Common()
	resp := RenderResponse{
		Credential: toCredentialResponse(rc.Credential),
		Definition: RenderDefinition{
			Kind:     string(rc.Definition.Ref().Kind),
			ID:       base.ID,
			Title:    base.Title,
			SiteID:   base.SiteID,
			IsActive: base.IsActive,
			Display:  rc.Definition.String(),
		},
		Attributes:  toAttributeList(rc.Attributes),
		Signatories: make([]RenderSignatory, 0, len(rc.Signatories)),
		Templates:   make([]RenderTemplate, 0, len(rc.Templates)),
	}
	for _, s := range rc.Signatories {
		resp.Signatories = append(resp.Signatories, RenderSignatory{ID: s.ID, Name: s.Name, Title: s.Title, Image: s.Image})
	}
	for _, t := range rc.Templates {
		resp.Templates = append(resp.Templates, RenderTemplate{ID: t.ID, Name: t.Name, Content: t.Content})
	}
	return resp
}

func definitionQuery(kind, rawID string) (certmodels.Ref, error) {
	ref := certmodels.Ref{Kind: certmodels.Kind(kind)}
	if !ref.Kind.IsValid() {
		return ref, dErrors.New(dErrors.CodeBadRequest, "invalid credential_kind")
	}
	id, err := parseID(rawID)
	if err != nil {
		return ref, dErrors.New(dErrors.CodeBadRequest, "invalid credential_id")
	}
	ref.ID = id
	return ref, nil
}
