package models

import (
	"strings"
	"time"

	"credentials/internal/domain"
	dErrors "credentials/pkg/domain-errors"
)

const maxNameLength = 255

// Template is the content a credential is rendered with. An empty
// CertificateType and a nil OrganizationID mean the template applies to any.
type Template struct {
	ID              int64                  `json:"id"`
	Name            string                 `json:"name"`
	Content         string                 `json:"content"`
	CertificateType domain.CertificateType `json:"certificate_type,omitempty"`
	OrganizationID  *int64                 `json:"organization_id,omitempty"`
	Created         time.Time              `json:"created"`
	Modified        time.Time              `json:"modified"`
}

func (t *Template) String() string {
	return t.Name
}

// NewTemplate validates template fields. certificateType may be empty.
func NewTemplate(name, content, certificateType string, organizationID *int64) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "template name is required")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "template name must be at most 255 characters")
	}
	if strings.TrimSpace(content) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "template content is required")
	}
	t := &Template{Name: name, Content: content}
	if strings.TrimSpace(certificateType) != "" {
		ct, err := domain.ParseCertificateType(certificateType)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		t.CertificateType = ct
	}
	if organizationID != nil {
		if *organizationID <= 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "organization_id must be positive")
		}
		org := *organizationID
		t.OrganizationID = &org
	}
	return t, nil
}

// Filter narrows ListTemplates. Zero fields match everything.
type Filter struct {
	Name            string
	CertificateType domain.CertificateType
	OrganizationID  *int64
}

func (f Filter) Matches(t *Template) bool {
	if f.Name != "" && t.Name != f.Name {
		return false
	}
	if f.CertificateType != "" && t.CertificateType != f.CertificateType {
		return false
	}
	if f.OrganizationID != nil && (t.OrganizationID == nil || *t.OrganizationID != *f.OrganizationID) {
		return false
	}
	return true
}
