package models

import (
	"strings"
	"time"

	dErrors "credentials/pkg/domain-errors"
)

const (
	maxDomainLength = 100
	maxNameLength   = 50
)

// Site is the tenant boundary certificate definitions are scoped to.
type Site struct {
	ID       int64     `json:"id"`
	Domain   string    `json:"domain"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// NewSite validates and normalizes a site before it is stored.
func NewSite(domain, name string) (*Site, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	name = strings.TrimSpace(name)
	if domain == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "site domain is required")
	}
	if len(domain) > maxDomainLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "site domain must be at most 100 characters")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "site name is required")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "site name must be at most 50 characters")
	}
	return &Site{Domain: domain, Name: name}, nil
}

func (s *Site) String() string {
	return s.Domain
}
