package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"credentials/internal/domain"
)

// Kind names the definition table a credential points at. The values are
// persisted in the credential_content_type column.
type Kind string

const (
	KindCourse  Kind = "course_certificate"
	KindProgram Kind = "program_certificate"
)

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("credential kind must be course_certificate or program_certificate; got %q", s)
	}
	return k, nil
}

func (k Kind) IsValid() bool {
	return k == KindCourse || k == KindProgram
}

// Table returns the definition table for k. Callers must check IsValid first.
func (k Kind) Table() string {
	switch k {
	case KindCourse:
		return "coursecertificate"
	case KindProgram:
		return "programcertificate"
	}
	panic("certificate: unknown kind " + string(k))
}

func (k Kind) String() string {
	return string(k)
}

// Ref identifies one definition of either kind.
type Ref struct {
	Kind Kind  `json:"kind"`
	ID   int64 `json:"id"`
}

func CourseRef(id int64) Ref  { return Ref{Kind: KindCourse, ID: id} }
func ProgramRef(id int64) Ref { return Ref{Kind: KindProgram, ID: id} }

func (r Ref) Validate() error {
	if !r.Kind.IsValid() {
		return fmt.Errorf("unknown credential kind %q", r.Kind)
	}
	if r.ID <= 0 {
		return fmt.Errorf("credential id must be positive")
	}
	return nil
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + strconv.FormatInt(r.ID, 10)
}

// Base holds the fields both definition kinds share. SignatoryIDs and
// TemplateIDs are sorted ascending.
type Base struct {
	ID           int64     `json:"id"`
	IsActive     bool      `json:"is_active"`
	Title        string    `json:"title,omitempty"`
	SiteID       int64     `json:"site_id"`
	SignatoryIDs []int64   `json:"signatory_ids"`
	TemplateIDs  []int64   `json:"template_ids"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
}

func (b *Base) Common() *Base {
	return b
}

// Definition is a course or program certificate.
type Definition interface {
	Ref() Ref
	Common() *Base
	String() string
}

type CourseCertificate struct {
	Base
	CourseID        string                 `json:"course_id"`
	CertificateType domain.CertificateType `json:"certificate_type"`
}

func (c *CourseCertificate) Ref() Ref {
	return CourseRef(c.ID)
}

func (c *CourseCertificate) String() string {
	return c.CourseID + ", " + string(c.CertificateType)
}

type ProgramCertificate struct {
	Base
	ProgramID int64 `json:"program_id"`
}

func (p *ProgramCertificate) Ref() Ref {
	return ProgramRef(p.ID)
}

func (p *ProgramCertificate) String() string {
	return strconv.FormatInt(p.ProgramID, 10)
}

// CourseFilter narrows course definition lookups. SiteID is required.
type CourseFilter struct {
	CourseID        string
	CertificateType domain.CertificateType
	SiteID          int64
}

func (f CourseFilter) Matches(c *CourseCertificate) bool {
	if c.SiteID != f.SiteID {
		return false
	}
	if f.CourseID != "" && c.CourseID != f.CourseID {
		return false
	}
	if f.CertificateType != "" && c.CertificateType != f.CertificateType {
		return false
	}
	return true
}

// ProgramFilter narrows program definition lookups. A zero ProgramID matches all.
type ProgramFilter struct {
	ProgramID int64
	SiteID    int64
}

func (f ProgramFilter) Matches(p *ProgramCertificate) bool {
	return p.SiteID == f.SiteID && (f.ProgramID == 0 || p.ProgramID == f.ProgramID)
}
