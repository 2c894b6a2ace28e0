// Package domain holds value types shared by several modules.
package domain

import (
	"fmt"
	"strings"
)

// CertificateType is the enrollment track a certificate is issued for.
type CertificateType string

const (
	CertificateTypeHonor        CertificateType = "honor"
	CertificateTypeVerified     CertificateType = "verified"
	CertificateTypeProfessional CertificateType = "professional"
)

// ParseCertificateType accepts any casing and returns the canonical lowercase value.
func ParseCertificateType(s string) (CertificateType, error) {
	t := CertificateType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("certificate_type must be one of honor, verified, professional; got %q", s)
	}
	return t, nil
}

func (t CertificateType) IsValid() bool {
	switch t {
	case CertificateTypeHonor, CertificateTypeVerified, CertificateTypeProfessional:
		return true
	}
	return false
}

func (t CertificateType) String() string {
	return string(t)
}
