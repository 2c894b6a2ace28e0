package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentials/internal/domain"
)

func TestDisplayStrings(t *testing.T) {
	course := &CourseCertificate{Base: Base{ID: 3}, CourseID: "course-v1:edX+DemoX+2024", CertificateType: domain.CertificateTypeVerified}
	assert.Equal(t, "course-v1:edX+DemoX+2024, verified", course.String())
	assert.Equal(t, CourseRef(3), course.Ref())

	program := &ProgramCertificate{Base: Base{ID: 5}, ProgramID: 42}
	assert.Equal(t, "42", program.String())
	assert.Equal(t, "program_certificate:5", program.Ref().String())
}

func TestKindTable(t *testing.T) {
	assert.Equal(t, "coursecertificate", KindCourse.Table())
	assert.Equal(t, "programcertificate", KindProgram.Table())
	assert.Panics(t, func() { Kind("badge").Table() })

	k, err := ParseKind(" Program_Certificate ")
	require.NoError(t, err)
	assert.Equal(t, KindProgram, k)
	_, err = ParseKind("badge")
	assert.Error(t, err)
}

func TestRefValidate(t *testing.T) {
	assert.NoError(t, CourseRef(1).Validate())
	assert.Error(t, Ref{Kind: "badge", ID: 1}.Validate())
	assert.Error(t, ProgramRef(0).Validate())
}

func TestFilters(t *testing.T) {
	c := &CourseCertificate{Base: Base{SiteID: 1}, CourseID: "a/b/c", CertificateType: domain.CertificateTypeHonor}
	assert.True(t, CourseFilter{SiteID: 1}.Matches(c))
	assert.True(t, CourseFilter{SiteID: 1, CourseID: "a/b/c", CertificateType: domain.CertificateTypeHonor}.Matches(c))
	assert.False(t, CourseFilter{SiteID: 2}.Matches(c))
	assert.False(t, CourseFilter{SiteID: 1, CertificateType: domain.CertificateTypeVerified}.Matches(c))

	p := &ProgramCertificate{Base: Base{SiteID: 1}, ProgramID: 9}
	assert.True(t, ProgramFilter{SiteID: 1}.Matches(p))
	assert.False(t, ProgramFilter{SiteID: 1, ProgramID: 8}.Matches(p))
}
