package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certmodels "credentials/internal/certificate/models"
	dErrors "credentials/pkg/domain-errors"
)

func TestNewUserCredential(t *testing.T) {
	id := uuid.New()
	cred, err := NewUserCredential(" alice ", certmodels.ProgramRef(3), id)
	require.NoError(t, err)
	assert.Equal(t, "alice, awarded", cred.String())
	assert.Equal(t, id, cred.UUID)

	_, err = NewUserCredential("", certmodels.ProgramRef(3), id)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = NewUserCredential("bob", certmodels.Ref{Kind: "badge", ID: 1}, id)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestAttributeDescribe(t *testing.T) {
	cred := &UserCredential{Username: "alice", Status: StatusRevoked}
	attr, err := NewAttribute(1, "whitelist", "grade", "0.9")
	require.NoError(t, err)
	assert.Equal(t, "alice, revoked, whitelist, grade", attr.Describe(cred))

	_, err = NewAttribute(1, "", "grade", "x")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
