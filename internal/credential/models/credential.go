package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	certmodels "credentials/internal/certificate/models"
	dErrors "credentials/pkg/domain-errors"
)

const maxFieldLength = 255

type Status string

const (
	StatusAwarded Status = "awarded"
	StatusRevoked Status = "revoked"
)

func (s Status) IsValid() bool {
	return s == StatusAwarded || s == StatusRevoked
}

// UserCredential records that a user was awarded one definition. UUID is
// the public identifier and never changes once assigned.
type UserCredential struct {
	ID          int64          `json:"id"`
	Username    string         `json:"username"`
	Credential  certmodels.Ref `json:"credential"`
	Status      Status         `json:"status"`
	UUID        uuid.UUID      `json:"uuid"`
	DownloadURL string         `json:"download_url,omitempty"`
	Created     time.Time      `json:"created"`
	Modified    time.Time      `json:"modified"`
}

func (c *UserCredential) String() string {
	return c.Username + ", " + string(c.Status)
}

// NewUserCredential builds an awarded credential with a fresh random UUID.
func NewUserCredential(username string, ref certmodels.Ref, id uuid.UUID) (*UserCredential, error) {
	username, err := ValidateUsername(username)
	if err != nil {
		return nil, err
	}
	if err := ref.Validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return &UserCredential{
		Username:   username,
		Credential: ref,
		Status:     StatusAwarded,
		UUID:       id,
	}, nil
}

func ValidateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if len(username) > maxFieldLength {
		return "", dErrors.New(dErrors.CodeValidation, "username must be at most 255 characters")
	}
	return username, nil
}

// Attribute is a namespaced key/value pair attached to a credential. The
// same namespace and name may appear more than once.
type Attribute struct {
	ID               int64     `json:"id"`
	UserCredentialID int64     `json:"user_credential_id"`
	Namespace        string    `json:"namespace"`
	Name             string    `json:"name"`
	Value            string    `json:"value"`
	Created          time.Time `json:"created"`
	Modified         time.Time `json:"modified"`
}

// Describe renders the attribute in the context of its credential.
func (a *Attribute) Describe(cred *UserCredential) string {
	return cred.String() + ", " + a.Namespace + ", " + a.Name
}

func NewAttribute(credentialID int64, namespace, name, value string) (*Attribute, error) {
	namespace = strings.TrimSpace(namespace)
	name = strings.TrimSpace(name)
	if namespace == "" || name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "attribute namespace and name are required")
	}
	if len(namespace) > maxFieldLength || len(name) > maxFieldLength || len(value) > maxFieldLength {
		return nil, dErrors.New(dErrors.CodeValidation, "attribute fields must be at most 255 characters")
	}
	return &Attribute{UserCredentialID: credentialID, Namespace: namespace, Name: name, Value: value}, nil
}
