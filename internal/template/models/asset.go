package models

import (
	"strings"
	"time"

	dErrors "credentials/pkg/domain-errors"
)

// Asset is a file referenced from template content, such as a logo or
// background image. AssetFile holds the storage key.
type Asset struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	AssetFile string    `json:"asset_file"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

func (a *Asset) String() string {
	return a.Name
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

func ValidateAssetName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeValidation, "asset name is required")
	}
	if len(name) > maxNameLength {
		return "", dErrors.New(dErrors.CodeValidation, "asset name must be at most 255 characters")
	}
	return name, nil
}

func (u Upload) Validate() error {
	if len(u.Data) == 0 || strings.TrimSpace(u.Filename) == "" {
		return dErrors.New(dErrors.CodeValidation, "asset file is required")
	}
	return nil
}
