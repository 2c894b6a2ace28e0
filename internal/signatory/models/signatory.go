package models

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	dErrors "credentials/pkg/domain-errors"
)

const maxFieldLength = 255

// DefaultImageMaxBytes matches the documented 250KB limit for signature images.
const DefaultImageMaxBytes = 256000

// Signatory is a person whose name, title and signature image appear on
// rendered certificates. Image holds the storage key of the signature file.
type Signatory struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Image    string    `json:"image"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

func (s *Signatory) String() string {
	return s.Name + ", " + s.Title
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// ImagePolicy bounds signature images by size and raster format.
type ImagePolicy struct {
	MaxBytes int64
}

func DefaultImagePolicy() ImagePolicy {
	return ImagePolicy{MaxBytes: DefaultImageMaxBytes}
}

// Check rejects empty, oversize or undecodable images. Only PNG, JPEG and
// GIF decoders are registered.
func (p ImagePolicy) Check(u Upload) error {
	if len(u.Data) == 0 {
		return dErrors.New(dErrors.CodeInvalidImage, "image is required")
	}
	if p.MaxBytes > 0 && int64(len(u.Data)) > p.MaxBytes {
		return dErrors.New(dErrors.CodeInvalidImage,
			fmt.Sprintf("image is %d bytes, limit is %d", len(u.Data), p.MaxBytes))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidImage, "image is not a PNG, JPEG or GIF raster")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return dErrors.New(dErrors.CodeInvalidImage, "image has no pixels")
	}
	return nil
}

// ValidateDetails normalizes and checks the text fields of a signatory.
func ValidateDetails(name, title string) (string, string, error) {
	name = strings.TrimSpace(name)
	title = strings.TrimSpace(title)
	if name == "" || title == "" {
		return "", "", dErrors.New(dErrors.CodeValidation, "name and title are required")
	}
	if len(name) > maxFieldLength || len(title) > maxFieldLength {
		return "", "", dErrors.New(dErrors.CodeValidation, "name and title must be at most 255 characters")
	}
	return name, title, nil
}
