package models

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "credentials/pkg/domain-errors"
)

func pngBytes(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImagePolicyCheck(t *testing.T) {
	policy := ImagePolicy{MaxBytes: 2048}

	assert.NoError(t, policy.Check(Upload{Filename: "sig.png", Data: pngBytes(t, 8)}))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not an image", []byte("definitely not a picture")},
		{"oversize", append(pngBytes(t, 8), make([]byte, 4096)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Check(Upload{Filename: "sig.png", Data: tt.data})
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidImage), "got %v", err)
		})
	}
}

func TestSignatoryString(t *testing.T) {
	s := &Signatory{Name: "test name", Title: "test title"}
	assert.Equal(t, "test name, test title", s.String())
}

func TestValidateDetails(t *testing.T) {
	name, title, err := ValidateDetails("  Ada ", " Dean ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)
	assert.Equal(t, "Dean", title)

	_, _, err = ValidateDetails("", "Dean")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
