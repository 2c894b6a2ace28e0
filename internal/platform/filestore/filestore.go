// Package filestore persists signatory images and template asset files
// under storage keys derived from the owning row id.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

// ErrNotFound is returned when no object is stored under a key.
var ErrNotFound = errors.New("file not found")

// Storage is the file backend contract shared by the local, memory and S3
// implementations. Put overwrites any existing object at key.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

const (
	SignatoryPrefix = "signatories"
	AssetPrefix     = "credential_certificate_template_assets"
)

var invalidFilenameChars = regexp.MustCompile(`[^-\w.]`)

// CleanFilename keeps the base name, turns spaces into underscores and
// drops anything outside [-A-Za-z0-9_.].
func CleanFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = invalidFilenameChars.ReplaceAllString(name, "")
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid filename")
	}
	return name, nil
}

// SignatoryKey returns the storage key for a signatory image.
func SignatoryKey(id int64, filename string) (string, error) {
	return ownedKey(SignatoryPrefix, id, filename)
}

// AssetKey returns the storage key for a template asset file.
func AssetKey(id int64, filename string) (string, error) {
	return ownedKey(AssetPrefix, id, filename)
}

func ownedKey(prefix string, id int64, filename string) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("owner id must be positive, got %d", id)
	}
	clean, err := CleanFilename(filename)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%d/%s", prefix, id, clean), nil
}

// ReadAll opens key and reads it fully.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}
