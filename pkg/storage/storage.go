// Package storage puts radiograph files into attachment storage: an S3-compatible bucket or a
// Google Drive account.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

var ErrTooLarge = errors.New("file exceeds the upload limit")

// Store is implemented by every attachment backend.
type Store interface {
	// EnsureFolder returns the id of a folder named name under parentID, creating it if the
	// backend has real folders.
	EnsureFolder(ctx context.Context, name, parentID string) (string, error)
	Upload(ctx context.Context, in UploadInput) (*Object, error)
	Delete(ctx context.Context, id string) error
	Name() string
}

type UploadInput struct {
	FolderID    string
	Filename    string
	ContentType string
	Body        io.Reader
}

type Object struct {
	ID     string
	Bytes  int64
	SHA256 string
}

// readLimited reads at most max bytes and hashes them. max <= 0 disables the limit.
func readLimited(r io.Reader, max int64) ([]byte, string, error) {
	if max > 0 {
		r = io.LimitReader(r, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if max > 0 && int64(len(data)) > max {
		return nil, "", ErrTooLarge
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeName turns a user supplied filename into something usable as an object key segment.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "archivo"
	}
	return name
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
