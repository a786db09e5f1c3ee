// Package storage uploads generated files and returns their public URL.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidPath is returned for empty paths and paths escaping the bucket.
var ErrInvalidPath = errors.New("invalid object path")

// Uploader stores one object and returns a URL it can be downloaded from.
type Uploader interface {
	Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
}

// CleanPath normalizes an object path. Leading slashes are dropped and any
// ".." segment is rejected.
func CleanPath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", errors.Wrapf(ErrInvalidPath, "%q", p)
		}
	}
	p = strings.TrimLeft(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return "", errors.Wrapf(ErrInvalidPath, "%q", p)
	}
	return p, nil
}
