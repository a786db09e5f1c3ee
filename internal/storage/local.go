package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// FilesRoute is where the HTTP server exposes a Local directory.
const FilesRoute = "/files"

// Local writes objects below Dir. The server serves Dir at FilesRoute.
type Local struct {
	Dir     string
	BaseURL string
}

// NewLocal returns a Local uploader; publicBaseURL is the server's own URL.
func NewLocal(dir, publicBaseURL string) *Local {
	return &Local{Dir: dir, BaseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (l *Local) Upload(ctx context.Context, data []byte, objectPath, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p, err := CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	full := filepath.Join(l.Dir, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errors.Wrap(err, "create upload dir")
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", errors.Wrap(err, "write upload")
	}
	return l.BaseURL + FilesRoute + "/" + p, nil
}
