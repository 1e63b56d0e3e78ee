// Package assets stores uploaded and generated PDFs and moves value-added files from the
// private upload area into the publicly served one.
package assets

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// Storage areas, relative to the uploads root or bucket.
const (
	AreaPrivate    = "pdf_no_enviado"
	AreaValueAdded = "ValorAgregadoPDF"
	AreaGenerated  = "pdf"
)

var (
	ErrAssetMissing   = errors.New("assets: source file missing")
	ErrObjectNotFound = errors.New("assets: object not found")
	ErrInvalidKey     = errors.New("assets: invalid key")
)

// Storage is the byte store behind the upload areas. Keys are slash separated,
// e.g. "pdf_no_enviado/valor_agregado_1_a.pdf".
type Storage interface {
	Exists(ctx context.Context, key string) (bool, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Key joins an area and a file name, rejecting anything that is not a plain name.
func Key(area, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidKey
	}
	return area + "/" + name, nil
}

// PublicURL is the absolute URL a stored file is reachable at.
func PublicURL(baseURL, area, name string) string {
	return strings.TrimRight(baseURL, "/") + "/uploads/" + area + "/" + name
}

// IsPublicArea reports whether files in area may be served to anyone.
func IsPublicArea(area string) bool {
	return area == AreaValueAdded || area == AreaGenerated
}

// SafeName reduces an uploaded file name to a base name of [A-Za-z0-9._-].
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}
