package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"
)

type Relocator struct {
	storage Storage
	now     func() time.Time
}

func NewRelocator(storage Storage) *Relocator {
	return &Relocator{storage: storage, now: time.Now}
}

// Relocate copies the private file behind privateURL into the value-added public area
// and returns its public URL. The private copy is kept. The destination only depends
// on the file name, so relocating the same file twice yields the same URL.
func (r *Relocator) Relocate(ctx context.Context, baseURL, privateURL string) (string, error) {
	u, err := url.Parse(privateURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssetMissing, err)
	}
	name := path.Base(u.Path)
	src, err := Key(AreaPrivate, name)
	if err != nil {
		return "", fmt.Errorf("%w: no file name in %q", ErrAssetMissing, privateURL)
	}
	dst, _ := Key(AreaValueAdded, name)

	exists, err := r.storage.Exists(ctx, src)
	if err != nil {
		return "", fmt.Errorf("check %s: %w", src, err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrAssetMissing, src)
	}
	if err := r.storage.Copy(ctx, src, dst); err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return "", fmt.Errorf("%w: %s", ErrAssetMissing, src)
		}
		return "", fmt.Errorf("relocate %s: %w", name, err)
	}
	return PublicURL(baseURL, AreaValueAdded, name), nil
}

// StoredFile describes a file written into one of the areas.
type StoredFile struct {
	Name string
	URL  string
}

// StoreValueAdded writes an advisor upload into the private area as
// valor_agregado_<unixms>_<name>.
func (r *Relocator) StoreValueAdded(ctx context.Context, baseURL, original string, body io.Reader, size int64) (StoredFile, error) {
	name := fmt.Sprintf("valor_agregado_%d_%s", r.now().UnixMilli(), SafeName(original))
	key, err := Key(AreaPrivate, name)
	if err != nil {
		return StoredFile{}, err
	}
	if err := r.storage.Put(ctx, key, body, size, "application/pdf"); err != nil {
		return StoredFile{}, fmt.Errorf("store value-added upload: %w", err)
	}
	return StoredFile{Name: name, URL: PublicURL(baseURL, AreaPrivate, name)}, nil
}

// StoreGenerated writes a rendered presentation PDF into the public pdf area.
func (r *Relocator) StoreGenerated(ctx context.Context, baseURL string, presentationID int64, pdf []byte) (StoredFile, error) {
	name := fmt.Sprintf("presentacion_%d_%d.pdf", presentationID, r.now().UnixMilli())
	key, err := Key(AreaGenerated, name)
	if err != nil {
		return StoredFile{}, err
	}
	if err := r.storage.Put(ctx, key, bytes.NewReader(pdf), int64(len(pdf)), "application/pdf"); err != nil {
		return StoredFile{}, fmt.Errorf("store generated pdf: %w", err)
	}
	return StoredFile{Name: name, URL: PublicURL(baseURL, AreaGenerated, name)}, nil
}

// OpenPublic opens a file from a public area. Private-area files are reported as missing.
func (r *Relocator) OpenPublic(ctx context.Context, area, name string) (io.ReadCloser, error) {
	if !IsPublicArea(area) {
		return nil, ErrObjectNotFound
	}
	key, err := Key(area, name)
	if err != nil {
		return nil, ErrObjectNotFound
	}
	return r.storage.Open(ctx, key)
}
