/*
Package docstore stores uploaded supporting documents.

PURPOSE:
  Organ records can carry proof documents (medical report, identity
  proof). The store accepts an upload, keeps the bytes somewhere
  retrievable, and returns the URL recorded on the ledger entry.

ACCEPTED TYPES:
  Only jpeg, png and pdf uploads are accepted; anything else fails with
  a validation error before any bytes are written.
*/
package docstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/redcell/inventory-engine/ledger"
)

// Store accepts uploads and returns retrievable URLs.
type Store interface {
	// Save writes the upload and returns its URL. field names the form
	// field the file arrived under and prefixes the stored name.
	Save(ctx context.Context, field, filename string, r io.Reader) (string, error)
}

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".pdf":  true,
}

// =============================================================================
// DISK STORE - Local filesystem implementation
// =============================================================================

// Disk stores documents under a local directory and serves them at
// BaseURL (the router mounts the directory there).
type Disk struct {
	Dir     string
	BaseURL string
}

// NewDisk creates the upload directory if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{Dir: dir, BaseURL: "/uploads"}, nil
}

func (d *Disk) Save(_ context.Context, field, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", &ledger.ValidationError{Field: field, Message: "unsupported file type (jpeg, png and pdf only)"}
	}

	name := fmt.Sprintf("%s-%s%s", field, uuid.NewString(), ext)
	f, err := os.Create(filepath.Join(d.Dir, name))
	if err != nil {
		return "", fmt.Errorf("create document file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write document file: %w", err)
	}
	return d.BaseURL + "/" + name, nil
}
