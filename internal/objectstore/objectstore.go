// Package objectstore persists pipeline outputs under deterministic keys and
// reads the files the image worker leaves in the shared storage namespace.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"wardrobe/internal/store"
)

var ErrInvalidKey = errors.New("objectstore: invalid key")

// Store writes into one afero filesystem and reads worker files from another.
type Store struct {
	fs      afero.Fs
	shared  afero.Fs
	baseURL string
}

var _ store.BlobStore = (*Store)(nil)

// New builds a store over explicit filesystems. baseURL prefixes every ref.
func New(fs, shared afero.Fs, baseURL string) *Store {
	return &Store{fs: fs, shared: shared, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewOS roots outputs at root on local disk. Worker paths resolve under
// sharedRoot, or as-is when sharedRoot is empty. The shared side is read-only.
func NewOS(root, sharedRoot, baseURL string) (*Store, error) {
	if root == "" {
		return nil, errors.New("storage root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	osFs := afero.NewOsFs()
	shared := afero.Fs(osFs)
	if sharedRoot != "" {
		shared = afero.NewBasePathFs(osFs, sharedRoot)
	}
	return New(afero.NewBasePathFs(osFs, root), afero.NewReadOnlyFs(shared), baseURL), nil
}

// Key builds the "{stage}/{jobId}{ext}" name for a stage output.
func Key(stage string, jobID int64, ext string) string {
	return fmt.Sprintf("%s/%d%s", stage, jobID, ext)
}

// ItemKey builds the name for the index-th item of a stage list.
func ItemKey(stage string, jobID int64, index int, ext string) string {
	return fmt.Sprintf("%s-items/%d/%d%s", stage, jobID, index, ext)
}

// ExtOf returns the lowercase extension of a worker path, defaulting to .png.
func ExtOf(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if ext == "" {
		return ".png"
	}
	return ext
}

// Store writes data under key and returns its ref. An existing object with
// the same key is replaced, so a redelivered result rewrites the same file.
func (s *Store) Store(ctx context.Context, data []byte, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(path.Dir(clean), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", clean, err)
	}
	tmp := clean + ".tmp-" + uuid.NewString()
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", clean, err)
	}
	if err := s.fs.Rename(tmp, clean); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("rename into %s: %w", clean, err)
	}
	log.WithFields(log.Fields{"key": clean, "bytes": len(data)}).Debug("object stored")
	return s.ref(clean), nil
}

// Delete removes the object behind ref. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := strings.TrimPrefix(ref, s.baseURL+"/")
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", clean, err)
	}
	return nil
}

// Read loads a worker-produced file from the shared namespace.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p) == "" {
		return nil, fmt.Errorf("read shared file: empty path")
	}
	b, err := afero.ReadFile(s.shared, p)
	if err != nil {
		return nil, fmt.Errorf("read shared file %s: %w", p, err)
	}
	return b, nil
}

func (s *Store) ref(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

func cleanKey(key string) (string, error) {
	clean := path.Clean(strings.TrimLeft(key, "/"))
	if clean == "." || clean == "" || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}
