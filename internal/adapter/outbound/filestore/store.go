package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidgen/studio/internal/model"
	"github.com/vidgen/studio/internal/port/outbound"
)

const videoExt = ".mp4"

// ErrOutsideStore is returned for locations that do not belong to the store.
var ErrOutsideStore = errors.New("location outside video store")

// Store implements VideoArtifactStorePort on the local file system.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve store dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: abs, logger: logger}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save streams r into <mode>-<uuid>.mp4. The data lands in a temp file first
// and is renamed only after a complete write.
func (s *Store) Save(ctx context.Context, mode model.GenerationMode, r io.Reader) (*model.VideoArtifact, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
				s.logger.Warn("Failed to remove partial video", zap.String("path", tmpName), zap.Error(rmErr))
			}
		}
	}()

	n, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if err != nil {
		return nil, fmt.Errorf("write video: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync video: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close video: %w", err)
	}

	id := uuid.New()
	location := filepath.Join(s.dir, fileName(mode, id))
	if err := os.Rename(tmpName, location); err != nil {
		return nil, fmt.Errorf("rename video: %w", err)
	}
	committed = true

	return &model.VideoArtifact{
		ID:        id,
		Location:  location,
		Size:      n,
		CreatedAt: time.Now(),
	}, nil
}

// Open opens a saved video for reading.
func (s *Store) Open(location string) (io.ReadSeekCloser, error) {
	path, err := s.resolve(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	return f, nil
}

func (s *Store) resolve(location string) (string, error) {
	path := filepath.Clean(location)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return "", fmt.Errorf("%w: %s", ErrOutsideStore, location)
	}
	return path, nil
}

func fileName(mode model.GenerationMode, id uuid.UUID) string {
	return string(mode) + "-" + id.String() + videoExt
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Compile-time interface check
var _ outbound.VideoArtifactStorePort = (*Store)(nil)
