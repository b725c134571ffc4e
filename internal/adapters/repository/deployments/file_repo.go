package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

const recordExt = ".json"

// FileRepository stores each deployment record as a JSON file
type FileRepository struct {
	dir string
	mu  sync.RWMutex
}

// NewFileRepository creates the records directory if needed
func NewFileRepository(dir string) (*FileRepository, error) {
	if dir == "" {
		return nil, fmt.Errorf("deployments directory is not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create deployments directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

func (r *FileRepository) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid deployment id %q", id)
	}
	return filepath.Join(r.dir, id+recordExt), nil
}

func (r *FileRepository) Record(ctx context.Context, record *models.DeploymentRecord) error {
	if err := validateID(record); err != nil {
		return err
	}
	path, err := r.path(record.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode deployment %s: %w", record.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Write to temp file first
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write deployment %s: %w", record.ID, err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to save deployment %s: %w", record.ID, err)
	}
	return nil
}

func (r *FileRepository) Get(ctx context.Context, id string) (*models.DeploymentRecord, error) {
	path, err := r.path(id)
	if err != nil {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return readRecord(path, id)
}

// List returns every stored record, oldest first
func (r *FileRepository) List(ctx context.Context) ([]*models.DeploymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployments directory: %w", err)
	}

	var records []*models.DeploymentRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), recordExt)
		rec, err := readRecord(filepath.Join(r.dir, e.Name()), id)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func readRecord(path, id string) (*models.DeploymentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read deployment %s: %w", id, err)
	}
	return decodeRecord(id, data)
}

var _ usecase.DeploymentTracker = (*FileRepository)(nil)
