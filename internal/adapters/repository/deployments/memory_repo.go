package deployments

import (
	"context"
	"fmt"
	"sync"

	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// MemoryRepository keeps deployment records in process memory
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*models.DeploymentRecord
	order   []string
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*models.DeploymentRecord)}
}

func (m *MemoryRepository) Record(ctx context.Context, record *models.DeploymentRecord) error {
	if err := validateID(record); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[record.ID]; !ok {
		m.order = append(m.order, record.ID)
	}
	m.records[record.ID] = record.Clone()
	return nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (*models.DeploymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
	}
	return rec.Clone(), nil
}

// List returns records in insertion order
func (m *MemoryRepository) List(ctx context.Context) ([]*models.DeploymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.DeploymentRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id].Clone())
	}
	return out, nil
}

func validateID(record *models.DeploymentRecord) error {
	if record == nil {
		return fmt.Errorf("deployment record is nil")
	}
	if record.ID == "" {
		return fmt.Errorf("deployment record has no id")
	}
	return nil
}

var _ usecase.DeploymentTracker = (*MemoryRepository)(nil)
