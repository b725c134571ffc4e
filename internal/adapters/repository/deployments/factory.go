package deployments

import (
	"context"
	"fmt"
	"time"

	"github.com/trebuchet-org/treb-relay/internal/domain/config"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

const connectTimeout = 10 * time.Second

// NewRepositoryFromConfig opens the configured tracker backend. The
// returned cleanup releases any connection it holds.
func NewRepositoryFromConfig(cfg *config.RuntimeConfig) (usecase.DeploymentTracker, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	nop := func() {}
	switch cfg.Tracker.Backend {
	case config.TrackerMemory:
		return NewMemoryRepository(), nop, nil
	case config.TrackerFile, "":
		repo, err := NewFileRepository(cfg.Tracker.Dir)
		if err != nil {
			return nil, nil, err
		}
		return repo, nop, nil
	case config.TrackerRedis:
		repo, err := NewRedisRepository(ctx, cfg.Tracker.RedisURL, cfg.Tracker.Prefix)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.TrackerMySQL:
		repo, err := NewMySQLRepository(ctx, cfg.Tracker.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown tracker backend %q (expected memory, file, redis or mysql)", cfg.Tracker.Backend)
	}
}
