package deployments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

// RedisRepository stores records as JSON values under <prefix>:deployment:<id>
// and keeps their ids in the <prefix>:deployments set.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository connects to the redis server at url, e.g.
// redis://localhost:6379/0
func NewRedisRepository(ctx context.Context, url, prefix string) (*RedisRepository, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is not configured (set TREB_RELAY_REDIS_URL)")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	if prefix == "" {
		prefix = "treb-relay"
	}
	return &RedisRepository{client: client, prefix: prefix}, nil
}

func (r *RedisRepository) key(id string) string {
	return r.prefix + ":deployment:" + id
}

func (r *RedisRepository) indexKey() string {
	return r.prefix + ":deployments"
}

func (r *RedisRepository) Record(ctx context.Context, record *models.DeploymentRecord) error {
	if err := validateID(record); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode deployment %s: %w", record.ID, err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(record.ID), data, 0)
		pipe.SAdd(ctx, r.indexKey(), record.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store deployment %s: %w", record.ID, err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*models.DeploymentRecord, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load deployment %s: %w", id, err)
	}
	return decodeRecord(id, data)
}

func (r *RedisRepository) List(ctx context.Context) ([]*models.DeploymentRecord, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load deployments: %w", err)
	}

	records := make([]*models.DeploymentRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// indexed but expired or deleted
			continue
		}
		rec, err := decodeRecord(ids[i], []byte(s))
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

// Close releases the redis connection pool
func (r *RedisRepository) Close() error {
	return r.client.Close()
}

var _ usecase.DeploymentTracker = (*RedisRepository)(nil)
