package deployments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/trebuchet-org/treb-relay/internal/domain"
	"github.com/trebuchet-org/treb-relay/internal/domain/models"
	"github.com/trebuchet-org/treb-relay/internal/usecase"
)

const schema = `CREATE TABLE IF NOT EXISTS relay_deployments (
	id VARCHAR(64) PRIMARY KEY,
	deployment_group VARCHAR(255) NOT NULL,
	network VARCHAR(128) NOT NULL,
	status VARCHAR(32) NOT NULL,
	record JSON NOT NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	INDEX idx_relay_deployments_status (status),
	INDEX idx_relay_deployments_created (created_at)
)`

// MySQLRepository stores records as JSON documents in relay_deployments
type MySQLRepository struct {
	db *sql.DB
}

// NewMySQLRepository opens dsn, e.g. user:pass@tcp(localhost:3306)/relay,
// and creates the table if it does not exist.
func NewMySQLRepository(ctx context.Context, dsn string) (*MySQLRepository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("MySQL DSN is not configured (set TREB_RELAY_MYSQL_DSN)")
	}

	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	parsed.ParseTime = true

	db, err := sql.Open("mysql", parsed.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create relay_deployments table: %w", err)
	}
	return &MySQLRepository{db: db}, nil
}

func (r *MySQLRepository) Record(ctx context.Context, record *models.DeploymentRecord) error {
	if err := validateID(record); err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode deployment %s: %w", record.ID, err)
	}

	const stmt = `INSERT INTO relay_deployments
		(id, deployment_group, network, status, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE status = VALUES(status), record = VALUES(record), updated_at = VALUES(updated_at)`

	_, err = r.db.ExecContext(ctx, stmt,
		record.ID,
		record.Group,
		record.Network,
		string(record.Status),
		data,
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store deployment %s: %w", record.ID, err)
	}
	return nil
}

func (r *MySQLRepository) Get(ctx context.Context, id string) (*models.DeploymentRecord, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT record FROM relay_deployments WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("deployment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load deployment %s: %w", id, err)
	}
	return decodeRecord(id, data)
}

func (r *MySQLRepository) List(ctx context.Context) ([]*models.DeploymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, record FROM relay_deployments ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var records []*models.DeploymentRecord
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		rec, err := decodeRecord(id, data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	return records, nil
}

// Close closes the database handle
func (r *MySQLRepository) Close() error {
	return r.db.Close()
}

func decodeRecord(id string, data []byte) (*models.DeploymentRecord, error) {
	var rec models.DeploymentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode deployment %s: %w", id, err)
	}
	return &rec, nil
}

var _ usecase.DeploymentTracker = (*MySQLRepository)(nil)
