package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code raised when an insert breaks a
// unique constraint.
const uniqueViolation = "23505"

// PostgresConfig holds connection settings for the relational backend.
type PostgresConfig struct {
	URL          string
	MaxConns     int
	MinConns     int
	Timeout      time.Duration
	RetryCount   int
	RetryDelay   time.Duration
	MaxLifetime  time.Duration
	MaxIdleTime  time.Duration
}

// PostgresStore is the relational credential store backed by a mqtt_users table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a PostgreSQL connection pool and verifies connectivity.
// Connection establishment retries with a fixed delay up to RetryCount times; this
// is a startup-only concern, per-request queries never retry.
func NewPostgresStore(config PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConns)
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	attempts := config.RetryCount
	if attempts < 1 {
		attempts = 1
	}

	var pingErr error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		pingErr = db.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		if i < attempts-1 {
			time.Sleep(config.RetryDelay)
		}
	}
	if pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres after %d attempts: %w", attempts, pingErr)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection, used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the mqtt_users table and its unique username constraint if
// they do not exist. Idempotent, safe to run at every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS mqtt_users (
			id SERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			is_superuser BOOLEAN NOT NULL DEFAULT false
		)
	`

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure mqtt_users schema: %w", err)
	}

	return nil
}

// GetByUsername fetches a single credential by its unique username.
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*Credential, error) {
	query := `
		SELECT username, password, is_superuser
		FROM mqtt_users
		WHERE username = $1
	`

	var cred Credential
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&cred.Username,
		&cred.Secret,
		&cred.IsSuperuser,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get mqtt user: %w", err)
	}

	return &cred, nil
}

// Create inserts a new credential. The unique constraint on username is the
// authoritative duplicate check; concurrent creates of the same username resolve
// here, not in the service's advisory pre-check.
func (s *PostgresStore) Create(ctx context.Context, username, secret string, isSuperuser bool) error {
	query := `
		INSERT INTO mqtt_users (username, password, is_superuser)
		VALUES ($1, $2, $3)
	`

	_, err := s.db.ExecContext(ctx, query, username, secret, isSuperuser)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("failed to create mqtt user: %w", err)
	}

	return nil
}

// Delete removes the credential row for username.
func (s *PostgresStore) Delete(ctx context.Context, username string) error {
	query := `DELETE FROM mqtt_users WHERE username = $1`

	result, err := s.db.ExecContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("failed to delete mqtt user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// List returns all live credentials ordered by username.
func (s *PostgresStore) List(ctx context.Context) ([]*Credential, error) {
	query := `
		SELECT username, password, is_superuser
		FROM mqtt_users
		ORDER BY username
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mqtt users: %w", err)
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		var c Credential
		if err := rows.Scan(&c.Username, &c.Secret, &c.IsSuperuser); err != nil {
			return nil, fmt.Errorf("failed to scan mqtt user: %w", err)
		}
		creds = append(creds, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mqtt users: %w", err)
	}

	return creds, nil
}

// HealthCheck pings the database.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	return nil
}

// Stats exposes connection pool statistics for metrics collection.
func (s *PostgresStore) Stats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
