package rules

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// PostgresStore is a Store backed by a merchant_rules table. Upserts use
// INSERT ... ON CONFLICT, so serialization happens in the database rather
// than in process.
type PostgresStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenPostgres connects to Postgres and verifies the connection.
func OpenPostgres(dsn string, log zerolog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, log: log}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the merchant_rules table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS merchant_rules (
			workspace      TEXT NOT NULL,
			merchant_key   TEXT NOT NULL,
			preferred_name TEXT NOT NULL DEFAULT '',
			category_id    INTEGER NOT NULL DEFAULT 0,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (workspace, merchant_key)
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating merchant_rules table: %w", err)
	}
	return nil
}

// FetchAll implements Store.
func (s *PostgresStore) FetchAll(ctx context.Context, workspace string) (map[string]model.MerchantRule, error) {
	query := `
		SELECT workspace, merchant_key, preferred_name, category_id, updated_at
		FROM merchant_rules
		WHERE workspace = $1 AND merchant_key <> ''
	`

	rows, err := s.db.QueryContext(ctx, query, workspace)
	if err != nil {
		return nil, fmt.Errorf("listing merchant rules: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.MerchantRule)
	for rows.Next() {
		var rule model.MerchantRule
		if err := rows.Scan(&rule.Workspace, &rule.Key, &rule.PreferredName, &rule.CategoryID, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning merchant rule: %w", err)
		}
		out[rule.Key] = rule
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating merchant rules: %w", err)
	}

	return out, nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, workspace, key, preferredName string, categoryID int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}

	query := `
		INSERT INTO merchant_rules (workspace, merchant_key, preferred_name, category_id, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (workspace, merchant_key) DO UPDATE SET
		    preferred_name = EXCLUDED.preferred_name,
		    category_id = EXCLUDED.category_id,
		    updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, workspace, key, preferredName, categoryID); err != nil {
		return fmt.Errorf("upserting merchant rule %q: %w", key, err)
	}

	s.log.Debug().Str("workspace", workspace).Str("key", key).Msg("merchant rule upserted")
	return nil
}
