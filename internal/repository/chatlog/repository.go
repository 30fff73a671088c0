// Package chatlog persists completed chat turns to a Postgres table.
package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
)

// DefaultTable is the table written by Insert.
const DefaultTable = "chat_logs"

// Repository writes chat log rows.
type Repository struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// Open opens a Postgres pool and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// New creates a repository over an open pool. table must be a validated identifier.
func New(db *sql.DB, table string, logger *zap.Logger) *Repository {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, table: table, logger: logger}
}

// Insert writes one entry. Empty session and study identifiers are stored as NULL.
func (r *Repository) Insert(ctx context.Context, e domain.ChatLogEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			session_id, study_number, context_id, query, response, sources, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.table)

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	sources := e.Sources
	if sources == nil {
		sources = []string{}
	}

	_, err := r.db.ExecContext(ctx, query,
		nullString(e.SessionID),
		nullString(e.StudyNumber),
		e.ContextID,
		e.Query,
		e.Response,
		pq.Array(sources),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrLogging, err)
	}

	r.logger.Debug("chat log inserted",
		zap.String("session_id", e.SessionID),
		zap.String("context_id", e.ContextID),
	)
	return nil
}

// EnsureSchema creates the table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id           BIGSERIAL PRIMARY KEY,
			session_id   TEXT,
			study_number TEXT,
			context_id   TEXT NOT NULL,
			query        TEXT NOT NULL,
			response     TEXT NOT NULL,
			sources      TEXT[] NOT NULL DEFAULT '{}',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, r.table)

	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
