package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pavel-fokin/file-converter/internal/files"
)

// Repository implements files.ConversionJournal using SQLite
type Repository struct {
	db *sql.DB
}

// NewRepository opens (or creates) the journal database at dbPath
func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}

	// Initialize database schema
	if err := repo.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// initSchema creates the conversions table and its indexes
func (r *Repository) initSchema() error {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS conversions (
		id TEXT PRIMARY KEY,
		input_name TEXT NOT NULL,
		source_format TEXT NOT NULL,
		target_format TEXT NOT NULL,
		backend TEXT NOT NULL DEFAULT '',
		output_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`
	if _, err := r.db.Exec(createTableQuery); err != nil {
		return fmt.Errorf("failed to create conversions table: %w", err)
	}

	createIndexQuery := `CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at);`
	if _, err := r.db.Exec(createIndexQuery); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Record stores one conversion attempt
func (r *Repository) Record(ctx context.Context, c *files.Conversion) error {
	query := `
	INSERT INTO conversions (id, input_name, source_format, target_format, backend, output_name, status, error_kind, error, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.InputName,
		c.Source,
		c.Target,
		c.Backend,
		c.OutputName,
		c.Status,
		c.ErrorKind,
		c.Error,
		c.DurationMS,
		c.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record conversion: %w", err)
	}

	return nil
}

// Recent returns up to limit conversions, newest first
func (r *Repository) Recent(ctx context.Context, limit int) ([]*files.Conversion, error) {
	query := `
	SELECT id, input_name, source_format, target_format, backend, output_name, status, error_kind, error, duration_ms, created_at
	FROM conversions
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	conversions := []*files.Conversion{}
	for rows.Next() {
		var (
			c         files.Conversion
			createdAt int64
		)
		err := rows.Scan(
			&c.ID,
			&c.InputName,
			&c.Source,
			&c.Target,
			&c.Backend,
			&c.OutputName,
			&c.Status,
			&c.ErrorKind,
			&c.Error,
			&c.DurationMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		conversions = append(conversions, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversions: %w", err)
	}

	return conversions, nil
}

// PruneBefore deletes conversions created before t and returns how many went
func (r *Repository) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversions WHERE created_at < ?`, t.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned conversions: %w", err)
	}
	return n, nil
}
