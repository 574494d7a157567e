package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// SQLiteStore implements MetadataStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ MetadataStore = (*SQLiteStore)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait briefly on contention instead of failing with "database is locked"
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// SQLite benefits from single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore creates a new SQLite metadata store, applying migrations.
// Pass ":memory:" for an in-memory database (used by tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces the metadata fields for rec.Path. On conflict
// the usage counters of the existing row are left untouched and the
// soft-delete flag is cleared, so re-creation of a previously deleted path
// revives its history.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *FileRecord) error {
	if rec == nil || rec.Path == "" {
		return fmt.Errorf("upsert: record with non-empty path required")
	}

	extra := rec.ExtraJSON
	if extra == "" {
		extra = "{}"
	}

	query := `
		INSERT INTO files (path, name, size, created_at, modified_at, accessed_at, is_deleted, extra_json)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			size = excluded.size,
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			accessed_at = excluded.accessed_at,
			is_deleted = 0,
			extra_json = excluded.extra_json
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.Path, rec.Name, rec.Size, rec.CreatedAt, rec.ModifiedAt, rec.AccessedAt, extra)
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", rec.Path, err)
	}
	return nil
}

// MarkDeleted sets the soft-delete flag; unknown paths are a no-op
func (s *SQLiteStore) MarkDeleted(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE files SET is_deleted = 1 WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to mark deleted %s: %w", path, err)
	}
	return nil
}

// Get returns the active record for path
func (s *SQLiteStore) Get(ctx context.Context, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM files WHERE path = ? AND is_deleted = 0`, path)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetModifiedTime returns the stored modified_at for an active path
func (s *SQLiteStore) GetModifiedTime(ctx context.Context, path string) (string, error) {
	var modifiedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT modified_at FROM files WHERE path = ? AND is_deleted = 0`, path).Scan(&modifiedAt)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get modified time for %s: %w", path, err)
	}
	return modifiedAt, nil
}

// IncrementAccessCount bumps the usage counter for an active path
func (s *SQLiteStore) IncrementAccessCount(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET access_count = access_count + 1 WHERE path = ? AND is_deleted = 0`, path)
	if err != nil {
		return fmt.Errorf("failed to increment access count for %s: %w", path, err)
	}
	return nil
}

// QueryByPathsAndFilter returns active records restricted to the candidate
// paths AND the filter predicate. Path values are parameterized; the filter
// fragment is appended as received (see package docs on filter trust).
func (s *SQLiteStore) QueryByPathsAndFilter(ctx context.Context, paths []string, filter string) ([]*FileRecord, error) {
	if len(paths) == 0 {
		return []*FileRecord{}, nil
	}

	where, orderBy := SplitOrderBy(filter)
	if where == "" {
		where = "1=1"
	}

	placeholders := make([]string, len(paths))
	args := make([]interface{}, len(paths))
	for i, p := range paths {
		placeholders[i] = "?"
		args[i] = p
	}

	query := selectColumns + ` FROM files
		WHERE path IN (` + strings.Join(placeholders, ",") + `)
		AND (` + where + `)
		AND is_deleted = 0`
	if orderBy != "" {
		query += " " + orderBy
	}

	return s.queryRecords(ctx, query, args...)
}

// QueryByFilter returns active records matching the filter predicate. A
// trailing ORDER BY clause is split off first so it applies to the whole
// filtered set rather than being swallowed by the active-record predicate.
func (s *SQLiteStore) QueryByFilter(ctx context.Context, filter string) ([]*FileRecord, error) {
	where, orderBy := SplitOrderBy(filter)
	if where == "" {
		where = "1=1"
	}

	query := selectColumns + ` FROM files WHERE (` + where + `) AND is_deleted = 0`
	if orderBy != "" {
		query += " " + orderBy
	}

	return s.queryRecords(ctx, query)
}

// GetRecent returns active records ordered by modified_at descending
func (s *SQLiteStore) GetRecent(ctx context.Context, limit int) ([]*FileRecord, error) {
	query := selectColumns + ` FROM files
		WHERE is_deleted = 0
		ORDER BY modified_at DESC
		LIMIT ?`
	return s.queryRecords(ctx, query, limit)
}

// GetPopular returns accessed records ordered by access_count descending,
// modified_at descending as tie-break
func (s *SQLiteStore) GetPopular(ctx context.Context, limit int) ([]*FileRecord, error) {
	query := selectColumns + ` FROM files
		WHERE is_deleted = 0 AND access_count > 0
		ORDER BY access_count DESC, modified_at DESC
		LIMIT ?`
	return s.queryRecords(ctx, query, limit)
}

// SearchNames returns paths of active records whose name contains term
func (s *SQLiteStore) SearchNames(ctx context.Context, term string) ([]string, error) {
	if term == "" {
		return []string{}, nil
	}

	pattern := "%" + escapeLike(term) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM files WHERE name LIKE ? ESCAPE '\' AND is_deleted = 0`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// CountActive returns the number of active records
func (s *SQLiteStore) CountActive(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE is_deleted = 0`).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

const selectColumns = `SELECT path, name, size, created_at, modified_at, accessed_at,
	is_deleted, access_count, total_time_spent_hrs, extra_json`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var createdAt, modifiedAt, accessedAt, extraJSON sql.NullString
	var isDeleted int

	err := row.Scan(&rec.Path, &rec.Name, &rec.Size, &createdAt, &modifiedAt, &accessedAt,
		&isDeleted, &rec.AccessCount, &rec.TotalTimeSpentHrs, &extraJSON)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = createdAt.String
	rec.ModifiedAt = modifiedAt.String
	rec.AccessedAt = accessedAt.String
	rec.ExtraJSON = extraJSON.String
	rec.IsDeleted = isDeleted != 0
	return &rec, nil
}

// queryRecords runs a SELECT over the files table. A SQL error here is
// almost always a malformed planner filter: it fails this one query, gets
// logged with its cause, and leaves the store usable for the next query.
func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Warn("metadata query failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrBadFilter, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*FileRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// escapeLike escapes LIKE wildcards in a user-supplied substring term
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
