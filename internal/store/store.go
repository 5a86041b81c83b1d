package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicate is returned by Insert when a snapshot with the same UUID is
// already stored.
var ErrDuplicate = errors.New("snapshot already stored")

// timeFormat has a fixed-width fraction so stored timestamps sort
// lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SnapshotRecord represents a stored snapshot row. Payload is the CBOR
// encoding of the full snapshot; the other columns are copies used for
// filtering and listing.
type SnapshotRecord struct {
	ID             int64
	UUID           string
	Hostname       string
	Vendor         string
	Brand          string
	Capabilities   uint64
	BackendVersion string
	Complete       bool
	CollectedAt    time.Time
	StoredAt       time.Time
	Payload        []byte
}

// ListFilter holds optional query parameters for listing snapshots.
type ListFilter struct {
	Hostname        string
	Vendor          string
	CollectedAfter  *time.Time
	CollectedBefore *time.Time
	// RequireCapabilities keeps only snapshots with all of these bits set.
	RequireCapabilities uint64
	PageSize            int
	Page                int
}

// Store provides CRUD operations for snapshot records.
type Store struct {
	db *sql.DB
}

// New opens the SQLite database at path and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `id, uuid, hostname, vendor, brand, capabilities, backend_version, complete, collected_at, stored_at`

// Insert stores a snapshot record and returns the new ID and stored_at time.
func (s *Store) Insert(ctx context.Context, rec *SnapshotRecord) (int64, time.Time, error) {
	storedAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (uuid, hostname, vendor, brand, capabilities, backend_version, complete, collected_at, stored_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UUID,
		rec.Hostname,
		rec.Vendor,
		rec.Brand,
		int64(rec.Capabilities),
		rec.BackendVersion,
		rec.Complete,
		rec.CollectedAt.UTC().Format(timeFormat),
		storedAt.Format(timeFormat),
		rec.Payload,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, time.Time{}, fmt.Errorf("insert snapshot %s: %w", rec.UUID, ErrDuplicate)
		}
		return 0, time.Time{}, fmt.Errorf("insert snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("get last insert id: %w", err)
	}

	return id, storedAt, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

// Get retrieves a snapshot record, including its payload, by ID.
func (s *Store) Get(ctx context.Context, id int64) (*SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+`, payload FROM snapshots WHERE id = ?`, id)
	return scanRecord(row, true)
}

// GetByUUID retrieves a snapshot record, including its payload, by the
// snapshot's own identifier.
func (s *Store) GetByUUID(ctx context.Context, uuid string) (*SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+`, payload FROM snapshots WHERE uuid = ?`, uuid)
	return scanRecord(row, true)
}

// GetLatestByHostname retrieves the most recent snapshot for a hostname.
func (s *Store) GetLatestByHostname(ctx context.Context, hostname string) (*SnapshotRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+`, payload FROM snapshots WHERE hostname = ? ORDER BY collected_at DESC LIMIT 1`, hostname)
	return scanRecord(row, true)
}

// Delete removes a snapshot record by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// List returns snapshot records without payloads matching the filter,
// newest first, and the total number of matches.
func (s *Store) List(ctx context.Context, f ListFilter) ([]SnapshotRecord, int, error) {
	where, args := buildWhere(f)

	// Count total matching rows.
	var total int
	countQuery := "SELECT COUNT(*) FROM snapshots" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count snapshots: %w", err)
	}

	// Fetch page.
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := `SELECT ` + selectColumns + ` FROM snapshots` + where + ` ORDER BY collected_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanRecord(rows, false)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, *rec)
	}

	return records, total, rows.Err()
}

// Purge deletes snapshot records collected longer ago than olderThan.
func (s *Store) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeFormat)
	result, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE collected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge snapshots: %w", err)
	}
	return result.RowsAffected()
}

func buildWhere(f ListFilter) (string, []any) {
	var conditions []string
	var args []any

	if f.Hostname != "" {
		conditions = append(conditions, "hostname = ?")
		args = append(args, f.Hostname)
	}
	if f.Vendor != "" {
		conditions = append(conditions, "vendor = ?")
		args = append(args, f.Vendor)
	}
	if f.CollectedAfter != nil {
		conditions = append(conditions, "collected_at >= ?")
		args = append(args, f.CollectedAfter.UTC().Format(timeFormat))
	}
	if f.CollectedBefore != nil {
		conditions = append(conditions, "collected_at <= ?")
		args = append(args, f.CollectedBefore.UTC().Format(timeFormat))
	}
	if f.RequireCapabilities != 0 {
		conditions = append(conditions, "(capabilities & ?) = ?")
		args = append(args, int64(f.RequireCapabilities), int64(f.RequireCapabilities))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, withPayload bool) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var capabilities int64
	var collectedAt, storedAt string
	dest := []any{
		&rec.ID, &rec.UUID, &rec.Hostname, &rec.Vendor, &rec.Brand,
		&capabilities, &rec.BackendVersion, &rec.Complete, &collectedAt, &storedAt,
	}
	if withPayload {
		dest = append(dest, &rec.Payload)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec.Capabilities = uint64(capabilities)
	rec.CollectedAt, _ = time.Parse(timeFormat, collectedAt)
	rec.StoredAt, _ = time.Parse(timeFormat, storedAt)

	return &rec, nil
}
