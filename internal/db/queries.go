package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/errors"
)

// ErrUniqueConstraint is returned when an insert reuses an archive id.
var ErrUniqueConstraint = &errors.VestigeError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const entryColumns = `id, year, kind, mode, source, fallback, model_url, payload_json, created_at`

// Filter narrows archive queries. Zero values match everything.
type Filter struct {
	Year     *int
	Source   capsule.Source
	Fallback *bool
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Year != nil {
		clauses = append(clauses, "year = ?")
		args = append(args, *f.Year)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.Fallback != nil {
		clauses = append(clauses, "fallback = ?")
		args = append(args, boolToInt(*f.Fallback))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Insert stores a new archive entry.
func Insert(db *sql.DB, e *capsule.Entry) error {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `INSERT INTO archive (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = db.Exec(query,
		e.ID, e.Year, string(e.Kind), toNullString(string(e.Mode)), string(e.Source),
		boolToInt(e.Fallback), toNullString(e.ModelURL), string(payload), e.CreatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID retrieves an archive entry by its ULID.
func GetByID(db *sql.DB, id string) (*capsule.Entry, error) {
	row := db.QueryRow(`SELECT `+entryColumns+` FROM archive WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// GetLatest returns the newest entry matching f, or nil if none exists.
func GetLatest(db *sql.DB, f Filter) (*capsule.Entry, error) {
	where, args := f.where()
	query := `SELECT ` + entryColumns + ` FROM archive` + where + ` ORDER BY created_at DESC, id DESC LIMIT 1`

	e, err := scanEntry(db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return e, nil
}

// List returns summaries matching f, newest first, and the total match count.
func List(db *sql.DB, f Filter, limit, offset int) ([]capsule.EntrySummary, int, error) {
	where, args := f.where()

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM archive`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + entryColumns + ` FROM archive` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []capsule.EntrySummary
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, e.ToSummary())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

// Purge permanently deletes entries matching f. If olderThanDays is set,
// only entries created before (now - N days) are removed.
func Purge(db *sql.DB, f Filter, olderThanDays *int) (int, error) {
	where, args := f.where()
	if olderThanDays != nil {
		cutoff := time.Now().Add(-time.Duration(*olderThanDays) * 24 * time.Hour).Unix()
		if where == "" {
			where = " WHERE created_at < ?"
		} else {
			where += " AND created_at < ?"
		}
		args = append(args, cutoff)
	}

	result, err := db.Exec(`DELETE FROM archive`+where, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a single row into an Entry.
func scanEntry(row scanner) (*capsule.Entry, error) {
	var (
		e        capsule.Entry
		kind     string
		mode     sql.NullString
		source   string
		fallback int
		modelURL sql.NullString
		payload  string
	)

	err := row.Scan(&e.ID, &e.Year, &kind, &mode, &source, &fallback, &modelURL, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}

	e.Kind = capsule.Kind(kind)
	e.Mode = capsule.Mode(mode.String)
	e.Source = capsule.Source(source)
	e.Fallback = fallback != 0
	e.ModelURL = modelURL.String

	if err := json.Unmarshal([]byte(payload), &e.Data); err != nil {
		return nil, err
	}
	return &e, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Stream returns rows matching f, oldest first, for export.
// Callers scan with ScanEntryRows and must close the rows.
func Stream(ctx context.Context, db *sql.DB, f Filter) (*sql.Rows, error) {
	where, args := f.where()
	rows, err := db.QueryContext(ctx, `SELECT `+entryColumns+` FROM archive`+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanEntryRows scans the current row of a Stream result.
func ScanEntryRows(rows *sql.Rows) (*capsule.Entry, error) {
	return scanEntry(rows)
}
