package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/db"
	"github.com/Sruimeng/vestige/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Scope
	Path string // optional, default: <baseDir>/exports/archive-<timestamp>.jsonl
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	VestigeExport bool   `json:"_vestige_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// Export writes archive entries to a JSONL file, oldest first. The file is
// written to a temp name and renamed into place, so an existing export is
// preserved on failure.
func Export(ctx context.Context, database *sql.DB, baseDir string, input ExportInput) (*ExportOutput, error) {
	f, err := input.Scope.filter()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	exportedAt := now.Unix()

	exportPath := input.Path
	if exportPath == "" {
		exportPath = filepath.Join(baseDir, "exports", "archive-"+now.Format("2006-01-02T150405")+".jsonl")
	}
	if err := validateExportPath(exportPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	if err := enc.Encode(ExportHeader{VestigeExport: true, SchemaVersion: "1.0", ExportedAt: exportedAt}); err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.Stream(ctx, database, f)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewAborted(err)
		}

		e, err := db.ScanEntryRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := enc.Encode(e); err != nil {
			return nil, errors.NewInternal(err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Close before the rename (required on Windows)
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("export path is a symlink")
	}

	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{Path: exportPath, Count: count, ExportedAt: exportedAt}, nil
}

// validateExportPath rejects traversal and anything but a .jsonl file.
func validateExportPath(path string) error {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return errors.NewInvalidRequest("path must not contain directory traversal (..)")
		}
	}
	if filepath.Ext(filepath.Clean(path)) != ".jsonl" {
		return errors.NewInvalidRequest("path must have .jsonl extension")
	}
	return nil
}

// ReadExport parses an export file back into entries. The header line is
// required.
func ReadExport(path string) ([]capsule.Entry, error) {
	file, err := openFileNoFollowRead(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	var header ExportHeader
	if err := dec.Decode(&header); err != nil || !header.VestigeExport {
		return nil, errors.NewInvalidRequest("not a vestige export file")
	}

	var entries []capsule.Entry
	for dec.More() {
		var e capsule.Entry
		if err := dec.Decode(&e); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid export record %d: %v", len(entries)+1, err))
		}
		entries = append(entries, e)
	}
	return entries, nil
}
