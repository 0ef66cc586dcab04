package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/db"
	"github.com/Sruimeng/vestige/internal/errors"
)

// RecordInput contains parameters for the Record operation.
type RecordInput struct {
	Data     capsule.Data
	Source   capsule.Source
	Fallback bool
}

// RecordOutput contains the result of the Record operation.
type RecordOutput struct {
	ID        string `json:"id"`
	Year      int    `json:"year"`
	CreatedAt int64  `json:"created_at"`
}

// Record archives a committed capsule.
func Record(ctx context.Context, database *sql.DB, input RecordInput) (*RecordOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewAborted(err)
	}
	if err := capsule.ValidateYear(input.Data.Year); err != nil {
		return nil, err
	}
	if err := input.Data.Validate(); err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	source, err := ParseSource(string(input.Source))
	if err != nil {
		return nil, err
	}

	e := capsule.NewEntry(input.Data, source, input.Fallback)
	e.ID = ulid.Make().String()
	e.CreatedAt = time.Now().Unix()

	if err := db.Insert(database, e); err != nil {
		return nil, err
	}

	return &RecordOutput{ID: e.ID, Year: e.Year, CreatedAt: e.CreatedAt}, nil
}

// Archive records every capsule the orchestrator commits.
type Archive struct {
	db *sql.DB
}

// NewArchive wraps an initialized archive database.
func NewArchive(database *sql.DB) *Archive {
	return &Archive{db: database}
}

// RecordCapsule implements timecapsule.Recorder.
func (a *Archive) RecordCapsule(ctx context.Context, data capsule.Data, source capsule.Source, fallback bool) error {
	_, err := Record(ctx, a.db, RecordInput{Data: data, Source: source, Fallback: fallback})
	return err
}
