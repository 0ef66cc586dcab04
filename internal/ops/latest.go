package ops

import (
	"context"
	"database/sql"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/db"
)

// LatestInput contains parameters for the Latest operation.
type LatestInput struct {
	Scope
	IncludeData bool // default: false (summary only)
}

// LatestOutput contains the result of the Latest operation.
type LatestOutput struct {
	Item *LatestItem `json:"item"` // nil if nothing matches
}

// LatestItem is the newest matching entry with its payload on request.
type LatestItem struct {
	capsule.EntrySummary
	Data *capsule.Data `json:"data,omitempty"`
}

// Latest retrieves the most recent archive entry in scope.
func Latest(ctx context.Context, database *sql.DB, input LatestInput) (*LatestOutput, error) {
	f, err := input.Scope.filter()
	if err != nil {
		return nil, err
	}

	e, err := db.GetLatest(database, f)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return &LatestOutput{Item: nil}, nil
	}

	item := &LatestItem{EntrySummary: e.ToSummary()}
	if input.IncludeData {
		item.Data = &e.Data
	}
	return &LatestOutput{Item: item}, nil
}
