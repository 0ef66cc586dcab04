package ops

import (
	"context"
	"database/sql"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/db"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Scope
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []capsule.EntrySummary `json:"items"`
	Pagination Pagination             `json:"pagination"`
	Sort       string                 `json:"sort"`
}

// List retrieves archive summaries with pagination, newest first.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	f, err := input.Scope.filter()
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	items, total, err := db.List(database, f, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if items == nil {
		items = []capsule.EntrySummary{}
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}
