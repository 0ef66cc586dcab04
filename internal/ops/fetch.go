package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Sruimeng/vestige/internal/capsule"
	"github.com/Sruimeng/vestige/internal/db"
	"github.com/Sruimeng/vestige/internal/errors"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID string
}

// FetchOutput is the archived entry, payload included.
type FetchOutput struct {
	capsule.Entry
}

// Fetch retrieves one archive entry by id.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	e, err := db.GetByID(database, id)
	if err != nil {
		return nil, err
	}
	return &FetchOutput{Entry: *e}, nil
}
