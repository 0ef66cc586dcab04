package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Sruimeng/vestige/internal/db"
	"github.com/Sruimeng/vestige/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	Scope
	OlderThanDays *int // optional, only purge entries created before (now - N days)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes archive entries.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	if input.OlderThanDays != nil && *input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must not be negative")
	}
	f, err := input.Scope.filter()
	if err != nil {
		return nil, err
	}

	count, err := db.Purge(database, f, input.OlderThanDays)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.Year, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, year *int, olderThanDays *int) string {
	if count == 0 {
		return "No archived capsules to purge"
	}

	word := "capsule"
	if count > 1 {
		word = "capsules"
	}

	msg := fmt.Sprintf("Permanently deleted %d archived %s", count, word)
	if year != nil {
		msg += fmt.Sprintf(" for year %d", *year)
	}
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (archived more than %d days ago)", *olderThanDays)
	}
	return msg
}
