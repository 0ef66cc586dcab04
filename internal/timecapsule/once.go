package timecapsule

import (
	"context"

	"github.com/Sruimeng/vestige/internal/errors"
	"github.com/Sruimeng/vestige/internal/store"
)

// FetchOnce runs a single cycle for year on a private store and returns the
// final snapshot. Without a renderer nobody loads the model, so a cycle that
// stops at LOADING_MODEL is finished for the caller.
func FetchOnce(ctx context.Context, backend Backend, opts Options, year int) (store.Snapshot, error) {
	st := store.New()
	o := New(st, backend, opts)
	defer o.Close()

	done := o.FetchCapsule(year)
	select {
	case <-ctx.Done():
		return st.Snapshot(), errors.NewAborted(ctx.Err())
	case <-done:
	}
	return st.Snapshot(), nil
}
