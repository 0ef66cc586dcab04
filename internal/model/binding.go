package model

import (
	"context"
	"sync"

	"github.com/Sruimeng/vestige/internal/errors"
)

// Binding is one viewer's hold on at most one resolved model. Binding a
// different URL releases the previous handle; Close releases the last one.
type Binding struct {
	resolver *Resolver

	mu      sync.Mutex
	current Handle
	want    string
	closed  bool
}

// NewBinding creates an empty binding.
func NewBinding(r *Resolver) *Binding {
	return &Binding{resolver: r}
}

// Bind resolves url and makes it current. Binding the current URL again
// returns the existing handle without a new download. The download runs
// outside the lock; if another Bind or Close lands meanwhile, the result is
// released and Bind reports an abort.
func (b *Binding) Bind(ctx context.Context, url string) (Handle, error) {
	b.mu.Lock()
	if url != "" && b.current.Source == url {
		h := b.current
		b.mu.Unlock()
		return h, nil
	}
	b.releaseLocked()
	b.want = url
	if b.closed || url == "" {
		b.mu.Unlock()
		return Handle{}, nil
	}
	b.mu.Unlock()

	h, err := b.resolver.Resolve(ctx, url)
	if err != nil {
		return Handle{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.want != url {
		b.resolver.Release(h)
		return Handle{}, errors.NewAborted(context.Canceled)
	}
	if b.current.Source == url {
		b.resolver.Release(h)
		return b.current, nil
	}
	b.current = h
	return h, nil
}

// Current returns the bound handle, zero if none.
func (b *Binding) Current() Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Clear releases the current handle.
func (b *Binding) Clear() {
	b.mu.Lock()
	b.releaseLocked()
	b.mu.Unlock()
}

// Close releases the current handle. Later Binds are no-ops.
func (b *Binding) Close() {
	b.mu.Lock()
	b.releaseLocked()
	b.closed = true
	b.mu.Unlock()
}

func (b *Binding) releaseLocked() {
	b.resolver.Release(b.current)
	b.current = Handle{}
	b.want = ""
}
