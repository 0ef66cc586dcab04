package model

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Sruimeng/vestige/internal/api"
	"github.com/Sruimeng/vestige/internal/errors"
)

// Fetcher downloads model bytes with the backend's auth header.
// *api.Client satisfies it.
type Fetcher interface {
	FetchModel(ctx context.Context, url string) ([]byte, string, error)
}

// Handle is a resolved model. URL is what the client loader should fetch:
// the source URL itself, or a blob path for proxied models.
type Handle struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	BlobID string `json:"blob_id,omitempty"`
}

// IsBlob reports whether h holds a registry reference.
func (h Handle) IsBlob() bool {
	return h.BlobID != ""
}

// Resolver turns model URLs into loadable handles.
type Resolver struct {
	fetcher  Fetcher
	rules    api.ModelURLRules
	registry *Registry
	group    singleflight.Group
	log      *zap.Logger
}

type download struct {
	data        []byte
	contentType string
}

// NewResolver creates a resolver. rules decides which URLs are proxied.
func NewResolver(fetcher Fetcher, rules api.ModelURLRules, registry *Registry, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fetcher: fetcher, rules: rules, registry: registry, log: logger}
}

// Registry returns the blob registry handles are created in.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve returns a handle for url. Non-proxy URLs pass through unchanged.
// Proxy URLs are downloaded once per concurrent burst of callers; each
// caller gets its own blob reference and must Release it.
func (r *Resolver) Resolve(ctx context.Context, url string) (Handle, error) {
	if url == "" {
		return Handle{}, errors.NewInvalidRequest("model url is required")
	}
	if !r.rules.IsProxy(url) {
		return Handle{Source: url, URL: url}, nil
	}

	// The download outlives any one caller so joiners are not failed by
	// the first caller's cancellation.
	ch := r.group.DoChan(url, func() (any, error) {
		data, contentType, err := r.fetcher.FetchModel(context.WithoutCancel(ctx), url)
		if err != nil {
			return nil, err
		}
		return download{data: data, contentType: contentType}, nil
	})

	select {
	case <-ctx.Done():
		return Handle{}, errors.NewAborted(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			r.log.Warn("model download failed", zap.String("url", url), zap.Error(res.Err))
			return Handle{}, res.Err
		}
		dl := res.Val.(download)
		id := r.registry.Create(dl.data, dl.contentType, url)
		r.log.Debug("blob created",
			zap.String("blob_id", id),
			zap.Int("bytes", len(dl.data)),
			zap.Bool("shared", res.Shared))
		return Handle{Source: url, URL: BlobPath(id), BlobID: id}, nil
	}
}

// Release revokes h's blob reference, if it has one.
func (r *Resolver) Release(h Handle) {
	if !h.IsBlob() {
		return
	}
	r.registry.Release(h.BlobID)
	r.log.Debug("blob released", zap.String("blob_id", h.BlobID))
}
