// Package model acquires 3D model assets. Proxy URLs need the app id header,
// which the client-side loader cannot send, so their bytes are downloaded
// here and exposed as reference-counted blob handles.
package model

import (
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// BlobScheme prefixes every blob handle id.
const BlobScheme = "blob:"

// Blob is a downloaded model held in memory.
type Blob struct {
	ID          string
	Source      string
	ContentType string
	Data        []byte
}

type entry struct {
	blob Blob
	refs int
}

// Registry holds blobs until their last reference is released.
type Registry struct {
	mu    sync.Mutex
	blobs map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string]*entry)}
}

// Create stores data under a fresh handle id with one reference.
func (r *Registry) Create(data []byte, contentType, source string) string {
	id := BlobScheme + ulid.Make().String()

	r.mu.Lock()
	r.blobs[id] = &entry{
		blob: Blob{ID: id, Source: source, ContentType: contentType, Data: data},
		refs: 1,
	}
	r.mu.Unlock()
	return id
}

// Retain adds a reference. Returns false if id was already revoked.
func (r *Registry) Retain(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.blobs[canonical(id)]
	if !ok {
		return false
	}
	e.refs++
	return true
}

// Release drops a reference and revokes the blob when none remain.
// Releasing an unknown id is a no-op.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := canonical(id)
	e, ok := r.blobs[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(r.blobs, key)
	}
}

// Get returns the blob for id. Accepts the id with or without its scheme.
func (r *Registry) Get(id string) (Blob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.blobs[canonical(id)]
	if !ok {
		return Blob{}, false
	}
	return e.blob, true
}

// Len returns the number of live blobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blobs)
}

// BlobPath is the HTTP path a blob is served under.
func BlobPath(id string) string {
	return "/blobs/" + strings.TrimPrefix(id, BlobScheme)
}

func canonical(id string) string {
	if strings.HasPrefix(id, BlobScheme) {
		return id
	}
	return BlobScheme + id
}
