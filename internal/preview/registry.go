// Package preview hands out short-lived handles that let a view render a
// selected image before it is submitted. Every handle must be released once
// the selection it belongs to is replaced or discarded.
package preview

import (
	"errors"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/expression-client/internal/classifier"
)

// ErrEmptyImage is returned when acquiring a handle for an image without data.
var ErrEmptyImage = errors.New("image has no data")

// Handle is a live preview reference.
type Handle interface {
	ID() string
	Release()
}

// Allocator creates preview handles.
type Allocator interface {
	Acquire(image *classifier.Image) (Handle, error)
}

// Entry is the content a live handle points at.
type Entry struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Registry is an in-memory Allocator whose handles can be looked up by id
// until released.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	logger  *zap.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger.Named("preview_registry"),
	}
}

// Acquire registers image and returns a handle for it.
func (r *Registry) Acquire(image *classifier.Image) (Handle, error) {
	if image == nil || len(image.Data) == 0 {
		return nil, ErrEmptyImage
	}

	id := uuid.NewString()
	entry := &Entry{
		Filename:    image.Filename,
		ContentType: mimetype.Detect(image.Data).String(),
		Data:        image.Data,
	}

	r.mu.Lock()
	r.entries[id] = entry
	active := len(r.entries)
	r.mu.Unlock()

	r.logger.Debug("preview acquired", zap.String("preview_id", id), zap.Int("active", active))
	return &handle{id: id, registry: r}, nil
}

// Lookup returns the entry behind a live handle.
func (r *Registry) Lookup(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// Active returns the number of handles not yet released.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) release(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	active := len(r.entries)
	r.mu.Unlock()

	r.logger.Debug("preview released", zap.String("preview_id", id), zap.Int("active", active))
}

type handle struct {
	id       string
	registry *Registry
	once     sync.Once
}

func (h *handle) ID() string { return h.id }

// Release is idempotent.
func (h *handle) Release() {
	h.once.Do(func() { h.registry.release(h.id) })
}
