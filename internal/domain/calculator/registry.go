package calculator

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Event topics published by the registry and the dispatcher.
const (
	TopicRegistered   = "calculator.registered"
	TopicReloaded     = "calculator.reloaded"
	TopicUnregistered = "calculator.unregistered"
	TopicSealed       = "calculator.sealed"
	TopicExecuted     = "calculator.executed"
)

// Publisher receives registry and execution events. eventbus.Bus satisfies it.
type Publisher interface {
	Publish(topic string, payload any)
}

// RegistryEvent is the payload of the registration topics.
type RegistryEvent struct {
	ID      string
	Version int
}

// Options configures a Registry. The zero value is usable.
type Options struct {
	Logger       *slog.Logger
	Bus          Publisher
	ValidatorTTL time.Duration
}

// Registry is the single writable source of truth for calculator entries.
//
// Writers serialize on mu and mutate the master map; readers only load the
// published snapshot. While bootstrapping, publishing is deferred until the
// next read or Seal; after sealing, ReRegister and Unregister publish eagerly
// so readers always see either the old or the new snapshot in full.
type Registry struct {
	mu      sync.Mutex
	entries map[string]entry

	snap   atomic.Pointer[snapshot]
	dirty  atomic.Bool
	sealed atomic.Bool

	validators *validatorCache
	bus        Publisher
	logger     *slog.Logger
}

// NewRegistry returns an empty registry in the bootstrap phase.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		entries:    make(map[string]entry),
		validators: newValidatorCache(opts.ValidatorTTL),
		bus:        opts.Bus,
		logger:     logger,
	}
	r.snap.Store(emptySnapshot)
	return r
}

// Register adds a calculator during bootstrap and returns its registration id.
// A second registration of the same id fails with ErrDuplicateID and leaves the
// first entry untouched.
func (r *Registry) Register(raw Descriptor, fn ComputeFunc) (string, error) {
	if r.sealed.Load() {
		return "", fmt.Errorf("%w: cannot register %q", ErrRegistryClosed, raw.ID)
	}
	if fn == nil {
		return "", malformed(raw.ID, "compute function is required")
	}
	d, err := Normalize(raw)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	if r.sealed.Load() {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: cannot register %q", ErrRegistryClosed, d.ID)
	}
	if _, exists := r.entries[d.ID]; exists {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrDuplicateID, d.ID)
	}
	r.entries[d.ID] = entry{descriptor: d.clone(), compute: fn}
	r.dirty.Store(true)
	r.mu.Unlock()

	r.logger.Debug("calculator registered", "id", d.ID, "category", d.Category, "version", d.Version)
	r.publish(TopicRegistered, RegistryEvent{ID: d.ID, Version: d.Version})
	return d.ID, nil
}

// ReRegister swaps the entry for d.ID in place, for development hot reload.
// It bypasses the duplicate and sealed checks but still normalizes. When the
// caller did not bump the version, the stored version is bumped so cached
// validators for the previous schema are never reused.
func (r *Registry) ReRegister(raw Descriptor, fn ComputeFunc) error {
	if fn == nil {
		return malformed(raw.ID, "compute function is required")
	}
	d, err := Normalize(raw)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if old, exists := r.entries[d.ID]; exists {
		if d.Version <= old.descriptor.Version {
			d.Version = old.descriptor.Version + 1
		}
		r.validators.invalidate(old.descriptor.ID, old.descriptor.Version)
	}
	r.entries[d.ID] = entry{descriptor: d.clone(), compute: fn}
	r.publishLocked()
	r.mu.Unlock()

	r.logger.Info("calculator reloaded", "id", d.ID, "version", d.Version)
	r.publish(TopicReloaded, RegistryEvent{ID: d.ID, Version: d.Version})
	return nil
}

// Unregister removes id, for hot reload when a calculator disappears from a manifest.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	old, exists := r.entries[id]
	if !exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(r.entries, id)
	r.validators.invalidate(old.descriptor.ID, old.descriptor.Version)
	r.publishLocked()
	r.mu.Unlock()

	r.logger.Info("calculator unregistered", "id", id)
	r.publish(TopicUnregistered, RegistryEvent{ID: id, Version: old.descriptor.Version})
	return nil
}

// Seal ends the bootstrap phase. Later Register calls fail with ErrRegistryClosed.
func (r *Registry) Seal() {
	r.mu.Lock()
	alreadySealed := r.sealed.Swap(true)
	r.publishLocked()
	count := len(r.entries)
	r.mu.Unlock()

	if alreadySealed {
		return
	}
	r.logger.Info("calculator registry sealed", "calculators", count)
	r.publish(TopicSealed, RegistryEvent{})
}

// Sealed reports whether the registry is serving.
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// RebuildIndexes recomputes the category and tag indexes from the primary map
// and publishes them as a new snapshot.
func (r *Registry) RebuildIndexes() {
	r.mu.Lock()
	r.publishLocked()
	r.mu.Unlock()
}

// Len returns the number of registered calculators.
func (r *Registry) Len() int {
	return len(r.current().ids)
}

func (r *Registry) publishLocked() {
	r.snap.Store(buildSnapshot(r.entries))
	r.dirty.Store(false)
}

// current returns the latest published snapshot, publishing pending
// bootstrap registrations first.
func (r *Registry) current() *snapshot {
	if !r.dirty.Load() {
		return r.snap.Load()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dirty.Load() {
		r.publishLocked()
	}
	return r.snap.Load()
}

func (r *Registry) lookup(id string) (entry, bool) {
	e, ok := r.current().entries[id]
	return e, ok
}

func (r *Registry) validatorFor(d Descriptor) *validator {
	return r.validators.get(d)
}

func (r *Registry) publish(topic string, payload any) {
	if r.bus != nil {
		r.bus.Publish(topic, payload)
	}
}
