// Package viewstate implements the loadable view-state controller shared by
// every screen: one State per controller, intents that move it through
// loading → success|error, and a full snapshot published after each move.
package viewstate

import (
	"context"
	"net/url"
	"slices"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/Joseda-hg/clutchdesk/internal/model"
)

// ErrSuperseded is returned by Load when a newer Load was issued before this
// one resolved. Its response was discarded.
var ErrSuperseded = errors.New("load superseded by a newer request")

// Gateway is the remote data port a controller drives.
type Gateway[T any] interface {
	List(ctx context.Context, params url.Values) ([]T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, id string, patch map[string]any) (T, error)
	Delete(ctx context.Context, id string) error
}

type Controller[T model.Record] struct {
	name     string
	noun     string
	gateway  Gateway[T]
	validate func(any) error
	logger   *zap.Logger
	metrics  *Metrics

	mu         sync.Mutex
	state      State[T]
	generation uint64
	listeners  []*listener[T]
	nextID     int

	notifyMu sync.Mutex
}

type listener[T any] struct {
	id   int
	fn   func(State[T])
	last uint64
}

// Options configures a controller. The zero value is usable.
type Options struct {
	Logger  *zap.Logger
	Metrics *Metrics
	// Noun is the singular used in error messages; defaults to the name.
	Noun string
	// Validate checks records before Create sends them.
	Validate func(record any) error
}

func New[T model.Record](name string, gateway Gateway[T], opts Options) *Controller[T] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	noun := opts.Noun
	if noun == "" {
		noun = name
	}
	return &Controller[T]{
		name:     name,
		noun:     noun,
		gateway:  gateway,
		validate: opts.Validate,
		logger:   logger.With(zap.String("controller", name)),
		metrics:  opts.Metrics,
		state:    State[T]{Data: []T{}},
	}
}

func (c *Controller[T]) Name() string {
	return c.name
}

// Snapshot returns the current state.
func (c *Controller[T]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every future transition and calls it once with
// the current state. fn is never handed an older snapshot after a newer one.
// fn runs on the goroutine that completed the transition and must not call
// back into the controller's intents synchronously.
func (c *Controller[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.nextID++
	l := &listener[T]{id: c.nextID, fn: fn}
	c.listeners = append(c.listeners, l)
	current := c.state
	c.mu.Unlock()

	l.last = current.Version
	fn(current)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = slices.DeleteFunc(c.listeners, func(other *listener[T]) bool { return other.id == l.id })
	}
}

// Load replaces Data with the gateway's list. Each call takes a new
// generation; a response from an older generation is dropped without touching
// state. On failure the previous Data stays visible.
func (c *Controller[T]) Load(ctx context.Context, params url.Values) error {
	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.state.IsLoading = true
	c.state.Error = ""
	snapshot := c.commitLocked()
	c.mu.Unlock()
	c.publish(snapshot)

	items, err := c.gateway.List(ctx, params)

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		c.metrics.stale(c.name)
		c.logger.Debug("discarding superseded load", zap.Uint64("generation", generation))
		return ErrSuperseded
	}
	c.state.IsLoading = false
	var intentErr error
	if err != nil {
		intentErr = c.failLocked("load", err)
	} else {
		c.state.Data = slices.Clone(items)
		if c.state.Data == nil {
			c.state.Data = []T{}
		}
	}
	snapshot = c.commitLocked()
	c.mu.Unlock()

	c.metrics.intent(c.name, "load", intentErr)
	c.publish(snapshot)
	return intentErr
}

// Loader binds Load to params for LoadAll.
func (c *Controller[T]) Loader(params url.Values) Loader {
	return func(ctx context.Context) error {
		return c.Load(ctx, params)
	}
}

// Create sends record to the gateway and appends the stored record on
// success. Nothing is appended before the server confirms.
func (c *Controller[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	if c.validate != nil {
		if err := c.validate(record); err != nil {
			return zero, c.settle("create", err, nil)
		}
	}

	created, err := c.gateway.Create(ctx, record)
	if err != nil {
		return zero, c.settle("create", err, nil)
	}
	return created, c.settle("create", nil, func(data []T) []T {
		return upsert(data, created)
	})
}

// Update applies patch remotely and swaps in the returned record by identity.
func (c *Controller[T]) Update(ctx context.Context, id string, patch map[string]any) (T, error) {
	var zero T
	updated, err := c.gateway.Update(ctx, id, patch)
	if err != nil {
		return zero, c.settle("update", err, nil)
	}
	return updated, c.settle("update", nil, func(data []T) []T {
		return replace(data, id, updated)
	})
}

// Delete removes the record remotely, then locally.
func (c *Controller[T]) Delete(ctx context.Context, id string) error {
	if err := c.gateway.Delete(ctx, id); err != nil {
		return c.settle("delete", err, nil)
	}
	return c.settle("delete", nil, func(data []T) []T {
		return slices.DeleteFunc(slices.Clone(data), func(item T) bool { return item.Key() == id })
	})
}

// ClearError resets Error and leaves everything else alone.
func (c *Controller[T]) ClearError() {
	c.mu.Lock()
	if c.state.Error == "" {
		c.mu.Unlock()
		return
	}
	c.state.Error = ""
	snapshot := c.commitLocked()
	c.mu.Unlock()
	c.publish(snapshot)
}

// settle records the outcome of a mutation. While a Load is in flight the
// Error field belongs to that Load, so a failed mutation is only returned.
func (c *Controller[T]) settle(intent string, cause error, mutate func([]T) []T) error {
	c.mu.Lock()
	if cause != nil && c.state.IsLoading {
		c.mu.Unlock()
		intentErr := &IntentError{Intent: intent, Noun: c.noun, Err: cause}
		c.logger.Warn("intent failed during load", zap.String("intent", intent), zap.Error(cause))
		c.metrics.intent(c.name, intent, intentErr)
		return intentErr
	}

	var intentErr error
	if cause != nil {
		intentErr = c.failLocked(intent, cause)
	} else {
		c.state.Data = mutate(c.state.Data)
	}
	snapshot := c.commitLocked()
	c.mu.Unlock()

	c.metrics.intent(c.name, intent, intentErr)
	c.publish(snapshot)
	return intentErr
}

func (c *Controller[T]) failLocked(intent string, cause error) error {
	intentErr := &IntentError{Intent: intent, Noun: c.noun, Err: cause}
	c.state.Error = intentErr.Error()
	c.logger.Warn("intent failed", zap.String("intent", intent), zap.Error(cause))
	return intentErr
}

func (c *Controller[T]) commitLocked() State[T] {
	c.state.Version++
	return c.state
}

func (c *Controller[T]) publish(snapshot State[T]) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		if snapshot.Version <= l.last {
			continue
		}
		l.last = snapshot.Version
		l.fn(snapshot)
	}
}

// upsert appends record, or replaces an element with the same identity so
// that a record is never listed twice.
func upsert[T model.Record](data []T, record T) []T {
	for i, item := range data {
		if item.Key() == record.Key() {
			next := slices.Clone(data)
			next[i] = record
			return next
		}
	}
	next := make([]T, 0, len(data)+1)
	next = append(next, data...)
	return append(next, record)
}

func replace[T model.Record](data []T, id string, record T) []T {
	next := slices.Clone(data)
	for i, item := range next {
		if item.Key() == id {
			next[i] = record
		}
	}
	return next
}
