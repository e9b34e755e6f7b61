// Package world hosts many independent state machines and ticks them once
// per frame on a worker pool.
//
// Entities are spread over a fixed number of shards by a hash of their ID.
// Each tick submits one pool task per non-empty shard, so every machine is
// updated by exactly one goroutine per tick and machines never need locks.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-fsm/fsm"
	"github.com/amp-labs/amp-fsm/logger"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.uber.org/atomic"
)

var (
	// ErrEntityPanicked is returned by Tick when a machine update panicked.
	ErrEntityPanicked = errors.New("entity update panicked")
	// ErrInvalidFrame is returned by Run for a non-positive frame interval.
	ErrInvalidFrame = errors.New("frame interval must be positive")
)

// Entity is a machine owned by a World.
type Entity struct {
	ID      uuid.UUID
	Name    string
	Machine *fsm.Machine

	shard   int
	faulted *atomic.Bool
}

// Faulted reports whether the entity's machine panicked. Faulted entities
// are skipped by later ticks.
func (e *Entity) Faulted() bool {
	return e.faulted.Load()
}

// Option configures a World.
type Option func(*World)

// WithShards sets the number of shards. Values below 1 are ignored.
func WithShards(shards int) Option {
	return func(w *World) {
		if shards > 0 {
			w.shards = shards
		}
	}
}

// WithWorkers sets the size of the world's own pool. Ignored with WithPool.
func WithWorkers(workers int) Option {
	return func(w *World) {
		if workers > 0 {
			w.workers = workers
		}
	}
}

// WithPool runs ticks on an existing pool. The world does not stop it.
func WithPool(pool pond.Pool) Option {
	return func(w *World) {
		w.pool = pool
	}
}

// WithLogger sets the logger used by Run and for panic reports.
func WithLogger(l *slog.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.logger = l
		}
	}
}

// World owns a set of entities and ticks their machines concurrently.
type World struct {
	name    string
	shards  int
	workers int

	pool     pond.Pool
	ownsPool bool
	logger   *slog.Logger

	// tickMut serializes Tick with machine shutdowns in Despawn.
	tickMut sync.Mutex

	mut      sync.RWMutex
	entities map[uuid.UUID]*Entity
	buckets  [][]*Entity

	frames  *atomic.Int64
	updates *atomic.Int64
	panics  *atomic.Int64
	time    *atomic.Float64
}

// New creates a world. Without WithPool it creates a pool sized by
// WithWorkers, defaulting to GOMAXPROCS; the shard count defaults to the
// worker count.
func New(name string, opts ...Option) *World {
	w := &World{
		name:     name,
		workers:  runtime.GOMAXPROCS(0),
		entities: make(map[uuid.UUID]*Entity),
		frames:   atomic.NewInt64(0),
		updates:  atomic.NewInt64(0),
		panics:   atomic.NewInt64(0),
		time:     atomic.NewFloat64(0),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.shards == 0 {
		w.shards = w.workers
	}

	if w.pool == nil {
		w.pool = pond.NewPool(w.workers)
		w.ownsPool = true
	}

	if w.logger == nil {
		w.logger = logger.Get().With("world", name)
	}

	w.buckets = make([][]*Entity, w.shards)

	return w
}

func (w *World) Name() string {
	return w.name
}

// Shards returns the number of shards.
func (w *World) Shards() int {
	return w.shards
}

// Frames returns the number of completed ticks.
func (w *World) Frames() int64 {
	return w.frames.Load()
}

// Updates returns the number of successful machine updates across all ticks.
func (w *World) Updates() int64 {
	return w.updates.Load()
}

// Panics returns the number of machine updates that panicked.
func (w *World) Panics() int64 {
	return w.panics.Load()
}

// Time returns the seconds of simulated time passed to Tick.
func (w *World) Time() float64 {
	return w.time.Load()
}

// Spawn adds m under a new ID and starts it, entering its current state.
func (w *World) Spawn(name string, m *fsm.Machine) *Entity {
	id := uuid.New()

	e := &Entity{
		ID:      id,
		Name:    name,
		Machine: m,
		shard:   shardOf(id, w.shards),
		faulted: atomic.NewBool(false),
	}

	m.Start()

	w.mut.Lock()
	w.entities[id] = e
	w.buckets[e.shard] = append(w.buckets[e.shard], e)
	count := len(w.entities)
	w.mut.Unlock()

	entitiesGauge.WithLabelValues(w.name).Set(float64(count))

	return e
}

// Despawn removes the entity and shuts its machine down. It returns false
// if id is unknown. A Despawn issued during a Tick waits for the tick to
// finish, so it must not be called from inside a machine callback.
func (w *World) Despawn(id uuid.UUID) bool {
	w.tickMut.Lock()
	defer w.tickMut.Unlock()

	w.mut.Lock()

	e, ok := w.entities[id]
	if !ok {
		w.mut.Unlock()

		return false
	}

	delete(w.entities, id)
	w.buckets[e.shard] = slices.DeleteFunc(w.buckets[e.shard], func(other *Entity) bool {
		return other == e
	})
	count := len(w.entities)
	w.mut.Unlock()

	entitiesGauge.WithLabelValues(w.name).Set(float64(count))

	if !e.Faulted() {
		e.Machine.Shutdown()
	}

	return true
}

// Get returns the entity with the given ID.
func (w *World) Get(id uuid.UUID) (*Entity, bool) {
	w.mut.RLock()
	defer w.mut.RUnlock()

	e, ok := w.entities[id]

	return e, ok
}

// IDs returns the IDs of every spawned entity, grouped by shard.
func (w *World) IDs() []uuid.UUID {
	w.mut.RLock()
	defer w.mut.RUnlock()

	ids := make([]uuid.UUID, 0, len(w.entities))

	for _, bucket := range w.buckets {
		for _, e := range bucket {
			ids = append(ids, e.ID)
		}
	}

	return ids
}

// Len returns the number of spawned entities.
func (w *World) Len() int {
	w.mut.RLock()
	defer w.mut.RUnlock()

	return len(w.entities)
}

// Tick updates every entity's machine once with deltaTime and waits for
// all of them. Panics raised by a machine are recovered, the entity is
// marked faulted and the panics are returned joined together. Other
// entities are unaffected.
func (w *World) Tick(ctx context.Context, deltaTime float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.tickMut.Lock()
	defer w.tickMut.Unlock()

	start := time.Now()

	w.mut.RLock()
	buckets := make([][]*Entity, 0, len(w.buckets))

	for _, bucket := range w.buckets {
		if len(bucket) > 0 {
			buckets = append(buckets, slices.Clone(bucket))
		}
	}
	w.mut.RUnlock()

	errs := make([]error, len(buckets))
	group := w.pool.NewGroup()

	for i, bucket := range buckets {
		group.Submit(func() {
			errs[i] = w.updateShard(bucket, deltaTime)
		})
	}

	if err := group.Wait(); err != nil {
		errs = append(errs, err)
	}

	w.frames.Inc()
	w.time.Add(deltaTime)
	framesTotal.WithLabelValues(w.name).Inc()
	tickDuration.WithLabelValues(w.name).Observe(time.Since(start).Seconds())

	return errors.Join(errs...)
}

func (w *World) updateShard(bucket []*Entity, deltaTime float64) error {
	var errs []error

	for _, e := range bucket {
		if e.Faulted() {
			continue
		}

		if err := w.updateEntity(e, deltaTime); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (w *World) updateEntity(e *Entity, deltaTime float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.faulted.Store(true)
			w.panics.Inc()
			entityPanicsTotal.WithLabelValues(w.name).Inc()

			err = logger.AnnotateError(
				fmt.Errorf("%w: entity %s (%s): %v", ErrEntityPanicked, e.Name, e.ID, r),
				"entity", e.ID.String(),
				"machine", e.Machine.Name())
		}
	}()

	e.Machine.Update(deltaTime)

	w.updates.Inc()
	entityUpdatesTotal.WithLabelValues(w.name).Inc()

	return nil
}

// Run ticks the world every frame until ctx is done, passing the measured
// wall-clock time since the previous tick as the delta. Tick errors are
// logged and do not stop the loop. Run returns nil when ctx is cancelled.
func (w *World) Run(ctx context.Context, frame time.Duration) error {
	if frame <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFrame, frame)
	}

	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := time.Now()

	w.logger.InfoContext(ctx, "World running", "frame", frame, "shards", w.shards, "entities", w.Len())

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "World stopped", "frames", w.Frames(), "time", w.Time())

			return nil
		case now := <-ticker.C:
			deltaTime := now.Sub(last).Seconds()
			last = now

			if err := w.Tick(ctx, deltaTime); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "Tick failed", "error", err, "frame", w.Frames())
			}
		}
	}
}

// Close stops the world's own pool, waiting for running ticks. A pool
// supplied with WithPool is left running.
func (w *World) Close() {
	if w.ownsPool {
		w.pool.StopAndWait()
	}
}

func shardOf(id uuid.UUID, shards int) int {
	return int(xxh3.Hash(id[:]) % uint64(shards)) //nolint:gosec // shards is positive
}
