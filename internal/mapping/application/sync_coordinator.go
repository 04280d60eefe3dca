package application

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"axis-studio/internal/eventing"
	"axis-studio/internal/mapping/application/events"
	mapping "axis-studio/internal/mapping/domain"
	"axis-studio/internal/observability/metrics"
)

// DefaultDebounceWindow is the quiescence window between the last
// committed edit and the backend push pass.
const DefaultDebounceWindow = time.Second

// SyncCoordinator debounces and pushes validated mapping records to the
// backend store. Conflicted records are never pushed; their edits are
// buffered as pending overrides instead. Edits arriving while a push is
// in flight are captured by the next debounce cycle.
type SyncCoordinator struct {
	backend   mapping.Store
	overrides mapping.OverrideStore
	logger    *log.Logger
	bus       eventing.EventBus
	window    time.Duration

	mu           sync.Mutex
	timer        *time.Timer
	dirty        map[int64]*mapping.Record
	profileID    string
	subProfileID string
	keyClaimed   func(sourceKey string, except int64) bool

	// flushMu serializes flush passes; the override store's claim and
	// flush sequences are not atomic across steps.
	flushMu sync.Mutex
}

// NewSyncCoordinator constructs a coordinator.
func NewSyncCoordinator(backend mapping.Store, overrides mapping.OverrideStore, logger *log.Logger, opts ...SyncOption) (*SyncCoordinator, error) {
	if backend == nil {
		return nil, errors.New("sync coordinator: nil backend store")
	}
	if overrides == nil {
		return nil, errors.New("sync coordinator: nil override store")
	}
	c := &SyncCoordinator{
		backend:   backend,
		overrides: overrides,
		logger:    logger,
		window:    DefaultDebounceWindow,
		dirty:     make(map[int64]*mapping.Record),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SyncOption configures the coordinator.
type SyncOption func(*SyncCoordinator)

// WithDebounceWindow overrides the quiescence window.
func WithDebounceWindow(window time.Duration) SyncOption {
	return func(c *SyncCoordinator) {
		if window > 0 {
			c.window = window
		}
	}
}

// WithSyncBus publishes flush events on the given bus.
func WithSyncBus(bus eventing.EventBus) SyncOption {
	return func(c *SyncCoordinator) { c.bus = bus }
}

// SetScope binds the coordinator to the loaded profile/sub-profile and
// drops any dirty state from the previous scope.
func (c *SyncCoordinator) SetScope(profileID, subProfileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profileID = profileID
	c.subProfileID = subProfileID
	c.dirty = make(map[int64]*mapping.Record)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// BindKeyClaimed installs the collection lookup used to decide whether a
// renamed record's old key is now claimed by another record.
func (c *SyncCoordinator) BindKeyClaimed(fn func(sourceKey string, except int64) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyClaimed = fn
}

// RequestSync registers a committed edit. Repeated edits within the
// quiescence window collapse into a single flush pass; the timer resets
// on every new edit.
func (c *SyncCoordinator) RequestSync(record *mapping.Record) {
	if record == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirty[record.Identity()] = record
	if c.timer == nil {
		c.timer = time.AfterFunc(c.window, func() {
			if _, err := c.Flush(context.Background()); err != nil {
				c.logf("sync: flush error: %v", err)
			}
		})
		return
	}
	c.timer.Reset(c.window)
}

// Pending returns the number of records awaiting the next flush.
func (c *SyncCoordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// Stop cancels any scheduled flush.
func (c *SyncCoordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// FlushStats summarizes one flush pass.
type FlushStats struct {
	Pushed   int
	Buffered int
	Failed   int
	Skipped  int
}

// Flush pushes every currently valid, non-conflicted dirty record and
// buffers the conflicted ones as pending overrides. Records whose push
// fails stay dirty for the next cycle.
func (c *SyncCoordinator) Flush(ctx context.Context) (FlushStats, error) {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	batch := make([]*mapping.Record, 0, len(c.dirty))
	for _, record := range c.dirty {
		batch = append(batch, record)
	}
	c.dirty = make(map[int64]*mapping.Record)
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	profileID := c.profileID
	subProfileID := c.subProfileID
	keyClaimed := c.keyClaimed
	c.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Identity() < batch[j].Identity() })

	start := time.Now()
	var stats FlushStats
	var retry []*mapping.Record

	for _, record := range batch {
		switch {
		case !record.IsValid():
			// Incomplete bindings stay local until both sides are set.
			stats.Skipped++

		case record.HasWarning:
			if err := c.bufferOverride(ctx, profileID, subProfileID, record); err != nil {
				c.logf("sync: buffering override for key %d failed: %v", record.Identity(), err)
				retry = append(retry, record)
				stats.Failed++
				continue
			}
			metrics.IncSyncPush(metrics.PushResultSkippedConflict)
			stats.Buffered++

		default:
			if err := c.pushRecord(ctx, profileID, subProfileID, record, keyClaimed); err != nil {
				c.logf("sync: push for key %d failed: %v", record.Identity(), err)
				metrics.IncSyncPush(metrics.ResultError)
				retry = append(retry, record)
				stats.Failed++
				continue
			}
			metrics.IncSyncPush(metrics.ResultSuccess)
			stats.Pushed++
		}
	}

	if len(retry) > 0 {
		c.mu.Lock()
		for _, record := range retry {
			if _, exists := c.dirty[record.Identity()]; !exists {
				c.dirty[record.Identity()] = record
			}
		}
		c.mu.Unlock()
	}

	result := metrics.ResultSuccess
	if stats.Failed > 0 {
		result = metrics.ResultError
	}
	metrics.ObserveSyncFlush(result, time.Since(start))
	c.refreshOverrideGauge(ctx, profileID, subProfileID)

	c.publish(ctx, events.SyncFlushed{
		ProfileID:    profileID,
		SubProfileID: subProfileID,
		Pushed:       stats.Pushed,
		Buffered:     stats.Buffered,
		Failed:       stats.Failed,
	})
	return stats, nil
}

// bufferOverride upserts the pending override for a conflicted record,
// keeping the backend-known key so a later flush knows what to remove.
func (c *SyncCoordinator) bufferOverride(ctx context.Context, profileID, subProfileID string, record *mapping.Record) error {
	override := &mapping.Override{
		ProfileID:            profileID,
		SubProfileID:         subProfileID,
		OriginalKeyInBackend: record.OriginalSourceKey,
		UpdatedAt:            time.Now().UTC(),
	}
	override.FromRecord(record)
	return c.overrides.Put(ctx, override)
}

func (c *SyncCoordinator) pushRecord(ctx context.Context, profileID, subProfileID string, record *mapping.Record, keyClaimed func(string, int64) bool) error {
	oldKey := record.OriginalSourceKey
	if oldKey != "" && oldKey != record.SourceKey {
		if keyClaimed != nil && keyClaimed(oldKey, record.Identity()) {
			// The old key now belongs to another record; removing it
			// would delete someone else's binding.
			c.logf("sync: skip removal of %q, key claimed by another record", oldKey)
			metrics.IncSyncRemoval(metrics.RemovalResultSkipped)
		} else if err := c.backend.RemoveMapping(ctx, profileID, subProfileID, oldKey); err != nil {
			c.logf("sync: removal of old key %q failed: %v", oldKey, err)
			metrics.IncSyncRemoval(metrics.ResultError)
		} else {
			metrics.IncSyncRemoval(metrics.ResultSuccess)
		}
	}

	if err := c.backend.UpsertMapping(ctx, profileID, subProfileID, mapping.SnapshotOf(record)); err != nil {
		return err
	}
	record.OriginalSourceKey = record.SourceKey
	record.Modified = false

	// A successful push flushes the record's pending override, if any.
	if err := c.overrides.Delete(ctx, record.Identity()); err != nil && !errors.Is(err, mapping.ErrOverrideNotFound) {
		c.logf("sync: clearing override for key %d failed: %v", record.Identity(), err)
	}
	return nil
}

// Discard drops a locally deleted record: its pending override is
// purged and its backend-known key removed, unless another record now
// claims that key.
func (c *SyncCoordinator) Discard(ctx context.Context, record *mapping.Record) error {
	if record == nil {
		return mapping.ErrNilRecord
	}
	c.mu.Lock()
	delete(c.dirty, record.Identity())
	profileID := c.profileID
	subProfileID := c.subProfileID
	keyClaimed := c.keyClaimed
	c.mu.Unlock()

	if err := c.overrides.Delete(ctx, record.Identity()); err != nil && !errors.Is(err, mapping.ErrOverrideNotFound) {
		c.logf("sync: discarding override for key %d failed: %v", record.Identity(), err)
	}

	oldKey := record.OriginalSourceKey
	if oldKey == "" {
		return nil
	}
	if keyClaimed != nil && keyClaimed(oldKey, record.Identity()) {
		c.logf("sync: skip removal of %q on discard, key claimed by another record", oldKey)
		metrics.IncSyncRemoval(metrics.RemovalResultSkipped)
		return nil
	}
	if err := c.backend.RemoveMapping(ctx, profileID, subProfileID, oldKey); err != nil {
		metrics.IncSyncRemoval(metrics.ResultError)
		return err
	}
	metrics.IncSyncRemoval(metrics.ResultSuccess)
	return nil
}

func (c *SyncCoordinator) refreshOverrideGauge(ctx context.Context, profileID, subProfileID string) {
	scoped, err := c.overrides.ListScope(ctx, profileID, subProfileID)
	if err != nil {
		return
	}
	metrics.SetPendingOverrides(len(scoped))
}

func (c *SyncCoordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func (c *SyncCoordinator) publish(ctx context.Context, event any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, event); err != nil {
		c.logf("sync: publish event: %v", err)
	}
}
