package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	curve "axis-studio/internal/curve/domain"
	"axis-studio/internal/eventing"
	"axis-studio/internal/mapping/application/events"
	mapping "axis-studio/internal/mapping/domain"
	"axis-studio/internal/observability/metrics"
)

// DefaultFrameInterval throttles provisional drag updates to roughly
// one solver pass per display frame.
const DefaultFrameInterval = 16 * time.Millisecond

var (
	// ErrRecordNotFound is returned when an edit targets a record the
	// editor does not hold.
	ErrRecordNotFound = errors.New("mapping: record not found")
	// ErrNoDrag is returned for drag frames arriving without BeginCurveDrag.
	ErrNoDrag = errors.New("editor: no drag in progress")
	// ErrEmptySelection is returned for selection edits with nothing selected.
	ErrEmptySelection = errors.New("editor: empty selection")
)

// EditorService is the mutating entry point of the mapping editor. It
// loads a reconciled record set for one profile scope, routes drags
// through the curve constraint solver, and schedules debounced backend
// pushes for every committed edit. All methods return post-constraint
// authoritative state so callers can render exactly what was stored.
type EditorService struct {
	reconciler *Reconciler
	sync       *SyncCoordinator
	logger     *log.Logger
	bus        eventing.EventBus

	frameInterval time.Duration
	now           func() time.Time

	mu           sync.Mutex
	profileID    string
	subProfileID string
	records      []*mapping.Record
	selection    *Selection

	dragKey   int64
	dragModel *curve.Model
	lastFrame time.Time
}

// EditorOption customizes an EditorService.
type EditorOption func(*EditorService)

// WithEditorBus attaches an event bus for EditCommitted and
// ConflictDetected notifications.
func WithEditorBus(bus eventing.EventBus) EditorOption {
	return func(s *EditorService) { s.bus = bus }
}

// WithFrameInterval overrides the provisional drag throttle window.
func WithFrameInterval(interval time.Duration) EditorOption {
	return func(s *EditorService) {
		if interval > 0 {
			s.frameInterval = interval
		}
	}
}

// WithEditorClock overrides the time source, used by tests to drive
// the drag throttle and record identities deterministically.
func WithEditorClock(now func() time.Time) EditorOption {
	return func(s *EditorService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewEditorService constructs an editor over a reconciler and a sync
// coordinator.
func NewEditorService(reconciler *Reconciler, coordinator *SyncCoordinator, logger *log.Logger, opts ...EditorOption) (*EditorService, error) {
	if reconciler == nil {
		return nil, errors.New("editor: nil reconciler")
	}
	if coordinator == nil {
		return nil, errors.New("editor: nil sync coordinator")
	}
	s := &EditorService{
		reconciler:    reconciler,
		sync:          coordinator,
		logger:        logger,
		frameInterval: DefaultFrameInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load reconciles the backend record set for the given scope and makes
// it the editor's working set. Any previous scope's unsaved dirty set
// is dropped by the coordinator.
func (s *EditorService) Load(ctx context.Context, profileID, subProfileID string) ([]*mapping.Record, error) {
	records, err := s.reconciler.Reconcile(ctx, profileID, subProfileID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.profileID = profileID
	s.subProfileID = subProfileID
	s.records = records
	s.selection = nil
	s.dragModel = nil
	s.dragKey = 0
	s.mu.Unlock()

	s.sync.SetScope(profileID, subProfileID)
	s.sync.BindKeyClaimed(s.keyClaimed)
	return records, nil
}

// Records returns the current working set.
func (s *EditorService) Records() []*mapping.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// Record returns the record with the given identity key.
func (s *EditorService) Record(key int64) (*mapping.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(key)
}

func (s *EditorService) recordLocked(key int64) (*mapping.Record, bool) {
	for _, record := range s.records {
		if record.Identity() == key {
			return record, true
		}
	}
	return nil, false
}

// keyClaimed reports whether any record other than the one identified
// by except currently uses sourceKey. The coordinator consults it
// before removing a renamed record's old backend entry.
func (s *EditorService) keyClaimed(sourceKey string, except int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.Identity() == except {
			continue
		}
		if record.SourceKey == sourceKey {
			return true
		}
	}
	return false
}

// AddRecord appends a fresh unmapped record with a unique creation
// timestamp and returns it. The record is not synced until it becomes
// valid through source and output edits.
func (s *EditorService) AddRecord() *mapping.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	for {
		key := createdAt.UnixNano()
		if _, taken := s.recordLocked(key); !taken && key != 0 {
			break
		}
		createdAt = createdAt.Add(time.Nanosecond)
	}
	record := mapping.NewRecord(createdAt)
	s.records = append(s.records, record)
	return record
}

// RemoveRecord deletes a record from the working set, purges its
// pending override, and removes its backend entry unless another
// record claims the same source key. Conflict warnings are rescanned
// since a deletion can resolve a duplicate.
func (s *EditorService) RemoveRecord(ctx context.Context, key int64) error {
	s.mu.Lock()
	record, ok := s.recordLocked(key)
	if !ok {
		s.mu.Unlock()
		return ErrRecordNotFound
	}
	kept := s.records[:0]
	for _, r := range s.records {
		if r.Identity() != key {
			kept = append(kept, r)
		}
	}
	s.records = kept
	changed := mapping.MarkConflicts(s.records)
	resync := s.recordsByIdentityLocked(changed)
	warnings := countWarnings(s.records)
	s.mu.Unlock()

	metrics.SetConflictsActive(warnings)
	for _, r := range resync {
		s.sync.RequestSync(r)
	}
	return s.sync.Discard(ctx, record)
}

// LoadSelection builds the multi-select aggregate over the given
// identity keys. Unknown keys are ignored.
func (s *EditorService) LoadSelection(keys ...int64) *Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	var picked []*mapping.Record
	for _, key := range keys {
		if record, ok := s.recordLocked(key); ok {
			picked = append(picked, record)
		}
	}
	s.selection = NewSelection(picked)
	return s.selection
}

// Selection returns the current multi-select aggregate, which may be
// empty.
func (s *EditorService) Selection() *Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection == nil {
		s.selection = NewSelection(nil)
	}
	return s.selection
}

// BeginCurveDrag starts a drag session on the record's curve. The
// session owns a hydrated model so provisional frames share solver
// state until the release commits it back to the record.
func (s *EditorService) BeginCurveDrag(key int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.recordLocked(key)
	if !ok {
		return ErrRecordNotFound
	}
	s.dragKey = key
	s.dragModel = record.CurveModel()
	s.lastFrame = time.Time{}
	return nil
}

// CurveDrag applies one provisional drag frame. Frames arriving faster
// than the frame interval are dropped and answered with the point's
// current authoritative position; accepted frames run the constraint
// solver and return the corrected point. Nothing is committed or
// synced until EndCurveDrag.
func (s *EditorService) CurveDrag(index int, x, y float64) (curve.Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dragModel == nil {
		return curve.Point{}, ErrNoDrag
	}
	now := s.now()
	if !s.lastFrame.IsZero() && now.Sub(s.lastFrame) < s.frameInterval {
		metrics.IncDragFrame(metrics.DragOutcomeThrottled)
		points := s.dragModel.Points()
		if index < 0 || index >= len(points) {
			return curve.Point{}, curve.ErrPointIndex
		}
		return points[index], nil
	}
	corrected, err := s.dragModel.MovePoint(index, x, y)
	if err != nil {
		return curve.Point{}, err
	}
	s.lastFrame = now
	metrics.IncDragFrame(metrics.DragOutcomeApplied)
	return corrected, nil
}

// EndCurveDrag applies the final drag position, bypassing the frame
// throttle, writes the model back to the record, and schedules a sync.
func (s *EditorService) EndCurveDrag(ctx context.Context, index int, x, y float64) (curve.Point, error) {
	s.mu.Lock()
	if s.dragModel == nil {
		s.mu.Unlock()
		return curve.Point{}, ErrNoDrag
	}
	corrected, err := s.dragModel.MovePoint(index, x, y)
	if err != nil {
		s.mu.Unlock()
		return curve.Point{}, err
	}
	metrics.IncDragFrame(metrics.DragOutcomeApplied)
	record, key := s.commitDragLocked()
	s.mu.Unlock()

	if record != nil {
		s.afterCurveEdit(ctx, record, key)
	}
	return corrected, nil
}

// CancelCurveDrag abandons the drag session without touching the record.
func (s *EditorService) CancelCurveDrag() {
	s.mu.Lock()
	s.dragModel = nil
	s.dragKey = 0
	s.mu.Unlock()
}

func (s *EditorService) commitDragLocked() (*mapping.Record, int64) {
	record, ok := s.recordLocked(s.dragKey)
	key := s.dragKey
	if ok {
		record.CurveType = mapping.CurveCustom
		record.Points = s.dragModel.Points()
		record.Smooth = s.dragModel.Smooth()
		record.Modified = true
	}
	s.dragModel = nil
	s.dragKey = 0
	if !ok {
		return nil, 0
	}
	return record, key
}

// AddCurvePoint inserts a movable point on the record's curve and
// commits the result.
func (s *EditorService) AddCurvePoint(ctx context.Context, key int64, x, y float64) (curve.Point, error) {
	s.mu.Lock()
	record, ok := s.recordLocked(key)
	if !ok {
		s.mu.Unlock()
		return curve.Point{}, ErrRecordNotFound
	}
	model := record.CurveModel()
	index, err := model.AddPoint(x, y)
	if err != nil {
		s.mu.Unlock()
		return curve.Point{}, err
	}
	record.CurveType = mapping.CurveCustom
	record.Points = model.Points()
	record.Smooth = model.Smooth()
	record.Modified = true
	added := record.Points[index]
	s.mu.Unlock()

	s.afterCurveEdit(ctx, record, key)
	return added, nil
}

// RemoveCurvePoint deletes a movable point from the record's curve and
// commits the result.
func (s *EditorService) RemoveCurvePoint(ctx context.Context, key int64, index int) error {
	s.mu.Lock()
	record, ok := s.recordLocked(key)
	if !ok {
		s.mu.Unlock()
		return ErrRecordNotFound
	}
	model := record.CurveModel()
	if err := model.RemovePoint(index); err != nil {
		s.mu.Unlock()
		return err
	}
	record.Points = model.Points()
	record.Modified = true
	s.mu.Unlock()

	s.afterCurveEdit(ctx, record, key)
	return nil
}

func (s *EditorService) afterCurveEdit(ctx context.Context, record *mapping.Record, key int64) {
	s.publish(ctx, events.EditCommitted{
		ProfileID:    s.profileID,
		SubProfileID: s.subProfileID,
		RecordKey:    key,
		Field:        string(FieldCurve),
		OccurredAt:   s.now(),
	})
	s.sync.RequestSync(record)
}

// DragDeadZone applies a dead zone drag to the current selection.
// Both bounds arrive as fractions of the input range; the bound being
// dragged is whichever differs from the current value, and the gap
// constraint may move its partner. Provisional frames update the
// records for live preview but never schedule a sync; the release
// frame commits and syncs. The returned zone is the authoritative
// post-constraint state of the first selected record.
func (s *EditorService) DragDeadZone(ctx context.Context, inner, outer float64, provisional bool) (curve.DeadZone, error) {
	s.mu.Lock()
	if s.selection == nil || len(s.selection.Records()) == 0 {
		s.mu.Unlock()
		return curve.DeadZone{}, ErrEmptySelection
	}
	if provisional {
		now := s.now()
		if !s.lastFrame.IsZero() && now.Sub(s.lastFrame) < s.frameInterval {
			metrics.IncDragFrame(metrics.DragOutcomeThrottled)
			zone := s.selectionZoneLocked()
			s.mu.Unlock()
			return zone, nil
		}
		s.lastFrame = now
	}
	metrics.IncDragFrame(metrics.DragOutcomeApplied)

	// Apply the unmoved bound first so the dragged bound's gap
	// constraint decides where its partner lands.
	first := s.selection.Records()[0]
	innerMoved := !mapping.NearlyEqual(inner, first.DeadZoneInner)
	if innerMoved {
		s.selection.SetDeadZoneOuter(outer)
		s.selection.SetDeadZoneInner(inner)
	} else {
		s.selection.SetDeadZoneInner(inner)
		s.selection.SetDeadZoneOuter(outer)
	}
	zone := s.selectionZoneLocked()
	records := s.selection.Records()
	s.mu.Unlock()

	if provisional {
		return zone, nil
	}
	for _, record := range records {
		s.publish(ctx, events.EditCommitted{
			ProfileID:    s.profileID,
			SubProfileID: s.subProfileID,
			RecordKey:    record.Identity(),
			Field:        string(FieldDeadZoneInner),
			OccurredAt:   s.now(),
		})
		s.sync.RequestSync(record)
	}
	return zone, nil
}

func (s *EditorService) selectionZoneLocked() curve.DeadZone {
	first := s.selection.Records()[0]
	return curve.DeadZoneFromFractions(first.DeadZoneInner, first.DeadZoneOuter)
}

// CommitDeadZoneInner sets the inner bound on every selected record
// and schedules syncs. Used for direct numeric entry, which commits
// immediately without a provisional phase.
func (s *EditorService) CommitDeadZoneInner(ctx context.Context, fraction float64) error {
	return s.commitSelection(ctx, FieldDeadZoneInner, func(sel *Selection) {
		sel.SetDeadZoneInner(fraction)
	})
}

// CommitDeadZoneOuter sets the outer bound on every selected record
// and schedules syncs.
func (s *EditorService) CommitDeadZoneOuter(ctx context.Context, fraction float64) error {
	return s.commitSelection(ctx, FieldDeadZoneOuter, func(sel *Selection) {
		sel.SetDeadZoneOuter(fraction)
	})
}

// CommitSmooth toggles curve smoothing on every selected record and
// schedules syncs.
func (s *EditorService) CommitSmooth(ctx context.Context, smooth bool) error {
	return s.commitSelection(ctx, FieldSmooth, func(sel *Selection) {
		sel.SetSmooth(smooth)
	})
}

// CommitCurve replaces the curve of every selected record and
// schedules syncs.
func (s *EditorService) CommitCurve(ctx context.Context, curveType mapping.CurveType, points []curve.Point, smooth bool) error {
	return s.commitSelection(ctx, FieldCurve, func(sel *Selection) {
		sel.SetCurve(curveType, points, smooth)
	})
}

func (s *EditorService) commitSelection(ctx context.Context, field Field, apply func(*Selection)) error {
	s.mu.Lock()
	if s.selection == nil || len(s.selection.Records()) == 0 {
		s.mu.Unlock()
		return ErrEmptySelection
	}
	apply(s.selection)
	records := s.selection.Records()
	s.mu.Unlock()

	for _, record := range records {
		s.publish(ctx, events.EditCommitted{
			ProfileID:    s.profileID,
			SubProfileID: s.subProfileID,
			RecordKey:    record.Identity(),
			Field:        string(field),
			OccurredAt:   s.now(),
		})
		s.sync.RequestSync(record)
	}
	return nil
}

// CommitSourceKey renames a record's input source and rescans for
// duplicate-source conflicts. Records whose warning state changed are
// rescheduled so a freed duplicate gets pushed and a new duplicate
// gets buffered instead.
func (s *EditorService) CommitSourceKey(ctx context.Context, key int64, sourceKey string) (*mapping.Record, error) {
	return s.commitKeyField(ctx, key, FieldSourceKey, func(record *mapping.Record) {
		record.SourceKey = sourceKey
	})
}

// CommitOutputControl assigns a record's output control. Validity can
// flip with this edit, which changes which records take part in the
// conflict scan, so warnings are rescanned here too.
func (s *EditorService) CommitOutputControl(ctx context.Context, key int64, output string) (*mapping.Record, error) {
	return s.commitKeyField(ctx, key, FieldOutputControl, func(record *mapping.Record) {
		record.OutputControl = output
	})
}

func (s *EditorService) commitKeyField(ctx context.Context, key int64, field Field, apply func(*mapping.Record)) (*mapping.Record, error) {
	s.mu.Lock()
	record, ok := s.recordLocked(key)
	if !ok {
		s.mu.Unlock()
		return nil, ErrRecordNotFound
	}
	apply(record)
	record.Modified = true
	changed := mapping.MarkConflicts(s.records)
	resync := s.recordsByIdentityLocked(changed)
	warnings := countWarnings(s.records)
	conflicted := record.HasWarning
	s.mu.Unlock()

	metrics.SetConflictsActive(warnings)
	s.publish(ctx, events.EditCommitted{
		ProfileID:    s.profileID,
		SubProfileID: s.subProfileID,
		RecordKey:    key,
		Field:        string(field),
		OccurredAt:   s.now(),
	})
	if conflicted {
		s.publish(ctx, events.ConflictDetected{
			ProfileID:    s.profileID,
			SubProfileID: s.subProfileID,
			SourceKeys:   []string{record.SourceKey},
		})
	}
	s.sync.RequestSync(record)
	for _, r := range resync {
		if r.Identity() != key {
			s.sync.RequestSync(r)
		}
	}
	return record, nil
}

func (s *EditorService) recordsByIdentityLocked(keys []int64) []*mapping.Record {
	var out []*mapping.Record
	for _, key := range keys {
		if record, ok := s.recordLocked(key); ok {
			out = append(out, record)
		}
	}
	return out
}

func (s *EditorService) publish(ctx context.Context, event any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Printf("editor: publish %s failed: %v", eventing.EventType(event), err)
	}
}
