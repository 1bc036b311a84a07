package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// Options configures a Session.
type Options struct {
	RequiredFields []string
	FillValue      string
	BulkDelay      time.Duration
}

// Session is one data-quality workflow over a project's discovered employees.
// It owns the record store and confines mutation to the engine and the bulk
// coordinator, reclassifying after every change.
type Session struct {
	ProjectID uuid.UUID
	LoadedAt  time.Time

	store       *RecordStore
	engine      *Engine
	coordinator *Coordinator
	baseline    int

	mu             sync.RWMutex
	classification Classification
	dirty          map[uuid.UUID]bool

	logger *zap.Logger
}

// NewSession loads records into a new session. Records are copied; the
// caller's values are never modified.
func NewSession(projectID uuid.UUID, records []*models.Employee, opts Options, logger *zap.Logger) *Session {
	loaded := make([]*models.Employee, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		c := r.Clone()
		Normalize(c)
		loaded = append(loaded, c)
	}

	store := NewRecordStore(loaded)
	baseline := CountIssues(loaded)
	logger = logger.Named("reconcile").With(zap.String("project_id", projectID.String()))

	s := &Session{
		ProjectID: projectID,
		LoadedAt:  time.Now().UTC(),
		store:     store,
		engine:    NewEngine(store, opts.RequiredFields, logger),
		coordinator: NewCoordinator(store, CoordinatorConfig{
			RequiredFields: opts.RequiredFields,
			FillValue:      opts.FillValue,
			BulkDelay:      opts.BulkDelay,
			InitialTotal:   baseline,
		}, logger),
		baseline: baseline,
		dirty:    make(map[uuid.UUID]bool),
		logger:   logger,
	}
	s.coordinator.OnCommit(func(changed []*models.Employee) {
		s.mu.Lock()
		for _, r := range changed {
			s.dirty[r.ID] = true
		}
		s.mu.Unlock()
		s.reclassify()
	})
	s.reclassify()

	logger.Info("Loaded reconciliation session",
		zap.Int("records", len(loaded)),
		zap.Int("issues", baseline))
	return s
}

// GetAggregate returns the current issue counts and progress.
func (s *Session) GetAggregate() models.IssueAggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.classification.Aggregate
}

// GetRecordsByIssue returns the records tagged with t, in discovery order.
// IssueTypeNone returns the records without issues.
func (s *Session) GetRecordsByIssue(t models.IssueType) ([]*models.Employee, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: unknown issue type %q", apperrors.ErrValidation, t)
	}
	if t == models.IssueTypeNone {
		var clean []*models.Employee
		for _, r := range s.store.Get() {
			if r.IssueType == models.IssueTypeNone {
				clean = append(clean, r)
			}
		}
		return clean, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.Employee(nil), s.classification.ByType(t)...), nil
}

// Records returns every record in discovery order.
func (s *Session) Records() []*models.Employee {
	return s.store.Get()
}

// Record returns one record.
func (s *Session) Record(id uuid.UUID) (*models.Employee, error) {
	r, ok := s.store.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRecordNotFound, id)
	}
	return r, nil
}

// Recommendation returns the recommended conflict resolution for a record.
func (s *Session) Recommendation(id uuid.UUID) (models.FieldValues, error) {
	r, err := s.Record(id)
	if err != nil {
		return nil, err
	}
	return RecommendedResolution(r), nil
}

// IsApplying reports whether a bulk operation is running.
func (s *Session) IsApplying() bool {
	return s.coordinator.IsApplying()
}

// MergeAliases keeps only the record's primary email.
func (s *Session) MergeAliases(id uuid.UUID) (*models.Employee, error) {
	return s.single(func() (*models.Employee, error) { return s.engine.MergeAliases(id) })
}

// ApplyConflictResolution commits chosen values to a conflicting record.
func (s *Session) ApplyConflictResolution(id uuid.UUID, chosen models.FieldValues) (*models.Employee, error) {
	return s.single(func() (*models.Employee, error) { return s.engine.ApplyConflictResolution(id, chosen) })
}

// CompleteInformation fills absent attributes of a record.
func (s *Session) CompleteInformation(id uuid.UUID, fields models.FieldValues) (*models.Employee, error) {
	return s.single(func() (*models.Employee, error) { return s.engine.CompleteInformation(id, fields) })
}

// ToggleInclusion flips whether a record is analysed.
func (s *Session) ToggleInclusion(id uuid.UUID) (*models.Employee, error) {
	return s.single(func() (*models.Employee, error) { return s.engine.ToggleInclusion(id) })
}

// RunBulk runs a bulk operation. The session reclassifies once, when the
// batch is committed.
func (s *Session) RunBulk(ctx context.Context, op models.BulkOperation) (*models.BulkResult, error) {
	return s.coordinator.RunBulk(ctx, op)
}

// DirtyRecords returns the records changed since load or the last MarkSaved.
func (s *Session) DirtyRecords() []*models.Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Employee
	for _, r := range s.store.Get() {
		if s.dirty[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// MarkSaved clears the changed flag of each saved record that is still the
// current version in the store. A record replaced after saved was taken stays
// dirty, so the next commit persists it.
func (s *Session) MarkSaved(saved []*models.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range saved {
		if current, ok := s.store.Lookup(r.ID); ok && current == r {
			delete(s.dirty, r.ID)
		}
	}
}

func (s *Session) single(op func() (*models.Employee, error)) (*models.Employee, error) {
	var updated *models.Employee
	err := s.coordinator.Exclusive(func() error {
		var err error
		updated, err = op()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.dirty[updated.ID] = true
		s.mu.Unlock()
		s.reclassify()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// reclassify runs under the coordinator's writer lock (or during construction)
// so classifications are stored in commit order.
func (s *Session) reclassify() {
	c := Classify(s.store.Get(), s.baseline)
	s.mu.Lock()
	s.classification = c
	s.mu.Unlock()
}
