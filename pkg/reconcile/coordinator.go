package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// CoordinatorConfig configures bulk behaviour.
type CoordinatorConfig struct {
	RequiredFields []string      // Attributes fix-all guarantees are present
	FillValue      string        // Default for absent required attributes (default: "Not Specified")
	BulkDelay      time.Duration // Simulated latency around each batch (0 = none)
	InitialTotal   int           // Issue total when the session was loaded
}

// Coordinator sequences bulk operations over a RecordStore.
// At most one bulk operation runs at a time; a second request fails fast with
// apperrors.ErrOperationInProgress. A batch is computed on a snapshot and
// committed in one ReplaceAll, so readers never see it half applied.
type Coordinator struct {
	store    *RecordStore
	cfg      CoordinatorConfig
	applying atomic.Bool
	// writeMu serializes store writers: whole batches and single-record operations.
	writeMu  sync.Mutex
	onCommit func(changed []*models.Employee)
	now      func() time.Time
	logger   *zap.Logger
}

// NewCoordinator creates a Coordinator over store.
func NewCoordinator(store *RecordStore, cfg CoordinatorConfig, logger *zap.Logger) *Coordinator {
	if len(cfg.RequiredFields) == 0 {
		cfg.RequiredFields = models.DefaultRequiredFields
	}
	if cfg.FillValue == "" {
		cfg.FillValue = models.NotSpecified
	}
	return &Coordinator{
		store:  store,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Named("bulk"),
	}
}

// OnCommit registers a callback receiving the records a batch replaced.
// It runs under the writer lock after every committed batch, even an empty one.
func (c *Coordinator) OnCommit(fn func(changed []*models.Employee)) {
	c.onCommit = fn
}

// IsApplying reports whether a bulk operation is in flight.
func (c *Coordinator) IsApplying() bool {
	return c.applying.Load()
}

// Exclusive runs fn as a single store writer. It fails fast with
// apperrors.ErrOperationInProgress while a bulk operation is in flight.
func (c *Coordinator) Exclusive(fn func() error) error {
	if c.applying.Load() {
		return apperrors.ErrOperationInProgress
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return fn()
}

// RunBulk applies op to every matching record.
// Records are updated independently: failures are collected in FailedIDs and
// the successful subset is still committed. If ctx ends while the batch is
// suspended, nothing is committed and the context error is returned.
func (c *Coordinator) RunBulk(ctx context.Context, op models.BulkOperation) (*models.BulkResult, error) {
	if !op.IsValid() {
		return nil, fmt.Errorf("%w: unknown bulk operation %q", apperrors.ErrValidation, op)
	}
	if !c.applying.CompareAndSwap(false, true) {
		return nil, apperrors.ErrOperationInProgress
	}
	defer c.applying.Store(false)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	start := time.Now()
	snapshot := c.store.Get()
	next := make([]*models.Employee, len(snapshot))
	result := &models.BulkResult{Operation: op, FailedIDs: []uuid.UUID{}}
	var changed []*models.Employee
	now := c.now()

	for i, r := range snapshot {
		next[i] = r
		updated, touched, err := c.apply(op, r)
		if err != nil {
			result.FailedIDs = append(result.FailedIDs, r.ID)
			c.logger.Warn("Bulk update failed for record",
				zap.String("operation", string(op)),
				zap.String("employee_id", r.ID.String()),
				zap.Error(err))
			continue
		}
		if !touched {
			continue
		}
		updated.UpdatedAt = now
		next[i] = updated
		changed = append(changed, updated)
		result.UpdatedCount++
	}

	if err := c.suspend(ctx); err != nil {
		c.logger.Warn("Bulk operation abandoned before commit",
			zap.String("operation", string(op)),
			zap.Error(err))
		return nil, fmt.Errorf("bulk %s abandoned: %w", op, err)
	}

	c.store.ReplaceAll(next)
	if c.onCommit != nil {
		c.onCommit(changed)
	}

	classification := Classify(next, c.cfg.InitialTotal)
	result.Aggregate = classification.Aggregate

	c.logger.Info("Bulk operation completed",
		zap.String("operation", string(op)),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("failed", len(result.FailedIDs)),
		zap.Int("remaining_issues", result.Aggregate.TotalIssueCount),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// suspend is the only suspension point of a batch.
func (c *Coordinator) suspend(ctx context.Context) error {
	if c.cfg.BulkDelay > 0 {
		timer := time.NewTimer(c.cfg.BulkDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// apply computes the new value of one record. touched is false when the
// operation does not concern r.
func (c *Coordinator) apply(op models.BulkOperation, r *models.Employee) (*models.Employee, bool, error) {
	switch op {
	case models.BulkMergeAllAliases:
		if r.IssueType != models.IssueTypeAlias {
			return r, false, nil
		}
		next, _ := mergeAliases(r)
		if next == r {
			// A single-email alias record still needs its issue cleared.
			next = r.Clone()
			next.SetIssue(models.IssueTypeNone)
		}
		return next, true, nil

	case models.BulkApplyAllResolutions:
		if r.IssueType != models.IssueTypeConflict {
			return r, false, nil
		}
		next, err := applyResolution(r, RecommendedResolution(r))
		if err != nil {
			return nil, false, err
		}
		return next, true, nil

	case models.BulkFixAll:
		if !r.HasQualityIssues && r.IssueType == models.IssueTypeNone {
			return r, false, nil
		}
		next, err := c.fix(r)
		if err != nil {
			return nil, false, err
		}
		return next, true, nil
	}
	return r, false, nil
}

// fix drives a record to a clean state: merged emails, resolved conflicts and
// default-filled required attributes. A required attribute that cannot be
// default-filled fails the record instead of clearing its issue.
func (c *Coordinator) fix(r *models.Employee) (*models.Employee, error) {
	next := r
	if next.IssueType == models.IssueTypeAlias {
		next, _ = mergeAliases(next)
	}
	if next.IssueType == models.IssueTypeConflict || len(next.Conflicts) > 0 {
		resolved, err := applyResolution(next, RecommendedResolution(next))
		if err != nil {
			resolved, err = applyResolution(next, firstValueResolution(next))
		}
		if err == nil {
			next = resolved
		}
	}
	next = fillDefaults(next, c.cfg.RequiredFields, c.cfg.FillValue)
	if missing := next.MissingFields(c.cfg.RequiredFields); len(missing) > 0 {
		return nil, fmt.Errorf("%w: no default for required %s", apperrors.ErrValidation, strings.Join(missing, ", "))
	}
	next.Conflicts = nil
	next.SetIssue(models.IssueTypeNone)
	return next, nil
}
