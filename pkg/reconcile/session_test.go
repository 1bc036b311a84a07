package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/apperrors"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

func newTestSession(records []*models.Employee) *Session {
	return NewSession(uuid.New(), records, Options{}, zap.NewNop())
}

func TestSession_MergeAllAliasesScenario(t *testing.T) {
	records := mixedRecords(2, 0, 0, 3)
	s := newTestSession(records)
	require.Equal(t, 2, s.GetAggregate().AliasCount)
	require.Equal(t, 0, s.GetAggregate().PercentComplete)

	_, err := s.RunBulk(context.Background(), models.BulkMergeAllAliases)
	require.NoError(t, err)

	agg := s.GetAggregate()
	assert.Equal(t, 0, agg.AliasCount)
	assert.Equal(t, 100, agg.PercentComplete)

	for _, orig := range records[:2] {
		primary, _ := orig.PrimaryEmail()
		got, err := s.Record(orig.ID)
		require.NoError(t, err)
		require.Len(t, got.Emails, 1)
		assert.Equal(t, primary, got.Emails[0])
	}
}

func TestSession_DoesNotMutateInput(t *testing.T) {
	records := mixedRecords(1, 0, 0, 0)
	records[0].HasQualityIssues = false // inconsistent input gets normalized in the session copy
	s := newTestSession(records)

	got, err := s.Record(records[0].ID)
	require.NoError(t, err)
	assert.True(t, got.HasQualityIssues)
	assert.False(t, records[0].HasQualityIssues)

	_, err = s.MergeAliases(records[0].ID)
	require.NoError(t, err)
	assert.Len(t, records[0].Emails, 2)
}

func TestSession_PercentCompleteIsMonotonic(t *testing.T) {
	records := mixedRecords(2, 2, 2, 1)
	s := newTestSession(records)

	steps := []func() error{
		func() error { _, err := s.MergeAliases(records[0].ID); return err },
		func() error { _, err := s.ToggleInclusion(records[6].ID); return err },
		func() error {
			_, err := s.ApplyConflictResolution(records[2].ID, models.FieldValues{models.FieldDepartment: "Product"})
			return err
		},
		func() error {
			_, err := s.CompleteInformation(records[4].ID, models.FieldValues{models.FieldDepartment: "Ops"})
			return err
		},
		func() error {
			_, err := s.CompleteInformation(records[4].ID, models.FieldValues{models.FieldPosition: "Lead"})
			return err
		},
		func() error { _, err := s.MergeAliases(records[0].ID); return err },
		func() error { _, err := s.RunBulk(context.Background(), models.BulkApplyAllResolutions); return err },
		func() error { _, err := s.RunBulk(context.Background(), models.BulkFixAll); return err },
	}

	last := s.GetAggregate().PercentComplete
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		agg := s.GetAggregate()
		assert.GreaterOrEqual(t, agg.PercentComplete, last, "step %d", i)
		assert.Equal(t, agg.AliasCount+agg.ConflictCount+agg.MissingCount, agg.TotalIssueCount)
		assertIssueFlagsConsistent(t, s.Records())
		last = agg.PercentComplete
	}
	assert.Equal(t, 100, last)
}

func TestSession_GetRecordsByIssue(t *testing.T) {
	s := newTestSession(mixedRecords(1, 2, 3, 4))

	for typ, want := range map[models.IssueType]int{
		models.IssueTypeAlias:    1,
		models.IssueTypeConflict: 2,
		models.IssueTypeMissing:  3,
		models.IssueTypeNone:     4,
	} {
		got, err := s.GetRecordsByIssue(typ)
		require.NoError(t, err)
		assert.Len(t, got, want, "issue type %s", typ)
		for _, r := range got {
			assert.Equal(t, typ, r.IssueType)
		}
	}

	_, err := s.GetRecordsByIssue("duplicate")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

func TestSession_SingleOpsRejectedDuringBulk(t *testing.T) {
	records := mixedRecords(1, 0, 0, 0)
	s := newTestSession(records)

	s.coordinator.applying.Store(true)
	_, err := s.MergeAliases(records[0].ID)
	s.coordinator.applying.Store(false)

	assert.True(t, errors.Is(err, apperrors.ErrOperationInProgress))
	assert.Equal(t, 1, s.GetAggregate().AliasCount)
}

func TestSession_NotFoundLeavesStoreUnchanged(t *testing.T) {
	s := newTestSession(mixedRecords(1, 1, 1, 1))
	before := s.Records()
	aggBefore := s.GetAggregate()

	_, err := s.MergeAliases(uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrRecordNotFound))

	after := s.Records()
	for i := range before {
		assert.Same(t, before[i], after[i])
	}
	assert.Equal(t, aggBefore, s.GetAggregate())
}

func TestSession_DirtyTracking(t *testing.T) {
	records := mixedRecords(2, 0, 1, 2)
	s := newTestSession(records)
	assert.Empty(t, s.DirtyRecords())

	_, err := s.ToggleInclusion(records[4].ID)
	require.NoError(t, err)
	_, err = s.RunBulk(context.Background(), models.BulkMergeAllAliases)
	require.NoError(t, err)

	dirty := s.DirtyRecords()
	ids := make([]uuid.UUID, 0, len(dirty))
	for _, r := range dirty {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{records[0].ID, records[1].ID, records[4].ID}, ids)

	s.MarkSaved(dirty)
	assert.Empty(t, s.DirtyRecords())
}

func TestSession_MarkSavedKeepsRecordsChangedAfterSnapshot(t *testing.T) {
	records := mixedRecords(1, 0, 0, 1)
	s := newTestSession(records)

	_, err := s.MergeAliases(records[0].ID)
	require.NoError(t, err)
	_, err = s.ToggleInclusion(records[1].ID)
	require.NoError(t, err)
	saved := s.DirtyRecords()
	require.Len(t, saved, 2)

	// Changed between the snapshot and the save completing.
	_, err = s.ToggleInclusion(records[1].ID)
	require.NoError(t, err)
	s.MarkSaved(saved)

	dirty := s.DirtyRecords()
	require.Len(t, dirty, 1)
	assert.Equal(t, records[1].ID, dirty[0].ID)
	assert.True(t, dirty[0].IsIncluded)
}

func TestSession_Recommendation(t *testing.T) {
	records := mixedRecords(0, 1, 0, 0)
	s := newTestSession(records)

	rec, err := s.Recommendation(records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Engineering / Product", rec[models.FieldDepartment])

	_, err = s.Recommendation(uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrRecordNotFound))
}
