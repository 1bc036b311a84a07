package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewIssueAggregate(t *testing.T) {
	tests := []struct {
		name                              string
		alias, conflict, missing, initial int
		wantTotal, wantPercent            int
	}{
		{"no issues ever", 0, 0, 0, 0, 0, 100},
		{"nothing resolved", 2, 1, 1, 4, 4, 0},
		{"half resolved", 1, 0, 1, 4, 2, 50},
		{"floors fractions", 1, 1, 0, 3, 2, 33},
		{"all resolved", 0, 0, 0, 9, 0, 100},
		{"clamped when total exceeds baseline", 3, 0, 0, 2, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewIssueAggregate(tt.alias, tt.conflict, tt.missing, tt.initial)
			assert.Equal(t, tt.wantTotal, agg.TotalIssueCount)
			assert.Equal(t, agg.AliasCount+agg.ConflictCount+agg.MissingCount, agg.TotalIssueCount)
			assert.Equal(t, tt.wantPercent, agg.PercentComplete)
		})
	}
}

func TestBulkOperation_IsValid(t *testing.T) {
	assert.True(t, BulkMergeAllAliases.IsValid())
	assert.True(t, BulkApplyAllResolutions.IsValid())
	assert.True(t, BulkFixAll.IsValid())
	assert.False(t, BulkOperation("delete_all").IsValid())
}

func TestBulkResult_Attempted(t *testing.T) {
	r := &BulkResult{UpdatedCount: 3, FailedIDs: []uuid.UUID{uuid.New()}}
	assert.Equal(t, 4, r.Attempted())
}

func TestSetupStep_Next(t *testing.T) {
	assert.Equal(t, SetupStepDiscovery, SetupStepConnection.Next())
	assert.Equal(t, SetupStepDataQuality, SetupStepDiscovery.Next())
	assert.Equal(t, SetupStepAnonymization, SetupStepDataQuality.Next())
	assert.Equal(t, SetupStepComplete, SetupStepAnonymization.Next())
	assert.Equal(t, SetupStepComplete, SetupStepComplete.Next())
	assert.Equal(t, -1, SetupStep("bogus").Index())
}
