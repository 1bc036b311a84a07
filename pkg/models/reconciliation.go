package models

import "github.com/google/uuid"

// IssueAggregate summarises the data-quality state of a record set.
// Always derived from the records, never maintained by hand.
type IssueAggregate struct {
	AliasCount        int `json:"alias_count"`
	ConflictCount     int `json:"conflict_count"`
	MissingCount      int `json:"missing_count"`
	TotalIssueCount   int `json:"total_issue_count"`
	InitialIssueCount int `json:"initial_issue_count"`
	PercentComplete   int `json:"percent_complete"`
}

// NewIssueAggregate builds an aggregate from per-type counts and the issue
// total observed when the session was loaded.
func NewIssueAggregate(alias, conflict, missing, initial int) IssueAggregate {
	total := alias + conflict + missing
	percent := 100
	if initial > 0 {
		percent = 100 * (initial - total) / initial
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
	}
	return IssueAggregate{
		AliasCount:        alias,
		ConflictCount:     conflict,
		MissingCount:      missing,
		TotalIssueCount:   total,
		InitialIssueCount: initial,
		PercentComplete:   percent,
	}
}

// BulkOperation names a reconciliation action applied to many records.
type BulkOperation string

const (
	BulkMergeAllAliases     BulkOperation = "merge_all_aliases"
	BulkApplyAllResolutions BulkOperation = "apply_all_resolutions"
	BulkFixAll              BulkOperation = "fix_all"
)

// IsValid checks if the bulk operation is known.
func (o BulkOperation) IsValid() bool {
	switch o {
	case BulkMergeAllAliases, BulkApplyAllResolutions, BulkFixAll:
		return true
	default:
		return false
	}
}

// BulkResult reports the outcome of a bulk operation.
// Failed records are listed rather than failing the whole batch.
type BulkResult struct {
	Operation    BulkOperation  `json:"operation"`
	UpdatedCount int            `json:"updated_count"`
	FailedIDs    []uuid.UUID    `json:"failed_ids"`
	Aggregate    IssueAggregate `json:"aggregate"`
}

// Attempted returns how many records the operation touched.
func (r *BulkResult) Attempted() int {
	return r.UpdatedCount + len(r.FailedIDs)
}
