package reconcile

import "github.com/ekaya-inc/orgpulse/pkg/models"

// Classification partitions a record set by issue type.
type Classification struct {
	Aliases   []*models.Employee
	Conflicts []*models.Employee
	Missing   []*models.Employee
	Aggregate models.IssueAggregate
}

// Classify partitions records by IssueType, preserving input order, and
// derives the aggregate against the issue total seen when the session started.
// It never fails and has no side effects; call it after every mutation rather
// than adjusting counters by hand.
func Classify(records []*models.Employee, initialTotal int) Classification {
	var c Classification
	for _, r := range records {
		if r == nil {
			continue
		}
		switch r.IssueType {
		case models.IssueTypeAlias:
			c.Aliases = append(c.Aliases, r)
		case models.IssueTypeConflict:
			c.Conflicts = append(c.Conflicts, r)
		case models.IssueTypeMissing:
			c.Missing = append(c.Missing, r)
		}
	}
	c.Aggregate = models.NewIssueAggregate(len(c.Aliases), len(c.Conflicts), len(c.Missing), initialTotal)
	return c
}

// ByType returns the partition for an issue type. IssueTypeNone yields nil.
func (c Classification) ByType(t models.IssueType) []*models.Employee {
	switch t {
	case models.IssueTypeAlias:
		return c.Aliases
	case models.IssueTypeConflict:
		return c.Conflicts
	case models.IssueTypeMissing:
		return c.Missing
	default:
		return nil
	}
}

// CountIssues returns how many records carry any issue.
func CountIssues(records []*models.Employee) int {
	n := 0
	for _, r := range records {
		if r != nil && r.IssueType != models.IssueTypeNone && r.IssueType != "" {
			n++
		}
	}
	return n
}
