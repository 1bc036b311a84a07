package reconcile

import "github.com/ekaya-inc/orgpulse/pkg/models"

// DetectIssueType derives the dominant issue of a freshly discovered record.
// Only discovery uses it; after import, issue types change solely through
// resolution operations. Dominance: alias, then conflict, then missing.
func DetectIssueType(e *models.Employee, required []string) models.IssueType {
	if len(e.Emails) > 1 {
		return models.IssueTypeAlias
	}
	for _, c := range e.Conflicts {
		if len(c.DistinctValues()) > 1 {
			return models.IssueTypeConflict
		}
	}
	if len(e.MissingFields(required)) > 0 {
		return models.IssueTypeMissing
	}
	return models.IssueTypeNone
}

// Normalize re-derives HasQualityIssues from IssueType and defaults an empty
// issue type to none. Applied to every record entering a session.
func Normalize(e *models.Employee) {
	e.SetIssue(e.IssueType)
}
