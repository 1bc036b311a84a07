package models

// DepartmentActivity aggregates activity counters for one department.
type DepartmentActivity struct {
	Department      string  `json:"department"`
	Headcount       int     `json:"headcount"`
	EmailCount      int     `json:"email_count"`
	ChatCount       int     `json:"chat_count"`
	MeetingCount    int     `json:"meeting_count"`
	FileAccessCount int     `json:"file_access_count"`
	Collaboration   float64 `json:"collaboration_index"`
}

// AnalyticsOverview is the dashboard landing summary.
type AnalyticsOverview struct {
	Headcount         int                  `json:"headcount"`
	IncludedCount     int                  `json:"included_count"`
	IssueCount        int                  `json:"issue_count"`
	Departments       []DepartmentActivity `json:"departments"`
	CollaborationMean float64              `json:"collaboration_index"`
}
