package models

import (
	"time"

	"github.com/google/uuid"
)

// Source providers employees can be discovered from.
const (
	ProviderGoogleWorkspace = "google_workspace"
	ProviderMicrosoft365    = "microsoft_365"
	ProviderSlack           = "slack"
	ProviderCSV             = "csv"
)

// ValidProviders contains all supported provider values.
var ValidProviders = []string{
	ProviderGoogleWorkspace,
	ProviderMicrosoft365,
	ProviderSlack,
	ProviderCSV,
}

// IsValidProvider checks if the provider is supported.
func IsValidProvider(p string) bool {
	for _, v := range ValidProviders {
		if v == p {
			return true
		}
	}
	return false
}

// ProviderLabel returns the human-readable source label stamped on discovered emails.
func ProviderLabel(p string) string {
	switch p {
	case ProviderGoogleWorkspace:
		return "Google Workspace"
	case ProviderMicrosoft365:
		return "Microsoft 365"
	case ProviderSlack:
		return "Slack"
	case ProviderCSV:
		return "CSV Import"
	default:
		return p
	}
}

// Connection status values
const (
	ConnectionStatusPending   = "pending"
	ConnectionStatusConnected = "connected"
	ConnectionStatusFailed    = "failed"
)

// SourceConnection is a configured link to a directory or collaboration system.
// The Config field holds provider settings (domain, tenant, token, csv payload)
// which are encrypted at rest by the service layer.
type SourceConnection struct {
	ID           uuid.UUID      `json:"id"`
	ProjectID    uuid.UUID      `json:"project_id"`
	Provider     string         `json:"provider"`
	Name         string         `json:"name"`
	Config       map[string]any `json:"config,omitempty"`
	Status       string         `json:"status"`
	LastTestedAt *time.Time     `json:"last_tested_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DirectoryEntry is one person as reported by one source system, before
// entries from different sources are merged into employee records.
type DirectoryEntry struct {
	Source          string
	Name            string
	Email           string
	IsPrimary       bool
	Department      string
	Position        string
	Location        string
	EmailCount      int
	ChatCount       int
	MeetingCount    int
	FileAccessCount int
}
