package models

import (
	"time"

	"github.com/google/uuid"
)

// SetupStep is a stage of the first-time setup wizard.
type SetupStep string

const (
	SetupStepConnection    SetupStep = "connection"
	SetupStepDiscovery     SetupStep = "discovery"
	SetupStepDataQuality   SetupStep = "data_quality"
	SetupStepAnonymization SetupStep = "anonymization"
	SetupStepComplete      SetupStep = "complete"
)

// SetupSteps lists the wizard stages in order.
var SetupSteps = []SetupStep{
	SetupStepConnection,
	SetupStepDiscovery,
	SetupStepDataQuality,
	SetupStepAnonymization,
	SetupStepComplete,
}

// Index returns the position of the step in the wizard, or -1 if unknown.
func (s SetupStep) Index() int {
	for i, v := range SetupSteps {
		if v == s {
			return i
		}
	}
	return -1
}

// Next returns the step after s. The complete step is its own successor.
func (s SetupStep) Next() SetupStep {
	i := s.Index()
	if i < 0 || i >= len(SetupSteps)-1 {
		return SetupStepComplete
	}
	return SetupSteps[i+1]
}

// AnonymizationSettings controls pseudonymization of employee identities.
type AnonymizationSettings struct {
	Enabled    bool `json:"enabled"`
	HashNames  bool `json:"hash_names"`
	HashEmails bool `json:"hash_emails"`
}

// SetupState is the persisted progress of the setup wizard for a project.
// Stored in setup_states table.
type SetupState struct {
	ProjectID     uuid.UUID             `json:"project_id"`
	CurrentStep   SetupStep             `json:"current_step"`
	DiscoveredAt  *time.Time            `json:"discovered_at,omitempty"`
	Anonymization AnonymizationSettings `json:"anonymization"`
	AnonymizedAt  *time.Time            `json:"anonymized_at,omitempty"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}
