// Package demo provides sample directory connectors for Google Workspace,
// Microsoft 365 and Slack. They validate the settings a real integration
// needs and serve a fixed organization, so the setup wizard and the
// reconciliation workflow can be exercised end to end without vendor
// credentials.
package demo

import (
	"context"
	"fmt"
	"strings"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// KeyDomain overrides the email domain of the sample organization.
const KeyDomain = "domain"

const defaultDomain = "acme.com"

type provider struct {
	id          string
	description string
	required    []string
	entries     func(domain string) []models.DirectoryEntry
}

var providers = []provider{
	{
		id:          models.ProviderGoogleWorkspace,
		description: "Directory users, Gmail and Meet activity",
		required:    []string{KeyDomain, "admin_email"},
		entries:     googleEntries,
	},
	{
		id:          models.ProviderMicrosoft365,
		description: "Entra ID users, Outlook and Teams activity",
		required:    []string{"tenant_id", "client_id", "client_secret"},
		entries:     microsoftEntries,
	},
	{
		id:          models.ProviderSlack,
		description: "Workspace members and message activity",
		required:    []string{"workspace", "bot_token"},
		entries:     slackEntries,
	},
}

func init() {
	for _, p := range providers {
		p := p
		directory.Register(directory.Registration{
			Info: directory.AdapterInfo{
				Provider:    p.id,
				DisplayName: models.ProviderLabel(p.id),
				Description: p.description,
				ConfigKeys:  p.required,
			},
			Factory: func(ctx context.Context, config map[string]any, opts directory.Options) (directory.Connector, error) {
				return &Connector{provider: p, config: config}, nil
			},
		})
	}
}

// Connector serves the sample organization for one provider.
type Connector struct {
	provider provider
	config   map[string]any
}

var _ directory.Connector = (*Connector)(nil)

// New creates a demo connector for provider.
func New(providerID string, config map[string]any) (*Connector, error) {
	for _, p := range providers {
		if p.id == providerID {
			return &Connector{provider: p, config: config}, nil
		}
	}
	return nil, fmt.Errorf("no demo data for provider %q", providerID)
}

// TestConnection checks the settings a live integration would need.
func (c *Connector) TestConnection(ctx context.Context) error {
	if err := directory.RequireSettings(c.config, c.provider.required...); err != nil {
		return fmt.Errorf("%s: %w", models.ProviderLabel(c.provider.id), err)
	}
	return ctx.Err()
}

// ListEntries returns the sample organization.
func (c *Connector) ListEntries(ctx context.Context) ([]models.DirectoryEntry, error) {
	if err := c.TestConnection(ctx); err != nil {
		return nil, err
	}
	domain := strings.TrimPrefix(directory.StringSetting(c.config, KeyDomain), "@")
	if domain == "" {
		domain = defaultDomain
	}
	return c.provider.entries(domain), nil
}

// Close is a no-op.
func (c *Connector) Close() error { return nil }
