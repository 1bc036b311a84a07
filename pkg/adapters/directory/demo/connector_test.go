package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

func TestProvidersRegistered(t *testing.T) {
	var got []string
	for _, info := range directory.RegisteredAdapters() {
		got = append(got, info.Provider)
	}
	assert.Subset(t, got, []string{models.ProviderGoogleWorkspace, models.ProviderMicrosoft365, models.ProviderSlack})
}

func TestTestConnection_RequiresSettings(t *testing.T) {
	conn, err := New(models.ProviderSlack, map[string]any{"workspace": "acme"})
	require.NoError(t, err)

	err = conn.TestConnection(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot_token")
	assert.Contains(t, err.Error(), "Slack")
}

func TestListEntries_UsesDomain(t *testing.T) {
	conn, err := New(models.ProviderSlack, map[string]any{
		"workspace": "globex",
		"bot_token": "xoxb-test",
		KeyDomain:   "globex.com",
	})
	require.NoError(t, err)

	entries, err := conn.ListEntries(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "sarah@globex.io", entries[0].Email)
	for _, e := range entries {
		assert.Equal(t, "Slack", e.Source)
	}
}

func TestListEntries_DefaultDomain(t *testing.T) {
	conn, err := New(models.ProviderMicrosoft365, map[string]any{
		"tenant_id":     "t",
		"client_id":     "c",
		"client_secret": "s",
	})
	require.NoError(t, err)

	entries, err := conn.ListEntries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tom.wilson@acme.com", entries[0].Email)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(models.ProviderCSV, nil)
	assert.Error(t, err)
}
