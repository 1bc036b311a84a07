// Package directory defines connectors that read people from source systems
// (workspace directories, chat tools, CSV exports) for employee discovery.
package directory

import (
	"context"

	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// Connector reads directory entries from one configured source.
// Each implementation owns its resources and must be closed when done.
type Connector interface {
	// TestConnection verifies the source is reachable with the given settings.
	TestConnection(ctx context.Context) error

	// ListEntries returns every person the source knows about.
	ListEntries(ctx context.Context) ([]models.DirectoryEntry, error)

	// Close releases the connector's resources.
	Close() error
}

// Options carries server-wide defaults into connector factories.
type Options struct {
	// CSVEncoding is the fallback encoding for CSV exports without a BOM.
	CSVEncoding string
}
