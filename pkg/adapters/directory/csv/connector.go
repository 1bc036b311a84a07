// Package csv reads employees from uploaded directory exports.
package csv

import (
	"bytes"
	"context"
	"encoding/base64"
	stdcsv "encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory"
	"github.com/ekaya-inc/orgpulse/pkg/models"
)

// Config keys understood by the CSV connector.
const (
	KeyContent       = "content"        // raw CSV text
	KeyContentBase64 = "content_base64" // CSV bytes, base64 encoded (for non UTF-8 exports)
	KeyEncoding      = "encoding"       // fallback encoding when the export has no BOM
	KeySourceLabel   = "source_label"   // label stamped on discovered emails
)

func init() {
	directory.Register(directory.Registration{
		Info: directory.AdapterInfo{
			Provider:    models.ProviderCSV,
			DisplayName: "CSV Import",
			Description: "Upload a directory export with name and email columns",
			ConfigKeys:  []string{KeyContent},
		},
		Factory: func(ctx context.Context, config map[string]any, opts directory.Options) (directory.Connector, error) {
			return New(config, opts)
		},
	})
}

// Connector parses a CSV directory export held in the connection config.
type Connector struct {
	data     []byte
	encoding string
	source   string
}

var _ directory.Connector = (*Connector)(nil)

// New creates a connector from connection settings.
func New(config map[string]any, opts directory.Options) (*Connector, error) {
	var data []byte
	if encoded := directory.StringSetting(config, KeyContentBase64); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", KeyContentBase64, err)
		}
		data = decoded
	} else {
		data = []byte(directory.StringSetting(config, KeyContent))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("missing required setting %q", KeyContent)
	}

	enc := directory.StringSetting(config, KeyEncoding)
	if enc == "" {
		enc = opts.CSVEncoding
	}
	if _, err := lookupEncoding(enc); err != nil {
		return nil, err
	}

	source := directory.StringSetting(config, KeySourceLabel)
	if source == "" {
		source = models.ProviderLabel(models.ProviderCSV)
	}
	return &Connector{data: data, encoding: enc, source: source}, nil
}

// NewFromReader creates a connector over r, for command line imports.
func NewFromReader(r io.Reader, encoding, source string) (*Connector, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	config := map[string]any{
		KeyContentBase64: base64.StdEncoding.EncodeToString(data),
		KeyEncoding:      encoding,
		KeySourceLabel:   source,
	}
	return New(config, directory.Options{})
}

// TestConnection parses the export and checks the header.
func (c *Connector) TestConnection(ctx context.Context) error {
	_, err := c.ListEntries(ctx)
	return err
}

// Close is a no-op; the export lives in memory.
func (c *Connector) Close() error { return nil }

// column aliases, keyed by case-folded header
var columnAliases = map[string]string{
	"name":              "name",
	"full name":         "name",
	"display name":      "name",
	"email":             "email",
	"email address":     "email",
	"mail":              "email",
	"primary":           "primary",
	"is primary":        "primary",
	"department":        "department",
	"dept":              "department",
	"team":              "department",
	"position":          "position",
	"title":             "position",
	"job title":         "position",
	"location":          "location",
	"office":            "location",
	"email count":       "email_count",
	"email_count":       "email_count",
	"chat count":        "chat_count",
	"chat_count":        "chat_count",
	"meeting count":     "meeting_count",
	"meeting_count":     "meeting_count",
	"file access count": "file_access_count",
	"file_access_count": "file_access_count",
}

// ListEntries decodes and parses the export. Rows without a name or email
// are skipped; a header lacking either column is an error.
func (c *Connector) ListEntries(ctx context.Context) ([]models.DirectoryEntry, error) {
	decoded, err := decode(c.data, c.encoding)
	if err != nil {
		return nil, err
	}

	reader := stdcsv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	fold := cases.Fold()
	index := make(map[string]int)
	for i, h := range header {
		if canonical, ok := columnAliases[fold.String(strings.TrimSpace(h))]; ok {
			if _, dup := index[canonical]; !dup {
				index[canonical] = i
			}
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("header has no name column")
	}
	if _, ok := index["email"]; !ok {
		return nil, fmt.Errorf("header has no email column")
	}

	field := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	count := func(row []string, column string) int {
		n, _ := strconv.Atoi(field(row, column))
		return n
	}

	var entries []models.DirectoryEntry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}

		name, email := field(row, "name"), field(row, "email")
		if name == "" || email == "" {
			continue
		}
		primary, _ := strconv.ParseBool(field(row, "primary"))
		if p := strings.ToLower(field(row, "primary")); p == "yes" || p == "y" {
			primary = true
		}

		entries = append(entries, models.DirectoryEntry{
			Source:          c.source,
			Name:            name,
			Email:           email,
			IsPrimary:       primary,
			Department:      field(row, "department"),
			Position:        field(row, "position"),
			Location:        field(row, "location"),
			EmailCount:      count(row, "email_count"),
			ChatCount:       count(row, "chat_count"),
			MeetingCount:    count(row, "meeting_count"),
			FileAccessCount: count(row, "file_access_count"),
		})
	}
	return entries, nil
}
