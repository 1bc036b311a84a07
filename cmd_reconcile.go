package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/adapters/directory/csv"
	"github.com/ekaya-inc/orgpulse/pkg/config"
	"github.com/ekaya-inc/orgpulse/pkg/models"
	"github.com/ekaya-inc/orgpulse/pkg/reconcile"
	"github.com/ekaya-inc/orgpulse/pkg/services"
)

type reconcileOptions struct {
	file      string
	source    string
	encoding  string
	required  string
	fillValue string
	operation string
	asJSON    bool
	verbose   bool
}

// newReconcileCmd runs discovery and reconciliation over a CSV export without
// a database, printing the resulting records.
func newReconcileCmd() *cobra.Command {
	var opts reconcileOptions

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a CSV directory export offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			if opts.verbose {
				var err error
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
			}
			return runReconcile(cmd, opts, logger)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "CSV export to read, or - for stdin (required)")
	cmd.Flags().StringVar(&opts.source, "source", models.ProviderLabel(models.ProviderCSV), "Source label stamped on imported emails")
	cmd.Flags().StringVar(&opts.encoding, "encoding", "utf-8", "Encoding of the export when it has no BOM")
	cmd.Flags().StringVar(&opts.required, "required", strings.Join(models.DefaultRequiredFields, ","), "Comma-separated required attributes")
	cmd.Flags().StringVar(&opts.fillValue, "fill", models.NotSpecified, "Default for absent required attributes")
	cmd.Flags().StringVar(&opts.operation, "apply", "", "Bulk operation to apply: merge_all_aliases, apply_all_resolutions or fix_all")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print records as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log reconciliation steps to stderr")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runReconcile(cmd *cobra.Command, opts reconcileOptions, logger *zap.Logger) error {
	required, err := config.ParseRequiredFields(opts.required)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return fmt.Errorf("failed to open export: %w", err)
		}
		defer f.Close()
		in = f
	}

	connector, err := csv.NewFromReader(in, opts.encoding, opts.source)
	if err != nil {
		return err
	}
	defer connector.Close()

	entries, err := connector.ListEntries(cmd.Context())
	if err != nil {
		return err
	}

	projectID := uuid.New()
	employees := services.MergeEntries(projectID, entries, required)
	session := reconcile.NewSession(projectID, employees, reconcile.Options{
		RequiredFields: required,
		FillValue:      opts.fillValue,
	}, logger)

	out := cmd.OutOrStdout()
	var summary string
	if opts.operation != "" {
		result, err := session.RunBulk(cmd.Context(), models.BulkOperation(opts.operation))
		if err != nil {
			return err
		}
		summary = services.BulkSummary(result)
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Aggregate models.IssueAggregate `json:"aggregate"`
			Summary   string                `json:"summary,omitempty"`
			Records   []*models.Employee    `json:"records"`
		}{session.GetAggregate(), summary, session.Records()})
	}

	fmt.Fprintf(out, "%d entries merged into %d employees\n", len(entries), len(employees))
	if summary != "" {
		fmt.Fprintln(out, summary)
	}
	printRecords(out, session.Records(), required)

	agg := session.GetAggregate()
	fmt.Fprintf(out, "\nissues: %d alias, %d conflict, %d missing (%d%% resolved)\n",
		agg.AliasCount, agg.ConflictCount, agg.MissingCount, agg.PercentComplete)
	return nil
}

func printRecords(out io.Writer, records []*models.Employee, required []string) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPRIMARY EMAIL\tDEPARTMENT\tPOSITION\tISSUE\tDETAIL")
	for _, r := range records {
		primary, _ := r.PrimaryEmail()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name, primary.Address, deref(r.Department), deref(r.Position), r.IssueType, issueDetail(r, required))
	}
	_ = tw.Flush()
}

func issueDetail(r *models.Employee, required []string) string {
	switch r.IssueType {
	case models.IssueTypeAlias:
		return fmt.Sprintf("%d addresses", len(r.Emails))
	case models.IssueTypeConflict:
		rec := reconcile.RecommendedResolution(r)
		var parts []string
		for _, field := range slices.Sorted(maps.Keys(rec)) {
			parts = append(parts, field+" -> "+rec[field])
		}
		return strings.Join(parts, "; ")
	case models.IssueTypeMissing:
		return "missing " + strings.Join(r.MissingFields(required), ", ")
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
