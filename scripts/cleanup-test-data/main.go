// cleanup-test-data removes test-like employee records left behind by manual
// testing against a development database.
//
// Names matched (case-insensitive):
// - ^test
// - ^uitest
// - ^dummy
// - ^sample
// - @example\.(com|org)$ on any email address
//
// Usage: go run ./scripts/cleanup-test-data [-dry-run=false] [project-id]
//
// Without a project ID every project is scanned. Database settings are read
// from config.yaml and the standard PG* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/orgpulse/pkg/config"
	"github.com/ekaya-inc/orgpulse/pkg/database"
)

// testNamePatterns are matched with PostgreSQL's ~* operator.
var testNamePatterns = []string{
	`^test`,
	`^uitest`,
	`^dummy`,
	`^sample`,
}

const testEmailPattern = `@example\.(com|org)$`

func main() {
	dryRun := flag.Bool("dry-run", true, "Show what would be deleted without actually deleting")
	configPath := flag.String("config", "config.yaml", "Path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath, "cleanup")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: 2,
	}, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	var scope *database.TenantScope
	if args := flag.Args(); len(args) > 0 {
		projectID, err := uuid.Parse(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid project ID: %v\n", err)
			os.Exit(1)
		}
		provider := database.NewTenantScopeProvider(db)
		scopedCtx, cleanup, err := provider.WithTenantScope(ctx, projectID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to scope connection: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		ctx = scopedCtx
		scope, _ = database.GetTenantScope(ctx)
	} else {
		scope, err = db.WithoutTenant(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to acquire connection: %v\n", err)
			os.Exit(1)
		}
		defer scope.Close()
	}

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to actually delete employees")
		fmt.Println()
	}

	ids, err := findTestEmployees(ctx, scope)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to find test employees: %v\n", err)
		os.Exit(1)
	}
	if *dryRun || len(ids) == 0 {
		fmt.Printf("\nEmployees that would be deleted: %d\n", len(ids))
		return
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM employees WHERE id = ANY($1)`, ids)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nEmployees deleted: %d\n", tag.RowsAffected())
}

// findTestEmployees prints and returns the IDs of matching employees.
func findTestEmployees(ctx context.Context, scope *database.TenantScope) ([]uuid.UUID, error) {
	rows, err := scope.Conn.Query(ctx, `
		SELECT DISTINCT e.id, e.project_id, e.name
		FROM employees e
		LEFT JOIN employee_emails m ON m.employee_id = e.id
		WHERE e.name ~* ANY($1) OR m.address ~* $2
		ORDER BY e.name
	`, testNamePatterns, testEmailPattern)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id, projectID uuid.UUID
		var name string
		if err := rows.Scan(&id, &projectID, &name); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		ids = append(ids, id)
		fmt.Printf("  %s  %q (project %s)\n", id, truncate(name, 60), projectID)
	}
	return ids, rows.Err()
}

// truncate shortens a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
