package storage

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// Schema migrations for the findings history ship embedded in the
// binary. File names are NNN_description.sql; applied versions are
// tracked in schema_migrations so re-running the service is safe.

//go:embed migrations/*.sql
var migrationFS embed.FS

// migration is one versioned schema change.
type migration struct {
	version int
	name    string
	sql     string
}

// Migrator brings the findings history schema up to date.
type Migrator struct {
	client *ClickHouseClient
}

// NewMigrator creates a migrator over the shared client.
func NewMigrator(client *ClickHouseClient) *Migrator {
	return &Migrator{client: client}
}

// Run applies every migration not yet recorded, in version order.
func (m *Migrator) Run(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("failed to load schema migrations: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.version] {
			continue
		}

		slog.Info("applying findings schema migration",
			"version", mig.version,
			"name", mig.name,
		)

		for _, stmt := range splitStatements(mig.sql) {
			if err := m.client.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d (%s): %w", mig.version, mig.name, err)
			}
		}

		if err := m.recordVersion(ctx, mig); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", mig.version, err)
		}
	}

	return nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	return m.client.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version UInt32,
			name String,
			applied_at DateTime DEFAULT now()
		)
		ENGINE = MergeTree()
		ORDER BY version
	`)
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := m.client.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, WrapQueryError("appliedVersions", "schema_migrations", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version uint32
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[int(version)] = true
	}
	return applied, nil
}

func (m *Migrator) recordVersion(ctx context.Context, mig migration) error {
	return m.client.Exec(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		uint32(mig.version), mig.name,
	)
}

// loadMigrations reads the embedded SQL files, sorted by version.
// Files whose names do not carry a numeric version prefix are ignored.
func loadMigrations() ([]migration, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}

	var migrations []migration
	for _, entry := range entries {
		version, name, ok := parseMigrationName(entry.Name())
		if !ok {
			continue
		}

		content, err := migrationFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, err
		}

		migrations = append(migrations, migration{
			version: version,
			name:    name,
			sql:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})
	return migrations, nil
}

// parseMigrationName splits "001_create_findings.sql" into (1,
// "create_findings", true).
func parseMigrationName(filename string) (int, string, bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return 0, "", false
	}
	prefix, name, found := strings.Cut(base, "_")
	if !found || name == "" {
		return 0, "", false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return 0, "", false
	}
	return version, name, true
}

// splitStatements breaks a migration file into executable statements.
// ClickHouse takes one statement per Exec, so the file is split on
// semicolons outside single-quoted strings; full-line comments are
// stripped first so a statement that opens with a comment block is not
// mistaken for an empty one.
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false

	for _, line := range strings.Split(stripLineComments(sql), "\n") {
		for _, char := range line {
			switch {
			case char == '\'':
				inString = !inString
				current.WriteRune(char)
			case char == ';' && !inString:
				if stmt := strings.TrimSpace(current.String()); stmt != "" {
					statements = append(statements, stmt)
				}
				current.Reset()
			default:
				current.WriteRune(char)
			}
		}
		current.WriteRune('\n')
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

// stripLineComments drops lines that are entirely "--" comments.
func stripLineComments(sql string) string {
	lines := strings.Split(sql, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
