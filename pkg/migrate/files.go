package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

const versionLayout = "YYYYMMDDHHMMSS"

var (
	unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)
	fileNameRe   = regexp.MustCompile(`^\d{14}_[a-z0-9_]+\.sql$`)
)

var sqlTemplate = template.Must(template.New("catalog-migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.CamelName}}: describe the catalog schema change.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{.CamelName}}
-- +goose StatementEnd
`))

// Create writes a timestamped SQL migration into dir and returns its path.
func Create(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	goose.SetSequential(false)
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, slug, "sql"); err != nil {
		return "", fmt.Errorf("create migration %s: %w", slug, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("locate created migration %s: %v", slug, err)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// ValidateDir checks that every SQL file is named <version>_<name>.sql, that
// goose can order the set without duplicate versions, and that each file
// declares both directions.
func ValidateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		if !fileNameRe.MatchString(name) {
			return fmt.Errorf("migration %q must be named %s_name.sql", name, versionLayout)
		}
	}

	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return fmt.Errorf("collect migrations: %w", err)
	}
	for _, m := range migrations {
		body, err := os.ReadFile(m.Source)
		if err != nil {
			return fmt.Errorf("read %s: %w", m.Source, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return fmt.Errorf("migration %s is missing %q", filepath.Base(m.Source), marker)
			}
		}
	}
	return nil
}
