// Package migrations holds the PostgreSQL schema. Every file is idempotent
// and applied in name order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var files embed.FS

// Embedded returns the bundled migrations.
func Embedded() fs.FS { return files }

// Dir returns migrations read from a directory on disk.
func Dir(path string) fs.FS { return os.DirFS(path) }

// List returns the .sql file names in fsys in apply order.
func List(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Apply executes every migration in fsys and returns the applied names.
func Apply(ctx context.Context, db *pgxpool.Pool, fsys fs.FS) ([]string, error) {
	names, err := List(fsys)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(b)); err != nil {
			return nil, fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return names, nil
}
