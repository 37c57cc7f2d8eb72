// Package migrations holds embedded schema migrations for Postgres and
// ClickHouse and small helpers to apply them in order.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"ledgerwatch/internal/storage/clickhouse"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// ApplyPostgres runs all embedded Postgres migrations in lexical order.
// Statements are idempotent (CREATE TABLE IF NOT EXISTS) so re-applying
// on startup is safe.
func ApplyPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	files, err := sortedFiles(postgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, name := range files {
		sql, err := postgresFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// ApplyClickHouse runs all embedded ClickHouse migrations in lexical order.
// ClickHouse does not support multiple statements per query, so each file
// is split on semicolons and executed statement by statement.
func ApplyClickHouse(ctx context.Context, conn *clickhouse.Conn) error {
	files, err := sortedFiles(clickhouseFS, "clickhouse")
	if err != nil {
		return err
	}
	for _, name := range files {
		raw, err := clickhouseFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", name, err)
			}
		}
	}
	return nil
}

func sortedFiles(fsys embed.FS, dir string) ([]string, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, dir+"/"+e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
