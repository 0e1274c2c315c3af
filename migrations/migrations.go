// Package migrations holds the pipeline's SQLite schema as embedded
// goose migrations.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// Run brings the article database up to the current schema. It is
// called once at startup, before any store is handed out.
func Run(db *sql.DB) error {
	goose.SetBaseFS(FS)

	// The modernc driver registers as "sqlite"; goose only knows the
	// sqlite3 dialect name, which covers both.
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("migrate article database: %w", err)
	}

	return nil
}
