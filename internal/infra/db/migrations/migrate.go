package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed mysql/*.sql postgres/*.sql
var FS embed.FS

// Up applies all pending migrations for dialect ("mysql" or "postgres").
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	switch dialect {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}
	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dialect); err != nil {
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return nil
}
