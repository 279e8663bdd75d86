package store

import (
	"context"
	"fmt"

	"invoicepro/internal/store/migrations"

	"github.com/pressly/goose/v3"
)

// Migrate applies the embedded SQL migrations with goose.
func (s *Store) Migrate(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}

	dialect := "postgres"
	if s.DB.Dialector.Name() == "sqlite" {
		dialect = "sqlite3"
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
