package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bryanwahyu/brandsentry/internal/config"
	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/jobs"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/infra/db/memory"
	"github.com/bryanwahyu/brandsentry/internal/infra/db/migrations"
	"github.com/bryanwahyu/brandsentry/internal/infra/db/mysql"
	"github.com/bryanwahyu/brandsentry/internal/infra/db/postgres"
)

// Stores groups the persistence ports for one driver. DB is nil for the memory driver.
type Stores struct {
	Scans   scans.Repository
	Jobs    jobs.Store
	Threats threats.Repository
	Brands  brands.Repository
	DB      *sql.DB
}

var (
	_ scans.Repository   = (*mysql.ScanRepository)(nil)
	_ jobs.Store         = (*mysql.JobStore)(nil)
	_ threats.Repository = (*mysql.ThreatRepository)(nil)
	_ brands.Repository  = (*mysql.BrandRepository)(nil)
	_ scans.Repository   = (*postgres.ScanRepository)(nil)
	_ jobs.Store         = (*postgres.JobStore)(nil)
	_ threats.Repository = (*postgres.ThreatRepository)(nil)
	_ brands.Repository  = (*postgres.BrandRepository)(nil)
	_ scans.Repository   = (*memory.ScanStore)(nil)
	_ jobs.Store         = (*memory.JobStore)(nil)
	_ threats.Repository = (*memory.ThreatStore)(nil)
	_ brands.Repository  = (*memory.BrandStore)(nil)
)

func openStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		ts := memory.NewThreatStore()
		bs := memory.NewBrandStore(ts)
		for _, seed := range cfg.Brands {
			bs.Put(seed.Brand())
		}
		return &Stores{
			Scans:   memory.NewScanStore(),
			Jobs:    memory.NewJobStore(),
			Threats: ts,
			Brands:  bs,
		}, nil

	case config.DriverMySQL:
		db, err := mysql.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		if err := migrate(ctx, cfg, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Stores{
			Scans:   mysql.NewScanRepository(db),
			Jobs:    mysql.NewJobStore(db),
			Threats: mysql.NewThreatRepository(db),
			Brands:  mysql.NewBrandRepository(db),
			DB:      db,
		}, nil

	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := migrate(ctx, cfg, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Stores{
			Scans:   postgres.NewScanRepository(db),
			Jobs:    postgres.NewJobStore(db),
			Threats: postgres.NewThreatRepository(db),
			Brands:  postgres.NewBrandRepository(db),
			DB:      db,
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

func migrate(ctx context.Context, cfg *config.Config, db *sql.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}
	return migrations.Up(ctx, db, cfg.Database.Driver)
}
