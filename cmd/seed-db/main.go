package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/bookshop/internal/domain/customer"
	"github.com/xenking/bookshop/internal/storage/memory"
	"github.com/xenking/bookshop/internal/storage/postgres"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seedCustomers(ctx, lg, postgres.NewCustomerRepository(pool), time.Now())
}

// seedCustomers upserts one demo customer per loyalty tier under fixed ids.
func seedCustomers(ctx context.Context, lg *zap.Logger, repo customer.Repository, now time.Time) error {
	for _, c := range memory.DemoCustomers(now) {
		saved, err := repo.Save(ctx, &c)
		if err != nil {
			return errors.Wrapf(err, "upsert customer %d", c.ID)
		}
		lg.Info("Upserted customer",
			zap.Int64("id", saved.ID),
			zap.String("email", saved.Email),
			zap.Int("tenure_years", saved.TenureYears(now)),
		)
	}
	return nil
}
