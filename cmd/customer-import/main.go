// Command customer-import bulk-loads customers from gzip-compressed NDJSON
// files (customers1.ndjson.gz ... customersN.ndjson.gz), skipping e-mails
// that are already known.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/bookshop/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		numFiles    int
		cfg         importConfig
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing customersN.ndjson.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&numFiles, "files", 3, "number of customersN.ndjson.gz files to read")
	flag.IntVar(&cfg.BatchSize, "batch-size", 1000, "rows per insert batch")
	flag.UintVar(&cfg.ExpectedCustomers, "expected", 10_000_000, "expected number of distinct customers, sizes the bloom filter")
	flag.Float64Var(&cfg.FalsePositiveRate, "fpr", 0.001, "bloom filter false positive rate")
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

	if err := run(ctx, lg, dataDir, numFiles, databaseURL, cfg); err != nil {
		lg.Fatal("Customer import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, dataDir string, numFiles int, databaseURL string, cfg importConfig) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("customers%d.ndjson.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	cfg.Now = time.Now()
	stats, err := newImporter(postgres.NewCustomerRepository(pool), lg, cfg).Import(ctx, files)
	if err != nil {
		return err
	}

	lg.Info("Customer import completed",
		zap.Int64("read", stats.Read),
		zap.Int64("invalid", stats.Invalid),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("inserted", stats.Inserted),
	)
	return nil
}
