package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bookshop/internal/domain/customer"
)

const progressEvery = 1_000_000

// customerStore is the slice of the postgres customer repository the
// importer needs.
type customerStore interface {
	FindByEmail(ctx context.Context, email string) (*customer.Customer, error)
	InsertBatch(ctx context.Context, customers []customer.Customer) (int64, error)
}

type importConfig struct {
	BatchSize         int
	ExpectedCustomers uint
	FalsePositiveRate float64
	Now               time.Time
}

// importStats counts records by outcome.
type importStats struct {
	Read       int64
	Invalid    int64
	Duplicates int64
	Inserted   int64
}

// importer streams customer records from every file concurrently into a
// single writer. The writer owns the bloom filter of e-mails seen so far: a
// miss is certainly new, a hit is confirmed against the pending batch and
// then the store before the record is dropped.
type importer struct {
	store customerStore
	lg    *zap.Logger
	cfg   importConfig

	seen    *bloom.BloomFilter
	pending map[string]struct{}
	batch   []customer.Customer

	read, invalid atomic.Int64
	duplicates    int64
	inserted      int64
}

func newImporter(store customerStore, lg *zap.Logger, cfg importConfig) *importer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.ExpectedCustomers == 0 {
		cfg.ExpectedCustomers = 1_000_000
	}
	if cfg.FalsePositiveRate <= 0 || cfg.FalsePositiveRate >= 1 {
		cfg.FalsePositiveRate = 0.001
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	return &importer{
		store:   store,
		lg:      lg,
		cfg:     cfg,
		seen:    bloom.NewWithEstimates(cfg.ExpectedCustomers, cfg.FalsePositiveRate),
		pending: make(map[string]struct{}, cfg.BatchSize),
	}
}

// Import reads all files and inserts every valid customer whose e-mail is
// not yet stored.
func (im *importer) Import(ctx context.Context, files []string) (importStats, error) {
	records := make(chan customer.Customer, im.cfg.BatchSize)

	g, gctx := errgroup.WithContext(ctx)

	readers, rctx := errgroup.WithContext(gctx)
	for i, path := range files {
		readers.Go(func() error {
			return im.readFile(rctx, i+1, path, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})
	g.Go(func() error {
		return im.write(gctx, records)
	})

	err := g.Wait()
	stats := importStats{
		Read:       im.read.Load(),
		Invalid:    im.invalid.Load(),
		Duplicates: im.duplicates,
		Inserted:   im.inserted,
	}
	return stats, err
}

func (im *importer) readFile(ctx context.Context, fileNo int, path string, out chan<- customer.Customer) error {
	return streamGzLines(ctx, path, func(line []byte) error {
		if n := im.read.Add(1); n%progressEvery == 0 {
			im.lg.Info("Import progress", zap.Int64("read", n))
		}

		c, err := decodeCustomer(line)
		if err == nil {
			err = c.Validate(im.cfg.Now)
		}
		if err != nil {
			im.invalid.Add(1)
			im.lg.Debug("Skipping invalid record", zap.Int("file", fileNo), zap.Error(err))
			return nil
		}

		select {
		case out <- c:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (im *importer) write(ctx context.Context, records <-chan customer.Customer) error {
	for c := range records {
		isNew, err := im.isNew(ctx, c.Email)
		if err != nil {
			return err
		}
		if !isNew {
			im.duplicates++
			continue
		}

		im.seen.AddString(c.Email)
		im.pending[c.Email] = struct{}{}
		im.batch = append(im.batch, c)
		if len(im.batch) >= im.cfg.BatchSize {
			if err := im.flush(ctx); err != nil {
				return err
			}
		}
	}
	return im.flush(ctx)
}

func (im *importer) isNew(ctx context.Context, email string) (bool, error) {
	if !im.seen.TestString(email) {
		return true, nil
	}
	if _, ok := im.pending[email]; ok {
		return false, nil
	}
	_, err := im.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, customer.ErrNotFound):
		return true, nil
	default:
		return false, errors.Wrapf(err, "confirm %s", email)
	}
}

func (im *importer) flush(ctx context.Context) error {
	if len(im.batch) == 0 {
		return nil
	}
	n, err := im.store.InsertBatch(ctx, im.batch)
	if err != nil {
		return errors.Wrap(err, "insert batch")
	}
	// Rows already present in the store before this run are skipped by the
	// insert itself.
	im.duplicates += int64(len(im.batch)) - n
	im.inserted += n
	im.batch = im.batch[:0]
	clear(im.pending)
	return nil
}

// decodeCustomer parses {"name":...,"email":...,"enrolledOn":"YYYY-MM-DD"}.
// E-mails are lower-cased so the filter and the unique index agree.
func decodeCustomer(line []byte) (customer.Customer, error) {
	var c customer.Customer
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "name":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "name")
			}
			c.Name = v
		case "email":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "email")
			}
			c.Email = strings.ToLower(strings.TrimSpace(v))
		case "enrolledOn":
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "enrolledOn")
			}
			if c.EnrolledAt, err = time.Parse(time.DateOnly, v); err != nil {
				return errors.Wrap(err, "enrolledOn")
			}
		default:
			return d.Skip()
		}
		return nil
	})
	return c, err
}

// streamGzLines opens a gzip-compressed file and calls fn for each non-empty
// line.
func streamGzLines(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
