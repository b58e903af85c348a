package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/bookshop/internal/domain/customer"
	"github.com/xenking/bookshop/internal/domain/order"
	"github.com/xenking/bookshop/internal/handler"
	"github.com/xenking/bookshop/internal/storage/memory"
	"github.com/xenking/bookshop/internal/storage/postgres"
	"github.com/xenking/bookshop/pkg/health"
	"github.com/xenking/bookshop/pkg/httpmiddleware"
)

// stores bundles the repositories chosen by configuration.
type stores struct {
	customers interface {
		customer.Repository
		health.Pinger
	}
	orders order.Repository
	close  func()
}

// openStores connects to PostgreSQL when a database URL is configured and
// falls back to in-memory stores otherwise.
func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, now time.Time) (*stores, error) {
	if cfg.DatabaseURL == "" {
		lg.Warn("No database configured, using in-memory stores")
		customers := memory.NewCustomerRepository()
		if cfg.SeedDemoCustomers {
			for _, c := range memory.DemoCustomers(now) {
				if _, err := customers.Save(ctx, &c); err != nil {
					return nil, errors.Wrap(err, "seed demo customer")
				}
			}
			lg.Info("Seeded demo customers")
		}
		return &stores{
			customers: customers,
			orders:    memory.NewOrderRepository(),
			close:     func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	return &stores{
		customers: postgres.NewCustomerRepository(pool),
		orders:    postgres.NewOrderRepository(pool),
		close:     pool.Close,
	}, nil
}

// NewRouter builds the HTTP handler: probes plus the API behind the
// middleware chain.
func NewRouter(
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	h *handler.Handler,
	probes *health.Health,
) http.Handler {
	r := chi.NewRouter()
	r.Use(httpmiddleware.Chain(
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.Instrument("bookshop-api", tp, mp),
		httpmiddleware.LogRequests(),
	)...)

	r.Get("/livez", probes.LiveEndpoint)
	r.Get("/readyz", probes.ReadyEndpoint)
	h.Mount(r)
	return r
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.Bool("postgres", cfg.DatabaseURL != ""))

	st, err := openStores(ctx, lg, cfg, time.Now())
	if err != nil {
		return err
	}
	defer st.close()

	probes := health.New()
	probes.Add(health.Readiness, "store", health.PingCheck(st.customers), health.WithTimeout(5*time.Second))
	probes.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))
	probes.Start(ctx, 10*time.Second)
	probes.SetReady(true)

	orderService, err := order.NewService(st.customers, st.orders,
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           NewRouter(lg, m.TracerProvider(), m.MeterProvider(), handler.NewHandler(orderService), probes),
	}

	// Drain: report not ready, wait for load balancers to notice, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		probes.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		probes.Stop()
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
