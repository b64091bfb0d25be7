package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"funds_tracker/internal/auth"
	"funds_tracker/internal/config"
	httpGateway "funds_tracker/internal/gateways/http"
	"funds_tracker/internal/metrics"
	"funds_tracker/internal/notification"
	"funds_tracker/internal/reconcile"
	"funds_tracker/internal/repository/memory"
	"funds_tracker/internal/repository/postgres"
	"funds_tracker/internal/usecase"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type stores struct {
	customers usecase.CustomerRepository
	funds     usecase.FundRepository
	subs      usecase.SubscriptionRepository
	txs       usecase.TransactionRepository
	health    func(ctx context.Context) error
	close     func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	log := setupLogger(cfg.Env)

	log.Info("starting funds tracker", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage))
	log.Debug("debug messages are enabled")

	if err := run(ctx, cfg, log); err != nil {
		log.Error("funds tracker stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	emailSender, smsSender, err := notification.NewSenders(ctx, notification.Options{
		Region:       cfg.Notification.Region,
		FromEmail:    cfg.Notification.FromEmail,
		EmailEnabled: cfg.Notification.EmailEnabled,
		SMSEnabled:   cfg.Notification.SMSEnabled,
	}, log)
	if err != nil {
		return fmt.Errorf("init notification senders: %w", err)
	}
	dispatcher := notification.NewDispatcher(emailSender, smsSender, log, notification.WithRecorder(m))

	tokens, err := auth.NewJWTIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TTL)
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}
	balance, err := cfg.Engine.Balance()
	if err != nil {
		return fmt.Errorf("initial balance: %w", err)
	}

	engine := usecase.NewEngine(st.customers, st.funds, st.subs, st.txs, dispatcher,
		usecase.WithEngineLogger(log),
		usecase.WithMaxAttempts(cfg.Engine.MaxAttempts),
		usecase.WithNotifyTimeout(cfg.Engine.NotifyTimeout),
		usecase.WithObserver(m),
	)
	defer engine.Wait()

	useCases := httpGateway.UseCases{
		Engine:   engine,
		Accounts: usecase.NewAccounts(st.customers, auth.BcryptHasher{Cost: bcrypt.DefaultCost}, tokens, balance),
		Catalog:  usecase.NewCatalog(st.funds),
		Ledger:   usecase.NewLedger(st.txs),
	}
	probes := httpGateway.Probes{
		Health:   st.health,
		Gatherer: reg,
		Requests: m,
	}

	server := httpGateway.New(useCases, probes, *cfg, log,
		httpGateway.WithHost(cfg.Server.Host),
		httpGateway.WithPort(uint16(cfg.Server.Port)),
		httpGateway.WithLogger(log),
		httpGateway.WithTimeout(cfg.Server.Timeout),
	)
	reconciler := reconcile.New(st.txs, log,
		reconcile.WithSchedule(cfg.Reconcile.Schedule),
		reconcile.WithStaleAfter(cfg.Reconcile.StaleAfter),
		reconcile.WithGauge(m),
	)

	log.Info("starting server", slog.String("address", cfg.Server.Host+":"+strconv.Itoa(cfg.Server.Port)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		store := memory.NewStore()
		store.SeedFunds()
		log.Warn("using in-memory storage, data is lost on restart")
		return &stores{
			customers: store,
			funds:     store,
			subs:      store,
			txs:       store,
			close:     func() {},
		}, nil
	}

	databaseURL := cfg.Pg.URL()
	if cfg.Migrations.RunOnStart {
		dir, err := filepath.Abs(cfg.Migrations.Dir)
		if err != nil {
			return nil, fmt.Errorf("migrations path: %w", err)
		}
		if err := postgres.Migrate(databaseURL, "file://"+filepath.ToSlash(dir)); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied", slog.String("dir", dir))
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.Debug("init database")

	return &stores{
		customers: postgres.NewCustomerRepository(pool),
		funds:     postgres.NewFundRepository(pool),
		subs:      postgres.NewSubRepository(pool),
		txs:       postgres.NewTransactionRepository(pool),
		health:    pool.Ping,
		close:     pool.Close,
	}, nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch strings.ToLower(env) {
	case envLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}
