package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	controllerhandler "giveroute/internal/controller/handler"
	controllerservice "giveroute/internal/controller/service"
	controllerstore "giveroute/internal/controller/store"
	donationhandler "giveroute/internal/donation/handler"
	donationmetrics "giveroute/internal/donation/metrics"
	"giveroute/internal/donation/ranking"
	donationservice "giveroute/internal/donation/service"
	"giveroute/internal/donation/store/ledger"
	jwttoken "giveroute/internal/jwt_token"
	"giveroute/internal/payout"
	payouthandler "giveroute/internal/payout/handler"
	"giveroute/internal/platform/config"
	"giveroute/internal/platform/httpserver"
	"giveroute/internal/platform/logger"
	"giveroute/internal/platform/metrics"
	"giveroute/internal/platform/postgres"
	"giveroute/internal/platform/redis"
	ratelimit "giveroute/internal/ratelimit/middleware"
	"giveroute/internal/ratelimit/store/bucket"
	registryhandler "giveroute/internal/registry/handler"
	registrymetrics "giveroute/internal/registry/metrics"
	registryservice "giveroute/internal/registry/service"
	"giveroute/internal/registry/store/charity"
	httptransport "giveroute/internal/transport/http"
	"giveroute/pkg/domain"
	"giveroute/pkg/platform/audit"
	"giveroute/pkg/platform/audit/outbox"
	"giveroute/pkg/platform/audit/publisher"
	auditmemory "giveroute/pkg/platform/audit/store/memory"
	auditpostgres "giveroute/pkg/platform/audit/store/postgres"
	"giveroute/pkg/platform/tx"
)

// txRunner is the unit-of-work boundary shared by every service.
type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// stores bundles the backend chosen by configuration.
type stores struct {
	tx         txRunner
	charities  registryservice.CharityStore
	ledger     donationservice.LedgerStore
	controller controllerservice.Store
	audit      audit.Store
	outbox     *auditpostgres.Store
	db         *sql.DB
}

func main() {
	var (
		verbose = pflag.Bool("verbose", false, "enable debug logging")
		migrate = pflag.Bool("migrate", true, "apply database migrations on startup")
		envFile = pflag.String("env-file", ".env", "optional dotenv file")
	)
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Verbose || *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *migrate, log); err != nil {
		log.Error("giveroute stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, migrate bool, log *slog.Logger) error {
	st, err := openStores(ctx, cfg, migrate, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	publisherOpts := []publisher.Option{publisher.WithLogger(log)}
	if st.outbox == nil {
		publisherOpts = append(publisherOpts, publisher.WithAsyncBuffer(cfg.AuditBuffer))
	}
	auditPublisher := publisher.NewPublisher(st.audit, publisherOpts...)
	defer auditPublisher.Close()

	controller := controllerservice.New(st.controller, st.tx,
		controllerservice.WithLogger(log),
		controllerservice.WithAuditPublisher(auditPublisher),
	)
	if cfg.Controller != "" {
		initial, err := domain.ParseAddress(cfg.Controller)
		if err != nil {
			return fmt.Errorf("parse controller address: %w", err)
		}
		if err := controller.Bootstrap(ctx, initial); err != nil {
			return fmt.Errorf("bootstrap controller: %w", err)
		}
	} else {
		log.Warn("no controller configured; admin endpoints stay locked until one is recorded")
	}

	registry := registryservice.New(st.charities, st.tx, controller,
		registryservice.WithLogger(log),
		registryservice.WithAuditPublisher(auditPublisher),
		registryservice.WithMetrics(registrymetrics.New()),
	)

	var checks []httptransport.Option
	var ranker donationservice.Ranker = ranking.NewInMemory()
	var buckets ratelimit.BucketStore = bucket.NewInMemoryBucketStore()
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("using redis for rankings and rate limits")
		ranker = ranking.NewRedis(redisClient.Client)
		buckets = bucket.NewRedisBucketStore(redisClient.Client, nil)
		checks = append(checks, httptransport.WithHealthCheck("redis", redisClient.Health))
	}
	if st.db != nil {
		checks = append(checks, httptransport.WithHealthCheck("postgres", st.db.PingContext))
	}

	payouts := payout.NewLedger(payout.WithLogger(log))
	router := donationservice.New(registry, st.ledger, payouts, st.tx,
		donationservice.WithLogger(log),
		donationservice.WithAuditPublisher(auditPublisher),
		donationservice.WithMetrics(donationmetrics.New()),
		donationservice.WithRanker(ranker),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	handler := httptransport.NewRouter(httptransport.Handlers{
		Registry:   registryhandler.New(registry, log),
		Donation:   donationhandler.New(donationservice.NewQueue(router), log),
		Controller: controllerhandler.New(controller, log),
		Payout:     payouthandler.New(payouts, controller, log),
	}, jwtService, log, append(checks,
		httptransport.WithMetrics(metrics.New()),
		httptransport.WithRateLimit(ratelimit.New(buckets, cfg.RateLimit.Requests, cfg.RateLimit.Window, log,
			ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		)),
	)...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting giveroute", "addr", cfg.Addr, "postgres", cfg.UsePostgres(), "redis", cfg.Redis.URL != "")
		return httpserver.Serve(ctx, httpserver.New(cfg.Addr, handler), cfg.ShutdownTimeout)
	})
	if st.outbox != nil && len(cfg.Kafka.Brokers) > 0 {
		g.Go(func() error {
			return runRelay(ctx, cfg, st.outbox, log)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("giveroute shut down")
	return nil
}

func openStores(ctx context.Context, cfg config.Server, migrate bool, log *slog.Logger) (*stores, error) {
	if !cfg.UsePostgres() {
		log.Info("using in-memory stores")
		return &stores{
			tx:         tx.NewLocker(),
			charities:  charity.NewInMemory(),
			ledger:     ledger.NewInMemory(),
			controller: controllerstore.NewInMemory(),
			audit:      auditmemory.NewInMemoryStore(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := postgres.Migrate(ctx, log, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	outboxStore := auditpostgres.New(db)
	return &stores{
		tx:         newPostgresTx(db),
		charities:  charity.NewPostgres(db),
		ledger:     ledger.NewPostgres(db),
		controller: controllerstore.NewPostgres(db),
		audit:      outboxStore,
		outbox:     outboxStore,
		db:         db,
	}, nil
}

func runRelay(ctx context.Context, cfg config.Server, source *auditpostgres.Store, log *slog.Logger) error {
	client, err := outbox.NewClient(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := outbox.EnsureTopic(ctx, client, cfg.Kafka.Topic, 1, 1); err != nil {
		return err
	}
	log.Info("relaying audit outbox", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	return outbox.NewRelay(source, client, cfg.Kafka.Topic,
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithLogger(log),
	).Run(ctx)
}
