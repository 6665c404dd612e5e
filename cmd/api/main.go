package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"manuell_oppgave_backend/internal/downstream"
	"manuell_oppgave_backend/internal/events"
	apphttp "manuell_oppgave_backend/internal/http"
	"manuell_oppgave_backend/internal/http/router"
	"manuell_oppgave_backend/internal/manuelloppgave"
	"manuell_oppgave_backend/internal/mottak"
	oppgaveclient "manuell_oppgave_backend/internal/oppgave/client"
	"manuell_oppgave_backend/internal/oppgavestatus"
	"manuell_oppgave_backend/internal/scheduler"
	"manuell_oppgave_backend/internal/tilgang"
	"manuell_oppgave_backend/platform/appstate"
	"manuell_oppgave_backend/platform/azuread"
	"manuell_oppgave_backend/platform/config"
	"manuell_oppgave_backend/platform/db"
	"manuell_oppgave_backend/platform/httpkit"
	"manuell_oppgave_backend/platform/kafka"
	"manuell_oppgave_backend/platform/leader"
	"manuell_oppgave_backend/platform/logger"
	"manuell_oppgave_backend/platform/metrics"
	"manuell_oppgave_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	leaderCheckInterval = 5 * time.Second
	leaderLockKey       = "manuell-oppgave-backend:leader"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := appstate.New()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	m := metrics.New()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	events.SubscribeMetrics(eventBus, m)

	producerClient, err := kafka.NewProducerClient(cfg)
	if err != nil {
		log.Error("failed to create kafka producer", "error", err)
		panic("failed to create kafka producer: " + err.Error())
	}
	defer producerClient.Close()
	publisher := downstream.New(kafka.NewProducer(producerClient), cfg, m)

	oppgave := oppgaveclient.New(cfg.GetOppgaveURL(), azuread.TokenSource(ctx, cfg, cfg.GetOppgaveScope()), log)

	obo := azuread.NewOnBehalfOf(cfg)
	defer obo.Close()
	tilgangClient := tilgang.New(cfg.GetTilgangURL(), cfg.GetTilgangScope(), obo, log)

	replayQueue, closeReplayQueue := initReplayQueue(cfg, log)
	if closeReplayQueue != nil {
		defer closeReplayQueue()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	caseModule := manuelloppgave.NewModule(pool, oppgave, publisher, eventBus, val, log)
	caseModule.Service().SetAccessChecker(tilgangClient)
	if replayQueue != nil {
		caseModule.Service().SetFinalizeReplayer(replayQueue)
	}

	reconciler := mottak.New(caseModule.Repository(), oppgave, publisher, eventBus, log)
	reconciler.SetIncomingCounter(m.IncomingMessages)

	policy := kafka.PolicySkip
	if cfg.IsProduction() {
		policy = kafka.PolicyRetry
	}

	mottakClient, err := kafka.NewConsumerClient(cfg, cfg.GetKafkaGroupID(), cfg.GetManuellOppgaveTopic())
	if err != nil {
		log.Error("failed to create kafka consumer", "error", err)
		panic("failed to create kafka consumer: " + err.Error())
	}
	defer mottakClient.Close()
	mottakConsumer := kafka.NewConsumer(mottakClient, reconciler, kafka.ConsumerOptions{
		Name:     "mottak",
		Policy:   policy,
		Backoff:  cfg.GetConsumerRetryBackoff(),
		Running:  state.Ready,
		Recorder: m,
	}, log)

	statusHandler := oppgavestatus.NewEventHandler(caseModule.Repository(), eventBus, log)
	poller := oppgavestatus.NewPoller(caseModule.Repository(), oppgave, eventBus, cfg.GetPollInterval(), cfg.GetPollBatchSize(), log)

	elector, closeElector := initElector(cfg, log)
	if closeElector != nil {
		defer closeElector()
	}
	watcher := leader.NewWatcher(elector, leaderCheckInterval, cfg.GetLeaderDebounce(), log)

	var worker *scheduler.Worker
	if cfg.GetRedisURL() != "" {
		worker, err = scheduler.NewWorker(cfg, caseModule.Service(), log)
		if err != nil {
			log.Error("failed to initialize replay worker", "error", err)
			panic("failed to initialize replay worker: " + err.Error())
		}
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	verifier, err := httpkit.NewTokenVerifier(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize token verifier", "error", err)
		panic("failed to initialize token verifier: " + err.Error())
	}

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		State:    state,
		Metrics:  m,
		Verifier: verifier,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			caseModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	state.MarkReady()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		state.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := mottakConsumer.Run(gctx); err != nil {
			state.Fail()
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := watcher.Run(gctx, func(leadCtx context.Context) error {
			return runReconciliation(leadCtx, cfg, statusHandler, poller, state, m, policy, log)
		})
		if err != nil {
			state.Fail()
		}
		return err
	})
	if worker != nil {
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("shutting down after error", "error", err)
		eventBus.Wait()
		os.Exit(1)
	}
	eventBus.Wait()
	log.Info("shutdown complete")
}

// runReconciliation keeps external task status in sync while this replica
// is leader: the status event consumer and the poller run until leadCtx is
// cancelled. A fatal consumer error is returned so the process exits.
func runReconciliation(leadCtx context.Context, cfg *config.Config, handler kafka.Handler, poller *oppgavestatus.Poller, state *appstate.State, m *metrics.Metrics, policy kafka.ErrorPolicy, log *logger.Logger) error {
	client, err := kafka.NewConsumerClient(cfg, cfg.GetOppgaveHendelseGroupID(), cfg.GetOppgaveHendelseTopic())
	if err != nil {
		log.Error("failed to create oppgave status consumer", "error", err)
		poller.Run(leadCtx)
		return nil
	}
	defer client.Close()

	consumer := kafka.NewConsumer(client, handler, kafka.ConsumerOptions{
		Name:     "oppgavestatus",
		Policy:   policy,
		Backoff:  cfg.GetConsumerRetryBackoff(),
		Running:  state.Ready,
		Recorder: m,
	}, log)

	g, gctx := errgroup.WithContext(leadCtx)
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("oppgave status consumer stopped", "error", err)
		if errors.Is(err, kafka.ErrFatal) {
			return err
		}
	}
	return nil
}

func initReplayQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; failed finalizations are not replayed")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize replay queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initElector prefers a Redis lock when Redis is configured and falls back
// to the platform leader-election sidecar. With neither, the replica leads.
func initElector(cfg *config.Config, log *logger.Logger) (leader.Elector, func()) {
	if cfg.GetRedisURL() == "" && cfg.GetElectorURL() == "" {
		log.Warn("no leader election configured; running as single replica")
		return leader.Static(true), nil
	}
	if cfg.GetRedisURL() == "" {
		log.Info("using leader-election sidecar", "url", cfg.GetElectorURL())
		return leader.NewHTTPElector(cfg.GetElectorURL(), cfg.GetHostname()), nil
	}

	opts, err := scheduler.RedisOptions(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("invalid redis url for leader election", "error", err)
		panic("invalid redis url for leader election: " + err.Error())
	}
	rdb := redis.NewClient(opts)
	elector := leader.NewRedisElector(rdb, leaderLockKey, cfg.GetHostname(), 3*leaderCheckInterval)
	log.Info("using redis leader lock", "key", leaderLockKey)

	return elector, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = elector.Resign(ctx)
		_ = rdb.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
