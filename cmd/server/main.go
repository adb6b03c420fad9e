// Command server runs the token issuance engine: HTTP API, background
// expiry sweeper, and the optional postgres journal, redis used-key store,
// and kafka audit sink. Business logic lives in internal service packages;
// main only wires dependencies and owns the process lifecycle.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"aurum/internal/audit"
	"aurum/internal/eligibility"
	expirySvc "aurum/internal/expiry/service"
	httpapi "aurum/internal/http"
	"aurum/internal/jwttoken"
	ledgerSvc "aurum/internal/ledger/service"
	ledgerStore "aurum/internal/ledger/store"
	"aurum/internal/ledger/store/journal"
	mintingSvc "aurum/internal/minting/service"
	"aurum/internal/minting/store/usedkey"
	"aurum/internal/params"
	"aurum/internal/platform/config"
	"aurum/internal/platform/httpserver"
	"aurum/internal/platform/logger"
	"aurum/internal/platform/metrics"
	platformredis "aurum/internal/platform/redis"
	stakingSvc "aurum/internal/staking/service"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paramsSvc, err := params.New(params.Seed{
		Admin:      cfg.Engine.Admin,
		Treasury:   cfg.Engine.Treasury,
		Escrow:     cfg.Engine.Escrow,
		BurnRateBp: cfg.Engine.BurnRateBp,
		Tiers: params.YieldTiers{
			OneYearBp:    cfg.Engine.OneYearBp,
			SixMonthBp:   cfg.Engine.SixMonthBp,
			ThreeMonthBp: cfg.Engine.ThreeMonthBp,
			DefaultBp:    cfg.Engine.DefaultBp,
		},
	}, params.WithLogger(log))
	if err != nil {
		log.Error("invalid engine configuration", "error", err)
		os.Exit(1)
	}

	storeOpts := []ledgerStore.Option{ledgerStore.WithLogger(log)}
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("pgx", cfg.Postgres.URL)
		if err != nil {
			log.Error("failed to open postgres journal", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		storeOpts = append(storeOpts, ledgerStore.WithJournal(journal.NewPostgres(db)))
		log.Info("ledger journal mirrored to postgres")
	}
	state := ledgerStore.NewMemory(storeOpts...)

	var usedKeys usedkey.Store = usedkey.NewMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		usedKeys = usedkey.NewRedis(redisClient.Client)
		log.Info("used-key store backed by redis")
	}

	var auditPub audit.Publisher = audit.NewPublisher(audit.NewMemoryStore())
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := audit.NewKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaPub.Close()
		auditPub = kafkaPub
		log.Info("audit events published to kafka", "topic", cfg.Kafka.Topic)
	}

	verifier := eligibility.NewVerifier(paramsSvc, eligibility.WithLogger(log))

	ledger, err := ledgerSvc.New(state, paramsSvc,
		ledgerSvc.WithLogger(log),
		ledgerSvc.WithMetrics(m),
		ledgerSvc.WithAuditPublisher(auditPub),
	)
	if err != nil {
		log.Error("failed to build ledger service", "error", err)
		os.Exit(1)
	}
	minting, err := mintingSvc.New(state, usedKeys, verifier, paramsSvc,
		mintingSvc.WithLogger(log),
		mintingSvc.WithMetrics(m),
		mintingSvc.WithAuditPublisher(auditPub),
	)
	if err != nil {
		log.Error("failed to build minting service", "error", err)
		os.Exit(1)
	}
	staking, err := stakingSvc.New(state, paramsSvc,
		stakingSvc.WithLogger(log),
		stakingSvc.WithMetrics(m),
		stakingSvc.WithAuditPublisher(auditPub),
	)
	if err != nil {
		log.Error("failed to build staking service", "error", err)
		os.Exit(1)
	}
	expiry, err := expirySvc.New(state,
		expirySvc.WithLogger(log),
		expirySvc.WithMetrics(m),
		expirySvc.WithAuditPublisher(auditPub),
	)
	if err != nil {
		log.Error("failed to build expiry service", "error", err)
		os.Exit(1)
	}

	jwtSvc := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "aurum-engine", "aurum-api")
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:       log,
		JWTValidator: jwtSvc,
		Minting:      minting,
		Staking:      staking,
		Expiry:       expiry,
		Ledger:       ledger,
		Params:       paramsSvc,
	})

	srv := httpserver.New(cfg.Server, router)
	sweeper := expirySvc.NewWorker(expiry, cfg.Sweep.Interval, cfg.Sweep.MaxIterations, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting engine", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("engine exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("engine stopped")
}
