package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"memberhub/cmd/buildCFG"
	"memberhub/internal/api/api"
	"memberhub/internal/cache"
	worker "memberhub/internal/consumerWorker"
	"memberhub/internal/events"
	"memberhub/internal/mailer"
	"memberhub/internal/memberships"
	"memberhub/internal/payments"
	"memberhub/internal/pizzas"
	"memberhub/internal/rabbit"
	"memberhub/internal/repo"
	"memberhub/internal/sales"
	"memberhub/internal/service"
	"memberhub/pkg/auth"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "'"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)
	port := serverCfg.Port

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	// one descriptor per payable kind, registered once at startup
	registry := payments.NewRegistry()
	registry.Register(events.NewPayableDescriptor())
	registry.Register(pizzas.NewPayableDescriptor())
	registry.Register(sales.NewPayableDescriptor())
	registry.Register(memberships.NewPayableDescriptor())

	repository, err := repo.NewRepository(db, registry, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	migrationPath := filepath.Join(cwd, "migrations/postgres")
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rmq.Close()

	smtpCfg, err := buildCFG.BuildSMTPConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load SMTP config")
	}
	mail := mailer.New(smtpCfg.Host, smtpCfg.Port, smtpCfg.From, smtpCfg.Password, &log)

	authCfg, err := buildCFG.BuildAuthConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load auth config")
	}
	tokens := auth.NewTokenManager(authCfg.JWTSecret, authCfg.TokenTTL)

	redisCfg := buildCFG.BuildRedisConfig(cfg, &log)
	var eventCache *cache.Cache
	if redisCfg.Addr != "" {
		eventCache, err = cache.New(redisCfg.Addr, redisCfg.Password, redisCfg.DB, redisCfg.TTL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, continuing without cache")
			eventCache = nil
		} else {
			defer eventCache.Close()
		}
	}

	paymentsCfg := buildCFG.BuildPaymentsConfig(cfg)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	reader := worker.NewReader(rmq, mail)
	reader.Start(workerCtx)

	serviceInstance := service.NewService(repository, &log, rmq, eventCache, tokens, paymentsCfg.ChangeWindow)
	app := api.NewRouters(&api.Routers{
		Service:   serviceInstance,
		Tokens:    tokens,
		RateLimit: float64(serverCfg.RateLimit),
		RateBurst: serverCfg.RateBurst,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", port)
		if err := app.Run(":" + port); err != nil {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	cancelWorkers()
	reader.Stop()

	log.Info().Msg("Shutdown complete")
}
