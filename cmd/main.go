package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"regportal/cmd/buildCFG"
	"regportal/internal/api/api"
	"regportal/internal/auth"
	rabbitReader "regportal/internal/consumerWorker"
	"regportal/internal/mailer"
	"regportal/internal/rabbit"
	"regportal/internal/repo"
	"regportal/internal/service"
	"regportal/internal/storage"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "REGPORTAL"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	dbCfg, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(dbCfg.MasterDSN, dbCfg.SlaveDSNs, dbCfg.Options)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	migrationPath := dbCfg.MigrationsDir
	if !filepath.IsAbs(migrationPath) {
		cwd, err := os.Getwd()
		if err != nil {
			log.Fatal().Err(err).Msg("cannot get working directory")
		}
		migrationPath = filepath.Join(cwd, migrationPath)
	}
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	authCfg, err := buildCFG.BuildAuthConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load auth config")
	}
	tokens, err := auth.NewTokenIssuer(authCfg.JWTSecret, authCfg.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token issuer")
	}
	throttle := auth.NewLoginThrottle(authCfg.MaxFailedLogins, authCfg.LockoutWindow)

	if authCfg.BootstrapUsername != "" {
		created, err := service.BootstrapAdmin(context.Background(), repository, authCfg.BootstrapUsername, authCfg.BootstrapPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to bootstrap admin account")
		}
		if created {
			log.Info().Str("username", authCfg.BootstrapUsername).Msg("admin account created")
		}
	}

	storageCfg := buildCFG.BuildStorageConfig(cfg, &log)
	store, err := storage.NewClient(storage.Options{
		BaseURL:      storageCfg.URL,
		APIKey:       storageCfg.APIKey,
		CacheControl: storageCfg.CacheControl,
		Timeout:      storageCfg.Timeout,
	}, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure object storage")
	}

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}

	var publisher service.Publisher
	var taskReader *rabbitReader.Reader
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if rabbitCfg.Enabled {
		rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
		if err != nil {
			log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
		}
		defer rmq.Close()
		publisher = rmq

		smtpCfg := buildCFG.BuildSMTPConfig(cfg)
		mail := mailer.New(mailer.Config{
			Addr:     smtpCfg.Addr(),
			Host:     smtpCfg.Host,
			Username: smtpCfg.Username,
			Password: smtpCfg.Password,
			From:     smtpCfg.From,
			AdminTo:  smtpCfg.AdminTo,
		}, &log)

		var notifier rabbitReader.Notifier
		if mail.Enabled() {
			notifier = mail
		}

		taskReader = rabbitReader.NewReader(rmq, store, notifier)
		go taskReader.Start(workerCtx)
	}

	regCfg := buildCFG.BuildRegistrationConfig(cfg)
	serviceInstance := service.NewService(service.Deps{
		Repo:      repository,
		Store:     store,
		Publisher: publisher,
		Tokens:    tokens,
		Throttle:  throttle,
		Log:       &log,
		Config: service.Config{
			ProofBucket:         storageCfg.ProofBucket,
			QRISBucket:          storageCfg.QRISBucket,
			MaxUploadBytes:      regCfg.MaxUploadBytes,
			EnforceQuota:        regCfg.EnforceQuota,
			CleanupDelaySeconds: regCfg.CleanupDelaySeconds,
		},
	})
	app := api.NewRouters(&api.Routers{
		Service:     serviceInstance,
		Tokens:      tokens,
		FrontendDir: serverCfg.FrontendDir,
		Mode:        serverCfg.Mode,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := app.Run(":" + serverCfg.Port); err != nil {
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
	if taskReader != nil {
		taskReader.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if closer, ok := interface{}(app).(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(shutdownCtx); err != nil {
			log.Error().Msgf("Error shutting down server: %v", err)
		}
	}

	if dbCfg.RollbackOnShutdown {
		log.Info().Msg("Rolling back migrations...")
		if err := repository.MigrateDown(migrationPath); err != nil {
			log.Error().Msgf("failed to rollback migrations: %v", err)
		} else {
			log.Info().Msg("Migrations rolled back successfully")
		}
	}
	log.Info().Msg("Shutdown complete")
}
