package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ArkLabsHQ/oracle-node/internal/config"
	"github.com/ArkLabsHQ/oracle-node/internal/core/application"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/bitcoind"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/db"
	"github.com/ArkLabsHQ/oracle-node/internal/infrastructure/nostr"
	scheduler "github.com/ArkLabsHQ/oracle-node/internal/infrastructure/scheduler/gocron"
	"github.com/ArkLabsHQ/oracle-node/internal/interface/web"
	log "github.com/sirupsen/logrus"
)

// nolint:all
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	log.Info("starting oracle node...")

	dbConfig := []any{cfg.DbDir()}
	if cfg.DbType == "badger" {
		dbConfig = append(dbConfig, log.StandardLogger())
	}
	dbSvc, err := db.NewService(db.ServiceConfig{
		DbType:   cfg.DbType,
		DbConfig: dbConfig,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open db")
	}

	bitcoinCfg := bitcoind.Config{
		Host:    cfg.BitcoindRpcHost,
		User:    cfg.BitcoindRpcUser,
		Pass:    cfg.BitcoindRpcPass,
		Network: cfg.ChainParams(),
		MinFee:  cfg.MinFee,
	}
	log.Debugf("bitcoind config: %s", bitcoinCfg)
	bitcoinSvc, err := bitcoind.NewService(bitcoinCfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to bitcoind")
	}

	transportSvc, err := nostr.NewService(context.Background(), nostr.Config{
		Relays:     cfg.Relays(),
		PrivateKey: cfg.NostrKey(),
		Datadir:    cfg.Datadir,
		Lookback:   cfg.NostrLookbackDuration(),
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to nostr relays")
	}

	buildInfo := application.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	appSvc, err := application.NewService(
		buildInfo,
		application.Config{
			Network:             cfg.ChainParams(),
			PollInterval:        cfg.PollIntervalDuration(),
			RebroadcastInterval: cfg.RebroadcastIntervalDuration(),
		},
		dbSvc, bitcoinSvc, transportSvc, scheduler.NewScheduler(),
	)
	if err != nil {
		log.WithError(err).Fatal("failed to init application service")
	}

	webSvc := web.NewService(appSvc, cfg.HTTPPort)

	log.RegisterExitHandler(func() {
		webSvc.Stop()
		appSvc.Stop()
	})

	log.Info("starting service...")
	if err := appSvc.Start(); err != nil {
		log.Fatal(err)
	}
	webSvc.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
}
