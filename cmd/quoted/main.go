package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zcurve-labs/quote-engine/internal/adapters/persistence"
	"github.com/zcurve-labs/quote-engine/internal/common"
	"github.com/zcurve-labs/quote-engine/internal/config"
	"github.com/zcurve-labs/quote-engine/internal/http"
	"github.com/zcurve-labs/quote-engine/internal/quoter"
	"github.com/zcurve-labs/quote-engine/internal/services/market"
)

// @title zCurve Quote Engine API
// @version 1.0
// @description Local pricing and quoting engine for zCurve coin launches and their ETH pools.
// @description
// @description Quotes are previews computed from mirrored chain state, never transactions:
// @description the engine reproduces the settlement contracts' integer math bit for bit and
// @description serves it at memory speed.
// @description
// @description - **Swap quotes**: direct pool or token -> ETH -> token with a safety margin
// @description - **Curve quotes**: buy/sell previews on the piecewise quadratic-linear curve
// @description - **Price impact**: bumped-quote drift estimates with severity warnings
// @description - **Rate limit**: 10 requests/second (burst: 20)
// @BasePath /
// @schemes http https
// @tag.name quote
// @tag.description Swap quotes across tracked pools with price impact analysis
// @tag.name curve
// @tag.description Bonding-curve previews and chart sampling
// @tag.name pools
// @tag.description Pool snapshot reads and registry statistics
// @tag.name sales
// @tag.description Sale snapshot reads
// @tag.name admin
// @tag.description Token-gated snapshot refresh
func main() {
	common.InitRuntime()

	// A missing .env is fine in containers; real env vars win either way.
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	generalConf := &config.GeneralConfig{}
	engineConf := &config.EngineConfig{}
	storeConf := &config.StoreConfig{}
	if err := config.LoadAll(generalConf, engineConf, storeConf); err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(generalConf.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if generalConf.Env == config.DevEnv {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	var store quoter.SnapshotStore
	if storeConf.PersistenceEnabled {
		boltStore, err := persistence.NewStorage(storeConf.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", storeConf.DBPath).Msg("failed to open snapshot store")
		}
		store = boltStore
	}

	registry := market.NewMarketRegistry(engineConf.WETH)
	quoterSvc, err := quoter.NewService(quoter.ServiceConfig{
		Engine:    engineConf,
		Registry:  registry,
		Store:     store,
		Seeds:     persistence.LoadSeeds,
		SeedsPath: storeConf.SeedsPath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build quoter service")
	}
	if err := quoterSvc.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start quoter service")
	}

	httpSvc := http.NewHTTPService(generalConf, quoterSvc)
	go func() {
		if err := httpSvc.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down services")
	if err := httpSvc.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping http server")
	}
	if err := quoterSvc.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping quoter service")
	}
	log.Info().Msg("shutdown complete")
}
