package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hummus-exchange/farm/internal/config"
	"github.com/hummus-exchange/farm/internal/escrow"
	"github.com/hummus-exchange/farm/internal/farm"
	"github.com/hummus-exchange/farm/internal/keeper"
	"github.com/hummus-exchange/farm/internal/logger"
	"github.com/hummus-exchange/farm/internal/state"
	"github.com/hummus-exchange/farm/internal/types"
	"github.com/hummus-exchange/farm/internal/utils"
	"github.com/hummus-exchange/farm/internal/vault"
	"github.com/hummus-exchange/farm/internal/voter"
	"github.com/hummus-exchange/farm/internal/web"
)

// main is the entry point for the farm daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Farm daemon starting...")

	var (
		store   keeper.Store
		history web.History
		dbCheck func() error
	)
	if config.DBEnabled {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		restoreParameters()
		pg := state.PostgresStore{}
		store, history, dbCheck = pg, pg, state.TestDBConnection
	} else {
		log.Warn().Msg("DB_HOST not set, journal and snapshots stay in memory")
	}

	// --- 2. Ledger Wiring ---
	now := uint64(time.Now().Unix())
	ledger := vault.NewLedger()

	ve, err := escrow.NewVoteEscrow(escrow.Config{
		Address:  config.EscrowAddress,
		Token:    config.RewardToken,
		Vault:    ledger,
		MaxLock:  config.EscrowMaxLock,
		Decaying: config.EscrowDecaying,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vote escrow")
	}

	f, err := farm.NewFarm(farm.Config{
		Address:  config.FarmAddress,
		Admin:    config.FarmAdmin,
		Vault:    ledger,
		MaxBoost: config.MaxBoost,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create farm")
	}
	if err := f.Initialize(config.FarmAdmin, farm.InitParams{
		Token:               config.RewardToken,
		Escrow:              ve,
		TokenPerSec:         config.TokenPerSec,
		DilutingRepartition: config.DilutingRepartition,
		StartTimestamp:      config.StartTimestamp,
	}, now); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize farm")
	}
	if err := f.SetVoter(config.FarmAdmin, config.VoterAddress); err != nil {
		log.Fatal().Err(err).Msg("Failed to register voter")
	}

	vt, err := voter.NewVoter(voter.Config{
		Address:         config.VoterAddress,
		Admin:           config.FarmAdmin,
		Farm:            f,
		Escrow:          ve,
		EpochLength:     config.EpochLength,
		VoteAllocPoints: config.VoteAllocPoints,
		Start:           now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create voter")
	}
	ve.Subscribe(f)
	ve.Subscribe(vt)

	reserve := config.FarmReserve
	if reserve.IsZero() {
		reserve, err = utils.SafeMul(config.TokenPerSec, sdkmath.NewInt(365*24*60*60))
		if err != nil {
			log.Fatal().Err(err).Msg("Emission rate too large to fund")
		}
	}
	if err := ledger.Mint(config.RewardToken, config.FarmAddress, reserve); err != nil {
		log.Fatal().Err(err).Msg("Failed to fund farm reserve")
	}
	if formatted, err := utils.FormatUnits(reserve, 18); err == nil {
		log.Info().Str("reserve", formatted).Msg("Farm reserve funded")
	}

	k, err := keeper.NewKeeper(keeper.Config{Farm: f, Escrow: ve, Voter: vt, Vault: ledger, Store: store})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper")
	}
	for _, lp := range config.LPTokens {
		if _, err := k.AddPool(config.FarmAdmin, config.DefaultPoolAllocPoint, lp.Address, types.ZeroAddress); err != nil {
			log.Fatal().Err(err).Str("lpToken", lp.Symbol).Msg("Failed to add pool")
		}
		if err := k.AddGauge(config.FarmAdmin, config.FarmAddress, lp.Address, types.ZeroAddress); err != nil {
			log.Fatal().Err(err).Str("lpToken", lp.Symbol).Msg("Failed to add gauge")
		}
	}
	log.Info().Int("pools", len(config.LPTokens)).Msg("Pools and gauges registered")

	// --- 3. Run Web Server and Keeper Loop ---
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	webServer := web.NewWebServer(web.Config{
		Port:     config.WebPort,
		Ledger:   k,
		Operator: k,
		History:  history,
		DBCheck:  dbCheck,
		Labels:   config.LPLabels(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting farm API")
		return webServer.Run(ctx)
	})
	g.Go(func() error {
		k.RunLoop(ctx, config.KeeperInterval)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Farm daemon stopped with error")
		return
	}
	log.Info().Msg("Farm daemon stopped")
}

// restoreParameters applies the last active parameter version from the
// database, or records the configured values as the first version.
func restoreParameters() {
	active, err := state.GetActiveFarmParameters()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load active farm parameters")
	}
	if active != nil {
		config.TokenPerSec = active.TokenPerSec
		config.DilutingRepartition = active.DilutingRepartition
		config.MaxBoost = active.MaxBoost
		log.Info().Int64("paramsID", active.ParamsID).Str("reason", active.Reason).Msg("Restored farm parameters from database")
		return
	}

	params := types.FarmParameters{
		TokenPerSec:         config.TokenPerSec,
		DilutingRepartition: config.DilutingRepartition,
		MaxBoost:            config.MaxBoost,
		Reason:              "initial",
		ActivatedAt:         time.Now().UTC(),
	}
	if _, err := state.SaveFarmParameters(params); err != nil {
		log.Fatal().Err(err).Msg("Failed to save initial farm parameters")
	}
}
