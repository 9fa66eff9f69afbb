package main

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/steriline/plantsim/internal/config"
	"github.com/steriline/plantsim/internal/device"
	"github.com/steriline/plantsim/internal/historian"
	influx "github.com/steriline/plantsim/internal/influxdb"
	"github.com/steriline/plantsim/internal/metadata"
	"github.com/steriline/plantsim/internal/mysql"
	"github.com/steriline/plantsim/internal/plant"
	"github.com/steriline/plantsim/internal/processing"
	"github.com/steriline/plantsim/internal/scan"
	"github.com/steriline/plantsim/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: .env file not loaded: %v", err)
	}

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := buildLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	influxCfg, err := influx.FromEnv()
	if err != nil {
		logger.Fatal("influx config error", zap.Error(err))
	}
	client, err := influx.New(ctx, influxCfg)
	if err != nil {
		logger.Fatal("influx connection error", zap.Error(err))
	}
	defer client.Close()

	seed := cfg.SimulationSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	roster := plant.Default(rng)
	logger.Info("plant roster assembled",
		zap.Int("devices", len(roster)), zap.Int64("seed", seed))

	runner := scan.New(roster, logger,
		scan.WithInterval(cfg.ScanInterval()),
		scan.WithCycleLength(cfg.CycleLengthScans),
		scan.WithFaultProbability(cfg.FaultProbability),
		scan.WithRand(rand.New(rand.NewSource(rng.Int63()))),
	)
	runner.RegisterRecorder(historian.New(client.WriteAPI(), logger,
		historian.WithMeasurement(cfg.HistorianMeasurement)))

	repo := connectMetadata(ctx, logger, roster)
	if repo != nil {
		coordinator := scan.NewCoordinator(runner, repo, logger,
			scan.WithCoordinatorPollInterval(cfg.CoordinatorPoll()))
		coordinator.Start(ctx)

		archiver := processing.NewAlarmArchiver(runner, repo, logger,
			processing.WithInterval(cfg.ArchiverPoll()))
		archiver.Start(ctx)
	} else if cfg.AutoEnable {
		// No batch coordination available, so production runs unconditionally.
		runner.Enable()
	}

	runner.Start(ctx)

	router := server.NewRouter(server.Dependencies{
		Runner:               runner,
		Influx:               client,
		Repo:                 repo,
		Logger:               logger,
		HistorianMeasurement: cfg.HistorianMeasurement,
		ReadingsLookback:     cfg.ReadingsLookback(),
		ReadingsLimit:        cfg.ReadingsDefaultLimit,
	})

	logger.Info("http server starting", zap.String("address", cfg.ServerAddress))
	if err := router.Run(cfg.ServerAddress); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

// connectMetadata wires the MySQL-backed metadata store when configured.
// The simulator stays useful without it: batches and the alarm archive are
// simply unavailable.
func connectMetadata(ctx context.Context, logger *zap.Logger, roster []device.Device) *metadata.Repository {
	dbCfg, err := mysql.FromEnv()
	if err != nil {
		logger.Warn("metadata store disabled", zap.Error(err))
		return nil
	}
	db, err := mysql.New(ctx, dbCfg)
	if err != nil {
		logger.Warn("metadata store unreachable", zap.Error(err))
		return nil
	}

	repo := metadata.NewRepository(db, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Warn("metadata schema setup failed", zap.Error(err))
		db.Close()
		return nil
	}

	for _, d := range roster {
		err := repo.UpsertDevice(ctx, metadata.RegisteredDevice{
			DeviceID: d.DeviceID(),
			Name:     d.Name(),
			Type:     d.Type().String(),
		})
		if err != nil {
			logger.Warn("device registration failed",
				zap.String("device", d.DeviceID()), zap.Error(err))
		}
	}
	return repo
}

func buildLogger(level string) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if parsed, err := zap.ParseAtomicLevel(level); err == nil {
		zapCfg.Level = parsed
	}
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("logger setup error: %v", err)
	}
	return logger
}
