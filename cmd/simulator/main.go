package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/analysis"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/api"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/catalog"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/metrics"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/pricegen"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/scheduler"
	"github.com/shubham-shewale/market-analytics/cmd/simulator/internal/sink"
	"github.com/shubham-shewale/market-analytics/pkg/config"
)

func main() {
	// 1. Initialize Zap Logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}

	// 2. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// 3. Switch to the configured logger
	configured, err := config.NewLogger(cfg.Logger)
	if err != nil {
		logger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	logger = configured
	defer logger.Sync()

	if cfg.Profiling.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "market-analytics.simulator",
			ServerAddress:   cfg.Profiling.ServerAddress,
			Tags:            map[string]string{"env": cfg.App.Env},
			Logger:          logger.Sugar(),
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logger.Warn("Pyroscope start failed", zap.Error(err))
		} else {
			defer func() { _ = profiler.Stop() }()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Load the instrument catalog
	src, closeSrc := openCatalog(cfg, logger)
	defer closeSrc()
	symbols, instruments := catalog.Instruments(ctx, src, logger)
	logger.Info("Catalog loaded", zap.String("source", cfg.Catalog.Source), zap.Int("instruments", len(instruments)))

	// 5. Build the sink chain
	out, closeSinks := buildSinks(ctx, cfg, logger)
	defer closeSinks()

	params := pricegen.DefaultParams()
	params.DeadZone = cfg.Simulation.ReversionDeadZone
	params.BandFloor = cfg.Simulation.BandFloor
	params.BandCeiling = cfg.Simulation.BandCeiling
	for _, inst := range instruments {
		inst.MeanReversionSpeed = cfg.Simulation.ReversionSpeed
	}
	process := pricegen.NewProcess(params, pricegen.NewRand(cfg.Simulation.Seed))

	sched := scheduler.New(logger, process, out, scheduler.RealClock{}, instruments, scheduler.Options{
		Interval:    cfg.Simulation.Interval,
		SendTimeout: cfg.Sink.Timeout,
		Concurrency: cfg.Simulation.DispatchConcurrency,
		Capacity:    cfg.Simulation.WindowCapacity,
		Windows:     analysis.Windows{Short: cfg.Simulation.ShortWindow, Long: cfg.Simulation.LongWindow},
		Detector: analysis.Detector{
			SpikeThreshold:      cfg.Simulation.SpikeThreshold,
			DeviationMultiplier: cfg.Simulation.DeviationMultiplier,
			LongWindow:          cfg.Simulation.LongWindow,
		},
	})

	// 6. HTTP surface
	srv := &http.Server{
		Addr:              cfg.App.Port,
		Handler:           api.NewServer(logger, sched, symbols).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Simulator API listening", zap.String("addr", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	metrics.ServiceUp.Set(1)
	_ = sched.Run(ctx)
	metrics.ServiceUp.Set(0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Simulator stopped")
}

func openCatalog(cfg *config.Config, logger *zap.Logger) (catalog.Source, func()) {
	switch cfg.Catalog.Source {
	case "file":
		return catalog.NewFileSource(cfg.Catalog.Path), func() {}
	case "postgres":
		pg, err := catalog.NewPostgresSource(cfg.Postgres)
		if err != nil {
			// Instruments logs the failure again and starts with an empty table
			logger.Error("Failed to connect to Postgres", zap.Error(err))
			return catalog.NewStaticSource(nil), func() {}
		}
		return pg, func() {
			if err := pg.Close(); err != nil {
				logger.Warn("Error closing Postgres", zap.Error(err))
			}
		}
	default:
		return catalog.NewStaticSource(cfg.Catalog.Symbols), func() {}
	}
}

func buildSinks(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.Sink, func()) {
	var (
		chain   sink.Multi
		closers []func()
	)

	for _, t := range cfg.Sink.Types {
		switch t {
		case "http":
			h := sink.NewHTTPSink(cfg.Sink.GatewayURL, cfg.Sink.Timeout)
			logger.Info("HTTP sink enabled", zap.String("url", h.URL()))
			chain = append(chain, h)

		case "kafka":
			creator := sink.NewTopicCreator(logger, &sink.RealKafkaDialer{Dialer: &kafka.Dialer{Timeout: 10 * time.Second}}, sink.RealClock{}, 4)
			creator.Create(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)

			k := sink.NewKafkaSink(sink.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Sink.Timeout))
			chain = append(chain, k)
			closers = append(closers, func() {
				// Flush pending batches
				if err := k.Close(); err != nil {
					logger.Error("Error closing Kafka writer", zap.Error(err))
				} else {
					logger.Info("Kafka writer closed cleanly")
				}
			})

		case "redis":
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			chain = append(chain, sink.NewRedisSink(rdb))
			closers = append(closers, func() { _ = rdb.Close() })

		case "log":
			chain = append(chain, sink.NewLogSink(logger))
		}
	}

	return chain, func() {
		for _, c := range closers {
			c()
		}
	}
}
