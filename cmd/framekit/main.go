package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/zsiec/framekit/internal/config"
	"github.com/zsiec/framekit/internal/health"
	"github.com/zsiec/framekit/internal/logger"
	"github.com/zsiec/framekit/internal/media/buffer"
	"github.com/zsiec/framekit/internal/metrics"
	"github.com/zsiec/framekit/internal/pipeline"
	"github.com/zsiec/framekit/internal/server"
	"github.com/zsiec/framekit/pkg/version"
)

const (
	streamStallAfter = 5 * time.Second
	maxHeapBytes     = 1 << 30

	statsRemoveTimeout = 2 * time.Second
)

func main() {
	var (
		configPath  string
		showVersion bool
		linger      bool
		input       string
		output      string
		codecName   string
		mergeMode   string
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&linger, "linger", false, "Keep serving the HTTP API after the input ends")
	flag.StringVar(&input, "input", "", "Override pipeline.input (file path or - for stdin)")
	flag.StringVar(&output, "output", "", "Override pipeline.output (file path or - for stdout)")
	flag.StringVar(&codecName, "codec", "", "Override pipeline.codec (H264 or H265)")
	flag.StringVar(&mergeMode, "mode", "", "Override pipeline.merge_mode (none, annexb, length_prefixed)")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(&cfg.Pipeline, input, output, codecName, mergeMode)
	if err := cfg.Pipeline.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid pipeline flags: %v\n", err)
		os.Exit(1)
	}

	logrusLogger, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Service(logrusLogger)

	log.Info("Starting framekit")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, linger); err != nil {
		log.WithError(err).Fatal("framekit failed")
	}
	log.Info("Shutdown complete")
}

func applyOverrides(p *config.PipelineConfig, input, output, codecName, mergeMode string) {
	if input != "" {
		p.Input = input
	}
	if output != "" {
		p.Output = output
	}
	if codecName != "" {
		p.Codec = codecName
	}
	if mergeMode != "" {
		p.MergeMode = mergeMode
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger, linger bool) error {
	pool := buffer.NewPool()
	if _, err := metrics.RegisterPool(prometheus.DefaultRegisterer, "pipeline", pool); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}
	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	var redisClient *redis.Client
	if cfg.Stats.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addresses[0],
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.WithError(err).Error("Failed to close Redis connection")
			}
		}()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		log.Info("Connected to Redis")
	}

	p, err := pipeline.New(cfg.Pipeline, log, pipeline.WithPool(pool))
	if err != nil {
		return err
	}
	registry := pipeline.NewRegistry()
	registry.Add(p)

	p.Dispatcher().AddDelegate(pipeline.NewMetricsSink(p.ID(), p.Dispatcher()))
	var publisher *pipeline.StatsPublisher
	if redisClient != nil {
		publisher = pipeline.NewStatsPublisher(redisClient, cfg.Stats, p, log)
		p.Dispatcher().AddDelegate(publisher)
	}

	out, closeOut, err := openOutput(cfg.Pipeline.Output)
	if err != nil {
		return err
	}
	defer closeOut()
	if out != nil {
		p.Dispatcher().AddDelegate(pipeline.NewRecorder(out, log))
	}

	srvDone := make(chan error, 1)
	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if cfg.Server.Enabled {
		checkers := []health.Checker{
			health.NewStreamChecker(p.ID(), p, streamStallAfter),
			health.NewMemoryChecker(maxHeapBytes),
		}
		if redisClient != nil {
			checkers = append(checkers, health.NewRedisChecker(redisClient))
		}
		srv := server.New(&cfg.Server, log, registry, checkers...)
		go func() { srvDone <- srv.Start(srvCtx) }()
	} else {
		close(srvDone)
	}

	in, closeIn, err := openInput(cfg.Pipeline.Input)
	if err != nil {
		return err
	}
	defer closeIn()

	runErr := p.Run(ctx, in)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if publisher != nil {
		removeCtx, cancel := context.WithTimeout(context.Background(), statsRemoveTimeout)
		if err := publisher.Remove(removeCtx); err != nil {
			log.WithError(err).Warn("Failed to remove stream from active set")
		}
		cancel()
	}

	if linger && cfg.Server.Enabled && ctx.Err() == nil {
		log.Info("Input finished, serving until signalled")
		<-ctx.Done()
	}

	stopServer()
	if err := <-srvDone; err != nil {
		log.WithError(err).Error("HTTP server error")
	}
	return runErr
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// openOutput returns a nil writer when output is disabled
func openOutput(path string) (io.Writer, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func startMetricsServer(cfg config.MetricsConfig, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
