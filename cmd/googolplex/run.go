package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/JoseRFJuniorLLMs/Googolplex-Books/cache"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/daemon"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/engine"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/fetch"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/metrics"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/publish"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/retry"
	"github.com/JoseRFJuniorLLMs/Googolplex-Books/translate"
)

var (
	configPath string
	outputDir  string
	maxCycles  int
	batchSize  int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the translation daemon",
	Long:  "Runs the cycle loop: acquire books, translate pending units, persist stats, sleep, repeat.",
	Run:   runCommand,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	runCmd.Flags().StringVar(&outputDir, "output", "output", "Directory for finished translations")
	runCmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "Stop after this many cycles (0 = run forever)")
	runCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Override configured batch size")
}

func runCommand(cmd *cobra.Command, args []string) {
	cfg := daemon.DefaultConfig()
	if configPath != "" {
		loaded, err := daemon.LoadConfig(configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("couldn't load config")
		}
		cfg = loaded
	}
	if maxCycles > 0 {
		cfg.MaxCycles = maxCycles
	}
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	translator := translate.New(cfg.OllamaURL, cfg.Model, cfg.Categories[0], cfg.TransformTimeout.Duration)

	// Startup reachability check: an unreachable inference service before
	// the loop is a configuration error and the one nonzero exit path.
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	err := translator.Ping(pingCtx)
	cancelPing()
	if err != nil {
		log.Fatal().Err(err).Msg("inference service check failed")
	}

	store, err := cache.OpenDiskStore(cfg.CachePath)
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't open result cache")
	}
	defer store.Close()

	m := metrics.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StatusAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.StatusAddr); err != nil {
				log.Warn().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	policy := retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay.Duration,
		Cap:         cfg.BackoffCap.Duration,
		Jitter:      0.25,
	}

	sched := &daemon.Scheduler{
		Config:   cfg,
		Acquirer: &fetch.Gutendex{
			BaseURL:      cfg.GutendexURL,
			HTTP:         &http.Client{Timeout: time.Minute},
			MaxChunkSize: cfg.MaxChunkSize,
		},
		Engine: &engine.Engine{
			Store:       store,
			Flight:      cache.NewFlight(),
			Transformer: translator,
			Policy:      policy,
			Concurrency: cfg.Concurrency,
		},
		Stats:     &daemon.StatsStore{Path: cfg.StatsPath},
		Policy:    policy,
		Publisher: &publish.Dir{Base: outputDir},
		Metrics:   m,
	}

	fmt.Fprintln(os.Stderr, color.Cyan.Sprint("Starting translation daemon..."))
	if err := sched.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("daemon failed")
	}

	stats, err := sched.Stats.Load()
	if err == nil {
		fmt.Fprintln(os.Stderr, color.Green.Sprintf(
			"Stopped cleanly after %d cycles: %d units, %d chunks computed, %d cache hits, %d errors",
			stats.Cycles, stats.UnitsProcessed, stats.ChunksComputed, stats.CacheHits, stats.Errors))
	}
}
