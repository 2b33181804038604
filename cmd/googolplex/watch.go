package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/JoseRFJuniorLLMs/Googolplex-Books/supervisor"
)

var (
	watchConfigPath   string
	watchStatsPath    string
	checkInterval     time.Duration
	shortRestartDelay time.Duration
	longRestartDelay  time.Duration
	shutdownGrace     time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Supervise the translation daemon",
	Long:  "Launches 'googolplex run' as an isolated child process and restarts it whenever it crashes.",
	Run:   watchCommand,
}

func init() {
	watchCmd.Flags().StringVar(&watchConfigPath, "config", "", "Config file passed through to the daemon")
	watchCmd.Flags().StringVar(&watchStatsPath, "stats", "data/watchdog_stats.json", "Supervisor stats record")
	watchCmd.Flags().DurationVar(&checkInterval, "check-interval", 30*time.Second, "Liveness poll interval")
	watchCmd.Flags().DurationVar(&shortRestartDelay, "short-backoff", 5*time.Second, "Restart delay while failures are rare")
	watchCmd.Flags().DurationVar(&longRestartDelay, "long-backoff", time.Minute, "Restart delay after repeated failures")
	watchCmd.Flags().DurationVar(&shutdownGrace, "grace", 15*time.Second, "How long a child may take to stop cleanly")
}

func watchCommand(cmd *cobra.Command, args []string) {
	bin, err := os.Executable()
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't resolve own binary path")
	}

	childArgs := []string{"run", "--log-level", logLevel}
	if watchConfigPath != "" {
		childArgs = append(childArgs, "--config", watchConfigPath)
	}

	sup := &supervisor.Supervisor{
		Launcher:      supervisor.ExecLauncher(bin, childArgs...),
		CheckInterval: checkInterval,
		ShortBackoff:  shortRestartDelay,
		LongBackoff:   longRestartDelay,
		GracePeriod:   shutdownGrace,
		Stats:         &supervisor.StatsStore{Path: watchStatsPath},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("child", bin).Msg("supervising translation daemon")
	if err := sup.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("supervisor failed")
	}
}
