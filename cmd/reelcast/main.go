package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reelcast/reelcast/internal/config"
	"github.com/reelcast/reelcast/internal/models"
	"github.com/reelcast/reelcast/internal/server"
	"github.com/reelcast/reelcast/pkg/logger"
)

var (
	configPath string
	mode       string
	slot       string
	version    = "0.1.0"
	gitCommit  = "unknown"
	buildTime  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "reelcast",
	Short: "Reelcast - Automated news-to-video publishing pipeline",
	Long:  `Reelcast discovers trending news, turns it into short vertical videos and publishes them to YouTube, Instagram and Facebook on a schedule.`,
	RunE:  run,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline (one-shot or on a schedule)",
	RunE:  run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Reelcast %s\n", version)
		fmt.Printf("Git commit: %s\n", gitCommit)
		fmt.Printf("Build time: %s\n", buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/server.yaml", "config file path")
	runCmd.Flags().StringVar(&mode, "mode", "schedule", "schedule: stay up and fire at post times; run: execute one slot and exit")
	runCmd.Flags().StringVar(&slot, "slot", "manual", "slot name for a one-shot run")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func run(*cobra.Command, []string) error {
	// .env keeps platform credentials out of the yaml file.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Reelcast", zap.String("version", version), zap.String("mode", mode))

	srv, err := server.NewServer(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if mode == "run" {
		return runOnce(srv, appLogger)
	}
	return runSchedule(srv, appLogger)
}

// runOnce fires a single pipeline run and exits non-zero if it failed.
func runOnce(srv *server.Server, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, ran := srv.Scheduler.TriggerNow(ctx, slot)
	if !ran {
		return fmt.Errorf("a run is already in progress")
	}
	if result.Err != nil {
		return fmt.Errorf("run failed: %w", result.Err)
	}

	log.Info("one-shot run finished",
		zap.String("slot", result.Slot),
		zap.String("outcome", result.Outcome),
		zap.String("post_id", result.PostID))

	if result.Outcome == models.RunOutcomeFailed {
		return fmt.Errorf("run finished with outcome %s", result.Outcome)
	}
	return nil
}

func runSchedule(srv *server.Server, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil {
			log.Error("Server failed to start", zap.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Shutting down...")
	case <-ctx.Done():
		log.Info("Server context cancelled")
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Reelcast exited")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
