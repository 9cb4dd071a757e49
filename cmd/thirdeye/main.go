// Thirdeye is an assistive vision daemon. It analyzes camera frames from a
// client device with a cascade of vision models, speaks the result, drives
// the device torch from ambient brightness and answers voice commands.
//
// Usage:
//
//	thirdeye serve [--config /path/to/thirdeye.yaml]
//	thirdeye describe --image frame.jpg --mode read [--query "what does the sign say?"]
//	thirdeye version
//
// @title       thirdeye API
// @version     1.0
// @description Assistive vision daemon: commands, camera frames and the event stream for the client UI.
// @BasePath    /
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadzzz/thirdeye/internal/app"
	"github.com/nadzzz/thirdeye/internal/config"
	"github.com/nadzzz/thirdeye/internal/message"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "thirdeye",
		Short:         "Assistive vision daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/thirdeye.yaml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFile)
		},
	}

	var image, modeName, query string
	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Analyze one image with the provider cascade and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return describe(cmd.Context(), configFile, image, modeName, query)
		},
	}
	describeCmd.Flags().StringVar(&image, "image", "", "JPEG file to analyze")
	describeCmd.Flags().StringVar(&modeName, "mode", string(message.ModeScan), "analysis mode (scan, read, navigate, emergency)")
	describeCmd.Flags().StringVar(&query, "query", "", "question replacing the mode instruction")
	_ = describeCmd.MarkFlagRequired("image")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("thirdeye %s\n", version)
		},
	}

	rootCmd.AddCommand(serveCmd, describeCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("thirdeye failed", "error", err)
		os.Exit(1)
	}
}

func serve(configFile string) error {
	// Load configuration.
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Setup structured logging.
	config.SetupLogging(cfg.Logging)
	slog.Info("thirdeye starting", "version", version)

	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := a.Run(ctx)
	if err := a.Close(); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if runErr != nil {
		return runErr
	}
	slog.Info("thirdeye stopped")
	return nil
}

func describe(ctx context.Context, configFile, imagePath, modeName, query string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	config.SetupLogging(cfg.Logging)

	m, err := message.ParseMode(modeName)
	if err != nil {
		return err
	}
	if !m.Active() {
		return fmt.Errorf("mode %q does not analyze", m)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	result, err := app.DescribeOnce(ctx, cfg, data, m, query)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
