// cmd/mediactl/main.go
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "mediactl",
		Short:         "Back-office product image ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			slog.SetDefault(newLogger())
		},
	}
	root.AddCommand(newUploadCmd(), newCheckCmd(), newWatchCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if getenv("LOG_LEVEL", "") == "debug" {
		level = slog.LevelDebug
	}
	if getenv("LOG_FORMAT", "") == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
