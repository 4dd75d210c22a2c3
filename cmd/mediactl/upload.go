// cmd/mediactl/upload.go
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/merchware/media-ingest/internal/bus"
	"github.com/merchware/media-ingest/internal/deliver"
	"github.com/merchware/media-ingest/internal/gallery"
	"github.com/merchware/media-ingest/internal/ingest"
	"github.com/merchware/media-ingest/internal/probe"
	"github.com/merchware/media-ingest/internal/upload"
)

func newUploadCmd() *cobra.Command {
	var (
		folder      string
		tags        []string
		contextKVs  []string
		eager       []string
		concurrency int
		maxFiles    int
		forceMock   bool
		mockDir     string
	)

	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload product images and print the resulting gallery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.Default()
			cfg := probe.FromEnv()
			selector := probe.NewSelector(cfg)
			selector.ForceMock(forceMock)

			mode := selector.Mode()
			if mode == probe.ModeMock && !forceMock {
				fmt.Fprintln(os.Stderr, "media service configuration is incomplete:")
				for _, d := range cfg.Diagnostics {
					fmt.Fprintln(os.Stderr, "  - "+d)
				}
			}
			logger.Info("upload mode selected", "mode", mode.String(), "cloud_name", cfg.CloudName)

			var adapter upload.Adapter
			if mode == probe.ModeMock {
				adapter = &upload.Mock{Dir: mockDir, Delay: 300 * time.Millisecond}
			} else {
				adapter = &upload.Cloudinary{
					CloudName:    cfg.CloudName,
					UploadPreset: cfg.UploadPreset,
				}
			}

			var publisher ingest.Publisher
			if natsURL := getenv("NATS_URL", ""); natsURL != "" {
				nc, err := bus.Connect(natsURL)
				if err != nil {
					return fmt.Errorf("connect to NATS: %w", err)
				}
				defer nc.Close()
				logger.Info("connected to NATS", "nats_url", natsURL)
				publisher = nc
			}

			uploadCtx, err := parseKeyValues(contextKVs)
			if err != nil {
				return err
			}

			g := gallery.New(maxFiles)
			orch := ingest.New(adapter, deliver.Deriver{CloudName: cfg.CloudName}, g, ingest.Config{
				MaxFiles:      maxFiles,
				MaxConcurrent: concurrency,
				EventSubject:  getenv("EVENT_SUBJECT", "media.ingest"),
				Folder:        folder,
				Tags:          tags,
				Context:       uploadCtx,
				Eager:         eager,
				Logger:        logger,
				Publisher:     publisher,
			})

			receipt, err := orch.Submit(ctx, args)
			if err != nil {
				return err
			}
			for _, rej := range receipt.Rejected {
				fmt.Fprintf(os.Stderr, "rejected %s: %s\n", rej.Path, rej.Reason)
			}
			orch.Wait()

			for _, snap := range orch.Tasks() {
				if snap.Status == ingest.TaskFailed {
					fmt.Fprintf(os.Stderr, "failed %s: %s (retry with the task id %s)\n",
						snap.Filename, snap.Error, snap.ID)
				}
			}

			out, err := json.MarshalIndent(g.Snapshot(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode gallery state: %w", err)
			}
			fmt.Fprintln(os.Stdout, string(out))

			stats := orch.Stats()
			logger.Info("batch finished",
				"batch_id", receipt.BatchID,
				"completed", stats.Completed,
				"failed", stats.Failed,
				"canceled", stats.Canceled,
				"rejected", len(receipt.Rejected))
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", stats.Failed, stats.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "products", "remote folder for stored assets")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag applied to every uploaded asset (repeatable)")
	cmd.Flags().StringSliceVar(&contextKVs, "context", nil, "contextual key=value metadata (repeatable)")
	cmd.Flags().StringSliceVar(&eager, "eager", nil, "eager transformation applied at upload time (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max simultaneous uploads, 0 for unbounded")
	cmd.Flags().IntVar(&maxFiles, "max-files", gallery.DefaultMaxItems, "gallery capacity per product")
	cmd.Flags().BoolVar(&forceMock, "mock", false, "force the local mock adapter")
	cmd.Flags().StringVar(&mockDir, "mock-dir", "", "spool directory for the mock adapter")
	return cmd
}

func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := cutKV(pair)
		if !ok {
			return nil, fmt.Errorf("invalid context %q, expected key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}

func cutKV(pair string) (string, string, bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			return pair[:i], pair[i+1:], i > 0
		}
	}
	return "", "", false
}
