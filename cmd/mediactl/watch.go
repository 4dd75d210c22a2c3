// cmd/mediactl/watch.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/merchware/media-ingest/internal/bus"
)

func newWatchCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow pipeline events on the bus",
		RunE: func(cmd *cobra.Command, args []string) error {
			natsURL := getenv("NATS_URL", "nats://127.0.0.1:4222")
			nc, err := bus.Connect(natsURL)
			if err != nil {
				return fmt.Errorf("connect to NATS: %w", err)
			}
			defer nc.Close()
			slog.Info("watching pipeline events", "nats_url", natsURL, "subject", subject)

			sub, err := nc.SubscribeJSON(subject, func(ctx context.Context, subject string, data []byte) {
				var pretty bytes.Buffer
				if err := json.Indent(&pretty, data, "", "  "); err != nil {
					fmt.Printf("%s %s\n", subject, data)
					return
				}
				fmt.Printf("%s %s\n", subject, pretty.String())
			})
			if err != nil {
				return fmt.Errorf("subscribe %s: %w", subject, err)
			}
			defer func() { _ = sub.Unsubscribe() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "media.ingest.>", "subject filter, wildcards allowed")
	return cmd
}
