// cmd/mediactl/check.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/merchware/media-ingest/internal/probe"
)

func newCheckCmd() *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Inspect the media service configuration",
		Long: "Classifies the configuration from the environment and prints the\n" +
			"remediation steps for anything missing. With --live, a one pixel probe\n" +
			"upload confirms the preset actually accepts unsigned uploads.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := probe.FromEnv()

			fmt.Printf("cloud name:    %s\n", orUnset(cfg.CloudName))
			fmt.Printf("upload preset: %s\n", orUnset(cfg.UploadPreset))
			fmt.Printf("api key:       %s\n", presence(cfg.HasAPIKey))
			fmt.Printf("api secret:    %s\n", presence(cfg.HasAPISecret))

			if !cfg.Usable {
				fmt.Println("\nconfiguration is NOT usable:")
				for _, d := range cfg.Diagnostics {
					fmt.Println("  - " + d)
				}
				os.Exit(1)
			}

			if len(cfg.Diagnostics) > 0 {
				fmt.Println("\nwarnings:")
				for _, d := range cfg.Diagnostics {
					fmt.Println("  - " + d)
				}
			}
			fmt.Println("\nconfiguration is usable")

			if !live {
				return nil
			}

			fmt.Println("running live check against the upload endpoint...")
			checker := &probe.LiveChecker{Config: cfg}
			err := checker.Check(cmd.Context())
			switch {
			case err == nil:
				fmt.Println("live check passed: the preset accepts unsigned uploads")
				return nil
			case errors.Is(err, probe.ErrPresetNotFound),
				errors.Is(err, probe.ErrPresetRequiresSignature):
				return fmt.Errorf("live check failed: %w", err)
			default:
				return fmt.Errorf("live check inconclusive: %w", err)
			}
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "upload a probe pixel to verify the unsigned preset")
	return cmd
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

func presence(present bool) string {
	if present {
		return "present"
	}
	return "absent"
}
