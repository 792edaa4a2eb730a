package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/garage-occupancy-service/internal/adapter/upstream"
	"github.com/couchcryptid/garage-occupancy-service/internal/config"
	"github.com/couchcryptid/garage-occupancy-service/internal/domain"
	"github.com/couchcryptid/garage-occupancy-service/internal/ingest"
	"github.com/couchcryptid/garage-occupancy-service/internal/observability"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// ExitError is the process exit code when a command fails.
const ExitError = 1

type rootOptions struct {
	format  string
	verbose bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "garagectl",
		Short: "Inspect campus parking garage occupancy",
		Long: `A CLI tool for the garage occupancy service.
Fetches the live status page, parses saved pages offline, and prints the garage catalog.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newSnapshotCmd(opts),
		newParseCmd(opts),
		newCatalogCmd(opts),
	)
	return cmd
}

func (o *rootOptions) outputFormat() (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(o.format))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", o.format)
	}
	return format, nil
}

// logger writes text records to w, normally stderr, so stdout carries only
// command output. Warnings always show; --verbose adds debug output.
func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var (
		url     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run one ingestion cycle against the live status page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := opts.outputFormat()
			if err != nil {
				return err
			}
			logger := opts.logger(cmd.ErrOrStderr())
			metrics := observability.NewMetricsWith(prometheus.NewRegistry())

			catalog, err := domain.DefaultCatalog()
			if err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}
			client, err := upstream.NewClient(url, nil, metrics, logger)
			if err != nil {
				return err
			}
			svc := ingest.NewService(client, domain.NewExtractor(catalog), nil, logger, metrics)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			snapshot, err := svc.Ingest(ctx)
			if err != nil {
				return fmt.Errorf("fetching snapshot: %w", err)
			}
			return WriteObservation(cmd.OutOrStdout(), domain.Observe(snapshot), format)
		},
	}

	cmd.Flags().StringVar(&url, "url", defaultURL(), "Status page URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long (0 disables)")
	return cmd
}

func newParseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE",
		Short: "Extract a snapshot from a saved status page",
		Long: `Runs the extractor on a saved copy of the status page.
Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := opts.outputFormat()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening page: %w", err)
				}
				defer f.Close()
				r = f
			}

			catalog, err := domain.DefaultCatalog()
			if err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}
			snapshot, err := domain.NewExtractor(catalog).Extract(r)
			if err != nil {
				return err
			}
			if len(snapshot) == 0 {
				opts.logger(cmd.ErrOrStderr()).Warn("page contained no catalog garages", "file", args[0])
			}
			return WriteSnapshot(cmd.OutOrStdout(), snapshot, format)
		},
	}
}

func newCatalogCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the compiled-in garage catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := opts.outputFormat()
			if err != nil {
				return err
			}
			catalog, err := domain.DefaultCatalog()
			if err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}
			return WriteCatalog(cmd.OutOrStdout(), catalog, format)
		},
	}
}

func defaultURL() string {
	return sharedcfg.EnvOrDefault("UPSTREAM_URL", config.DefaultUpstreamURL)
}
