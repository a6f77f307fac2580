package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nabbelbabbel/serenity/internal/mcp"
	"github.com/nabbelbabbel/serenity/internal/observability"
	"github.com/nabbelbabbel/serenity/pkg/version"
)

// NewMCPCommand creates the mcp command serving tools over stdio.
func NewMCPCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the solver as MCP tools over stdio",
		Long:  "Serve lmp2_run, lmp2_validate and lmp2_estimate as MCP tools over stdio for agent integration.",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			providers, err := initMCPObservability(debug)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil && providers.Logger != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger: providers.Logger,
				Tracer: providers.Tracer,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return cmd
}

// initMCPObservability builds providers for the stdio server. Logs go
// to stderr as JSON so they never corrupt the protocol stream.
func initMCPObservability(debug bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.Mode = observability.ModeMCP
	cfg.LogJSON = true
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	if debug {
		cfg.LogLevel = slog.LevelDebug
	}

	return observability.Init(cfg)
}
