package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"talktocode/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the HTTP server exposing the ingestion and query endpoints:

  POST /api/parse-repo  {"username": "...", "repo": "..."}
  POST /api/query       {"question": "..."}

The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.cleanup()

	srv := server.New(cfg.Server, p.ingest, p.query, cfg.Query.TopK, logger)
	return srv.Run(ctx)
}
