package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/logger"
	"github.com/engramdb/engram/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve memory tools over the Model Context Protocol on stdio",
	Long: "Run an MCP stdio server exposing engram_store, engram_retrieve, " +
		"engram_forget, engram_explain, and engram_stats. Background maintenance " +
		"loops run for the lifetime of the process; the snapshot is saved on exit.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout belongs to the transport, so logs go to stderr.
	a, err := openApp(logger.WithWriter(os.Stderr), logger.WithJSON(true))
	if err != nil {
		return err
	}

	sched := a.scheduler()
	sched.Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mcp.New(a.eng, VersionString(), a.log)
	a.log.Info("mcp server listening on stdio")
	runErr := srv.Run(ctx)

	sched.Stop()
	if err := a.Close(); err != nil {
		a.log.Error("snapshot save failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
