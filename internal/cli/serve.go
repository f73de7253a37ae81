package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/engramdb/engram/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and the maintenance scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}

	sched := a.scheduler()
	sched.Start()

	srv := server.New(a.eng, sched, VersionString(), a.log)
	addr := a.cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		a.log.Info("engram serving", "addr", addr, "snapshot", a.db.Path, "records", a.st.Len())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	a.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		a.log.Warn("drain timed out", "error", err)
	}

	sched.Stop()
	return a.Close()
}
