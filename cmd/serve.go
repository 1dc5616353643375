package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/chemgen/internal/server"
	"github.com/abhisek/chemgen/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", "", "Listen address (overrides CHEMGEN_HTTP_ADDR)")
}

func runServe(cmd *cobra.Command) error {
	d, err := buildDeps(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	cfg := server.ConfigFromEnv()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}

	sess := session.New(d.service)
	srv := server.NewHTTPServer(cfg, server.NewRouter(cfg, sess, d.service.ModelID()))

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown", "error", err)
		}
		close(done)
	}()

	slog.Info("listening", "addr", cfg.Addr, "model", d.service.ModelID())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	<-done
	return nil
}
