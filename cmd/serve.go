package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/keiba-ai/internal/web"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	shutdownTimeout   = 15 * time.Second
)

var (
	serveFlags pipelineFlags
	serveAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web UI (overall prediction, single evaluation, sign theory)",
	Example: `  keiba serve
  keiba serve --addr :8080 --provider ollama --model llama3.1:8b`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config()
		svc, err := newService(c, &serveFlags)
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = c.ListenAddr
		}
		s := &web.Server{
			Service:     svc,
			Source:      serveFlags.source(c),
			Sessions:    web.NewSessions(c.SessionTTL()),
			UploadLimit: c.UploadLimit(),
			Log:         logger(),
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           s.Router(),
			ReadHeaderTimeout: readHeaderTimeout,
			// LLM calls bound the write side
			WriteTimeout: c.LLMTimeout() + 30*time.Second,
			IdleTimeout:  idleTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger().WithField("addr", addr).Info("starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", addr)

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}
		logger().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger().Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags.register(serveCmd)
	_ = serveCmd.Flags().MarkHidden("json")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
}
