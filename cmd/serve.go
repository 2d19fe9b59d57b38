package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/api"
	"github.com/sells-group/multiview/internal/config"
	"github.com/sells-group/multiview/internal/pipeline"
)

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, cfg, "serve")
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIServer(env, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return eris.Wrap(err, "server listen")
		}

		zap.L().Info("starting server", zap.Int("port", port))
		return serveUntilDone(ctx, srv, ln, shutdownTimeout)
	},
}

// serveUntilDone serves on ln until ctx is cancelled, then shuts srv down
// and returns only once in-flight requests have drained or timeout passes.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	if err := <-shutdownErr; err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	zap.L().Info("server stopped")
	return nil
}

// newAPIServer wires the HTTP layer to an initialized app.
func newAPIServer(env *appEnv, c *config.Config) *api.Server {
	return api.NewServer(api.Deps{
		Pipeline:          pipeline.NewLive(env.Pipeline),
		Client:            env.Client,
		Extractor:         env.Extractor,
		DefaultCredential: c.OpenRouter.Key,
		AllowedOrigins:    c.Server.AllowedOrigins,
		AdminToken:        c.Server.AdminToken,
		CheckModel:        c.Credentials.CheckModel,
		MinKeyLength:      c.Credentials.MinKeyLength,
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
