package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/expression-client/internal/handlers"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive submission API",
		Long: `Starts an HTTP API that holds one selection/submission session and
exposes its state to a view: select an image, submit it, cancel, and poll
the current state.`,
		Example: `  # Listen on the configured address (default :8080)
  expression-client serve

  # Use a remote classifier and a custom address
  expression-client serve --service-url http://fer.internal:5000 --addr :3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.newSession()
			if err != nil {
				return err
			}
			defer s.close()

			if addr != "" {
				s.cfg.ListenAddr = addr
			}

			gin.SetMode(gin.ReleaseMode)
			router := gin.New()
			router.Use(gin.Recovery())
			router.MaxMultipartMemory = s.cfg.MaxUploadSize
			handlers.RegisterRoutes(router, s.ctrl, s.previews, handlers.Options{
				MaxUploadSize: s.cfg.MaxUploadSize,
				Logger:        s.logger,
			})

			server := &http.Server{
				Addr:              s.cfg.ListenAddr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			s.logger.Info("submission API listening",
				zap.String("addr", s.cfg.ListenAddr),
				zap.String("service_url", s.cfg.ServiceURL),
			)
			return serveHTTPServer(cmd.Context(), server, s.cfg.ShutdownTimeout, s.logger, nil)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (overrides listen_addr)")

	return cmd
}

// serveHTTPServer runs server until it fails or ctx is done, then shuts it
// down gracefully within shutdownTimeout. A nil listener means ListenAndServe.
func serveHTTPServer(ctx context.Context, server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down server", zap.NamedError("cause", context.Cause(ctx)))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
