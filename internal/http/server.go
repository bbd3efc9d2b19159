package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Serve runs server and every background task until ctx is cancelled or the server fails, then
// shuts the server down. It returns only after all background tasks have returned.
func Serve(ctx context.Context, server *http.Server, logger zerolog.Logger, background ...func(context.Context)) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, task := range background {
		g.Go(func() error {
			task(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	return g.Wait()
}
