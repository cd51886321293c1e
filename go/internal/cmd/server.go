package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/queuetimer/go/internal/relay"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// serveRelay runs the view relay inside g until ctx ends. It does nothing when
// the relay is disabled.
func serveRelay(ctx context.Context, g *errgroup.Group, s *Services) {
	if s.Relay == nil {
		return
	}

	server := relay.NewServer(s.Config.Relay.Addr, s.Relay)

	g.Go(func() error {
		s.Relay.Start(ctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("view relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("view relay failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("view relay shutdown failed")
		}
		return nil
	})
}
