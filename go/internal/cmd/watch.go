package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/queuetimer/go/internal/poller"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Follow a started assignment by polling the service",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := setupServices(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.Close()

	p := s.NewPoller()
	if s.Relay != nil {
		followViewers(p, s, isTerminal(cmd.OutOrStdout()))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	serveRelay(gctx, g, s)

	g.Go(func() error {
		defer cancel()
		a, err := p.Run(gctx, id)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		log.Info().Int("assignment_id", a.ID).Int("pause_count", a.PauseCount).Msg("assignment complete")
		return nil
	})

	return g.Wait()
}

// followViewers polls only while someone is looking: the terminal itself, or
// at least one page connected to the relay.
func followViewers(p *poller.Poller, s *Services, attached bool) {
	if attached {
		return
	}
	p.SetVisible(s.Relay.Count() > 0)
	s.Relay.OnViewersChanged(func(count int) {
		p.SetVisible(count > 0)
	})
}
