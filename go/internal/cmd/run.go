package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/mcdev12/queuetimer/go/internal/reconciler"
	"github.com/mcdev12/queuetimer/go/internal/view"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const runHelp = "p pause, r resume, c complete, d delete, q quit"

var runCmd = &cobra.Command{
	Use:   "run [id]",
	Short: "Start an assignment and follow it with a local timer",
	Long: "Start an assignment and follow it with a local timer.\n" +
		"Without an id a new assignment is created from --title and --duration.\n" +
		"Keys: " + runHelp,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

// timerControls is what the key loop drives
type timerControls interface {
	Pause(ctx context.Context) (reconciler.Snapshot, error)
	Resume(ctx context.Context) (reconciler.Snapshot, error)
	Complete(ctx context.Context) (reconciler.Summary, error)
	Discard(ctx context.Context)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := setupServices(cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.Close()

	finished := make(chan struct{})
	var once sync.Once
	s.Sink = append(s.Sink, view.SinkFunc(func(st view.State) {
		if st.Mode == view.ModeSummary {
			once.Do(func() { close(finished) })
		}
	}))

	app := s.NewApp()
	defer app.Close()

	id := 0
	if len(args) == 1 {
		if id, err = parseID(args[0]); err != nil {
			return err
		}
	} else {
		a, err := app.Create(ctx, assignmentTitle, assignmentDuration)
		if err != nil {
			return err
		}
		id = a.ID
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	serveRelay(gctx, g, s)

	if _, err := app.Start(gctx, id); err != nil {
		cancel()
		g.Wait()
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), runHelp)

	g.Go(func() error {
		defer cancel()
		return driveTimer(gctx, cmd.InOrStdin(), app, finished)
	})

	return g.Wait()
}

// driveTimer maps input lines onto timer transitions until the user quits,
// input ends, the timer completes, or ctx ends.
func driveTimer(ctx context.Context, in io.Reader, ctrl timerControls, finished <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-finished:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleKey(ctx, line, ctrl)
			if err != nil {
				log.Error().Err(err).Str("key", line).Msg("action failed")
			}
			if quit {
				return nil
			}
		}
	}
}

var errUnknownKey = errors.New("unknown key, " + runHelp)

// handleKey performs one action and reports whether the loop should stop
func handleKey(ctx context.Context, line string, ctrl timerControls) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return false, nil
	case "p", "pause":
		_, err := ctrl.Pause(ctx)
		return false, err
	case "r", "resume":
		_, err := ctrl.Resume(ctx)
		return false, err
	case "c", "complete":
		_, err := ctrl.Complete(ctx)
		return err == nil, err
	case "d", "delete":
		ctrl.Discard(ctx)
		return true, nil
	case "q", "quit":
		log.Info().Msg("leaving timer, the service keeps tracking it")
		return true, nil
	default:
		return false, errUnknownKey
	}
}
