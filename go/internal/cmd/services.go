package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/queuetimer/go/clients/queuetimer_client"
	"github.com/mcdev12/queuetimer/go/internal/assignments"
	"github.com/mcdev12/queuetimer/go/internal/config"
	"github.com/mcdev12/queuetimer/go/internal/events"
	"github.com/mcdev12/queuetimer/go/internal/poller"
	"github.com/mcdev12/queuetimer/go/internal/relay"
	"github.com/mcdev12/queuetimer/go/internal/session"
	"github.com/mcdev12/queuetimer/go/internal/view"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Config    *config.Config
	Clock     clockwork.Clock
	Store     *session.FileStore
	Sessions  *session.Manager
	Client    *queuetimer_client.QueueTimerClient
	Publisher events.Publisher
	Relay     *relay.ConnectionManager
	Sink      view.Fanout

	closers []func()
}

// setupServices wires the dependency chain:
// store → session manager → API client → app, with view sinks and publishers alongside.
func setupServices(c *config.Config, out io.Writer) (*Services, error) {
	s := &Services{
		Config: c,
		Clock:  clockwork.NewRealClock(),
		Store:  session.NewFileStore(c.Session.File),
	}

	client := queuetimer_client.NewQueueTimerClient(c.API.BaseURL)
	client.SetTimeout(c.API.Timeout)
	s.Client = client

	s.Sessions = session.NewManager(s.Store, client, c.Session.Timezone)
	client.SetSessionProvider(s.Sessions)

	publishers := events.Multi{events.NewLogPublisher()}
	if c.Events.NATSURL != "" {
		nc, err := events.Connect(c.Events.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set up event publishing: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := nc.Drain(); err != nil {
				log.Warn().Err(err).Msg("failed to drain NATS connection")
			}
		})
		publishers = append(publishers, events.NewNATSPublisher(nc, c.Events.SubjectPrefix))
		log.Info().Str("nats_url", c.Events.NATSURL).Str("prefix", c.Events.SubjectPrefix).Msg("publishing assignment events to NATS")
	}
	s.Publisher = publishers

	s.Sink = view.Fanout{view.NewTerminal(out)}
	if c.Relay.Enabled {
		s.Relay = relay.NewConnectionManager(relay.DefaultConnectionConfig())
		s.Sink = append(s.Sink, s.Relay)
	}

	log.Debug().
		Str("api", c.API.BaseURL).
		Str("session_file", s.Store.Path()).
		Bool("relay", c.Relay.Enabled).
		Msg("services ready")
	return s, nil
}

// NewApp builds the assignment controller that drives the local timer
func (s *Services) NewApp() *assignments.App {
	return assignments.NewApp(assignments.Config{
		Gateway:      s.Client,
		Cache:        assignments.NewCache(s.Store),
		Publisher:    s.Publisher,
		Sink:         s.Sink,
		Clock:        s.Clock,
		TickInterval: s.Config.Timer.TickInterval,
	})
}

// NewPoller builds the polling variant
func (s *Services) NewPoller() *poller.Poller {
	return poller.New(poller.Config{
		Fetcher:  s.Client,
		Clock:    s.Clock,
		Interval: s.Config.Timer.PollInterval,
		Policy:   s.Config.RetryPolicy(s.Clock),
		Sink:     s.Sink,
	})
}

// Session makes sure a valid session exists before any command runs
func (s *Services) Session(ctx context.Context) (string, error) {
	id, err := s.Sessions.Ensure(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to establish session: %w", err)
	}
	return id, nil
}

func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
