// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

// Raceday is a headless daemon that mirrors the live state of a
// marathon event: it logs into the event-management API, loads the
// runner roster and active races, subscribes to the push channel, and
// keeps the local mirror reconciled in real time. The mirrored state,
// health, and metrics are exposed on a local operational HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/kmoyo/raceday/internal/api"
	"github.com/kmoyo/raceday/internal/auth"
	"github.com/kmoyo/raceday/internal/channel"
	"github.com/kmoyo/raceday/internal/config"
	"github.com/kmoyo/raceday/internal/logging"
	"github.com/kmoyo/raceday/internal/models"
	"github.com/kmoyo/raceday/internal/notify"
	"github.com/kmoyo/raceday/internal/ops"
	"github.com/kmoyo/raceday/internal/reconcile"
	"github.com/kmoyo/raceday/internal/store"
	"github.com/kmoyo/raceday/internal/supervisor"
	"github.com/kmoyo/raceday/internal/supervisor/services"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("raceday %s\n", version)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "raceday: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().Str("version", version).Msg("starting raceday")

	if err := run(cfg); err != nil && err != context.Canceled {
		logging.Fatal().Err(err).Msg("raceday exited with error")
	}
	logging.Info().Msg("raceday stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Session and client reference each other; build the session
	// first, then bind the client to it.
	session := auth.NewSession(auth.NewTokenStore(cfg.API.TokenPath))
	client := api.NewClient(api.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Tokens:  session,
	})
	session.BindClient(client)
	session.SetOnExpired(func() {
		logging.Warn().Msg("upstream session expired, relogin on next cycle")
	})

	resumed, err := session.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	if !resumed {
		if err := session.Login(ctx, cfg.API.Email, cfg.API.Password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	// Mirrored stores. Runners are paginated; races are mirrored as
	// the full active set.
	refetchLimit := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Stores.RefetchPerMinute)), 1)
	runners := store.NewCollection[models.Runner, models.RunnerPatch]("runners", client.ListRunners, refetchLimit)
	races := store.NewCollection[models.Race, models.RacePatch]("races",
		client.ListRaces,
		rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Stores.RefetchPerMinute)), 1))
	raceDetail := store.NewDetail[models.Race, models.RacePatch]()

	runnerQuery := store.Query{Page: 1, PageSize: cfg.Stores.PageSize}
	if err := runners.Load(ctx, runnerQuery); err != nil {
		logging.Warn().Err(err).Msg("initial runner load failed, starting empty")
	}
	raceQuery := store.Query{Filters: map[string]string{"status": "in-progress"}}
	if err := races.Load(ctx, raceQuery); err != nil {
		logging.Warn().Err(err).Msg("initial race load failed, starting empty")
	}

	// Push channel and reconciliation.
	ch := channel.New(channel.Config{
		URL:                 cfg.Channel.URL,
		HandshakeTimeout:    cfg.Channel.HandshakeTimeout,
		PingInterval:        cfg.Channel.PingInterval,
		MaxReconnectBackoff: cfg.Channel.MaxReconnectBackoff,
	})
	rec := reconcile.New(runners, races, raceDetail, notify.LogNotifier{})
	tokens := rec.Bind(ch)

	// Operational surface.
	opsServer := ops.NewServer(ops.Config{
		ListenAddr:        cfg.Ops.ListenAddr,
		RequestsPerMinute: cfg.Ops.RequestsPerMinute,
		ReadyChecks: []ops.ReadyCheck{
			{Name: "session", Check: session.Authenticated},
			{Name: "channel", Check: ch.IsConnected},
		},
		Snapshots: map[string]ops.Snapshot{
			"runners": func() any {
				return map[string]any{
					"items": runners.Items(),
					"total": runners.Total(),
					"pages": runners.TotalPages(),
				}
			},
			"races": func() any {
				return map[string]any{
					"items": races.Items(),
					"total": races.Total(),
				}
			},
		},
	})

	// Supervision tree: channel and refresher in the mirror layer, the
	// ops server in its own layer.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("build supervisor tree: %w", err)
	}

	tree.AddMirrorService(services.NewChannelService(ch))
	if cfg.Stores.RefreshInterval > 0 {
		tree.AddMirrorService(services.NewRefreshService(cfg.Stores.RefreshInterval, map[string]services.RefreshFunc{
			"runners": func(ctx context.Context) error { return runners.Load(ctx, runners.Query()) },
			"races":   func(ctx context.Context) error { return races.Load(ctx, races.Query()) },
			// Relogin before the token lapses so the mirror never runs
			// into a 401 mid-cycle.
			"session": func(ctx context.Context) error {
				if !session.ExpiresSoon(2 * cfg.Stores.RefreshInterval) {
					return nil
				}
				logging.Info().Msg("session token expiring, logging in again")
				return session.Login(ctx, cfg.API.Email, cfg.API.Password)
			},
		}))
	}
	tree.AddOpsService(services.NewHTTPServerService(opsServer, cfg.Ops.ShutdownTimeout))

	logging.Info().
		Str("ops_addr", cfg.Ops.ListenAddr).
		Str("channel_url", cfg.Channel.URL).
		Msg("raceday running")

	err = tree.Serve(ctx)

	// Orderly teardown: detach handlers so no reconciliation runs
	// against a closing channel, then drop the connection.
	for _, token := range tokens {
		ch.Unsubscribe(token)
	}
	ch.RemoveAllHandlers()
	ch.Disconnect()
	runners.Wait()
	races.Wait()

	return err
}
