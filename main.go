// Command minecraft-discord-bridge relays chat and events between a Minecraft
// server and Discord, in both directions. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Keeps a game session alive (reconnect with re-auth on disconnect) and
//     pumps its events through the relay dispatch loop.
//   - Posts join/leave/chat notifications to a Discord webhook and fans chat
//     out to subscribed channels; relays Discord messages and local console
//     input back into the game.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM; a rejected game login is fatal.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sidekek/minecraft-discord-bridge/config"
	"github.com/sidekek/minecraft-discord-bridge/console"
	"github.com/sidekek/minecraft-discord-bridge/db"
	"github.com/sidekek/minecraft-discord-bridge/discord"
	"github.com/sidekek/minecraft-discord-bridge/game"
	"github.com/sidekek/minecraft-discord-bridge/identity"
	"github.com/sidekek/minecraft-discord-bridge/mcclient"
	"github.com/sidekek/minecraft-discord-bridge/relay"
	"github.com/sidekek/minecraft-discord-bridge/server"
	"github.com/sidekek/minecraft-discord-bridge/session"
	"github.com/sidekek/minecraft-discord-bridge/telemetry"
	"github.com/sidekek/minecraft-discord-bridge/webhook"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	initLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateGameReady(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateDiscordReady(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("minecraft-discord-bridge", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()
	if err := db.RunMigrations(database); err != nil {
		slog.Error("failed to migrate db", slog.Any("err", err))
		os.Exit(1)
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := identity.NewCache(&identity.Client{BaseURL: cfg.IdentityBaseURL})
	dispatcher := &webhook.Dispatcher{
		URL:            cfg.WebhookURL,
		AvatarTemplate: cfg.AvatarTemplate,
		Resolver:       cache,
	}

	manager := &session.Manager{
		Dialer: &mcclient.Dialer{Addr: cfg.GameAddr},
		Identity: game.Identity{
			Username:    cfg.Username,
			AccessToken: cfg.AccessToken,
			UUID:        cfg.PlayerUUID,
			Offline:     cfg.Offline,
		},
		ReconnectDelay: cfg.ReconnectDelay,
	}

	orch := relay.New(manager, dispatcher, nil, &db.SubscriptionStore{DB: database})
	manager.Sink = orch.GameSink()

	gateway, err := discord.Connect(cfg.DiscordToken, func(m relay.PlatformMessage) {
		orch.Enqueue(relay.Item{Platform: &m})
	})
	if err != nil {
		slog.Error("discord connect failed", slog.Any("err", err))
		os.Exit(1)
	}
	orch.Platform = gateway
	defer func() {
		if err := gateway.Close(); err != nil {
			slog.Error("failed to close discord gateway", slog.Any("err", err))
		}
	}()

	go orch.Run(ctx)

	// Local operator input; end-of-input requests an orderly shutdown.
	go func() {
		if err := console.Run(ctx, os.Stdin, func(l relay.ConsoleLine) {
			orch.Enqueue(relay.Item{Console: &l})
		}); err != nil {
			slog.Warn("console reader failed", slog.Any("err", err))
		}
		stop()
	}()

	go func() {
		if err := server.Start(ctx, database, cfg.HTTPAddr, func() string {
			return manager.State().String()
		}); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// The session manager runs until shutdown; a rejected login ends it with
	// an auth error and the process exits without retrying credentials.
	sessionErr := make(chan error, 1)
	go func() { sessionErr <- manager.Run(ctx) }()

	select {
	case err := <-sessionErr:
		if err != nil {
			slog.Error("fatal authentication failure", slog.Any("err", err))
			os.Exit(1)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down")
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT (text | json).
func initLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}
