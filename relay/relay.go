// Package relay is the orchestrator core: every event source (game session,
// Discord gateway, local console) pushes typed items onto one ordered queue,
// and a single dispatch loop consumes them. That keeps relative arrival order
// without any locking inside the handlers.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sidekek/minecraft-discord-bridge/game"
	"github.com/sidekek/minecraft-discord-bridge/session"
	"github.com/sidekek/minecraft-discord-bridge/telemetry"
)

// Relay activation commands understood in Discord channels.
const (
	CmdChatHere     = "mc!chathere"
	CmdStopChatHere = "mc!stopchathere"
)

// Replies sent back to Discord for the subscription commands.
const (
	replyNowChatting     = "The bot will now start chatting here! To stop this, run `mc!stopchathere`."
	replyAlreadyChatting = "The bot is already chatting in this channel! To stop this, run `mc!stopchathere`."
	replyWasNotChatting  = "The bot was not chatting here!"
	replyStoppedChatting = "The bot will no longer chat here!"
)

// PlatformMessage is one inbound Discord message.
type PlatformMessage struct {
	ChannelID string
	MessageID string
	Author    string
	Content   string
	Bot       bool
}

// ConsoleLine is one line of local operator input.
type ConsoleLine struct {
	Text string
}

// Item is one queue entry; exactly one field is set.
type Item struct {
	Game     *game.Event
	Platform *PlatformMessage
	Console  *ConsoleLine
}

// Platform is the outbound surface of the chat-platform client.
type Platform interface {
	SendMessage(channelID, text string) error
	DeleteMessage(channelID, messageID string) error
}

// GameWriter is the outbound surface of the current game session
// (satisfied by *session.Manager).
type GameWriter interface {
	SendChat(text string) error
	Respawn() error
}

// Notifier dispatches a classified chat event to the webhook sink
// (satisfied by *webhook.Dispatcher).
type Notifier interface {
	Dispatch(ctx context.Context, ev game.ChatEvent) error
}

// SubscriptionStore persists which channels are active relay targets
// (satisfied by *db.SubscriptionStore).
type SubscriptionStore interface {
	Create(ctx context.Context, channelID string) error
	Exists(ctx context.Context, channelID string) (bool, error)
	Delete(ctx context.Context, channelID string) (int64, error)
	List(ctx context.Context) ([]string, error)
}

// Orchestrator consumes the queue and routes each item to its handler.
type Orchestrator struct {
	Game          GameWriter
	Notifier      Notifier
	Platform      Platform
	Subscriptions SubscriptionStore

	queue chan Item
}

// New returns an orchestrator with a buffered queue. Producers block when the
// buffer fills, which back-pressures the sources instead of reordering.
func New(gw GameWriter, n Notifier, p Platform, s SubscriptionStore) *Orchestrator {
	return &Orchestrator{
		Game:          gw,
		Notifier:      n,
		Platform:      p,
		Subscriptions: s,
		queue:         make(chan Item, 256),
	}
}

// Enqueue pushes one item onto the queue.
func (o *Orchestrator) Enqueue(it Item) { o.queue <- it }

// GameSink adapts Enqueue to the session manager's event callback.
func (o *Orchestrator) GameSink() func(game.Event) {
	return func(ev game.Event) { o.Enqueue(Item{Game: &ev}) }
}

// Run consumes items until ctx is canceled. Handler failures are isolated:
// a panic or error from one item is logged and the loop continues, so a
// malformed chat payload can never take down the relay.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-o.queue:
			o.dispatch(ctx, it)
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, it Item) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panic", slog.Any("panic", r))
		}
	}()
	var err error
	switch {
	case it.Game != nil:
		err = o.handleGame(ctx, *it.Game)
	case it.Platform != nil:
		err = o.handlePlatform(ctx, *it.Platform)
	case it.Console != nil:
		err = o.handleConsole(*it.Console)
	}
	if err != nil {
		slog.Warn("handler failed", slog.Any("err", err))
	}
}

func (o *Orchestrator) handleGame(ctx context.Context, ev game.Event) error {
	switch {
	case ev.Join != nil:
		slog.Info("connected to game server")
	case ev.Chat != nil:
		return o.handleChat(ctx, ev.Chat.JSON)
	case ev.Health != nil:
		return o.handleHealth(ev.Health.Health)
	case ev.Disconnect != nil:
		// The lifecycle manager owns the reconnect sequence; this is just
		// the ordered-log record of the transition.
		slog.Warn("game session disconnected", slog.String("reason", ev.Disconnect.Reason))
	}
	return nil
}

func (o *Orchestrator) handleChat(ctx context.Context, rawJSON string) error {
	ev := game.Classify(rawJSON)
	telemetry.CountChatEvent(ev.Kind.String())
	if ev.Kind == game.KindUnrecognized {
		return nil
	}
	slog.Debug("chat event", slog.String("kind", ev.Kind.String()), slog.String("username", ev.Username))

	if err := o.Notifier.Dispatch(ctx, ev); err != nil {
		// Identity lookup failed: skip this one notification, retry happens
		// naturally on the name's next occurrence.
		slog.Warn("notification skipped", slog.Any("err", err))
	}
	o.fanOut(ctx, ev)
	return nil
}

// fanOut relays a rendered chat line to every subscribed Discord channel.
func (o *Orchestrator) fanOut(ctx context.Context, ev game.ChatEvent) {
	channels, err := o.Subscriptions.List(ctx)
	if err != nil {
		slog.Warn("list subscriptions failed", slog.Any("err", err))
		return
	}
	if len(channels) == 0 {
		return
	}
	var line string
	switch ev.Kind {
	case game.KindJoin:
		line = fmt.Sprintf("*%s joined the game*", ev.Username)
	case game.KindLeave:
		line = fmt.Sprintf("*%s left the game*", ev.Username)
	case game.KindMessage:
		line = fmt.Sprintf("**%s**: %s", ev.Username, ev.Text)
	default:
		return
	}
	for _, ch := range channels {
		if err := o.Platform.SendMessage(ch, line); err != nil {
			slog.Warn("platform relay failed", slog.String("channel", ch), slog.Any("err", err))
			continue
		}
		telemetry.RelaysToPlatform.Inc()
	}
}

func (o *Orchestrator) handleHealth(health float64) error {
	if health > 0 {
		return nil
	}
	// Auto-respawn policy: unconditional, no confirmation.
	slog.Info("player died; issuing respawn", slog.Float64("health", health))
	if err := o.Game.Respawn(); err != nil {
		return fmt.Errorf("auto-respawn: %w", err)
	}
	telemetry.Respawns.Inc()
	return nil
}

func (o *Orchestrator) handleConsole(line ConsoleLine) error {
	var err error
	if line.Text == "/respawn" {
		err = o.Game.Respawn()
	} else {
		err = o.Game.SendChat(line.Text)
	}
	if errors.Is(err, session.ErrNotConnected) {
		telemetry.RelaysDroppedNoSess.Inc()
		slog.Debug("console input dropped; no session")
		return nil
	}
	if err == nil && line.Text != "/respawn" {
		telemetry.RelaysToGame.Inc()
	}
	return err
}
