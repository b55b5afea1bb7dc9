package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sidekek/minecraft-discord-bridge/session"
	"github.com/sidekek/minecraft-discord-bridge/telemetry"
)

// handlePlatform interprets one inbound Discord message: subscription
// commands first, then ordinary messages are deleted on the Discord side and
// relayed into the game session prefixed with the author's name.
func (o *Orchestrator) handlePlatform(ctx context.Context, msg PlatformMessage) error {
	switch {
	case strings.HasPrefix(msg.Content, CmdChatHere):
		return o.startChatHere(ctx, msg.ChannelID)
	case strings.HasPrefix(msg.Content, CmdStopChatHere):
		return o.stopChatHere(ctx, msg.ChannelID)
	case msg.Bot:
		// Automated accounts (including this bot's own relays) are ignored
		// to avoid relay loops.
		return nil
	default:
		return o.relayToGame(msg)
	}
}

func (o *Orchestrator) startChatHere(ctx context.Context, channelID string) error {
	exists, err := o.Subscriptions.Exists(ctx, channelID)
	if err != nil {
		return fmt.Errorf("check subscription: %w", err)
	}
	if exists {
		// Idempotent signal, not an error.
		return o.Platform.SendMessage(channelID, replyAlreadyChatting)
	}
	if err := o.Subscriptions.Create(ctx, channelID); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	slog.Info("relay activated", slog.String("channel", channelID))
	return o.Platform.SendMessage(channelID, replyNowChatting)
}

func (o *Orchestrator) stopChatHere(ctx context.Context, channelID string) error {
	deleted, err := o.Subscriptions.Delete(ctx, channelID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if deleted < 1 {
		return o.Platform.SendMessage(channelID, replyWasNotChatting)
	}
	slog.Info("relay deactivated", slog.String("channel", channelID))
	return o.Platform.SendMessage(channelID, replyStoppedChatting)
}

func (o *Orchestrator) relayToGame(msg PlatformMessage) error {
	// Delete the original so the line is not displayed twice once the game
	// echoes it back through the webhook.
	if err := o.Platform.DeleteMessage(msg.ChannelID, msg.MessageID); err != nil {
		slog.Warn("delete platform message failed", slog.Any("err", err))
	}
	err := o.Game.SendChat(fmt.Sprintf("%s: %s", msg.Author, msg.Content))
	if errors.Is(err, session.ErrNotConnected) {
		// No queueing during the reconnect window; the message is dropped.
		telemetry.RelaysDroppedNoSess.Inc()
		slog.Debug("platform relay dropped; no session", slog.String("channel", msg.ChannelID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("relay to game: %w", err)
	}
	telemetry.RelaysToGame.Inc()
	return nil
}
