// Package discord adapts the discordgo gateway client to the relay core: it
// converts inbound guild messages into platform queue items and implements
// the outbound Platform surface (send/delete).
package discord

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/sidekek/minecraft-discord-bridge/relay"
)

// Gateway is one open Discord gateway connection.
type Gateway struct {
	session *discordgo.Session
}

// Connect opens the gateway and feeds every inbound message to enqueue.
// Message handling stays trivial here; all interpretation happens in the
// relay dispatch loop so platform events keep their arrival order.
func Connect(token string, enqueue func(relay.PlatformMessage)) (*Gateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		slog.Info("discord gateway ready",
			slog.String("username", r.User.Username),
			slog.String("id", r.User.ID))
	})
	s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		enqueue(relay.PlatformMessage{
			ChannelID: m.ChannelID,
			MessageID: m.ID,
			Author:    m.Author.Username,
			Content:   m.Content,
			Bot:       m.Author.Bot,
		})
	})

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("open discord gateway: %w", err)
	}
	return &Gateway{session: s}, nil
}

// SendMessage posts text into a channel.
func (g *Gateway) SendMessage(channelID, text string) error {
	_, err := g.session.ChannelMessageSend(channelID, text)
	return err
}

// DeleteMessage removes a message from its channel.
func (g *Gateway) DeleteMessage(channelID, messageID string) error {
	return g.session.ChannelMessageDelete(channelID, messageID)
}

// Close shuts the gateway connection down.
func (g *Gateway) Close() error {
	return g.session.Close()
}
