// Package mcclient implements game.Dialer on top of the go-mc protocol
// library. It stays deliberately thin: packet handling, encryption, and the
// login handshake all live in the library; this adapter only converts the
// library's callbacks into the typed event stream the relay consumes.
package mcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tnze/go-mc/bot"
	"github.com/Tnze/go-mc/bot/basic"
	"github.com/Tnze/go-mc/bot/msg"
	"github.com/Tnze/go-mc/bot/playerlist"
	"github.com/Tnze/go-mc/chat"

	"github.com/sidekek/minecraft-discord-bridge/game"
)

// Dialer joins the configured server once per Dial call.
type Dialer struct {
	Addr string
}

type mcSession struct {
	client *bot.Client
	player *basic.Player
	chat   *msg.Manager
}

func (s *mcSession) SendChat(text string) error { return s.chat.SendMessage(text) }
func (s *mcSession) Respawn() error             { return s.player.Respawn() }
func (s *mcSession) Close() error               { return s.client.Close() }

// Dial authenticates (unless offline), joins the server, and starts the game
// loop. The returned channel delivers inbound events and is closed after the
// session's Disconnect event once the game loop exits.
func (d *Dialer) Dial(ctx context.Context, id game.Identity) (game.Session, <-chan game.Event, error) {
	client := bot.NewClient()
	client.Auth = bot.Auth{Name: id.Username}
	if !id.Offline {
		client.Auth.UUID = id.UUID
		client.Auth.AsTk = id.AccessToken
	}

	events := make(chan game.Event, 64)
	s := &mcSession{client: client}

	s.player = basic.NewPlayer(client, basic.DefaultSettings, basic.EventsListener{
		GameStart: func() error {
			events <- game.Event{Join: &game.JoinGame{}}
			return nil
		},
		Disconnect: func(reason chat.Message) error {
			events <- game.Event{Disconnect: &game.DisconnectEvent{Reason: reason.ClearString()}}
			return nil
		},
		HealthChange: func(health float32, foodLevel int32, foodSaturation float32) error {
			events <- game.Event{Health: &game.HealthUpdate{Health: float64(health)}}
			return nil
		},
	})

	forward := func(m chat.Message) error {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil
		}
		events <- game.Event{Chat: &game.ChatMessage{JSON: string(raw)}}
		return nil
	}
	s.chat = msg.New(client, s.player, playerlist.New(client), msg.EventsHandler{
		SystemChat: func(m chat.Message, overlay bool) error {
			if overlay {
				return nil
			}
			return forward(m)
		},
		PlayerChatMessage: func(m chat.Message, _ bool) error {
			return forward(m)
		},
	})

	if err := client.JoinServer(d.Addr); err != nil {
		if isAuthRejection(err) {
			return nil, nil, &game.AuthError{Username: id.Username, Reason: err.Error()}
		}
		return nil, nil, fmt.Errorf("join %s: %w", d.Addr, err)
	}

	gameDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Close()
		case <-gameDone:
		}
	}()
	go func() {
		err := client.HandleGame()
		close(gameDone)
		reason := "connection closed"
		if err != nil {
			reason = err.Error()
		}
		events <- game.Event{Disconnect: &game.DisconnectEvent{Reason: reason}}
		close(events)
	}()

	return s, events, nil
}

// isAuthRejection distinguishes credential rejection (fatal, never retried)
// from ordinary transport failures. The server reports it as a login
// disconnect, so this goes by the reason text.
func isAuthRejection(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "invalid session") ||
		strings.Contains(s, "failed to verify username") ||
		strings.Contains(s, "authentication servers") ||
		strings.Contains(s, "failed to login")
}
