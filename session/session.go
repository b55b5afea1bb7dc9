// Package session owns the game-session lifecycle: (re)authentication,
// (re)connection, and the single writable cell holding the current session.
// Consumers read the cell per operation and never cache a session handle; the
// manager is the only writer.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sidekek/minecraft-discord-bridge/game"
	"github.com/sidekek/minecraft-discord-bridge/telemetry"
)

// State is the lifecycle state machine position.
type State int32

const (
	Disconnected State = iota
	Authenticating
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrNotConnected is returned by write passthroughs while no session is
// established (the reconnect window). Writers drop on it; nothing is queued.
var ErrNotConnected = errors.New("no game session connected")

// DefaultReconnectDelay is the grace interval before a reconnect attempt.
const DefaultReconnectDelay = 5 * time.Second

type cell struct{ s game.Session }

// Manager drives connect/reconnect and pumps the session's inbound events to
// a sink (the relay queue). Reconnection retries forever with a fixed grace
// delay; an authentication failure is fatal and ends Run, since retrying bad
// credentials may lock the account.
type Manager struct {
	Dialer         game.Dialer
	Identity       game.Identity
	ReconnectDelay time.Duration
	Sink           func(game.Event)

	cur   atomic.Pointer[cell]
	state atomic.Int32
}

// State reports the current lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) setState(s State) { m.state.Store(int32(s)) }

func (m *Manager) delay() time.Duration {
	if m.ReconnectDelay > 0 {
		return m.ReconnectDelay
	}
	return DefaultReconnectDelay
}

// current returns the live session or nil during the reconnect window.
func (m *Manager) current() game.Session {
	if c := m.cur.Load(); c != nil {
		return c.s
	}
	return nil
}

// SendChat writes a chat message on the current session, or reports
// ErrNotConnected so the caller can drop the write.
func (m *Manager) SendChat(text string) error {
	s := m.current()
	if s == nil {
		return ErrNotConnected
	}
	return s.SendChat(text)
}

// Respawn issues a respawn action on the current session.
func (m *Manager) Respawn() error {
	s := m.current()
	if s == nil {
		return ErrNotConnected
	}
	return s.Respawn()
}

// Run connects and keeps the session alive until ctx is canceled. It returns
// nil on cancellation and a *game.AuthError when credentials are rejected;
// any other dial failure is retried after the grace delay, forever.
func (m *Manager) Run(ctx context.Context) error {
	first := true
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !first {
			telemetry.Reconnects.Inc()
			slog.Info("reconnecting", slog.Duration("after", m.delay()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(m.delay()):
			}
		}
		first = false

		if m.Identity.Offline {
			m.setState(Connecting)
		} else {
			m.setState(Authenticating)
		}
		sessID := uuid.NewString()
		log := slog.Default().With(slog.String("session_id", sessID))

		sess, events, err := m.Dialer.Dial(ctx, m.Identity)
		if err != nil {
			m.setState(Disconnected)
			var authErr *game.AuthError
			if errors.As(err, &authErr) {
				log.Error("authentication rejected", slog.Any("err", err))
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("connect failed", slog.Any("err", err))
			continue
		}

		m.cur.Store(&cell{s: sess})
		m.setState(Connected)
		telemetry.SetConnected(true)
		log.Info("session established", slog.String("username", m.Identity.Username), slog.Bool("offline", m.Identity.Offline))

		// Pump inbound events until the session dies. The dialer closes the
		// channel after delivering its Disconnect event, which re-binds all
		// downstream handling to the next session automatically.
		for ev := range events {
			if m.Sink != nil {
				m.Sink(ev)
			}
		}

		m.cur.Store(nil)
		m.setState(Disconnected)
		telemetry.SetConnected(false)
		_ = sess.Close()
		log.Info("session lost")
	}
}
