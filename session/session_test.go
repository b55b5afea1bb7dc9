package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sidekek/minecraft-discord-bridge/game"
	"github.com/sidekek/minecraft-discord-bridge/telemetry"
)

type fakeSession struct {
	mu       sync.Mutex
	chats    []string
	respawns int
	closed   bool
}

func (f *fakeSession) SendChat(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats = append(f.chats, text)
	return nil
}

func (f *fakeSession) Respawn() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respawns++
	return nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeDialer hands out one scripted session per Dial call.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	// per-dial outcomes; the last entry repeats
	errs     []error
	sessions []*fakeSession
	channels []chan game.Event
}

func (f *fakeDialer) Dial(ctx context.Context, id game.Identity) (game.Session, <-chan game.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.dials
	f.dials++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, nil, f.errs[i]
	}
	if i >= len(f.sessions) {
		i = len(f.sessions) - 1
	}
	return f.sessions[i], f.channels[i], nil
}

func TestRunPumpsEventsAndReconnects(t *testing.T) {
	telemetry.Init()
	ch1 := make(chan game.Event, 4)
	ch2 := make(chan game.Event, 4)
	d := &fakeDialer{
		sessions: []*fakeSession{{}, {}},
		channels: []chan game.Event{ch1, ch2},
	}
	var mu sync.Mutex
	var seen []game.Event
	m := &Manager{
		Dialer:         d,
		Identity:       game.Identity{Username: "steve", Offline: true},
		ReconnectDelay: 10 * time.Millisecond,
		Sink: func(ev game.Event) {
			mu.Lock()
			seen = append(seen, ev)
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	ch1 <- game.Event{Join: &game.JoinGame{}}
	ch1 <- game.Event{Disconnect: &game.DisconnectEvent{Reason: "timeout"}}
	close(ch1)

	// After the grace delay the manager must redial and resume pumping from
	// the new session: the post-reconnect chat event must reach the sink.
	ch2 <- game.Event{Chat: &game.ChatMessage{JSON: `{"text":"","extra":[{"text":"<Bob> hi"}]}`}}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("saw %d events, want 3", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	if m.State() != Connected {
		t.Errorf("state = %v, want connected after reconnect", m.State())
	}
	mu.Lock()
	if seen[2].Chat == nil {
		t.Errorf("third event = %+v, want post-reconnect chat", seen[2])
	}
	mu.Unlock()
	d.mu.Lock()
	if d.dials != 2 {
		t.Errorf("dials = %d, want 2", d.dials)
	}
	d.mu.Unlock()

	cancel()
	close(ch2)
	if err := <-done; err != nil {
		t.Errorf("Run returned %v on cancel, want nil", err)
	}
}

func TestRunFatalOnAuthError(t *testing.T) {
	telemetry.Init()
	d := &fakeDialer{errs: []error{&game.AuthError{Username: "steve", Reason: "invalid credentials"}}}
	m := &Manager{Dialer: d, Identity: game.Identity{Username: "steve"}, ReconnectDelay: time.Millisecond}

	err := m.Run(context.Background())
	var authErr *game.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Run = %v, want *game.AuthError", err)
	}
	if d.dials != 1 {
		t.Errorf("dials = %d, want 1 (no auth retry)", d.dials)
	}
}

func TestRunRetriesTransportFailure(t *testing.T) {
	telemetry.Init()
	ch := make(chan game.Event)
	d := &fakeDialer{
		errs:     []error{errors.New("connection refused"), nil},
		sessions: []*fakeSession{{}},
		channels: []chan game.Event{ch},
	}
	m := &Manager{Dialer: d, Identity: game.Identity{Username: "steve", Offline: true}, ReconnectDelay: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for m.State() != Connected {
		select {
		case <-deadline:
			t.Fatal("never reached connected after transport failure")
		case <-time.After(2 * time.Millisecond):
		}
	}
	cancel()
	close(ch)
	<-done
	d.mu.Lock()
	if d.dials != 2 {
		t.Errorf("dials = %d, want 2", d.dials)
	}
	d.mu.Unlock()
}

func TestWritesDroppedWhileDisconnected(t *testing.T) {
	m := &Manager{}
	if err := m.SendChat("hello"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendChat = %v, want ErrNotConnected", err)
	}
	if err := m.Respawn(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Respawn = %v, want ErrNotConnected", err)
	}
}

func TestPassthroughUsesCurrentSession(t *testing.T) {
	telemetry.Init()
	fs := &fakeSession{}
	ch := make(chan game.Event)
	d := &fakeDialer{sessions: []*fakeSession{fs}, channels: []chan game.Event{ch}}
	m := &Manager{Dialer: d, Identity: game.Identity{Username: "steve", Offline: true}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()
	deadline := time.After(2 * time.Second)
	for m.State() != Connected {
		select {
		case <-deadline:
			t.Fatal("never connected")
		case <-time.After(2 * time.Millisecond):
		}
	}

	if err := m.SendChat("hi"); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if err := m.Respawn(); err != nil {
		t.Fatalf("Respawn: %v", err)
	}
	fs.mu.Lock()
	if len(fs.chats) != 1 || fs.respawns != 1 {
		t.Errorf("chats=%v respawns=%d", fs.chats, fs.respawns)
	}
	fs.mu.Unlock()
	cancel()
	close(ch)
}
