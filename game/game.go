// Package game defines the contract between the relay core and the Minecraft
// protocol client: the typed inbound events a session delivers, the Session
// write surface, and the Dialer used to (re)establish sessions. The protocol
// implementation itself lives behind the Dialer (see the mcclient package).
package game

import (
	"context"
	"fmt"
)

// Identity is what a Dialer needs to join a server. In offline mode only
// Username is set; otherwise AccessToken and UUID come from a previously
// completed authentication (token acquisition is not this program's job).
type Identity struct {
	Username    string
	AccessToken string
	UUID        string
	Offline     bool
}

// Session is one live connection to the game server. Writes are safe to call
// from multiple goroutines; the transport serializes at the socket.
type Session interface {
	// SendChat sends a player chat message into the game.
	SendChat(text string) error
	// Respawn issues the client-status respawn action.
	Respawn() error
	Close() error
}

// Dialer establishes a session and returns the channel on which the session
// delivers its inbound events. The channel is closed when the session dies;
// a Disconnect event precedes the close.
type Dialer interface {
	Dial(ctx context.Context, id Identity) (Session, <-chan Event, error)
}

// AuthError reports rejected credentials. It is fatal to the process: the
// lifecycle manager never retries authentication, since repeated failed
// attempts may lock the account.
type AuthError struct {
	Username string
	Reason   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %q: %s", e.Username, e.Reason)
}

// Event is one inbound game event. Exactly one of the pointer fields is set.
type Event struct {
	Join       *JoinGame
	Chat       *ChatMessage
	Health     *HealthUpdate
	Disconnect *DisconnectEvent
}

// JoinGame marks the server accepting the player; connection confirmed.
type JoinGame struct{}

// ChatMessage carries the raw rich-text JSON document of one chat line.
type ChatMessage struct {
	JSON string
}

// HealthUpdate carries the player's health as reported by the server.
type HealthUpdate struct {
	Health float64
}

// DisconnectEvent signals a transport-level disconnect.
type DisconnectEvent struct {
	Reason string
}
