// Package webhook turns classified chat events into Discord-webhook
// notification cards and posts them fire-and-forget.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sidekek/minecraft-discord-bridge/game"
	"github.com/sidekek/minecraft-discord-bridge/telemetry"
)

// Embed colors for the join/leave cards.
const (
	ColorJoined = 65280    // green
	ColorLeft   = 16711680 // red
)

// DefaultAvatarTemplate renders a face image for a profile id.
const DefaultAvatarTemplate = "https://visage.surgeplay.com/face/160/%s"

// Resolver maps a username to its stable profile id (see identity.Cache).
type Resolver interface {
	Resolve(ctx context.Context, username string) (string, error)
}

// Embed is one colored card in a notification payload.
type Embed struct {
	Color int    `json:"color,omitempty"`
	Title string `json:"title"`
}

// Payload is the webhook body shape Discord expects.
type Payload struct {
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url"`
	Content   string  `json:"content"`
	Embeds    []Embed `json:"embeds"`
}

// Dispatcher posts one notification per chat event. No batching, no retry,
// no delivery confirmation: a failed post is logged and counted, never
// surfaced to the game side.
type Dispatcher struct {
	URL            string
	AvatarTemplate string
	HTTPClient     *http.Client
	Resolver       Resolver
}

func (d *Dispatcher) http() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (d *Dispatcher) avatarURL(stableID string) string {
	tmpl := d.AvatarTemplate
	if tmpl == "" {
		tmpl = DefaultAvatarTemplate
	}
	return fmt.Sprintf(tmpl, stableID)
}

// BuildPayload resolves the player identity and assembles the notification
// for ev. Join and Leave produce colored status cards; Message produces a
// card whose title is the message text. Unrecognized events produce nothing.
func (d *Dispatcher) BuildPayload(ctx context.Context, ev game.ChatEvent) (*Payload, error) {
	switch ev.Kind {
	case game.KindJoin, game.KindLeave, game.KindMessage:
	default:
		return nil, nil
	}
	var id string
	var err error
	telemetry.TimeFunc(telemetry.IdentityLookupDuration, func() {
		id, err = d.Resolver.Resolve(ctx, ev.Username)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", ev.Username, err)
	}
	p := &Payload{Username: ev.Username, AvatarURL: d.avatarURL(id)}
	switch ev.Kind {
	case game.KindJoin:
		p.Embeds = []Embed{{Color: ColorJoined, Title: "**Joined the game**"}}
	case game.KindLeave:
		p.Embeds = []Embed{{Color: ColorLeft, Title: "**Left the game**"}}
	case game.KindMessage:
		p.Embeds = []Embed{{Title: ev.Text}}
	}
	return p, nil
}

// Dispatch builds and posts the notification for ev. An identity-lookup
// failure skips the notification for this single event and is returned so
// the router can log it; send failures are swallowed here.
func (d *Dispatcher) Dispatch(ctx context.Context, ev game.ChatEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "webhook", "dispatch")
	defer span.End()

	p, err := d.BuildPayload(ctx, ev)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if p == nil {
		return nil
	}
	telemetry.TimeFunc(telemetry.NotificationDuration, func() {
		err = d.post(ctx, p)
	})
	if err != nil {
		telemetry.NotificationsFailed.Inc()
		telemetry.RecordError(span, err)
		slog.Warn("webhook post failed", slog.Any("err", err), slog.String("username", p.Username))
		return nil
	}
	telemetry.NotificationsSent.Inc()
	telemetry.SetSpanSuccess(span)
	return nil
}

func (d *Dispatcher) post(ctx context.Context, p *Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.http().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
