package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()
	if NotificationsSent == nil || ChatEventsClassified == nil || SessionConnectedGauge == nil {
		t.Fatal("metrics not initialized")
	}
}

func TestCountChatEventByKind(t *testing.T) {
	Init()
	// Must not panic for any label value, known or not.
	for _, kind := range []string{"join", "leave", "message", "unrecognized"} {
		CountChatEvent(kind)
	}
}

func TestSetConnected(t *testing.T) {
	Init()
	SetConnected(true)
	SetConnected(false)
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	Init()
	d := TimeFunc(NotificationDuration, func() { time.Sleep(time.Millisecond) })
	if d < time.Millisecond {
		t.Errorf("measured %v, want >= 1ms", d)
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("correlation = %q, want abc-123", got)
	}
	if got := GetCorrelation(context.Background()); got != "" {
		t.Errorf("correlation on empty ctx = %q, want empty", got)
	}
}
