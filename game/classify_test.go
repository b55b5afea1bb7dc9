package game

import "testing"

func payload(fragments ...string) string {
	// Build a rich-text document the way the server sends chat: empty root
	// text plus extra fragments.
	s := `{"text":"","extra":[`
	for i, f := range fragments {
		if i > 0 {
			s += ","
		}
		s += `{"text":"` + f + `"}`
	}
	return s + `]}`
}

func TestClassifyJoinLeave(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind ChatEventKind
		user string
	}{
		{"join", payload("Alice joined the game"), KindJoin, "Alice"},
		{"leave", payload("Alice left the game"), KindLeave, "Alice"},
		{"join case-insensitive", payload("Alice Joined The Game"), KindJoin, "Alice"},
		{"join split fragments", payload("Alice ", "joined the game"), KindJoin, "Alice"},
		{"space in name", payload("Some Body joined the game"), KindJoin, "Some Body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := Classify(tc.raw)
			if ev.Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", ev.Kind, tc.kind)
			}
			if ev.Username != tc.user {
				t.Errorf("username = %q, want %q", ev.Username, tc.user)
			}
		})
	}
}

func TestClassifyMessage(t *testing.T) {
	ev := Classify(payload("<Bob> hello world"))
	if ev.Kind != KindMessage {
		t.Fatalf("kind = %v, want message", ev.Kind)
	}
	if ev.Username != "Bob" || ev.Text != "hello world" {
		t.Errorf("got %q / %q, want Bob / hello world", ev.Username, ev.Text)
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	// A line matching both patterns resolves by rule order: join/leave wins.
	ev := Classify(payload("<Eve> joined the game"))
	if ev.Kind != KindJoin {
		t.Fatalf("kind = %v, want join (join/leave rule checked first)", ev.Kind)
	}
	if ev.Username != "<Eve>" {
		t.Errorf("username = %q, want %q", ev.Username, "<Eve>")
	}
}

func TestClassifyUnrecognized(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"system message", payload("Server restarting in 5 minutes")},
		{"no extra list", `{"text":"Death message","translate":"death.fell.accident.generic"}`},
		{"invalid json", `{not json`},
		{"empty document", `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if ev := Classify(tc.raw); ev.Kind != KindUnrecognized {
				t.Fatalf("kind = %v, want unrecognized", ev.Kind)
			}
		})
	}
}

func TestFlatten(t *testing.T) {
	line, ok := Flatten(`{"text":"a","extra":[{"text":"b"},{"text":"c"}]}`)
	if !ok {
		t.Fatal("expected ok")
	}
	if line != "abc" {
		t.Errorf("line = %q, want abc", line)
	}
	if _, ok := Flatten(`{"text":"plain"}`); ok {
		t.Error("document without extra should not flatten")
	}
}
