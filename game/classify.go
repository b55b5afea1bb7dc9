package game

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ChatEventKind tags the classified form of a chat line.
type ChatEventKind int

const (
	KindUnrecognized ChatEventKind = iota
	KindJoin
	KindLeave
	KindMessage
)

func (k ChatEventKind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindLeave:
		return "leave"
	case KindMessage:
		return "message"
	default:
		return "unrecognized"
	}
}

// ChatEvent is the classified form of one chat line. Kind selects which
// fields are meaningful: Join/Leave carry Username, Message carries Username
// and Text, Unrecognized carries only Raw.
type ChatEvent struct {
	Kind     ChatEventKind
	Username string
	Text     string
	Raw      string
}

// chatRules is the ordered classification table. First match wins, so the
// join/leave rule shadows the message rule for lines matching both.
var chatRules = []struct {
	re    *regexp.Regexp
	build func(m []string, raw string) ChatEvent
}{
	{
		re: regexp.MustCompile(`(?i)^(.*) (joined|left) the game`),
		build: func(m []string, raw string) ChatEvent {
			kind := KindJoin
			if strings.EqualFold(m[2], "left") {
				kind = KindLeave
			}
			return ChatEvent{Kind: kind, Username: m[1], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`^<(.*?)> (.*)`),
		build: func(m []string, raw string) ChatEvent {
			return ChatEvent{Kind: KindMessage, Username: m[1], Text: m[2], Raw: raw}
		},
	},
}

// richText is the subset of the chat component format the classifier needs:
// a document is plain text plus a list of extra fragments.
type richText struct {
	Text  string `json:"text"`
	Extra []struct {
		Text string `json:"text"`
	} `json:"extra"`
}

// Flatten concatenates the text fragments of a rich-text chat document.
// Documents without an extra fragment list are not game chat (server system
// messages) and return ok=false.
func Flatten(rawJSON string) (string, bool) {
	var doc richText
	if err := json.Unmarshal([]byte(rawJSON), &doc); err != nil {
		return "", false
	}
	if doc.Extra == nil {
		return "", false
	}
	s := doc.Text
	for _, frag := range doc.Extra {
		s += frag.Text
	}
	return s, true
}

// Classify flattens one raw chat payload and runs it through the rule table.
// Payloads that cannot be flattened and lines matching no rule come back as
// KindUnrecognized; the router drops those silently.
func Classify(rawJSON string) ChatEvent {
	line, ok := Flatten(rawJSON)
	if !ok {
		return ChatEvent{Kind: KindUnrecognized, Raw: rawJSON}
	}
	for _, rule := range chatRules {
		if m := rule.re.FindStringSubmatch(line); m != nil {
			return rule.build(m, line)
		}
	}
	return ChatEvent{Kind: KindUnrecognized, Raw: line}
}
