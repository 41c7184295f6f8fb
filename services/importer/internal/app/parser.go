package app

import (
	"regexp"
	"strings"
	"time"

	"chatvault/pkg/domain"
)

// Invisible bidirectional/formatting marks WhatsApp embeds throughout
// exports. They must be stripped before any pattern matching or filename
// comparison.
var invisibleMarks = strings.NewReplacer(
	"\u200e", "", // left-to-right mark
	"\u200f", "", // right-to-left mark
	"\u202a", "", // left-to-right embedding
	"\u202b", "", // right-to-left embedding
	"\u202c", "", // pop directional formatting
	"\u202d", "", // left-to-right override
	"\u202e", "", // right-to-left override
	"\u2066", "", // left-to-right isolate
	"\u2067", "", // right-to-left isolate
	"\u2068", "", // first strong isolate
	"\u2069", "", // pop directional isolate
	"\ufeff", "", // byte order mark
)

func cleanInvisible(s string) string {
	return invisibleMarks.Replace(s)
}

// ParsedMessage is one logical chat entry produced by the parser and
// consumed once by the import pipeline.
type ParsedMessage struct {
	Timestamp     time.Time
	Sender        string
	Content       string
	Type          domain.MessageType
	HasMedia      bool
	MediaFilename string
	IsSystem      bool
}

var (
	// [timestamp] sender: body
	messageLineRe = regexp.MustCompile(`^\[([^\]]+)\]\s*([^:]+):\s*(.*)$`)
	// [timestamp] body (system notices carry no sender)
	systemLineRe = regexp.MustCompile(`^\[([^\]]+)\]\s*(.+)$`)
)

// Known system-notice phrases, matched case-insensitively as substrings.
var systemIndicators = []string{
	"messages and calls are end-to-end encrypted",
	"created group",
	"added",
	"removed",
	"left",
	"changed the subject",
	"changed this group's icon",
	"changed the group description",
	"you're now an admin",
	"security code changed",
	"missed voice call",
	"missed video call",
}

func isSystemNotice(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range systemIndicators {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// parseLine classifies one physical line. ok is false for blank lines,
// continuations, and lines that look bracketed but carry no parseable
// timestamp.
func parseLine(line string) (ParsedMessage, bool) {
	line = strings.TrimSpace(cleanInvisible(line))
	if line == "" {
		return ParsedMessage{}, false
	}

	if m := messageLineRe.FindStringSubmatch(line); m != nil {
		ts, ok := parseTimestamp(m[1])
		if !ok {
			// Looks like a message start but the timestamp is garbage;
			// treat as continuation rather than starting a false message.
			return ParsedMessage{}, false
		}
		sender := strings.TrimSpace(m[2])
		content := strings.TrimSpace(m[3])

		kind, hasMedia, filename := detectMedia(content)
		isSystem := isSystemNotice(content)
		if isSystem {
			kind = domain.TypeSystem
		}
		return ParsedMessage{
			Timestamp:     ts,
			Sender:        sender,
			Content:       content,
			Type:          kind,
			HasMedia:      hasMedia,
			MediaFilename: filename,
			IsSystem:      isSystem,
		}, true
	}

	if m := systemLineRe.FindStringSubmatch(line); m != nil {
		ts, ok := parseTimestamp(m[1])
		if !ok {
			return ParsedMessage{}, false
		}
		return ParsedMessage{
			Timestamp: ts,
			Sender:    "System",
			Content:   strings.TrimSpace(m[2]),
			Type:      domain.TypeSystem,
			IsSystem:  true,
		}, true
	}

	return ParsedMessage{}, false
}
