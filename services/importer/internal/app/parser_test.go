package app

import (
	"testing"
	"time"

	"chatvault/pkg/domain"
)

func TestParseLineBasicMessage(t *testing.T) {
	msg, ok := parseLine("[01.02.2023, 09:15:00] Alice: good morning")
	if !ok {
		t.Fatalf("parseLine not ok")
	}
	if msg.Sender != "Alice" {
		t.Fatalf("Sender = %q, want %q", msg.Sender, "Alice")
	}
	if msg.Content != "good morning" {
		t.Fatalf("Content = %q, want %q", msg.Content, "good morning")
	}
	if msg.Type != domain.TypeText {
		t.Fatalf("Type = %q, want text", msg.Type)
	}
	want := time.Date(2023, 2, 1, 9, 15, 0, 0, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Fatalf("Timestamp = %v, want %v", msg.Timestamp, want)
	}
	if msg.IsSystem || msg.HasMedia {
		t.Fatalf("unexpected flags: system=%v media=%v", msg.IsSystem, msg.HasMedia)
	}
}

func TestParseLineAttachedMedia(t *testing.T) {
	msg, ok := parseLine("[01.02.2023, 09:16:00] Bob: \u200e<attached: IMG-001-WA0001.jpg>")
	if !ok {
		t.Fatalf("parseLine not ok")
	}
	if !msg.HasMedia {
		t.Fatalf("HasMedia = false, want true")
	}
	if msg.Type != domain.TypeImage {
		t.Fatalf("Type = %q, want image", msg.Type)
	}
	if msg.MediaFilename != "IMG-001-WA0001.jpg" {
		t.Fatalf("MediaFilename = %q, want %q", msg.MediaFilename, "IMG-001-WA0001.jpg")
	}
}

func TestParseLineSystemNotice(t *testing.T) {
	msg, ok := parseLine("[01.02.2023, 09:00:00] Messages and calls are end-to-end encrypted.")
	if !ok {
		t.Fatalf("parseLine not ok")
	}
	if !msg.IsSystem {
		t.Fatalf("IsSystem = false, want true")
	}
	if msg.Type != domain.TypeSystem {
		t.Fatalf("Type = %q, want system", msg.Type)
	}
	if msg.Sender != "System" {
		t.Fatalf("Sender = %q, want System", msg.Sender)
	}
}

func TestParseLineSystemIndicatorWithSender(t *testing.T) {
	// Group notices can carry a sender-looking prefix; the indicator wins.
	msg, ok := parseLine("[01.02.2023, 10:00:00] Carol: Carol created group \"Trip\"")
	if !ok {
		t.Fatalf("parseLine not ok")
	}
	if msg.Type != domain.TypeSystem {
		t.Fatalf("Type = %q, want system", msg.Type)
	}
	if !msg.IsSystem {
		t.Fatalf("IsSystem = false, want true")
	}
}

func TestParseLineContinuation(t *testing.T) {
	for _, line := range []string{
		"just a continuation line",
		"",
		"[broken timestamp] Alice: hi",
		"  \u200e  ",
	} {
		if _, ok := parseLine(line); ok {
			t.Fatalf("parseLine(%q) should not start a message", line)
		}
	}
}

func TestCleanInvisible(t *testing.T) {
	raw := "\u200ehello\u200f \u202aworld\u202c\ufeff"
	got := cleanInvisible(raw)
	if got != "hello world" {
		t.Fatalf("cleanInvisible() = %q, want %q", got, "hello world")
	}
}
