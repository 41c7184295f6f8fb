package app

import (
	"strings"
	"testing"
)

const sampleTranscript = "[01.02.2023, 09:15:00] Alice: Hello\nworld\n" +
	"[01.02.2023, 09:16:00] Bob: \u200e<attached: IMG-001-WA0001.jpg>\n" +
	"[01.02.2023, 09:17:00] Alice: bye\n"

func TestParseTranscriptMultiline(t *testing.T) {
	msgs := parseTranscript(sampleTranscript)
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}
	if msgs[0].Sender != "Alice" {
		t.Fatalf("Sender = %q, want Alice", msgs[0].Sender)
	}
	if msgs[0].Content != "Hello\nworld" {
		t.Fatalf("Content = %q, want %q", msgs[0].Content, "Hello\nworld")
	}
	if !msgs[1].HasMedia || msgs[1].MediaFilename != "IMG-001-WA0001.jpg" {
		t.Fatalf("media message = %+v", msgs[1])
	}
	if msgs[2].Content != "bye" {
		t.Fatalf("Content = %q, want bye", msgs[2].Content)
	}
}

func TestParseTranscriptLeadingContinuation(t *testing.T) {
	// Continuations before the first message start have nothing to attach to.
	msgs := parseTranscript("stray line\n[01.02.2023, 09:15:00] Alice: hi\n")
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}
	if msgs[0].Content != "hi" {
		t.Fatalf("Content = %q, want hi", msgs[0].Content)
	}
}

func TestParseTranscriptEmpty(t *testing.T) {
	if msgs := parseTranscript(""); len(msgs) != 0 {
		t.Fatalf("len(msgs) = %d, want 0", len(msgs))
	}
	if msgs := parseTranscript("no timestamps here\nat all\n"); len(msgs) != 0 {
		t.Fatalf("len(msgs) = %d, want 0", len(msgs))
	}
}

func TestParseTranscriptReaderMatchesString(t *testing.T) {
	fromString := parseTranscript(sampleTranscript)
	fromReader, err := parseTranscriptReader(strings.NewReader(sampleTranscript))
	if err != nil {
		t.Fatalf("parseTranscriptReader: %v", err)
	}
	if len(fromReader) != len(fromString) {
		t.Fatalf("len mismatch: %d vs %d", len(fromReader), len(fromString))
	}
	for i := range fromString {
		if fromReader[i] != fromString[i] {
			t.Fatalf("message %d differs: %+v vs %+v", i, fromReader[i], fromString[i])
		}
	}
}

func TestChunkAssemblerSplitMidLine(t *testing.T) {
	want := parseTranscript(sampleTranscript)

	// Feed in chunks that split lines at awkward places.
	for _, size := range []int{1, 7, 13, 1024} {
		var c chunkAssembler
		var got []ParsedMessage
		data := []byte(sampleTranscript)
		for off := 0; off < len(data); off += size {
			end := off + size
			if end > len(data) {
				end = len(data)
			}
			got = append(got, c.Feed(data[off:end])...)
		}
		got = append(got, c.Finish()...)

		if len(got) != len(want) {
			t.Fatalf("chunk size %d: len = %d, want %d", size, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("chunk size %d: message %d = %+v, want %+v", size, i, got[i], want[i])
			}
		}
	}
}

func TestMessageAssemblerFlushIdempotent(t *testing.T) {
	var asm messageAssembler
	asm.Feed("[01.02.2023, 09:15:00] Alice: hi")
	if _, ok := asm.Flush(); !ok {
		t.Fatalf("first Flush should emit")
	}
	if _, ok := asm.Flush(); ok {
		t.Fatalf("second Flush should be empty")
	}
}
