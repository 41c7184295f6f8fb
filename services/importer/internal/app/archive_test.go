package app

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestReadChatArchive(t *testing.T) {
	data := buildZip(t, map[string]string{
		"WhatsApp Chat with Alice.txt":  sampleTranscript,
		"IMG-001-WA0001.jpg":            "jpegbytes",
		"__MACOSX/._ignored":            "junk",
		"__MACOSX/WhatsApp Chat.txt":    "junk",
		"media/VID-002-WA0002.mp4":      "mp4bytes",
	})

	archive, err := readChatArchive(data)
	if err != nil {
		t.Fatalf("readChatArchive: %v", err)
	}
	if archive.Transcript == nil || archive.Transcript.Name != "WhatsApp Chat with Alice.txt" {
		t.Fatalf("transcript = %v", archive.Transcript)
	}
	if len(archive.Media) != 2 {
		t.Fatalf("len(media) = %d, want 2", len(archive.Media))
	}
}

func TestReadChatArchiveFirstTranscriptWins(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b.txt"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(sampleTranscript)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	archive, err := readChatArchive(buf.Bytes())
	if err != nil {
		t.Fatalf("readChatArchive: %v", err)
	}
	if archive.Transcript.Name != "a.txt" {
		t.Fatalf("transcript = %q, want a.txt", archive.Transcript.Name)
	}
	// The second transcript is neither the transcript nor media.
	if len(archive.Media) != 0 {
		t.Fatalf("len(media) = %d, want 0", len(archive.Media))
	}
}

func TestReadChatArchiveNoTranscript(t *testing.T) {
	data := buildZip(t, map[string]string{"IMG-001-WA0001.jpg": "jpegbytes"})
	if _, err := readChatArchive(data); !errors.Is(err, ErrNoTranscript) {
		t.Fatalf("err = %v, want ErrNoTranscript", err)
	}
}

func TestReadChatArchiveNotAZip(t *testing.T) {
	if _, err := readChatArchive([]byte("definitely not a zip")); err == nil {
		t.Fatalf("expected error for non-zip data")
	}
}

func TestConversationNameFromFilename(t *testing.T) {
	cases := map[string]string{
		"WhatsApp Chat with Alice.txt":       "Alice",
		"WhatsApp Chat with Alice Smith.zip": "Alice Smith",
		"group-trip.txt":                     "group-trip",
		"exports/WhatsApp Chat with Bob.txt": "Bob",
		"\u200eWhatsApp Chat with Bob.txt":   "Bob",
		".txt":                               "Imported Chat",
	}
	for in, want := range cases {
		if got := conversationNameFromFilename(in); got != want {
			t.Fatalf("conversationNameFromFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
