package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// messageAssembler folds physical transcript lines into logical messages.
// It holds at most one in-progress message; continuation lines (anything
// the line parser does not recognize as a message start) are appended to
// it joined by newlines, since the export format has no explicit
// continuation marker.
type messageAssembler struct {
	current *ParsedMessage
}

// Feed consumes one line. When the line starts a new message, the previous
// in-progress message (if any) is emitted.
func (a *messageAssembler) Feed(line string) (ParsedMessage, bool) {
	parsed, ok := parseLine(line)
	if ok {
		prev := a.current
		a.current = &parsed
		if prev != nil {
			return *prev, true
		}
		return ParsedMessage{}, false
	}
	if a.current != nil {
		if clean := strings.TrimSpace(cleanInvisible(line)); clean != "" {
			a.current.Content += "\n" + clean
		}
	}
	return ParsedMessage{}, false
}

// Flush emits the in-progress message at end of input.
func (a *messageAssembler) Flush() (ParsedMessage, bool) {
	if a.current == nil {
		return ParsedMessage{}, false
	}
	msg := *a.current
	a.current = nil
	return msg, true
}

// parseTranscript parses a fully materialized transcript.
func parseTranscript(content string) []ParsedMessage {
	var asm messageAssembler
	var msgs []ParsedMessage
	for _, line := range strings.Split(content, "\n") {
		if msg, ok := asm.Feed(line); ok {
			msgs = append(msgs, msg)
		}
	}
	if msg, ok := asm.Flush(); ok {
		msgs = append(msgs, msg)
	}
	return msgs
}

// parseTranscriptReader parses a line-oriented reader without materializing
// the whole input.
func parseTranscriptReader(r io.Reader) ([]ParsedMessage, error) {
	var asm messageAssembler
	var msgs []ParsedMessage
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if msg, ok := asm.Feed(scanner.Text()); ok {
			msgs = append(msgs, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if msg, ok := asm.Flush(); ok {
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// chunkAssembler parses a transcript arriving as arbitrary byte chunks.
// Chunk boundaries may split a line, so the trailing partial line is
// buffered until the next chunk (or Finish) completes it.
type chunkAssembler struct {
	asm     messageAssembler
	partial string
}

// Feed consumes one byte chunk and returns any messages completed by it.
func (c *chunkAssembler) Feed(chunk []byte) []ParsedMessage {
	buf := c.partial + string(chunk)
	lines := strings.Split(buf, "\n")
	c.partial = lines[len(lines)-1]
	var msgs []ParsedMessage
	for _, line := range lines[:len(lines)-1] {
		if msg, ok := c.asm.Feed(line); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// Finish feeds the buffered partial line and flushes the in-progress
// message.
func (c *chunkAssembler) Finish() []ParsedMessage {
	var msgs []ParsedMessage
	if c.partial != "" {
		if msg, ok := c.asm.Feed(c.partial); ok {
			msgs = append(msgs, msg)
		}
		c.partial = ""
	}
	if msg, ok := c.asm.Flush(); ok {
		msgs = append(msgs, msg)
	}
	return msgs
}
