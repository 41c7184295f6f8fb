package app

import (
	"archive/zip"
	"bytes"
	"path"
	"strings"
)

const chatNamePrefix = "WhatsApp Chat with "

// chatArchive is the useful content of an exported chat zip: exactly one
// transcript plus whatever media files accompanied it.
type chatArchive struct {
	Transcript *zip.File
	Media      []*zip.File
}

// readChatArchive opens zip data and locates the transcript. Directory
// entries and macOS resource-fork entries are ignored. The first .txt file
// encountered is the transcript; any further .txt files are treated as media
// companions would be, which is to say skipped entirely.
func readChatArchive(data []byte) (*chatArchive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	archive := &chatArchive{}
	for _, f := range zr.File {
		name := f.Name
		if strings.HasPrefix(name, "__MACOSX") || strings.HasSuffix(name, "/") {
			continue
		}
		if strings.EqualFold(path.Ext(name), ".txt") {
			if archive.Transcript == nil {
				archive.Transcript = f
			}
			continue
		}
		archive.Media = append(archive.Media, f)
	}
	if archive.Transcript == nil {
		return nil, ErrNoTranscript
	}
	return archive, nil
}

// conversationNameFromFilename derives a display name from a transcript or
// upload filename: strip any directories, the extension, the export prefix
// and invisible direction marks.
func conversationNameFromFilename(filename string) string {
	name := path.Base(filename)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.TrimSpace(cleanInvisible(name))
	name = strings.TrimPrefix(name, chatNamePrefix)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Imported Chat"
	}
	return name
}
