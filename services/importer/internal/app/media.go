package app

import (
	"regexp"
	"strings"

	"chatvault/pkg/domain"
)

// mediaRule pairs a media kind with the content signatures that identify
// it. Rules are evaluated in table order and the first kind with any
// matching signature wins; ordering is significant (a .webp attachment is
// an image before it is a sticker).
type mediaRule struct {
	kind     domain.MessageType
	patterns []*regexp.Regexp
}

func compileSignatures(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile("(?i)"+p))
	}
	return compiled
}

var mediaRules = []mediaRule{
	{domain.TypeImage, compileSignatures(
		`<attached:\s*[^>]*PHOTO[^>]*>`,
		`<attached:\s*[^>]*\.jpg>`,
		`<attached:\s*[^>]*\.jpeg>`,
		`<attached:\s*[^>]*\.png>`,
		`<attached:\s*[^>]*\.webp>`,
		`image omitted`,
		`<Medien ausgeschlossen>`,
		`IMG-\d+-WA\d+`,
	)},
	{domain.TypeVideo, compileSignatures(
		`<attached:\s*[^>]*VIDEO[^>]*>`,
		`<attached:\s*[^>]*\.mp4>`,
		`<attached:\s*[^>]*\.mov>`,
		`<attached:\s*[^>]*\.3gp>`,
		`video omitted`,
		`VID-\d+-WA\d+`,
	)},
	{domain.TypeAudio, compileSignatures(
		`<attached:\s*[^>]*AUDIO[^>]*>`,
		`<attached:\s*[^>]*\.opus>`,
		`<attached:\s*[^>]*\.mp3>`,
		`<attached:\s*[^>]*\.m4a>`,
		`<attached:\s*[^>]*\.ogg>`,
		`audio omitted`,
		`AUD-\d+-WA\d+`,
		`PTT-\d+`,
	)},
	{domain.TypeSticker, compileSignatures(
		`sticker omitted`,
		`<Medien ausgeschlossen>`,
		`<attached:\s*[^>]*\.webp>`,
	)},
	{domain.TypeDocument, compileSignatures(
		`<attached:\s*[^>]*\.pdf>`,
		`<attached:\s*[^>]*\.doc>`,
		`<attached:\s*[^>]*\.xlsx>`,
		`document omitted`,
	)},
	{domain.TypeGIF, compileSignatures(
		`GIF omitted`,
		`<attached:\s*[^>]*\.gif>`,
	)},
	{domain.TypeContact, compileSignatures(
		`contact card omitted`,
		`\.vcf`,
	)},
	{domain.TypeLocation, compileSignatures(
		`location:`,
	)},
}

var attachedFilenameRe = regexp.MustCompile(`(?i)<attached:\s*([^>]+)>`)

// detectMedia classifies message content against the signature table and,
// when present, extracts the referenced attachment filename.
func detectMedia(content string) (domain.MessageType, bool, string) {
	clean := cleanInvisible(content)
	for _, rule := range mediaRules {
		for _, pattern := range rule.patterns {
			if !pattern.MatchString(clean) {
				continue
			}
			filename := ""
			if m := attachedFilenameRe.FindStringSubmatch(clean); m != nil {
				filename = strings.TrimSpace(m[1])
			}
			return rule.kind, true, filename
		}
	}
	return domain.TypeText, false, ""
}

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	videoExts = map[string]bool{".mp4": true, ".mov": true, ".avi": true, ".webm": true, ".3gp": true}
	audioExts = map[string]bool{".mp3": true, ".ogg": true, ".opus": true, ".m4a": true, ".wav": true}
)

// mediaTypeForExt maps a file extension to a stored media type.
func mediaTypeForExt(ext string) string {
	switch {
	case imageExts[ext]:
		return "image"
	case videoExts[ext]:
		return "video"
	case audioExts[ext]:
		return "audio"
	default:
		return "document"
	}
}

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".3gp":  "video/3gpp",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".pdf":  "application/pdf",
}

// mimeTypeForExt maps a file extension to a MIME type.
func mimeTypeForExt(ext string) string {
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
