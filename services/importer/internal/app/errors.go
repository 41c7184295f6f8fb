package app

import "errors"

var (
	// ErrJobNotFound indicates an unknown import job id.
	ErrJobNotFound = errors.New("import job not found")
	// ErrJobNotReady indicates a start request for a job that has not
	// finished uploading or was already started.
	ErrJobNotReady = errors.New("import job is not ready")
	// ErrUploadIncomplete indicates an assembly attempt before all chunks
	// arrived.
	ErrUploadIncomplete = errors.New("upload is incomplete")
	// ErrNoTranscript indicates an archive without a .txt transcript member.
	ErrNoTranscript = errors.New("no chat transcript (.txt) found in archive")
	// ErrNoMessages indicates a transcript from which nothing could be parsed.
	ErrNoMessages = errors.New("no messages found in file")
	// ErrConversationNotFound indicates an unknown conversation id.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMediaNotFound indicates an unknown media file id.
	ErrMediaNotFound = errors.New("media file not found")
)
