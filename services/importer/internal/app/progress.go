package app

import "chatvault/pkg/domain"

// Progress is the externally visible state of an import job. Percent moves
// through three phases: upload covers 0-50, message ingestion 50-90, media
// ingestion 90-100.
type Progress struct {
	JobID             string           `json:"jobId"`
	Status            domain.JobStatus `json:"status"`
	Percent           int              `json:"percent"`
	UploadedChunks    int              `json:"uploadedChunks"`
	TotalChunks       int              `json:"totalChunks"`
	ProcessedMessages int              `json:"processedMessages"`
	TotalMessages     int              `json:"totalMessages"`
	ProcessedMedia    int              `json:"processedMedia"`
	TotalMedia        int              `json:"totalMedia"`
	ConversationID    string           `json:"conversationId,omitempty"`
	ErrorMessage      string           `json:"errorMessage,omitempty"`
}

func fraction(done, total int) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(done) / float64(total)
	if f > 1 {
		f = 1
	}
	return f
}

func jobProgress(job domain.ImportJob) Progress {
	p := Progress{
		JobID:             job.ID,
		Status:            job.Status,
		UploadedChunks:    job.UploadedChunks,
		TotalChunks:       job.TotalChunks,
		ProcessedMessages: job.ProcessedMessages,
		TotalMessages:     job.TotalMessages,
		ProcessedMedia:    job.ProcessedMedia,
		TotalMedia:        job.TotalMedia,
		ConversationID:    job.ConversationID,
		ErrorMessage:      job.ErrorMessage,
	}
	switch job.Status {
	case domain.JobUploading:
		p.Percent = int(fraction(job.UploadedChunks, job.TotalChunks) * 50)
	case domain.JobPending:
		// Upload is done, processing has not started.
		p.Percent = 50
	case domain.JobProcessing:
		// Totals are persisted only after the transcript is parsed; until
		// then the job sits at the 50% mark rather than jumping ahead.
		if job.TotalMessages > 0 {
			p.Percent = int(50 +
				fraction(job.ProcessedMessages, job.TotalMessages)*40 +
				fraction(job.ProcessedMedia, job.TotalMedia)*10)
		} else {
			p.Percent = 50
		}
	case domain.JobCompleted:
		p.Percent = 100
	case domain.JobFailed:
		p.Percent = 0
	}
	return p
}
