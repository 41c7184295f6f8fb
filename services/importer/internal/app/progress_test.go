package app

import (
	"testing"

	"chatvault/pkg/domain"
)

func TestJobProgressPhases(t *testing.T) {
	cases := []struct {
		name string
		job  domain.ImportJob
		want int
	}{
		{"upload half", domain.ImportJob{Status: domain.JobUploading, UploadedChunks: 2, TotalChunks: 4}, 25},
		{"upload done", domain.ImportJob{Status: domain.JobUploading, UploadedChunks: 4, TotalChunks: 4}, 50},
		{"pending", domain.ImportJob{Status: domain.JobPending}, 50},
		{"processing totals unknown", domain.ImportJob{Status: domain.JobProcessing}, 50},
		{"processing start", domain.ImportJob{Status: domain.JobProcessing, TotalMessages: 100, TotalMedia: 10}, 50},
		{"processing messages half", domain.ImportJob{Status: domain.JobProcessing, ProcessedMessages: 50, TotalMessages: 100, TotalMedia: 10}, 70},
		{"processing messages done", domain.ImportJob{Status: domain.JobProcessing, ProcessedMessages: 100, TotalMessages: 100, TotalMedia: 10}, 90},
		{"processing no media", domain.ImportJob{Status: domain.JobProcessing, ProcessedMessages: 100, TotalMessages: 100}, 100},
		{"processing all", domain.ImportJob{Status: domain.JobProcessing, ProcessedMessages: 100, TotalMessages: 100, ProcessedMedia: 10, TotalMedia: 10}, 100},
		{"completed", domain.ImportJob{Status: domain.JobCompleted}, 100},
		{"failed", domain.ImportJob{Status: domain.JobFailed, ProcessedMessages: 50, TotalMessages: 100}, 0},
	}
	for _, c := range cases {
		if got := jobProgress(c.job).Percent; got != c.want {
			t.Fatalf("%s: percent = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestJobProgressNeverRegressesWhenTotalsArrive(t *testing.T) {
	// A poll can land between the status flip to processing and the save
	// that records the parsed totals. The percent must not move backwards
	// once the totals show up.
	before := jobProgress(domain.ImportJob{Status: domain.JobProcessing}).Percent
	after := jobProgress(domain.ImportJob{Status: domain.JobProcessing, TotalMessages: 500}).Percent
	if before != 50 {
		t.Fatalf("percent before totals = %d, want 50", before)
	}
	if after < before {
		t.Fatalf("percent regressed from %d to %d once totals were recorded", before, after)
	}
}

func TestJobProgressCarriesCounters(t *testing.T) {
	job := domain.ImportJob{
		ID:                "job-1",
		Status:            domain.JobProcessing,
		ConversationID:    "conv-1",
		ProcessedMessages: 10,
		TotalMessages:     20,
		ProcessedMedia:    1,
		TotalMedia:        2,
	}
	p := jobProgress(job)
	if p.JobID != "job-1" || p.ConversationID != "conv-1" {
		t.Fatalf("identity fields: %+v", p)
	}
	if p.ProcessedMessages != 10 || p.TotalMessages != 20 || p.ProcessedMedia != 1 || p.TotalMedia != 2 {
		t.Fatalf("counter fields: %+v", p)
	}
}
