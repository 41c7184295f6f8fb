package app

import (
	"context"

	"chatvault/pkg/storage"
	"chatvault/pkg/store"
)

const defaultBatchSize = 1000

// Enqueuer hands a job id to the background processing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Config carries the tunables of the import pipeline.
type Config struct {
	// BatchSize is the number of messages inserted per database batch.
	// Progress is persisted after each batch.
	BatchSize int
	// ChunkSize is the upload chunk size advertised to clients.
	ChunkSize int64
}

// App implements the chat import pipeline: chunked uploads, archive
// extraction, transcript parsing, and conversation persistence.
type App struct {
	store   store.Store
	objects storage.ObjectStore
	queue   Enqueuer
	uploads uploadAssembler

	batchSize int
	chunkSize int64
}

// New wires an App from its dependencies.
func New(cfg Config, st store.Store, objects storage.ObjectStore, queue Enqueuer) *App {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = 5 << 20
	}
	return &App{
		store:     st,
		objects:   objects,
		queue:     queue,
		uploads:   uploadAssembler{objects: objects},
		batchSize: batch,
		chunkSize: chunk,
	}
}

// ChunkSize returns the advertised upload chunk size in bytes.
func (a *App) ChunkSize() int64 { return a.chunkSize }
