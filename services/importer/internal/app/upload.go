package app

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"chatvault/pkg/storage"
)

// uploadAssembler stores numbered upload chunks as individual objects and
// concatenates them once the full set has arrived. Chunks may arrive out of
// order or repeatedly; a re-submitted index simply overwrites the object.
type uploadAssembler struct {
	objects storage.ObjectStore
}

func chunkObjectKey(jobID string, index int) string {
	return fmt.Sprintf("imports/%s/file.chunk.%06d", jobID, index)
}

func chunkObjectPrefix(jobID string) string {
	return fmt.Sprintf("imports/%s/file.chunk.", jobID)
}

func uploadObjectKey(jobID string) string {
	return fmt.Sprintf("imports/%s/file", jobID)
}

// PutChunk durably stores one chunk.
func (u uploadAssembler) PutChunk(ctx context.Context, jobID string, index int, data []byte) error {
	if err := storage.PutBytes(ctx, u.objects, chunkObjectKey(jobID, index), data, "application/octet-stream"); err != nil {
		return fmt.Errorf("store chunk %d: %w", index, err)
	}
	return nil
}

// ChunkIndices returns the set of distinct chunk indices stored for a job.
func (u uploadAssembler) ChunkIndices(ctx context.Context, jobID string) (map[int]bool, error) {
	prefix := chunkObjectPrefix(jobID)
	keys, err := u.objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	indices := make(map[int]bool, len(keys))
	for _, key := range keys {
		suffix := strings.TrimPrefix(key, prefix)
		if n, err := strconv.Atoi(suffix); err == nil {
			indices[n] = true
		}
	}
	return indices, nil
}

// IsComplete reports the distinct chunk count and whether the stored set
// is exactly {0 .. totalChunks-1}.
func (u uploadAssembler) IsComplete(ctx context.Context, jobID string, totalChunks int) (int, bool, error) {
	indices, err := u.ChunkIndices(ctx, jobID)
	if err != nil {
		return 0, false, err
	}
	for i := 0; i < totalChunks; i++ {
		if !indices[i] {
			return len(indices), false, nil
		}
	}
	return len(indices), len(indices) == totalChunks, nil
}

// Assemble concatenates chunks in index order into a single object and then
// deletes the chunk objects. Calling it before every chunk arrived is a
// contract violation and fails without touching the stored chunks.
func (u uploadAssembler) Assemble(ctx context.Context, jobID string, totalChunks int) (string, error) {
	_, complete, err := u.IsComplete(ctx, jobID, totalChunks)
	if err != nil {
		return "", err
	}
	if !complete {
		return "", fmt.Errorf("%w: job %s", ErrUploadIncomplete, jobID)
	}

	var assembled bytes.Buffer
	for i := 0; i < totalChunks; i++ {
		data, err := u.objects.Get(ctx, chunkObjectKey(jobID, i))
		if err != nil {
			return "", fmt.Errorf("read chunk %d: %w", i, err)
		}
		assembled.Write(data)
	}

	key := uploadObjectKey(jobID)
	if err := u.objects.Put(ctx, key, bytes.NewReader(assembled.Bytes()), int64(assembled.Len()), "application/octet-stream"); err != nil {
		return "", fmt.Errorf("store assembled upload: %w", err)
	}

	// Chunk cleanup only after the assembled object exists.
	for i := 0; i < totalChunks; i++ {
		if err := u.objects.Delete(ctx, chunkObjectKey(jobID, i)); err != nil {
			return "", fmt.Errorf("delete chunk %d: %w", i, err)
		}
	}
	return key, nil
}
