// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package jobs

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nskitch/hive-rag/internal/ingest"
	"github.com/nskitch/hive-rag/internal/queue"
	"github.com/nskitch/hive-rag/internal/worker"
)

// IngestPayload is the payload for a background file-ingestion job.
type IngestPayload struct {
	ScopeID     string    `json:"scopeId"`
	FilePath    string    `json:"filePath"`
	SourceFile  string    `json:"sourceFile"`
	RequestedAt time.Time `json:"requestedAt"`
}

const JobTypeIngest = "ingest_file"

// NewIngestJob creates a new file-ingestion job.
func NewIngestJob(payload IngestPayload) (queue.Job, error) {
	log.Printf("NewIngestJob: scopeId=%s filePath=%s", payload.ScopeID, payload.FilePath)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		log.Printf("NewIngestJob: failed to marshal payload: %v", err)
		return queue.Job{}, err
	}

	job := queue.Job{
		Type:      JobTypeIngest,
		Payload:   payloadJSON,
		CreatedAt: time.Now(),
	}

	log.Printf("NewIngestJob: created job type=%s createdAt=%s", job.Type, job.CreatedAt.Format(time.RFC3339))
	return job, nil
}

// EnqueueIngest enqueues a file-ingestion job.
func EnqueueIngest(ctx context.Context, q queue.Queue, payload IngestPayload) error {
	log.Printf("EnqueueIngest: scopeId=%s filePath=%s", payload.ScopeID, payload.FilePath)

	job, err := NewIngestJob(payload)
	if err != nil {
		log.Printf("EnqueueIngest: failed to create job: %v", err)
		return err
	}

	if err := q.Enqueue(ctx, job); err != nil {
		log.Printf("EnqueueIngest: failed to enqueue job: %v", err)
		return err
	}

	log.Printf("EnqueueIngest: successfully enqueued job")
	return nil
}

// HandleIngest returns a worker.HandlerFunc bound to pipeline, so the
// job dispatcher can route ingest_file jobs to it without the pipeline's
// dependencies (vector store, embedder, LLM gateway) leaking into the
// queue package.
func HandleIngest(pipeline *ingest.Pipeline) worker.HandlerFunc {
	return func(ctx context.Context, job queue.Job) error {
		log.Printf("HandleIngest: processing job type=%s createdAt=%s", job.Type, job.CreatedAt.Format(time.RFC3339))

		if job.Type != JobTypeIngest {
			log.Printf("HandleIngest: unexpected job type %s, expected %s", job.Type, JobTypeIngest)
			return nil
		}

		var payload IngestPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			log.Printf("HandleIngest: failed to unmarshal payload: %v", err)
			return err
		}

		result, err := pipeline.Ingest(ctx, ingest.Request{
			ScopeID:    payload.ScopeID,
			FilePath:   payload.FilePath,
			SourceFile: payload.SourceFile,
		})
		if err != nil {
			log.Printf("HandleIngest: failed to ingest %s: %v", payload.FilePath, err)
			return err
		}

		log.Printf("HandleIngest: ingested %s: stored=%d failed=%d topic=%q", payload.FilePath, result.ChunksStored, result.ChunksFailed, result.Topic)
		return nil
	}
}
