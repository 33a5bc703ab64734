// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package processor

import (
	"strings"
)

// defaultChunkChars and defaultChunkOverlapChars bound the size of the
// text chunks the ingestion pipeline embeds and stores as retrieval
// units: large enough to carry a few sentences of evidence, small
// enough that a single chunk stays within the grader's prompt budget
// (internal/query's maxGradedContentChars). The generator still cuts
// each chunk to its first maxGeneratorContentChars.
const (
	defaultChunkChars        = 1000
	defaultChunkOverlapChars = 100
)

// Chunker splits a document's extracted text into overlapping,
// sentence-aware pieces before each piece is embedded as a retrieval
// chunk (internal/ingest.expandChunks).
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a Chunker using defaultChunkChars/defaultChunkOverlapChars.
func NewChunker() *Chunker {
	return &Chunker{
		chunkSize:    defaultChunkChars,
		chunkOverlap: defaultChunkOverlapChars,
	}
}

// ChunkText splits text into overlapping chunks, trying to avoid cutting sentences
func (c *Chunker) ChunkText(text string) ([]string, error) {
	if len(text) == 0 {
		return []string{}, nil
	}

	var chunks []string
	start := 0
	textLen := len(text)

	for start < textLen {
		end := start + c.chunkSize
		if end > textLen {
			end = textLen
		}

		// If we're not at the end, try to find a sentence boundary
		if end < textLen {
			// Look for sentence endings within the last 200 characters
			searchStart := end - 200
			if searchStart < start {
				searchStart = start
			}

			// Try to find a good break point (period, exclamation, question mark followed by space)
			bestBreak := end
			for i := end - 1; i >= searchStart; i-- {
				if i < len(text) {
					char := text[i]
					// Check for sentence endings
					if (char == '.' || char == '!' || char == '?') && i+1 < len(text) {
						// Check if followed by space or newline
						nextChar := text[i+1]
						if nextChar == ' ' || nextChar == '\n' || nextChar == '\r' {
							bestBreak = i + 1
							break
						}
					}
					// Also check for paragraph breaks (double newline)
					if i+1 < len(text) && char == '\n' && text[i+1] == '\n' {
						bestBreak = i + 2
						break
					}
				}
			}

			// If we found a good break point, use it
			if bestBreak > start {
				end = bestBreak
			}
		}

		chunk := strings.TrimSpace(text[start:end])
		if len(chunk) > 0 {
			chunks = append(chunks, chunk)
		}

		// Move start position with overlap
		if end >= textLen {
			break
		}

		start = end - c.chunkOverlap
		if start < 0 {
			start = 0
		}
		// Ensure we don't get stuck in a loop
		if start >= end {
			start = end
		}
	}

	return chunks, nil
}
