// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import "github.com/nskitch/hive-rag/internal/vectordb"

// Turn is one prior question/answer pair from the caller's conversation
// history. The pipeline never persists conversation state itself; the
// caller resends the turns it wants considered on each request.
type Turn struct {
	Query    string
	Response string
}

// Request is one incoming question, scoped to a single tenant.
type Request struct {
	ScopeID      string
	Query        string
	TopK         int
	Conversation []Turn
}

// Citation is a single source reference attached to a generated answer.
type Citation struct {
	SourceFile string
	PageNumber int
	HasPage    bool
	Modality   string
	Score      float32
}

// Response is a successful, grounded answer.
type Response struct {
	Answer       string
	Citations    []Citation
	IsConflict   bool
	Conflicts    []string
	UsedChunks   []vectordb.Match
	UsedChunkIDs []string
	IsGrounded   bool
	Confidence   float32
}

// Analysis is the C6 output: derived topic/concepts plus up to three
// query phrasings to retrieve with.
type Analysis struct {
	Topic           string
	Concepts        []string
	ExpandedQueries []string
}

// GradedChunk pairs a retrieved match with its evidence score.
type GradedChunk struct {
	Match vectordb.Match
	Score float32
}
