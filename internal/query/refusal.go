// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import "fmt"

// RefusalReason enumerates why the pipeline declined to answer.
type RefusalReason string

const (
	ReasonEmptyKnowledgeBase       RefusalReason = "empty_knowledge_base"
	ReasonNoMatch                  RefusalReason = "no_match"
	ReasonCompatibilityCheckFailed RefusalReason = "compatibility_check_failed"
	ReasonNoDocumentsRetrieved     RefusalReason = "no_retrieved_documents"
	ReasonTopicDrift               RefusalReason = "topic_drift"
	ReasonInsufficientEvidence     RefusalReason = "insufficient_evidence"
	ReasonGenerationFailed         RefusalReason = "generation_failed"
)

// Refusal is the typed value returned instead of an error when the
// pipeline declines to answer. It is a value, never raised as an error.
type Refusal struct {
	Reason  RefusalReason
	Message string
	Query   string
	Topics  []string
}

func newRefusal(reason RefusalReason, query string, topics []string, message string) *Refusal {
	return &Refusal{Reason: reason, Message: message, Query: query, Topics: topics}
}

func refusalEmptyKnowledgeBase(query string) *Refusal {
	return newRefusal(ReasonEmptyKnowledgeBase, query, nil,
		"No documents are uploaded to this scope yet.")
}

func refusalNoMatch(query, topic string, topics []string) *Refusal {
	return newRefusal(ReasonNoMatch, query, topics,
		fmt.Sprintf("Your question about '%s' is not covered by the uploaded documents.", topic))
}

func refusalCompatibilityCheckFailed(query string) *Refusal {
	return newRefusal(ReasonCompatibilityCheckFailed, query, nil,
		"Unable to verify if your question is within the scope of uploaded documents. Please try rephrasing or check document content.")
}

func refusalNoDocumentsRetrieved(query string) *Refusal {
	return newRefusal(ReasonNoDocumentsRetrieved, query, nil,
		"No relevant information was found in the uploaded documents.")
}

func refusalTopicDrift(query string) *Refusal {
	return newRefusal(ReasonTopicDrift, query, nil,
		"The retrieved evidence does not stay on the topic of your question.")
}

func refusalInsufficientEvidence(query string) *Refusal {
	return newRefusal(ReasonInsufficientEvidence, query, nil,
		"The available evidence was too weak or insufficient to support a reliable answer.")
}

func refusalGenerationFailed(query string) *Refusal {
	return newRefusal(ReasonGenerationFailed, query, nil,
		"The system could not verify the answer with high confidence.")
}
