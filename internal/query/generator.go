// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/nskitch/hive-rag/internal/ai"
	"github.com/nskitch/hive-rag/internal/vectordb"
)

const (
	maxGeneratorEvidenceDocs = 5
	maxGeneratorContentChars = 300
	generatorMaxTokens       = 400
	maxConversationTurns     = 3
)

var hallucinationPhrases = []string{
	"i think",
	"i believe",
	"in my opinion",
	"generally speaking",
	"it's commonly known",
	"as everyone knows",
	"i would assume",
	"typically",
}

// Generator is the C12 step: it calls the LLM exactly once per query,
// in either a grounded or conflict-aware mode, then post-processes the
// raw completion into a deduplicated, cited answer.
type Generator struct {
	gateway *ai.Gateway
}

// NewGenerator constructs a Generator.
func NewGenerator(gateway *ai.Gateway) *Generator {
	return &Generator{gateway: gateway}
}

// Generate produces a final answer from the passed evidence. If
// conflicts is non-empty it uses the conflict-aware prompt; otherwise
// the grounded prompt. conversation carries prior turns the caller
// wants considered; only the last maxConversationTurns are used.
// Returns ErrGenerationFailed on any LLM failure or if the completion
// fails the grounding check.
func (g *Generator) Generate(ctx context.Context, query string, passed []GradedChunk, conflicts []string, conversation []Turn) (*Response, error) {
	if g.gateway == nil {
		return nil, ErrGenerationFailed
	}

	if len(conversation) > maxConversationTurns {
		conversation = conversation[len(conversation)-maxConversationTurns:]
	}

	var prompt string
	if len(conflicts) > 0 {
		prompt = buildConflictAwarePrompt(query, passed, conflicts)
	} else {
		prompt = buildGroundedPrompt(query, passed, conversation)
	}

	raw, _, err := g.gateway.Generate(ctx, prompt, ai.GenerateOptions{
		MaxTokens:     generatorMaxTokens,
		StopSequences: []string{"\n\nEvidence", "\n\nUser Question", "Answer:", "\n\n\n"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	answer := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !isGrounded(answer) {
		return nil, ErrGenerationFailed
	}

	answer = removeRepetitions(answer)
	citations := buildCitations(passed)
	answer = appendCitationSuffix(answer, citations)

	matches := make([]vectordb.Match, 0, len(passed))
	ids := make([]string, 0, len(passed))
	for _, p := range passed {
		matches = append(matches, p.Match)
		ids = append(ids, p.Match.ChunkID)
	}

	return &Response{
		Answer:       answer,
		Citations:    citations,
		IsConflict:   len(conflicts) > 0,
		Conflicts:    conflicts,
		UsedChunks:   matches,
		UsedChunkIDs: ids,
		IsGrounded:   true,
	}, nil
}

func buildGroundedPrompt(query string, passed []GradedChunk, conversation []Turn) string {
	var evidence []string
	for i, p := range passed {
		if i >= maxGeneratorEvidenceDocs {
			break
		}
		content := truncate(p.Match.Payload.Content, maxGeneratorContentChars)
		if content != "" {
			evidence = append(evidence, fmt.Sprintf("Evidence %d: %s", i+1, content))
		}
	}
	evidenceContext := "No evidence available."
	if len(evidence) > 0 {
		evidenceContext = strings.Join(evidence, "\n\n")
	}

	return "You are a retrieval-grounded assistant.\n" +
		"Answer ONLY using the provided evidence.\n" +
		"If evidence exists, you MUST answer.\n" +
		"Return ONE concise plain-text answer.\n" +
		"Do NOT repeat sentences.\n" +
		"Do NOT output JSON or lists.\n" +
		"Do NOT mention sources or files.\n\n" +
		conversationContext(conversation) +
		"Evidence:\n" + evidenceContext + "\n\n" +
		"User Question: " + query + "\n\n" +
		"Answer (plain text only, no repetition):"
}

// conversationContext renders prior turns as a prompt prefix, or "" when
// there's no history to include.
func conversationContext(conversation []Turn) string {
	if len(conversation) == 0 {
		return ""
	}
	var lines []string
	for _, t := range conversation {
		lines = append(lines, "User: "+t.Query, "Assistant: "+t.Response)
	}
	return "Recent conversation:\n" + strings.Join(lines, "\n") + "\n\n"
}

func buildConflictAwarePrompt(query string, passed []GradedChunk, conflicts []string) string {
	var evidence []string
	for i, p := range passed {
		if i >= maxGeneratorEvidenceDocs {
			break
		}
		content := truncate(p.Match.Payload.Content, maxGeneratorContentChars)
		sourceName := p.Match.Payload.SourceFile
		if sourceName == "" {
			sourceName = fmt.Sprintf("Source %d", i+1)
		}
		if content != "" {
			evidence = append(evidence, fmt.Sprintf("Source %d (%s): %s", i+1, sourceName, content))
		}
	}

	conflictSummary := make([]string, len(conflicts))
	for i, c := range conflicts {
		conflictSummary[i] = "- " + c
	}

	return "You are a retrieval-grounded assistant trained to acknowledge contradictions.\n\n" +
		"The evidence contains CONFLICTING information:\n" + strings.Join(conflictSummary, "\n") + "\n\n" +
		"Evidence from multiple sources:\n" + strings.Join(evidence, "\n\n") + "\n\n" +
		"User Question: " + query + "\n\n" +
		"INSTRUCTIONS:\n" +
		"Since there are contradictions, you MUST present both perspectives.\n" +
		"Use this EXACT format:\n\n" +
		`"There is a conflict in the evidence. [Source A name] indicates [perspective A], whereas ` +
		`[Source B name] suggests [perspective B]. Based on the available evidence, [provide your reasoned ` +
		`assessment if possible, or state that more information is needed]."` + "\n\n" +
		"Answer (acknowledge conflict, present both sides):"
}

// isGrounded fails the completion if it contains any of the fixed
// hedging phrases that signal the model drifted off the evidence.
func isGrounded(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range hallucinationPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// removeRepetitions drops case-insensitive duplicate sentences, keeping
// the first occurrence's casing and order.
func removeRepetitions(text string) string {
	sentences := strings.Split(text, ".")
	seen := make(map[string]bool, len(sentences))
	var unique []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, s)
	}
	if len(unique) == 0 {
		return ""
	}
	return strings.Join(unique, ". ") + "."
}

func buildCitations(passed []GradedChunk) []Citation {
	var citations []Citation
	seen := make(map[string]bool)
	for i, p := range passed {
		if i >= maxGeneratorEvidenceDocs {
			break
		}
		filename := sourceFileName(p.Match.Payload.SourceFile)
		key := filename
		if p.Match.Payload.HasPageNumber {
			key = fmt.Sprintf("%s#%d", filename, p.Match.Payload.PageNumber)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, Citation{
			SourceFile: filename,
			PageNumber: p.Match.Payload.PageNumber,
			HasPage:    p.Match.Payload.HasPageNumber,
			Modality:   p.Match.Payload.Modality,
			Score:      p.Match.Similarity,
		})
	}
	return citations
}

func appendCitationSuffix(answer string, citations []Citation) string {
	if len(citations) == 0 {
		return answer
	}
	parts := make([]string, len(citations))
	for i, c := range citations {
		if c.HasPage {
			parts[i] = fmt.Sprintf("%s, Page %d", c.SourceFile, c.PageNumber)
		} else {
			parts[i] = c.SourceFile
		}
	}
	return answer + " [" + strings.Join(parts, "; ") + "]"
}
