// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package topic

import (
	"regexp"
	"strings"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true,
	"on": true, "at": true, "to": true, "for": true,
}

// abbreviations canonicalizes well-known short forms to their long form so
// that "CO2" and "carbon dioxide" collapse to the same concept.
var abbreviations = map[string]string{
	"co2": "carbon dioxide",
	"o2":  "oxygen",
	"h2o": "water",
	"ai":  "artificial intelligence",
	"ml":  "machine learning",
	"rag": "retrieval augmented generation",
	"llm": "large language model",
	"gpu": "graphics processing unit",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeTopic lowercases, collapses whitespace, and drops stopwords from
// a topic phrase. It never returns an empty string for non-empty input --
// if every token is a stopword, the original (lowercased) phrase is kept.
func NormalizeTopic(t string) string {
	if t == "" {
		return ""
	}
	normalized := strings.ToLower(strings.TrimSpace(t))
	normalized = whitespaceRe.ReplaceAllString(normalized, " ")

	words := strings.Fields(normalized)
	filtered := make([]string, 0, len(words))
	for _, w := range words {
		if !stopWords[w] {
			filtered = append(filtered, w)
		}
	}
	if len(filtered) == 0 {
		return normalized
	}
	return strings.Join(filtered, " ")
}

// NormalizeConcept lowercases a concept and canonicalizes it against the
// abbreviation table (CO2 <-> carbon dioxide, AI <-> artificial intelligence, ...).
func NormalizeConcept(c string) string {
	if c == "" {
		return ""
	}
	normalized := strings.ToLower(strings.TrimSpace(c))
	if long, ok := abbreviations[normalized]; ok {
		return long
	}
	return normalized
}

// NormalizeConcepts applies NormalizeConcept to every element, dropping any
// that normalize to the empty string.
func NormalizeConcepts(cs []string) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		if n := NormalizeConcept(c); n != "" {
			out = append(out, n)
		}
	}
	return out
}

var llmTopicPrefixRe = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^the\s+(main\s+)?topic\s+(is|of\s+this\s+document\s+is)\s*:?\s*`),
	regexp.MustCompile(`(?i)^topic\s*:?\s*`),
	regexp.MustCompile(`(?i)^this\s+document\s+(is\s+about|discusses|covers)\s*:?\s*`),
	regexp.MustCompile(`(?i)^main\s+subject\s*:?\s*`),
	regexp.MustCompile(`(?i)^subject\s*:?\s*`),
}

var concatenatedConceptsRe = regexp.MustCompile(`(?i)\s+concepts?\s*:.*$`)
var bracketsRe = regexp.MustCompile(`[\[\]\(\){}]`)

// CleanLLMTopic strips the verbosity an LLM tends to wrap a one-line topic
// answer in ("The main topic is: Biology", "Topic: Photosynthesis Concepts: -")
// and returns a 1-3 token, Title Case phrase.
func CleanLLMTopic(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}

	for _, re := range llmTopicPrefixRe {
		cleaned = re.ReplaceAllString(cleaned, "")
	}

	cleaned = strings.Trim(cleaned, "\"'`")
	cleaned = strings.TrimRight(cleaned, ".!?,;:")
	cleaned = strings.Trim(cleaned, "\"'`")
	cleaned = bracketsRe.ReplaceAllString(cleaned, "")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	cleaned = concatenatedConceptsRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	words := strings.Fields(cleaned)
	if len(words) > 3 {
		words = words[:3]
	}
	if len(words) == 0 {
		return ""
	}
	return strings.Title(strings.ToLower(strings.Join(words, " ")))
}

// FromFilename derives a fallback topic from a source filename: strips a
// leading UUID-looking prefix, replaces separators with spaces, and
// Title Cases the result. Always returns a non-empty string for non-empty
// input, per the ingestion fallback invariant.
func FromFilename(filename string) string {
	base := filename
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}

	// Strip a leading UUID-like prefix, e.g. "3fa9c1ab-...-document.pdf".
	parts := strings.SplitN(base, "-", 6)
	if len(parts) == 6 && isHexLike(parts[0]) {
		base = parts[5]
	}

	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = whitespaceRe.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)
	if base == "" {
		return "Untitled Document"
	}
	return strings.Title(strings.ToLower(base))
}

func isHexLike(s string) bool {
	if len(s) < 8 {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

// ConceptsFromText extracts up to maxConcepts lowercase token concepts from
// free text using simple stopword-filtered tokenization. Used both as the
// ingestion-time concept fallback and the no-catalog query-analysis
// shortcut.
func ConceptsFromText(text string, maxConcepts int) []string {
	if text == "" {
		return nil
	}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	})

	seen := make(map[string]bool, maxConcepts)
	concepts := make([]string, 0, maxConcepts)
	for _, w := range fields {
		if len(w) < 3 || stopWords[w] || questionWords[w] {
			continue
		}
		if seen[w] {
			continue
		}
		seen[w] = true
		concepts = append(concepts, w)
		if len(concepts) >= maxConcepts {
			break
		}
	}
	return concepts
}

var questionWords = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "is": true, "are": true, "does": true,
	"do": true, "can": true, "will": true, "would": true, "should": true,
}

// TitleCaseWords joins the first n fields of s, Title Cased -- used by the
// Query Analyzer's no-catalog shortcut (topic = first two query tokens).
func TitleCaseWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	for i, w := range words {
		words[i] = strings.Title(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}
