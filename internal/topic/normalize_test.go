// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package topic

import "testing"

func TestNormalizeTopic(t *testing.T) {
	cases := map[string]string{
		"The Nervous System": "nervous system",
		"  Photosynthesis  ": "photosynthesis",
		"a":                  "a",
		"":                   "",
	}
	for in, want := range cases {
		if got := NormalizeTopic(in); got != want {
			t.Errorf("NormalizeTopic(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeConceptAbbreviations(t *testing.T) {
	cases := map[string]string{
		"CO2": "carbon dioxide",
		"ai":  "artificial intelligence",
		"GPU": "graphics processing unit",
		"leaf": "leaf",
	}
	for in, want := range cases {
		if got := NormalizeConcept(in); got != want {
			t.Errorf("NormalizeConcept(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanLLMTopic(t *testing.T) {
	cases := map[string]string{
		"The main topic is: Biology":               "Biology",
		"Topic: Computer Science":                  "Computer Science",
		"Photosynthesis Concepts: -":                "Photosynthesis",
		"\"Photosynthesis\".":                        "Photosynthesis",
	}
	for in, want := range cases {
		if got := CleanLLMTopic(in); got != want {
			t.Errorf("CleanLLMTopic(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromFilenameStripsUUIDPrefix(t *testing.T) {
	got := FromFilename("3fa9c1ab-12cd-45ef-9abc-1234567890ab-annual_report.pdf")
	want := "Annual Report"
	if got != want {
		t.Errorf("FromFilename = %q, want %q", got, want)
	}
}

func TestFromFilenameNeverEmpty(t *testing.T) {
	if got := FromFilename(".pdf"); got == "" {
		t.Errorf("FromFilename must never return empty, got %q", got)
	}
}

func TestConceptsFromTextDropsStopwords(t *testing.T) {
	concepts := ConceptsFromText("What is the process by which plants convert sunlight", 5)
	for _, c := range concepts {
		if c == "the" || c == "is" || c == "what" {
			t.Errorf("stopword/question word leaked into concepts: %v", concepts)
		}
	}
	if len(concepts) == 0 {
		t.Error("expected at least one concept")
	}
}
