// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"os"
)

// parseText extracts text from plain text-like files (.txt, .md, .json,
// .xml, .csv) verbatim, as a single RawChunk.
func parseText(filePath string) ([]RawChunk, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	text := string(content)
	if text == "" {
		return nil, fmt.Errorf("no content in text file: %s", filePath)
	}

	return []RawChunk{{Modality: "text", Content: text}}, nil
}
