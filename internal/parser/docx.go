package parser

import (
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// parseDOCX extracts text from a DOCX file as a single RawChunk.
func parseDOCX(filePath string) ([]RawChunk, error) {
	doc, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX file: %w", err)
	}
	defer doc.Close()

	text := strings.TrimSpace(doc.Editable().GetContent())
	if text == "" {
		return nil, fmt.Errorf("no text extracted from DOCX: %s", filePath)
	}

	return []RawChunk{{Modality: "text", Content: text}}, nil
}

