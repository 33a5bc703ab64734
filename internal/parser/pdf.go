// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// parsePDF extracts text from a PDF file using go-fitz (MuPDF), one
// RawChunk per page so page provenance survives into the chunk payload.
func parsePDF(filePath string) ([]RawChunk, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	chunks := make([]RawChunk, 0, numPages)

	for i := 0; i < numPages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		chunks = append(chunks, RawChunk{
			Modality:      "text",
			Content:       pageText,
			PageNumber:    i + 1,
			HasPageNumber: true,
		})
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text extracted from PDF: %s", filePath)
	}

	return chunks, nil
}
