// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var producers = map[string]Producer{
	".txt":  parseText,
	".md":   parseText,
	".json": parseText,
	".xml":  parseText,
	".csv":  parseText,
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".xlsx": parseExcel,
	".xls":  parseExcel,
	".html": parseHTML,
	".htm":  parseHTML,
	".eml":  parseEmail,

	".jpg":  parseImage,
	".jpeg": parseImage,
	".png":  parseImage,
	".gif":  parseImage,
	".bmp":  parseImage,
	".webp": parseImage,
	".tiff": parseImage,
	".tif":  parseImage,

	".mp3":  parseAudio,
	".wav":  parseAudio,
	".m4a":  parseAudio,
	".ogg":  parseAudio,
	".flac": parseAudio,
	".aac":  parseAudio,
	".wma":  parseAudio,
}

// ParseFile routes a file to the producer registered for its extension
// and returns the RawChunks it extracted.
func ParseFile(filePath string) ([]RawChunk, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("parser: failed to stat file: %w", err)
	}
	if info.Size() > MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, filePath, info.Size())
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	produce, ok := producers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	chunks, err := produce(filePath)
	if err != nil {
		return nil, err
	}

	totalChars := 0
	for _, c := range chunks {
		totalChars += len(c.Content)
	}
	fmt.Printf("[PARSE] %s: %d chunk(s), %d characters\n", filePath, len(chunks), totalChars)

	return chunks, nil
}

// IsSupportedFile checks if a file extension has a registered producer.
func IsSupportedFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	_, ok := producers[ext]
	return ok
}

// IsTemporaryFile checks if a file is a temporary file (e.g., ~$doc.docx)
func IsTemporaryFile(filePath string) bool {
	base := filepath.Base(filePath)
	if strings.HasPrefix(base, "~$") {
		return true
	}
	if strings.HasPrefix(base, "._") {
		return true
	}
	if strings.HasSuffix(base, ".tmp") {
		return true
	}
	return false
}
