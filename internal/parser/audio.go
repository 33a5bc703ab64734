// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"os"
	"path/filepath"
)

// parseAudio produces a single opaque chunk describing an audio file.
// No speech-to-text model is wired into the core ingestion path, so the
// chunk carries a placeholder transcript; the audio vector space is
// populated from this description until a transcription producer is
// wired in.
func parseAudio(filePath string) ([]RawChunk, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio file: %w", err)
	}

	description := fmt.Sprintf("Audio file: %s (%d bytes, transcript unavailable)", filepath.Base(filePath), info.Size())

	return []RawChunk{{
		Modality: "audio",
		Content:  description,
	}}, nil
}
