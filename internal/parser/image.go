// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"os"
	"path/filepath"
)

// parseImage produces a single opaque chunk describing an image file.
// There is no vision model wired into the core ingestion path, so the
// chunk content is a filename-and-size description; the embedding
// gateway's EmbedImage path is what actually gives the image a position
// in the "image" vector space.
func parseImage(filePath string) ([]RawChunk, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	description := fmt.Sprintf("Image file: %s (%d bytes)", filepath.Base(filePath), info.Size())

	return []RawChunk{{
		Modality:  "image",
		Content:   description,
		ImagePath: filePath,
	}}, nil
}
