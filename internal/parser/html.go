package parser

import (
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
)

// parseHTML extracts text from an HTML file, removing script and style tags
func parseHTML(filePath string) ([]RawChunk, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open HTML file: %w", err)
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Text()
	if text == "" {
		return nil, fmt.Errorf("no text extracted from HTML: %s", filePath)
	}

	return []RawChunk{{Modality: "text", Content: text}}, nil
}

