package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseExcel extracts text from an Excel file using a "markdownification"
// strategy, one RawChunk per sheet.
func parseExcel(filePath string) ([]RawChunk, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file: %s", filePath)
	}

	chunks := make([]RawChunk, 0, len(sheetList))

	for _, sheetName := range sheetList {
		var builder strings.Builder
		builder.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))

		rows, err := f.GetRows(sheetName)
		if err != nil {
			builder.WriteString(fmt.Sprintf("(Unable to read sheet %s: %v)\n", sheetName, err))
			chunks = append(chunks, RawChunk{Modality: "text", Content: strings.TrimSpace(builder.String())})
			continue
		}
		if len(rows) == 0 {
			continue
		}

		headers := rows[0]
		if len(headers) == 0 {
			continue
		}

		for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
			row := rows[rowIdx]

			rowParts := []string{}
			for colIdx, header := range headers {
				if colIdx < len(row) && row[colIdx] != "" {
					value := strings.TrimSpace(row[colIdx])
					if value != "" {
						headerName := strings.TrimSpace(header)
						if headerName == "" {
							headerName = fmt.Sprintf("Column %d", colIdx+1)
						}
						rowParts = append(rowParts, fmt.Sprintf("%s: %s", headerName, value))
					}
				}
			}

			if len(rowParts) > 0 {
				builder.WriteString(fmt.Sprintf("Row %d: %s\n", rowIdx+1, strings.Join(rowParts, ", ")))
			}
		}

		content := strings.TrimSpace(builder.String())
		if content != "" {
			chunks = append(chunks, RawChunk{Modality: "text", Content: content})
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("no content extracted from Excel file: %s", filePath)
	}

	return chunks, nil
}

