package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/kyntus/facturation/constants"
	"github.com/kyntus/facturation/internal/entity"
)

// ParseWarning represents a non-fatal issue encountered during CSV parsing.
type ParseWarning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ParseResult holds the raw rows of one import plus any warnings.
type ParseResult struct {
	Headers   []string
	Rows      []entity.RawRow
	Encoding  string
	Delimiter rune
	Warnings  []ParseWarning
}

// Parse turns one uploaded feed file into raw rows. Encoding is detected,
// the delimiter is sniffed against the caller's request, mismatched column
// counts are padded or truncated with a warning, and no data row is dropped
// for a cell-level problem.
func Parse(data []byte, feed constants.Feed, batchID uuid.UUID, requested rune, sniffBytes int) (*ParseResult, error) {
	decoded, encoding, err := DetectAndDecode(data)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}

	delim := SniffDelimiter(decoded, requested, sniffBytes)

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = delim
	// Pad/truncate mismatched rows ourselves, and tolerate stray quotes:
	// these files come out of Excel and field tooling, not RFC 4180 writers.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: no header row found")
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	result := &ParseResult{Headers: headers, Encoding: encoding, Delimiter: delim}
	headerCount := len(headers)
	line := 0

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++

		if err != nil {
			result.Warnings = append(result.Warnings, ParseWarning{
				Line:    line,
				Message: fmt.Sprintf("parse error: %v", err),
			})
			continue
		}

		if len(row) != headerCount {
			if len(row) < headerCount {
				result.Warnings = append(result.Warnings, ParseWarning{
					Line:    line,
					Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(row), headerCount),
				})
				padded := make([]string, headerCount)
				copy(padded, row)
				row = padded
			} else {
				result.Warnings = append(result.Warnings, ParseWarning{
					Line:    line,
					Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(row), headerCount),
				})
				row = row[:headerCount]
			}
		}

		values := make(map[string]string, headerCount)
		for i, h := range headers {
			values[h] = row[i]
		}
		result.Rows = append(result.Rows, entity.RawRow{
			Feed:    feed,
			BatchID: batchID,
			Line:    line,
			Headers: headers,
			Values:  values,
		})
	}

	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("file contains no data rows")
	}
	return result, nil
}
