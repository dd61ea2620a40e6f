package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/kyntus/facturation/constants"
)

// ImportBatch represents one import of one feed file.
type ImportBatch struct {
	ID         uuid.UUID `json:"id"`
	Feed       constants.Feed `json:"feed"`
	Filename   string    `json:"filename"`
	RowCount   int       `json:"row_count"`
	ImportedBy string    `json:"imported_by,omitempty"`
	ImportedAt time.Time `json:"imported_at"`
}

// RawRow is one ingested CSV line, kept verbatim. Rows are immutable once
// stored; a re-import supersedes the whole batch rather than mutating rows.
type RawRow struct {
	Feed    constants.Feed    `json:"feed"`
	BatchID uuid.UUID         `json:"batch_id"`
	Line    int               `json:"line"` // 1-based data line number, header excluded
	Headers []string          `json:"headers"`
	Values  map[string]string `json:"values"` // original header -> raw value
}

// Get returns the raw value for an original header, empty when absent.
func (r RawRow) Get(header string) string {
	return r.Values[header]
}
