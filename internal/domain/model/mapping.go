package model

import "time"

// ColumnMapping maps a canonical field name to a spreadsheet column label.
type ColumnMapping map[string]string

// MappingRecord is a saved column mapping for one sheet.
type MappingRecord struct {
	Sheet     string        `json:"sheet"`
	Endpoint  string        `json:"endpoint"`
	Mapping   ColumnMapping `json:"mapping"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
