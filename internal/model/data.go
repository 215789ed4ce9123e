package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// MunicipalityColumn is the first column of every wide row.
const MunicipalityColumn = "Municipio"

// IslandwideName names the synthesized aggregate row.
const IslandwideName = "Puerto Rico"

// YearlyRecord is one (year, municipality) establishment count in long form.
type YearlyRecord struct {
	Year           int    `json:"year"`
	Municipality   string `json:"Municipio"`
	Establishments *int   `json:"Establishments"`
}

// WideRow is one municipality with one column per year plus derived columns.
// Column order is preserved on output.
type WideRow struct {
	Municipality string
	columns      []string
	values       map[string]interface{}
}

func NewWideRow(municipality string) *WideRow {
	return &WideRow{
		Municipality: municipality,
		values:       make(map[string]interface{}),
	}
}

// Set assigns a column value, appending the column the first time it is seen.
// Values are expected to be *int, *float64 or nil.
func (r *WideRow) Set(column string, value interface{}) {
	if _, ok := r.values[column]; !ok {
		r.columns = append(r.columns, column)
	}
	r.values[column] = value
}

func (r *WideRow) Get(column string) (interface{}, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Int returns the column as an integer count, or nil when absent or null.
func (r *WideRow) Int(column string) *int {
	if v, ok := r.values[column].(*int); ok {
		return v
	}
	return nil
}

// Float returns the column as a float, or nil when absent or null.
func (r *WideRow) Float(column string) *float64 {
	if v, ok := r.values[column].(*float64); ok {
		return v
	}
	return nil
}

// Columns returns the data columns in insertion order (without Municipio).
func (r *WideRow) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

func (r *WideRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, MunicipalityColumn, r.Municipality); err != nil {
		return nil, err
	}
	for _, col := range r.columns {
		buf.WriteByte(',')
		if err := writeMember(&buf, col, r.values[col]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value interface{}) error {
	k, err := marshalUnescaped(key)
	if err != nil {
		return err
	}
	v, err := marshalUnescaped(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

func marshalUnescaped(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Metadata describes the artifact; it is written as the last array element.
type Metadata struct {
	Source                string   `json:"source"`
	Units                 string   `json:"units"`
	IslandwideAggregation bool     `json:"islandwide_aggregation"`
	DataYears             []string `json:"data_years"`
	Updated               string   `json:"updated"`
	Notes                 string   `json:"notes"`
}

// MetadataRecord wraps Metadata under a "metadata" key.
type MetadataRecord struct {
	Metadata Metadata `json:"metadata"`
}

// ExportResult represents the result of an export operation
type ExportResult struct {
	Type        string    `json:"type"` // "json", "excel", "chart", "database"
	Path        string    `json:"path"` // file path or table name
	RecordCount int       `json:"record_count"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}
