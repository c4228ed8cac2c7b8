package fmdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Envelope is the outer shape of every Data API response.
type Envelope struct {
	Response json.RawMessage `json:"response"`
	Messages []Message       `json:"messages"`
}

// Message is a single code/message pair from an envelope.
type Message struct {
	Code    int    `json:"code"    yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// UnmarshalJSON accepts the code as either a string or a number.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	}

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	m.Message = raw.Message
	m.Code = 0

	code := bytes.Trim(raw.Code, `"`)
	if len(code) == 0 || bytes.Equal(code, []byte("null")) {
		return nil
	}

	m.Code, err = strconv.Atoi(string(code))
	if err != nil {
		return fmt.Errorf("failed to decode message code %q: %w", code, err)
	}

	return nil
}

// DataInfo describes the found set of a read.
type DataInfo struct {
	Database         string `json:"database"         yaml:"database"`
	Layout           string `json:"layout"           yaml:"layout"`
	Table            string `json:"table"            yaml:"table"`
	TotalRecordCount int    `json:"totalRecordCount" yaml:"total_record_count"`
	FoundCount       int    `json:"foundCount"       yaml:"found_count"`
	ReturnedCount    int    `json:"returnedCount"    yaml:"returned_count"`
}

// Record is a single record as returned by a read.
type Record struct {
	RecordID   string                      `json:"recordId"             yaml:"record_id"`
	ModID      string                      `json:"modId"                yaml:"mod_id"`
	FieldData  map[string]any              `json:"fieldData"            yaml:"field_data"`
	PortalData map[string][]map[string]any `json:"portalData,omitempty" yaml:"portal_data,omitempty"`
}

// Field returns the value of a field. The name may be an application name
// that mapping renames.
func (r *Record) Field(name string, mapping FieldMapping) (any, bool) {
	value, ok := r.FieldData[mapping.Resolve(name)]

	return value, ok
}

// Mapped returns the field data keyed by application names.
func (r *Record) Mapped(mapping FieldMapping) map[string]any {
	reverse := mapping.Reverse()
	out := make(map[string]any, len(r.FieldData))

	for name, value := range r.FieldData {
		out[reverse.Resolve(name)] = value
	}

	return out
}

// RecordsResponse is the response of a find or a records/record read.
type RecordsResponse struct {
	DataInfo DataInfo `json:"dataInfo" yaml:"data_info"`
	Data     []Record `json:"data"     yaml:"data"`
}

// WriteResponse is returned by create, edit, duplicate and container uploads.
type WriteResponse struct {
	RecordID string `json:"recordId,omitempty" yaml:"record_id,omitempty"`
	ModID    string `json:"modId,omitempty"    yaml:"mod_id,omitempty"`

	ScriptResult           string `json:"scriptResult,omitempty"           yaml:"script_result,omitempty"`
	ScriptError            string `json:"scriptError,omitempty"            yaml:"script_error,omitempty"`
	ScriptResultPrerequest string `json:"scriptResult.prerequest,omitempty" yaml:"script_result_prerequest,omitempty"`
	ScriptErrorPrerequest  string `json:"scriptError.prerequest,omitempty"  yaml:"script_error_prerequest,omitempty"`
	ScriptResultPresort    string `json:"scriptResult.presort,omitempty"    yaml:"script_result_presort,omitempty"`
	ScriptErrorPresort     string `json:"scriptError.presort,omitempty"     yaml:"script_error_presort,omitempty"`
}

// ScriptResponse is the response of a standalone script execution.
type ScriptResponse struct {
	ScriptResult string `json:"scriptResult,omitempty" yaml:"script_result,omitempty"`
	ScriptError  string `json:"scriptError"            yaml:"script_error"`
}

// SessionResponse is the response of a login.
type SessionResponse struct {
	Token string `json:"token"`
}

// Page is one page of a paginated read.
type Page struct {
	Records     []Record `json:"records"      yaml:"records"`
	Total       int      `json:"total"        yaml:"total"`
	PerPage     int      `json:"per_page"     yaml:"per_page"`
	CurrentPage int      `json:"current_page" yaml:"current_page"`
	LastPage    int      `json:"last_page"    yaml:"last_page"`
}

// HasMorePages reports whether pages follow this one.
func (p *Page) HasMorePages() bool {
	return p.CurrentPage < p.LastPage
}

// SortOrder is the direction of a sort rule.
type SortOrder string

const (
	// SortAscend sorts ascending.
	SortAscend SortOrder = "ascend"

	// SortDescend sorts descending.
	SortDescend SortOrder = "descend"
)

// SortRule is one entry of the sort list.
type SortRule struct {
	FieldName string    `json:"fieldName"`
	SortOrder SortOrder `json:"sortOrder"`
}

// FieldMapping renames application field names to FileMaker field names.
// Names without an entry pass through unchanged.
type FieldMapping map[string]string

// Resolve returns the FileMaker name for name.
func (m FieldMapping) Resolve(name string) string {
	if mapped, ok := m[name]; ok {
		return mapped
	}

	return name
}

// Reverse returns the FileMaker to application mapping.
func (m FieldMapping) Reverse() FieldMapping {
	out := make(FieldMapping, len(m))
	for from, to := range m {
		out[to] = from
	}

	return out
}
