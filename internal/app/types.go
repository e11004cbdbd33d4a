package app

import (
	"errors"
	"time"

	"github.com/amanthanvi/tripbook/internal/record"
)

var (
	ErrValidation       = errors.New("app: validation failed")
	ErrUnknownType      = errors.New("app: unknown record type")
	ErrMissingReference = errors.New("app: referenced record does not exist")
)

const (
	FieldName         = "Name"
	FieldPhoneNumber  = "Phone Number"
	FieldAddressLine1 = "Address Line 1"
	FieldAddressLine2 = "Address Line 2"
	FieldAddressLine3 = "Address Line 3"
	FieldCity         = "City"
	FieldState        = "State"
	FieldZipCode      = "Zip Code"
	FieldCountry      = "Country"

	FieldCompanyName = "Company Name"

	FieldClientID  = "Client_ID"
	FieldAirlineID = "Airline_ID"
	FieldDate      = "Date"
	FieldStartCity = "Start City"
	FieldEndCity   = "End City"
)

// SearchRequest is a type-scoped search. Field "all" or empty searches every
// field; Match defaults to exact.
type SearchRequest struct {
	Type  string
	Field string
	Value string
	Match string
}

type Stats struct {
	TotalRecords      int      `json:"total_records"`
	Clients           int      `json:"clients"`
	Airlines          int      `json:"airlines"`
	Flights           int      `json:"flights"`
	Untyped           int      `json:"untyped"`
	UniqueStartCities []string `json:"unique_start_cities"`
	UniqueEndCities   []string `json:"unique_end_cities"`
	NextID            int64    `json:"next_id"`
}

type Health struct {
	Status      string    `json:"status"`
	CheckedAt   time.Time `json:"checked_at"`
	RecordCount int       `json:"record_count"`
	DataFile    string    `json:"data_file"`
	FileExists  bool      `json:"file_exists"`
	FileSize    int64     `json:"file_size"`
	Audit       bool      `json:"audit_enabled"`
}

type ImportMode string

const (
	ImportModeReplace ImportMode = "replace"
	ImportModeAppend  ImportMode = "append"
)

type ImportResult struct {
	Mode     ImportMode      `json:"mode"`
	Imported int             `json:"imported"`
	Skipped  int             `json:"skipped"`
	Remapped map[int64]int64 `json:"remapped,omitempty"`
}

type ExportResult struct {
	Records int `json:"records"`
}

func isKnownType(recordType string) bool {
	return record.IsKnownType(recordType)
}
