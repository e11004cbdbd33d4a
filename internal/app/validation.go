package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amanthanvi/tripbook/internal/record"
)

var (
	clientRequired  = []string{FieldName, FieldPhoneNumber, FieldCity, FieldCountry}
	clientOptional  = []string{FieldAddressLine1, FieldAddressLine2, FieldAddressLine3, FieldState, FieldZipCode}
	airlineRequired = []string{FieldCompanyName}
	flightRequired  = []string{FieldStartCity, FieldEndCity}
)

var flightDateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
}

// validateRecord checks rec against the shape of its type and normalizes
// numeric reference fields given as strings.
func validateRecord(recordType string, rec *record.Record) error {
	if got := rec.Type(); got != recordType {
		return fmt.Errorf("%w: type must be %q, got %q", ErrValidation, recordType, got)
	}

	switch recordType {
	case record.TypeClient:
		if err := requireStrings(rec, clientRequired); err != nil {
			return err
		}
		return optionalStrings(rec, clientOptional)
	case record.TypeAirline:
		return requireStrings(rec, airlineRequired)
	case record.TypeFlight:
		for _, field := range []string{FieldClientID, FieldAirlineID} {
			if _, err := normalizePositiveInt(rec, field); err != nil {
				return err
			}
		}
		if err := requireStrings(rec, flightRequired); err != nil {
			return err
		}
		return validateFlightDate(rec)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, recordType)
	}
}

func requireStrings(rec *record.Record, fields []string) error {
	for _, field := range fields {
		value, ok := rec.Get(field)
		s, isString := value.Str()
		if !ok || !isString || strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
	}
	return nil
}

func optionalStrings(rec *record.Record, fields []string) error {
	for _, field := range fields {
		value, ok := rec.Get(field)
		if !ok || value.IsNull() {
			continue
		}
		if _, isString := value.Str(); !isString {
			return fmt.Errorf("%w: %s must be a string", ErrValidation, field)
		}
	}
	return nil
}

func normalizePositiveInt(rec *record.Record, field string) (int64, error) {
	value, ok := rec.Get(field)
	if !ok || value.IsNull() {
		return 0, fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	if n, isInt := value.Int64(); isInt {
		if n <= 0 {
			return 0, fmt.Errorf("%w: %s must be a positive integer", ErrValidation, field)
		}
		return n, nil
	}
	if s, isString := value.Str(); isString {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err == nil && n > 0 {
			rec.Set(field, record.Int(n))
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be a positive integer", ErrValidation, field)
}

func validateFlightDate(rec *record.Record) error {
	value, ok := rec.Get(FieldDate)
	s, isString := value.Str()
	if !ok || !isString || strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, FieldDate)
	}
	if _, err := parseFlightDate(s); err != nil {
		return fmt.Errorf("%w: %s must be YYYY-MM-DD or an ISO-8601 datetime", ErrValidation, FieldDate)
	}
	return nil
}

func parseFlightDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range flightDateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
