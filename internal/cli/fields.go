package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amanthanvi/tripbook/internal/record"
)

// fieldFlags collects record fields from the command line. --set values are
// typed (numbers, booleans and null keep their JSON type); --str values are
// always strings.
type fieldFlags struct {
	set  []string
	str  []string
	file string
}

func (f *fieldFlags) empty() bool {
	return len(f.set) == 0 && len(f.str) == 0 && f.file == ""
}

func (f *fieldFlags) build(stdin io.Reader) (*record.Record, error) {
	rec := record.New()
	if f.file != "" {
		fromFile, err := readRecordFile(f.file, stdin)
		if err != nil {
			return nil, err
		}
		rec = fromFile
	}
	for _, raw := range f.set {
		key, value, err := splitAssignment(raw)
		if err != nil {
			return nil, err
		}
		rec.Set(key, record.ParseScalar(value))
	}
	for _, raw := range f.str {
		key, value, err := splitAssignment(raw)
		if err != nil {
			return nil, err
		}
		rec.Set(key, record.String(value))
	}
	return rec, nil
}

func splitAssignment(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", usageErrorf("field %q must look like key=value", raw)
	}
	return key, value, nil
}

func readRecordFile(path string, stdin io.Reader) (*record.Record, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}

	rec := record.New()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, usageErrorf("parse record file: %v", err)
	}
	return rec, nil
}
