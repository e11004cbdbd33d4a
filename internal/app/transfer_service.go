package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	gzip "github.com/klauspost/pgzip"

	"github.com/amanthanvi/tripbook/internal/audit"
	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
)

const (
	exportFormat        = "tripbook-export"
	exportFormatVersion = 1

	maxExportLineSize = 16 << 20
)

type exportHeader struct {
	Format     string    `json:"format"`
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Records    int       `json:"records"`
}

// TransferService moves the whole collection in and out as a gzip
// compressed JSON-lines stream: a header line followed by one record per line.
type TransferService struct {
	repo     *storage.Repository
	recorder audit.Recorder
	logger   *slog.Logger
}

func NewTransferService(repo *storage.Repository, recorder audit.Recorder, logger *slog.Logger) *TransferService {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TransferService{repo: repo, recorder: recorder, logger: logger}
}

func (s *TransferService) Export(ctx context.Context, w io.Writer) (ExportResult, error) {
	var result ExportResult
	if s == nil || s.repo == nil {
		return result, fmt.Errorf("export: repository is nil")
	}

	records := s.repo.List()
	compressor, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return result, fmt.Errorf("export: create compressor: %w", err)
	}

	encoder := json.NewEncoder(compressor)
	encoder.SetEscapeHTML(false)
	header := exportHeader{
		Format:     exportFormat,
		Version:    exportFormatVersion,
		ExportedAt: time.Now().UTC(),
		Records:    len(records),
	}
	if err := encoder.Encode(header); err != nil {
		_ = compressor.Close()
		return result, fmt.Errorf("export: write header: %w", err)
	}
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			_ = compressor.Close()
			return result, fmt.Errorf("export: write record: %w", err)
		}
		result.Records++
	}
	if err := compressor.Close(); err != nil {
		return result, fmt.Errorf("export: flush: %w", err)
	}

	s.audit(ctx, audit.ActionStoreExport, transferDetails{Records: result.Records})
	s.logger.Debug("records exported", "count", result.Records)
	return result, nil
}

// Import reads an export stream. Replace swaps the collection and keeps the
// exported IDs; append assigns fresh IDs, validates each record like a create
// and rewrites flight references to clients and airlines imported in the same
// stream. Lines that do not decode to a record, and append records that fail
// validation, are skipped and counted.
func (s *TransferService) Import(ctx context.Context, r io.Reader, mode ImportMode) (ImportResult, error) {
	result := ImportResult{Mode: mode}
	if s == nil || s.repo == nil {
		return result, fmt.Errorf("import: repository is nil")
	}
	if mode != ImportModeReplace && mode != ImportModeAppend {
		return result, fmt.Errorf("%w: import mode must be %q or %q", ErrValidation, ImportModeReplace, ImportModeAppend)
	}

	records, skipped, err := readExport(r)
	if err != nil {
		return result, err
	}
	result.Skipped = skipped

	switch mode {
	case ImportModeReplace:
		kept, dropped := dedupeByID(records)
		result.Skipped += dropped
		if err := s.repo.Replace(kept); err != nil {
			return result, fmt.Errorf("import: replace collection: %w", err)
		}
		result.Imported = len(kept)
	case ImportModeAppend:
		remap, invalid, err := s.appendRecords(records)
		result.Remapped = remap
		result.Skipped += invalid
		result.Imported = len(records) - invalid
		if err != nil {
			return result, err
		}
	}

	saveErr := s.repo.Save(ctx)
	details := transferDetails{Mode: string(mode), Records: result.Imported, Skipped: result.Skipped}
	if saveErr != nil {
		s.auditFailure(ctx, audit.ActionStoreImport, details)
		return result, fmt.Errorf("import: save records: %w", saveErr)
	}
	s.audit(ctx, audit.ActionStoreImport, details)
	s.logger.Debug("records imported", "mode", mode, "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// appendRecords creates every record that passes the same checks as a
// create. Clients and airlines go first so flights can be remapped onto
// their new IDs; a flight pointing at a record that was skipped, or at one
// that exists in neither the stream nor the collection, is skipped too.
func (s *TransferService) appendRecords(records []*record.Record) (map[int64]int64, int, error) {
	remap := map[int64]int64{}
	skipped := 0
	skip := func(rec *record.Record, err error) {
		skipped++
		id, _ := rec.ID()
		s.logger.Warn("import record skipped", "type", rec.Type(), "id", id, "error", err)
	}
	// refs holds only clients and airlines, the targets of flight references.
	refs := map[int64]int64{}
	create := func(rec *record.Record) error {
		created, err := s.repo.Create(rec)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		if oldID, ok := rec.ID(); ok {
			newID, _ := created.ID()
			remap[oldID] = newID
			if rec.Type() != record.TypeFlight {
				refs[oldID] = newID
			}
		}
		return nil
	}

	var flights []*record.Record
	streamIDs := map[int64]struct{}{}
	for _, rec := range records {
		if rec.Type() == record.TypeFlight {
			flights = append(flights, rec)
			continue
		}
		if id, ok := rec.ID(); ok {
			streamIDs[id] = struct{}{}
		}
		if err := validateRecord(rec.Type(), rec); err != nil {
			skip(rec, err)
			continue
		}
		if err := create(rec); err != nil {
			return remap, skipped, err
		}
	}

	for _, rec := range flights {
		if err := validateRecord(record.TypeFlight, rec); err != nil {
			skip(rec, err)
			continue
		}
		if err := remapReferences(rec, refs, streamIDs); err != nil {
			skip(rec, err)
			continue
		}
		if err := checkFlightReferences(s.repo, rec); err != nil {
			skip(rec, err)
			continue
		}
		if err := create(rec); err != nil {
			return remap, skipped, err
		}
	}
	return remap, skipped, nil
}

// remapReferences points a flight at the new IDs of records imported from the
// same stream. A reference to a stream record that was not imported fails
// rather than falling through to an unrelated record with the same old ID.
func remapReferences(flight *record.Record, refs map[int64]int64, streamIDs map[int64]struct{}) error {
	for _, field := range []string{FieldClientID, FieldAirlineID} {
		value, _ := flight.Get(field)
		oldID, _ := value.Int64()
		if newID, found := refs[oldID]; found {
			flight.Set(field, record.Int(newID))
			continue
		}
		if _, inStream := streamIDs[oldID]; inStream {
			return fmt.Errorf("%w: %w: %s %d was not imported", ErrValidation, ErrMissingReference, field, oldID)
		}
	}
	return nil
}

func readExport(r io.Reader) ([]*record.Record, int, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: import: not a gzip stream: %v", ErrValidation, err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxExportLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, 0, fmt.Errorf("import: read header: %w", err)
		}
		return nil, 0, fmt.Errorf("%w: import: empty stream", ErrValidation)
	}
	var header exportHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil || header.Format != exportFormat {
		return nil, 0, fmt.Errorf("%w: import: missing export header", ErrValidation)
	}
	if header.Version != exportFormatVersion {
		return nil, 0, fmt.Errorf("%w: import: unsupported export version %d", ErrValidation, header.Version)
	}

	records := []*record.Record{}
	skipped := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec := &record.Record{}
		if err := json.Unmarshal([]byte(line), rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("import: read records: %w", err)
	}
	return records, skipped, nil
}

func dedupeByID(records []*record.Record) ([]*record.Record, int) {
	seen := map[int64]struct{}{}
	kept := make([]*record.Record, 0, len(records))
	dropped := 0
	for _, rec := range records {
		id, ok := rec.ID()
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[id]; dup {
			dropped++
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, rec)
	}
	return kept, dropped
}

type transferDetails struct {
	Mode    string `json:"mode,omitempty"`
	Records int    `json:"records"`
	Skipped int    `json:"skipped,omitempty"`
}

func (s *TransferService) audit(ctx context.Context, action string, details transferDetails) {
	s.recordEvent(ctx, action, audit.ResultSuccess, details)
}

func (s *TransferService) auditFailure(ctx context.Context, action string, details transferDetails) {
	s.recordEvent(ctx, action, audit.ResultFailure, details)
}

func (s *TransferService) recordEvent(ctx context.Context, action, result string, details transferDetails) {
	err := s.recorder.Record(ctx, audit.Event{
		Action:     action,
		TargetType: "store",
		Result:     result,
		Details:    details,
	})
	if err != nil {
		s.logger.Warn("audit event not recorded", "action", action, "error", err)
	}
}
