package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	gzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/require"

	"github.com/amanthanvi/tripbook/internal/audit"
	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
)

func TestRecordServiceCreateClientAssignsIDAndSaves(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()

	created, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)
	id, ok := created.ID()
	require.True(t, ok)
	require.Equal(t, int64(1), id)
	require.Equal(t, record.TypeClient, created.Type())
	require.Equal(t, []string{record.FieldID, record.FieldType}, created.Keys()[:2])

	fresh := storage.NewRepository(env.store, nil)
	_, err = fresh.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, fresh.Len())
}

func TestRecordServiceCreateValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()

	_, err := env.clients.Create(ctx, record.New(record.F(FieldName, record.String("Only a name"))))
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.airlines.Create(ctx, record.New(record.F(FieldCompanyName, record.String("   "))))
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.clients.Create(ctx, nil)
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, 0, env.repo.Len())
}

func TestRecordServiceCreateRejectsMismatchedType(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	fields := clientInput("Elias")
	fields.Set(record.FieldType, record.String(record.TypeAirline))

	_, err := env.clients.Create(context.Background(), fields)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecordServiceFlightRequiresExistingReferences(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()

	client, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)
	airline, err := env.airlines.Create(ctx, airlineInput("Nordic Air"))
	require.NoError(t, err)
	clientID, _ := client.ID()
	airlineID, _ := airline.ID()

	_, err = env.flights.Create(ctx, flightInput(clientID, airlineID+10))
	require.ErrorIs(t, err, ErrMissingReference)
	require.ErrorIs(t, err, ErrValidation)

	// The airline ID points at a client.
	_, err = env.flights.Create(ctx, flightInput(clientID, clientID))
	require.ErrorIs(t, err, ErrMissingReference)

	flight, err := env.flights.Create(ctx, flightInput(clientID, airlineID))
	require.NoError(t, err)
	id, _ := flight.ID()
	require.Equal(t, int64(3), id)
}

func TestRecordServiceFlightNormalizesNumericStringReferences(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()

	_, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)
	_, err = env.airlines.Create(ctx, airlineInput("Nordic Air"))
	require.NoError(t, err)

	fields := flightInput(1, 2)
	fields.Set(FieldClientID, record.String("1"))
	fields.Set(FieldAirlineID, record.String(" 2 "))
	flight, err := env.flights.Create(ctx, fields)
	require.NoError(t, err)

	value, _ := flight.Get(FieldClientID)
	require.Equal(t, record.Int(1), value)
	value, _ = flight.Get(FieldAirlineID)
	require.Equal(t, record.Int(2), value)
}

func TestRecordServiceFlightDateFormats(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	_, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)
	_, err = env.airlines.Create(ctx, airlineInput("Nordic Air"))
	require.NoError(t, err)

	for _, date := range []string{"2025-03-14", "2025-03-14T09:30:00", "2025-03-14T09:30:00Z", "2025-03-14T09:30:00+02:00"} {
		fields := flightInput(1, 2)
		fields.Set(FieldDate, record.String(date))
		_, err := env.flights.Create(ctx, fields)
		require.NoErrorf(t, err, "date %s", date)
	}

	for _, date := range []string{"14/03/2025", "2025-13-01", "tomorrow"} {
		fields := flightInput(1, 2)
		fields.Set(FieldDate, record.String(date))
		_, err := env.flights.Create(ctx, fields)
		require.ErrorIsf(t, err, ErrValidation, "date %s", date)
	}
}

func TestRecordServiceGetIsScopedToKind(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	_, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)

	_, err = env.clients.Get(ctx, 1)
	require.NoError(t, err)
	_, err = env.airlines.Get(ctx, 1)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = env.clients.Get(ctx, 99)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordServiceUpdateMergesAndRevalidates(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	_, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)

	updated, err := env.clients.Update(ctx, 1, record.New(
		record.F(FieldCity, record.String("Bergen")),
		record.F(record.FieldID, record.Int(40)),
	))
	require.NoError(t, err)
	id, _ := updated.ID()
	require.Equal(t, int64(1), id)
	city, _ := updated.Get(FieldCity)
	require.Equal(t, record.String("Bergen"), city)
	name, _ := updated.Get(FieldName)
	require.Equal(t, record.String("Elias"), name)

	_, err = env.clients.Update(ctx, 1, record.New(record.F(FieldName, record.Null())))
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.clients.Update(ctx, 1, record.New(record.F(record.FieldType, record.String(record.TypeFlight))))
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.clients.Update(ctx, 1, record.New())
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.clients.Update(ctx, 2, record.New(record.F(FieldCity, record.String("Oslo"))))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordServiceConcurrentUpdatesKeepEachField(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	_, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patch := record.New(record.F(fmt.Sprintf("Note %d", i), record.String("set")))
			if _, err := env.clients.Update(ctx, 1, patch); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := env.clients.Get(ctx, 1)
	require.NoError(t, err)
	for i := 0; i < writers; i++ {
		value, ok := got.Get(fmt.Sprintf("Note %d", i))
		require.Truef(t, ok, "Note %d lost", i)
		require.Equal(t, record.String("set"), value)
	}
}

func TestRecordServiceCreateReportsExhaustedIDs(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	require.NoError(t, env.repo.Replace([]*record.Record{
		record.New(record.F(record.FieldID, record.Int(math.MaxInt64))),
	}))

	_, err := env.clients.Create(context.Background(), clientInput("Elias"))
	require.ErrorIs(t, err, storage.ErrIDExhausted)
	require.Equal(t, 1, env.repo.Len())
}

func TestRecordServiceDeleteThenNotFound(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	_, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)

	require.ErrorIs(t, env.airlines.Delete(ctx, 1), storage.ErrNotFound)
	require.NoError(t, env.clients.Delete(ctx, 1))
	require.ErrorIs(t, env.clients.Delete(ctx, 1), storage.ErrNotFound)

	created, err := env.clients.Create(ctx, clientInput("Maria"))
	require.NoError(t, err)
	id, _ := created.ID()
	require.Equal(t, int64(2), id)
}

func TestRecordServiceMutationsAreAudited(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()

	_, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)
	_, err = env.clients.Update(ctx, 1, record.New(record.F(FieldCity, record.String("Bergen"))))
	require.NoError(t, err)
	require.NoError(t, env.clients.Delete(ctx, 1))

	events, err := env.audit.List(ctx, audit.Filter{TargetID: "1"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, audit.ActionRecordCreate, events[0].Action)
	require.Equal(t, audit.ActionRecordUpdate, events[1].Action)
	require.Equal(t, audit.ActionRecordDelete, events[2].Action)
	require.Contains(t, string(events[1].Details), `"City"`)
	require.NotContains(t, string(events[0].Details), "555")

	verify, err := env.audit.Verify(ctx)
	require.NoError(t, err)
	require.True(t, verify.Valid)
}

func TestRecordServiceSaveFailureKeepsChangeInMemory(t *testing.T) {
	t.Parallel()

	parent := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o600))
	store, err := storage.NewFileStore(filepath.Join(parent, "records.json"), storage.FileStoreOptions{})
	require.NoError(t, err)
	repo := storage.NewRepository(store, nil)
	svc := NewRecordService(record.TypeClient, repo, nil, nil)

	created, err := svc.Create(context.Background(), clientInput("Elias"))
	require.Error(t, err)
	require.NotNil(t, created)
	require.Equal(t, 1, repo.Len())
}

func TestSearchServiceScopesByTypeAndMode(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	_, err := env.clients.Create(ctx, clientInput("Anna Berg"))
	require.NoError(t, err)
	_, err = env.airlines.Create(ctx, airlineInput("Berg Air"))
	require.NoError(t, err)

	search := NewSearchService(env.repo)

	found, err := search.Search(ctx, SearchRequest{Type: record.TypeClient, Field: FieldName, Value: "ANNA BERG"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = search.Search(ctx, SearchRequest{Field: "all", Value: "berg", Match: MatchContains})
	require.NoError(t, err)
	require.Len(t, found, 2)

	found, err = search.Search(ctx, SearchRequest{Type: record.TypeAirline, Value: "berg", Match: "Contains"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = search.Search(ctx, SearchRequest{Type: "boat", Value: "x"})
	require.ErrorIs(t, err, ErrUnknownType)
	_, err = search.Search(ctx, SearchRequest{Type: record.TypeClient})
	require.ErrorIs(t, err, ErrValidation)
	_, err = search.Search(ctx, SearchRequest{Value: "x", Match: "fuzzy"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestStatsServiceCountsAndCities(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	seedAgency(t, env)
	env.repo.Create(record.New(record.F("note", record.String("untyped"))))

	stats, err := NewStatsService(env.repo, env.store.Path(), true).Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, stats.TotalRecords)
	require.Equal(t, 1, stats.Clients)
	require.Equal(t, 1, stats.Airlines)
	require.Equal(t, 2, stats.Flights)
	require.Equal(t, 1, stats.Untyped)
	require.Equal(t, []string{"Oslo"}, stats.UniqueStartCities)
	require.Equal(t, []string{"Paris", "Rome"}, stats.UniqueEndCities)
	require.Equal(t, int64(6), stats.NextID)
}

func TestStatsServiceHealthReportsDataFile(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	svc := NewStatsService(env.repo, env.store.Path(), false)

	health, err := svc.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, HealthStatusHealthy, health.Status)
	require.False(t, health.FileExists)

	_, err = env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)
	health, err = svc.Health(ctx)
	require.NoError(t, err)
	require.True(t, health.FileExists)
	require.Positive(t, health.FileSize)
	require.Equal(t, 1, health.RecordCount)
}

func TestTransferExportImportReplaceRoundTrip(t *testing.T) {
	t.Parallel()

	src := newAppTestEnv(t)
	ctx := context.Background()
	seedAgency(t, src)

	var buf bytes.Buffer
	exported, err := NewTransferService(src.repo, src.audit, nil).Export(ctx, &buf)
	require.NoError(t, err)
	require.Equal(t, 4, exported.Records)

	dst := newAppTestEnv(t)
	_, err = dst.clients.Create(ctx, clientInput("Overwritten"))
	require.NoError(t, err)

	result, err := NewTransferService(dst.repo, dst.audit, nil).Import(ctx, bytes.NewReader(buf.Bytes()), ImportModeReplace)
	require.NoError(t, err)
	require.Equal(t, 4, result.Imported)
	require.Equal(t, 0, result.Skipped)
	require.Equal(t, src.repo.List(), dst.repo.List())

	events, err := dst.audit.List(ctx, audit.Filter{Action: audit.ActionStoreImport})
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestTransferImportAppendRemapsFlightReferences(t *testing.T) {
	t.Parallel()

	src := newAppTestEnv(t)
	ctx := context.Background()
	seedAgency(t, src)

	var buf bytes.Buffer
	_, err := NewTransferService(src.repo, nil, nil).Export(ctx, &buf)
	require.NoError(t, err)

	dst := newAppTestEnv(t)
	_, err = dst.clients.Create(ctx, clientInput("Existing"))
	require.NoError(t, err)

	result, err := NewTransferService(dst.repo, nil, nil).Import(ctx, bytes.NewReader(buf.Bytes()), ImportModeAppend)
	require.NoError(t, err)
	require.Equal(t, 4, result.Imported)
	require.Equal(t, int64(2), result.Remapped[1])
	require.Equal(t, int64(3), result.Remapped[2])

	flights := dst.repo.ListByType(record.TypeFlight)
	require.Len(t, flights, 2)
	for _, flight := range flights {
		clientID, _ := flight.Get(FieldClientID)
		airlineID, _ := flight.Get(FieldAirlineID)
		require.Equal(t, record.Int(2), clientID)
		require.Equal(t, record.Int(3), airlineID)
	}
	require.Equal(t, 5, dst.repo.Len())
}

func TestTransferImportSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	stream := exportStream(t,
		`{"ID": 1, "type": "client"}`,
		`not json`,
		`[1,2]`,
		``,
		`{"ID": 1, "type": "airline"}`,
	)

	env := newAppTestEnv(t)
	result, err := NewTransferService(env.repo, nil, nil).Import(context.Background(), stream, ImportModeReplace)
	require.NoError(t, err)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 3, result.Skipped)
}

func TestTransferImportAppendValidatesRecordsAndReferences(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	ctx := context.Background()
	_, err := env.clients.Create(ctx, clientInput("Existing"))
	require.NoError(t, err)
	_, err = env.airlines.Create(ctx, airlineInput("Nordic Air"))
	require.NoError(t, err)

	stream := exportStream(t,
		`{"ID": 10, "type": "client", "Name": "Ann", "Phone Number": "555-0199", "City": "Oslo", "Country": "Norway"}`,
		`{"ID": 11, "type": "client", "Name": "No phone"}`,
		`{"ID": 12, "type": "bogus", "Name": "Nobody"}`,
		`{"ID": 20, "type": "flight", "Client_ID": 10, "Airline_ID": 2, "Date": "2026-05-01", "Start City": "Oslo", "End City": "Paris"}`,
		`{"ID": 21, "type": "flight", "Client_ID": 99, "Airline_ID": 2, "Date": "2026-05-01", "Start City": "Oslo", "End City": "Rome"}`,
		`{"ID": 22, "type": "flight", "Client_ID": 11, "Airline_ID": 2, "Date": "2026-05-01", "Start City": "Oslo", "End City": "Nice"}`,
		`{"ID": 23, "type": "flight", "Client_ID": "1", "Airline_ID": 2, "Date": "2026-05-02", "Start City": "Oslo", "End City": "Bern"}`,
	)

	result, err := NewTransferService(env.repo, nil, nil).Import(ctx, stream, ImportModeAppend)
	require.NoError(t, err)
	require.Equal(t, 3, result.Imported)
	require.Equal(t, 4, result.Skipped)
	require.Equal(t, map[int64]int64{10: 3, 20: 4, 23: 5}, result.Remapped)

	flights := env.repo.ListByType(record.TypeFlight)
	require.Len(t, flights, 2)
	for _, flight := range flights {
		require.NoError(t, checkFlightReferences(env.repo, flight))
	}
	clientID, _ := flights[0].Get(FieldClientID)
	require.Equal(t, record.Int(3), clientID)
	clientID, _ = flights[1].Get(FieldClientID)
	require.Equal(t, record.Int(1), clientID)
	require.Empty(t, env.repo.ListByType("bogus"))

	fresh := storage.NewRepository(env.store, nil)
	_, err = fresh.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, fresh.Len())
}

func TestTransferImportAppendStopsWhenIDsRunOut(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	require.NoError(t, env.repo.Replace([]*record.Record{
		record.New(record.F(record.FieldID, record.Int(math.MaxInt64)), record.F(record.FieldType, record.String(record.TypeAirline)), record.F(FieldCompanyName, record.String("Last Air"))),
	}))

	stream := exportStream(t, `{"ID": 1, "type": "airline", "Company Name": "Nordic Air"}`)
	_, err := NewTransferService(env.repo, nil, nil).Import(context.Background(), stream, ImportModeAppend)
	require.ErrorIs(t, err, storage.ErrIDExhausted)

	_, statErr := os.Stat(env.store.Path())
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestTransferImportRejectsBadStreams(t *testing.T) {
	t.Parallel()

	env := newAppTestEnv(t)
	svc := NewTransferService(env.repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Import(ctx, bytes.NewReader([]byte("plain text")), ImportModeReplace)
	require.ErrorIs(t, err, ErrValidation)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err = gz.Write([]byte("{\"format\":\"something-else\",\"version\":1}\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	_, err = svc.Import(ctx, bytes.NewReader(buf.Bytes()), ImportModeReplace)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Import(ctx, bytes.NewReader(buf.Bytes()), ImportMode("merge"))
	require.ErrorIs(t, err, ErrValidation)
}

type appTestEnv struct {
	store    *storage.FileStore
	repo     *storage.Repository
	audit    *audit.Service
	clients  *RecordService
	airlines *RecordService
	flights  *RecordService
}

func newAppTestEnv(t *testing.T) *appTestEnv {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewFileStore(filepath.Join(dir, "records.json"), storage.FileStoreOptions{})
	require.NoError(t, err)
	journal, err := storage.OpenJournal(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	auditSvc, err := audit.NewService(context.Background(), journal.Audit)
	require.NoError(t, err)

	repo := storage.NewRepository(store, nil)
	return &appTestEnv{
		store:    store,
		repo:     repo,
		audit:    auditSvc,
		clients:  NewRecordService(record.TypeClient, repo, auditSvc, nil),
		airlines: NewRecordService(record.TypeAirline, repo, auditSvc, nil),
		flights:  NewRecordService(record.TypeFlight, repo, auditSvc, nil),
	}
}

// seedAgency creates client 1, airline 2 and flights 3 and 4.
func seedAgency(t *testing.T, env *appTestEnv) {
	t.Helper()
	ctx := context.Background()

	_, err := env.clients.Create(ctx, clientInput("Elias"))
	require.NoError(t, err)
	_, err = env.airlines.Create(ctx, airlineInput("Nordic Air"))
	require.NoError(t, err)

	first := flightInput(1, 2)
	first.Set(FieldEndCity, record.String("Paris"))
	_, err = env.flights.Create(ctx, first)
	require.NoError(t, err)

	second := flightInput(1, 2)
	second.Set(FieldEndCity, record.String("Rome"))
	_, err = env.flights.Create(ctx, second)
	require.NoError(t, err)
}

func exportStream(t *testing.T, lines ...string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	header, err := json.Marshal(exportHeader{Format: exportFormat, Version: exportFormatVersion, Records: len(lines)})
	require.NoError(t, err)
	_, err = gz.Write(append(header, '\n'))
	require.NoError(t, err)
	for _, line := range lines {
		_, err = gz.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	return &buf
}

func clientInput(name string) *record.Record {
	return record.New(
		record.F(FieldName, record.String(name)),
		record.F(FieldAddressLine1, record.String("1 Harbour Street")),
		record.F(FieldCity, record.String("Oslo")),
		record.F(FieldZipCode, record.String("0150")),
		record.F(FieldCountry, record.String("Norway")),
		record.F(FieldPhoneNumber, record.String("555-0100")),
	)
}

func airlineInput(name string) *record.Record {
	return record.New(record.F(FieldCompanyName, record.String(name)))
}

func flightInput(clientID, airlineID int64) *record.Record {
	return record.New(
		record.F(FieldClientID, record.Int(clientID)),
		record.F(FieldAirlineID, record.Int(airlineID)),
		record.F(FieldDate, record.String("2025-06-01")),
		record.F(FieldStartCity, record.String("Oslo")),
		record.F(FieldEndCity, record.String("Paris")),
	)
}
