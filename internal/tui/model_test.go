package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/amanthanvi/tripbook/internal/record"
)

func TestModelInitLoadsEveryRecordType(t *testing.T) {
	t.Parallel()

	model := loadedModel(t, newFakeClient())
	require.Equal(t, ScreenClients, model.screen)
	require.Len(t, model.lists[record.TypeClient].Items(), 1)
	require.Len(t, model.lists[record.TypeAirline].Items(), 1)
	require.Len(t, model.lists[record.TypeFlight].Items(), 1)
	require.Contains(t, model.View(), "#1 Elias")
}

func TestModelSwitchesTabsAndShowsEmptyState(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.records[record.TypeAirline] = nil
	model := loadedModel(t, client)

	next, _ := model.Update(keyRunes("f"))
	state := next.(Model)
	require.Equal(t, ScreenFlights, state.screen)
	require.Contains(t, state.View(), "Oslo -> Paris")

	next, _ = state.Update(keyRunes("a"))
	state = next.(Model)
	require.Equal(t, ScreenAirlines, state.screen)
	require.Contains(t, state.View(), "No airline records yet.")
}

func TestModelEnterShowsDetailAndEscReturns(t *testing.T) {
	t.Parallel()

	model := loadedModel(t, newFakeClient())

	next, _ := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	state := next.(Model)
	require.Equal(t, ScreenDetail, state.screen)
	require.Equal(t, int64(1), state.selectedID)
	view := state.View()
	require.Contains(t, view, "Clients 1")
	require.Contains(t, view, "Norway")

	next, _ = state.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ScreenClients, next.(Model).screen)
}

func TestModelSearchRunsAgainstCurrentType(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	model := loadedModel(t, client)

	next, _ := model.Update(keyRunes("/"))
	state := next.(Model)
	require.Equal(t, ScreenSearch, state.screen)

	// Hotkeys are plain text while searching.
	next, _ = state.Update(keyRunes("q"))
	state = next.(Model)
	require.Equal(t, ScreenSearch, state.screen)
	state.searchInput.SetValue("nobody")

	next, cmd := state.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	state = next.(Model)
	require.Equal(t, ScreenClients, state.screen)

	next, _ = state.Update(cmd())
	state = next.(Model)
	require.Equal(t, []string{record.TypeClient}, client.searchedTypes)
	require.Contains(t, state.View(), "No matching client records.")
}

func TestModelDeleteRequiresConfirmation(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	model := loadedModel(t, client)

	next, _ := model.Update(keyRunes("d"))
	state := next.(Model)
	require.Equal(t, ScreenConfirm, state.screen)
	require.Contains(t, state.View(), "Delete record 1?")

	next, _ = state.Update(keyRunes("n"))
	state = next.(Model)
	require.Equal(t, ScreenClients, state.screen)
	require.Empty(t, client.deleted)

	next, _ = state.Update(keyRunes("d"))
	next, cmd := next.(Model).Update(keyRunes("y"))
	require.NotNil(t, cmd)
	next, reload := next.(Model).Update(cmd())
	require.Equal(t, []int64{1}, client.deleted)
	require.NotNil(t, reload)

	next, _ = next.(Model).Update(reload())
	state = next.(Model)
	require.Contains(t, state.View(), "Deleted client 1")
	require.Empty(t, state.lists[record.TypeClient].Items())
}

func TestModelShowsLoadErrors(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.listErr = errors.New("data file unreadable")
	model := NewModel(Options{Client: client})

	next, _ := model.Update(model.loadCmd(record.TypeClient)())
	require.Contains(t, next.(Model).View(), "data file unreadable")
}

func TestRunRequiresTTY(t *testing.T) {
	t.Parallel()

	err := Run(Options{Client: newFakeClient(), IsTTY: func() bool { return false }})
	require.Error(t, err)
}

func loadedModel(t *testing.T, client *fakeClient) Model {
	t.Helper()

	model := NewModel(Options{Client: client})
	require.NotNil(t, model.Init())
	for _, recordType := range record.Types {
		next, _ := model.Update(model.loadCmd(recordType)())
		model = next.(Model)
	}
	return model
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

type fakeClient struct {
	records       map[string][]*record.Record
	listErr       error
	deleted       []int64
	searchedTypes []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{records: map[string][]*record.Record{
		record.TypeClient: {record.New(
			record.F(record.FieldID, record.Int(1)),
			record.F(record.FieldType, record.String(record.TypeClient)),
			record.F("Name", record.String("Elias")),
			record.F("City", record.String("Oslo")),
			record.F("Country", record.String("Norway")),
		)},
		record.TypeAirline: {record.New(
			record.F(record.FieldID, record.Int(2)),
			record.F(record.FieldType, record.String(record.TypeAirline)),
			record.F("Company Name", record.String("Nordic Air")),
		)},
		record.TypeFlight: {record.New(
			record.F(record.FieldID, record.Int(3)),
			record.F(record.FieldType, record.String(record.TypeFlight)),
			record.F("Client_ID", record.Int(1)),
			record.F("Airline_ID", record.Int(2)),
			record.F("Date", record.String("2025-06-01")),
			record.F("Start City", record.String("Oslo")),
			record.F("End City", record.String("Paris")),
		)},
	}}
}

func (f *fakeClient) List(_ context.Context, recordType string) ([]*record.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]*record.Record(nil), f.records[recordType]...), nil
}

func (f *fakeClient) Search(_ context.Context, recordType, _ string) ([]*record.Record, error) {
	f.searchedTypes = append(f.searchedTypes, recordType)
	return nil, nil
}

func (f *fakeClient) Delete(_ context.Context, recordType string, id int64) error {
	f.deleted = append(f.deleted, id)
	kept := f.records[recordType][:0]
	for _, rec := range f.records[recordType] {
		if recID, _ := rec.ID(); recID != id {
			kept = append(kept, rec)
		}
	}
	f.records[recordType] = kept
	return nil
}
