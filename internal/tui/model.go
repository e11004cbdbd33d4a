package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amanthanvi/tripbook/internal/record"
)

type Screen string

const (
	ScreenClients  Screen = "clients"
	ScreenAirlines Screen = "airlines"
	ScreenFlights  Screen = "flights"
	ScreenDetail   Screen = "detail"
	ScreenSearch   Screen = "search"
	ScreenConfirm  Screen = "confirm"
)

// Client is the record access the browser needs.
type Client interface {
	List(ctx context.Context, recordType string) ([]*record.Record, error)
	Search(ctx context.Context, recordType, value string) ([]*record.Record, error)
	Delete(ctx context.Context, recordType string, id int64) error
}

type Options struct {
	Client Client
	IsTTY  func() bool
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	tabsStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	keyStyle    = lipgloss.NewStyle().Bold(true).Width(16)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var listScreens = map[string]Screen{
	record.TypeClient:  ScreenClients,
	record.TypeAirline: ScreenAirlines,
	record.TypeFlight:  ScreenFlights,
}

type Model struct {
	client Client

	screen   Screen
	previous Screen
	err      string
	status   string

	searchInput textinput.Model
	lists       map[string]*list.Model
	records     map[int64]*record.Record

	selectedID int64
	searching  bool
}

type loadedMsg struct {
	recordType string
	records    []*record.Record
	err        error
}

type deletedMsg struct {
	recordType string
	id         int64
	err        error
}

func Run(opts Options) error {
	if opts.IsTTY != nil && !opts.IsTTY() {
		return fmt.Errorf("tui: requires a tty")
	}
	_, err := tea.NewProgram(NewModel(opts)).Run()
	return err
}

func NewModel(opts Options) Model {
	searchInput := textinput.New()
	searchInput.Placeholder = "Search current list"

	delegate := list.NewDefaultDelegate()
	lists := map[string]*list.Model{}
	for _, recordType := range record.Types {
		l := list.New([]list.Item{}, delegate, 0, 0)
		l.Title = titleFor(recordType)
		l.SetShowStatusBar(false)
		l.SetFilteringEnabled(false)
		l.SetShowHelp(false)
		l.SetSize(80, 20)
		lists[recordType] = &l
	}

	return Model{
		client:      opts.Client,
		screen:      ScreenClients,
		searchInput: searchInput,
		lists:       lists,
		records:     map[int64]*record.Record{},
	}
}

func (m Model) Init() tea.Cmd {
	if m.client == nil {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(record.Types))
	for _, recordType := range record.Types {
		cmds = append(cmds, m.loadCmd(recordType))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.screen == ScreenSearch {
			return m.updateSearch(typed)
		}
		return m.updateKeys(typed)
	case tea.WindowSizeMsg:
		height := typed.Height - 4
		if height < 1 {
			height = 1
		}
		for _, l := range m.lists {
			l.SetSize(typed.Width, height)
		}
		return m, nil
	case loadedMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			return m, nil
		}
		m.populate(typed.recordType, typed.records)
		return m, nil
	case deletedMsg:
		if typed.err != nil {
			m.err = typed.err.Error()
			return m, nil
		}
		m.err = ""
		m.status = fmt.Sprintf("Deleted %s %d", typed.recordType, typed.id)
		delete(m.records, typed.id)
		return m, m.loadCmd(typed.recordType)
	}

	if l := m.currentList(); l != nil {
		updated, cmd := l.Update(msg)
		*l = updated
		return m, cmd
	}
	return m, nil
}

func (m Model) updateKeys(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "q":
		return m, tea.Quit
	case "c":
		m.switchTo(ScreenClients)
		return m, nil
	case "a":
		m.switchTo(ScreenAirlines)
		return m, nil
	case "f":
		m.switchTo(ScreenFlights)
		return m, nil
	case "r":
		if recordType := m.currentType(); recordType != "" {
			m.searching = false
			m.status = ""
			return m, m.loadCmd(recordType)
		}
		return m, nil
	case "/":
		if m.currentType() == "" {
			return m, nil
		}
		m.previous = m.screen
		m.screen = ScreenSearch
		m.searchInput.SetValue("")
		m.searchInput.Focus()
		return m, textinput.Blink
	case "enter":
		if m.screen == ScreenConfirm {
			return m.confirmDelete()
		}
		if item, ok := m.selectedItem(); ok {
			m.selectedID = item.id
			m.previous = m.screen
			m.screen = ScreenDetail
		}
		return m, nil
	case "d":
		item, ok := m.selectedItem()
		if m.screen == ScreenDetail {
			item, ok = recordItem{id: m.selectedID}, m.selectedID > 0
		}
		if !ok {
			return m, nil
		}
		if m.screen != ScreenDetail {
			m.previous = m.screen
		}
		m.selectedID = item.id
		m.screen = ScreenConfirm
		return m, nil
	case "y":
		if m.screen == ScreenConfirm {
			return m.confirmDelete()
		}
	case "n":
		if m.screen == ScreenConfirm {
			m.screen = m.previous
			return m, nil
		}
	case "esc":
		switch m.screen {
		case ScreenDetail, ScreenConfirm:
			m.screen = m.previous
			if m.screen == "" {
				m.screen = ScreenClients
			}
			return m, nil
		}
	}

	if l := m.currentList(); l != nil {
		updated, cmd := l.Update(key)
		*l = updated
		return m, cmd
	}
	return m, nil
}

func (m Model) updateSearch(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "esc":
		m.screen = m.previous
		m.searchInput.Blur()
		return m, nil
	case "enter":
		m.screen = m.previous
		m.searchInput.Blur()
		value := strings.TrimSpace(m.searchInput.Value())
		recordType := m.currentType()
		if value == "" {
			m.searching = false
			return m, m.loadCmd(recordType)
		}
		m.searching = true
		m.status = fmt.Sprintf("Results for %q", value)
		return m, m.searchCmd(recordType, value)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(key)
	return m, cmd
}

func (m Model) confirmDelete() (tea.Model, tea.Cmd) {
	rec, ok := m.records[m.selectedID]
	m.screen = m.previous
	if !ok {
		m.err = fmt.Sprintf("record %d is no longer loaded", m.selectedID)
		return m, nil
	}
	return m, m.deleteCmd(rec.Type(), m.selectedID)
}

func (m Model) View() string {
	tabs := tabsStyle.Render("[c] Clients  [a] Airlines  [f] Flights  [/] Search  [r] Reload  [d] Delete  [q] Quit") + "\n"
	if m.err != "" {
		tabs += errorStyle.Render("Error: "+m.err) + "\n"
	}
	if m.status != "" {
		tabs += statusStyle.Render(m.status) + "\n"
	}

	switch m.screen {
	case ScreenDetail:
		return tabs + "\n" + m.renderDetail()
	case ScreenConfirm:
		return tabs + "\n" + fmt.Sprintf("Delete record %d?", m.selectedID) + "\n\n[y] Confirm  [n]/[esc] Cancel"
	case ScreenSearch:
		return tabs + "\n" + titleStyle.Render("Search "+titleFor(typeForScreen(m.previous))) + "\n\n" + m.searchInput.View()
	}

	recordType := m.currentType()
	l := m.lists[recordType]
	if l == nil {
		return tabs
	}
	if len(l.Items()) == 0 {
		if m.searching {
			return tabs + "\n" + renderEmptyState("No matching "+recordType+" records.", "Press 'r' to show everything again.")
		}
		return tabs + "\n" + renderEmptyState("No "+recordType+" records yet.", "Add one with `tripbook "+recordType+" add --set ...`")
	}
	return tabs + "\n" + l.View()
}

func renderEmptyState(title, guidance string) string {
	return title + "\n" + guidance
}

func (m Model) renderDetail() string {
	rec, ok := m.records[m.selectedID]
	if !ok {
		return "Record detail unavailable"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %d", titleFor(rec.Type()), m.selectedID)))
	b.WriteString("\n\n")
	rec.Each(func(key string, value record.Value) {
		b.WriteString(keyStyle.Render(key))
		b.WriteString(" ")
		b.WriteString(value.Text())
		b.WriteString("\n")
	})
	b.WriteString("\nPress ESC to go back.")
	return b.String()
}

func (m *Model) switchTo(screen Screen) {
	m.screen = screen
	m.previous = ""
	m.err = ""
}

func (m Model) currentType() string {
	screen := m.screen
	if screen == ScreenSearch || screen == ScreenDetail || screen == ScreenConfirm {
		screen = m.previous
	}
	return typeForScreen(screen)
}

func (m Model) currentList() *list.Model {
	switch m.screen {
	case ScreenClients, ScreenAirlines, ScreenFlights:
		return m.lists[typeForScreen(m.screen)]
	}
	return nil
}

func (m Model) selectedItem() (recordItem, bool) {
	l := m.currentList()
	if l == nil {
		return recordItem{}, false
	}
	item, ok := l.SelectedItem().(recordItem)
	return item, ok
}

func (m Model) loadCmd(recordType string) tea.Cmd {
	return func() tea.Msg {
		records, err := m.client.List(context.Background(), recordType)
		return loadedMsg{recordType: recordType, records: records, err: err}
	}
}

func (m Model) searchCmd(recordType, value string) tea.Cmd {
	return func() tea.Msg {
		records, err := m.client.Search(context.Background(), recordType, value)
		return loadedMsg{recordType: recordType, records: records, err: err}
	}
}

func (m Model) deleteCmd(recordType string, id int64) tea.Cmd {
	return func() tea.Msg {
		err := m.client.Delete(context.Background(), recordType, id)
		return deletedMsg{recordType: recordType, id: id, err: err}
	}
}

func (m *Model) populate(recordType string, records []*record.Record) {
	l := m.lists[recordType]
	if l == nil {
		return
	}
	items := make([]list.Item, 0, len(records))
	for _, rec := range records {
		id, ok := rec.ID()
		if !ok {
			continue
		}
		m.records[id] = rec
		items = append(items, newRecordItem(id, rec))
	}
	l.SetItems(items)
}

func typeForScreen(screen Screen) string {
	for recordType, s := range listScreens {
		if s == screen {
			return recordType
		}
	}
	return ""
}

func titleFor(recordType string) string {
	switch recordType {
	case record.TypeClient:
		return "Clients"
	case record.TypeAirline:
		return "Airlines"
	case record.TypeFlight:
		return "Flights"
	default:
		return "Records"
	}
}

type recordItem struct {
	id          int64
	title       string
	description string
}

func newRecordItem(id int64, rec *record.Record) recordItem {
	field := func(key string) string {
		value, _ := rec.Get(key)
		return value.Text()
	}

	item := recordItem{id: id}
	switch rec.Type() {
	case record.TypeClient:
		item.title = fmt.Sprintf("#%d %s", id, field("Name"))
		item.description = strings.Trim(field("City")+", "+field("Country"), ", ")
	case record.TypeAirline:
		item.title = fmt.Sprintf("#%d %s", id, field("Company Name"))
	case record.TypeFlight:
		item.title = fmt.Sprintf("#%d %s -> %s", id, field("Start City"), field("End City"))
		item.description = fmt.Sprintf("date=%s client=%s airline=%s", field("Date"), field("Client_ID"), field("Airline_ID"))
	default:
		item.title = fmt.Sprintf("#%d", id)
	}
	return item
}

func (i recordItem) Title() string       { return i.title }
func (i recordItem) Description() string { return i.description }
func (i recordItem) FilterValue() string { return i.title + " " + i.description }
