package wizard

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SearchType selects which tag a search matches.
type SearchType int

const (
	SearchAny SearchType = iota
	SearchTitles
	SearchAlbums
	SearchArtists
)

var searchTabs = []string{"Any", "Titles", "Albums", "Artists"}

// Tag returns the server tag name searched for t.
func (t SearchType) Tag() string {
	switch t {
	case SearchTitles:
		return "title"
	case SearchAlbums:
		return "album"
	case SearchArtists:
		return "artist"
	default:
		return "any"
	}
}

// SearchResult is one song in the result list.
type SearchResult struct {
	URI      string
	Title    string
	Subtitle string
}

// SearchFunc performs a search.
type SearchFunc func(query string, searchType SearchType) ([]SearchResult, error)

// SearchModel is the bubbletea model for the library search.
type SearchModel struct {
	input      textinput.Model
	results    []SearchResult
	cursor     int
	searchType SearchType
	searchFunc SearchFunc
	selected   *SearchResult
	err        error
	debounce   time.Duration
	lastQuery  string
	searching  bool
	width      int
	height     int
}

var (
	searchTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	searchTabStyle = lipgloss.NewStyle().
			Padding(0, 2)

	searchActiveTabStyle = lipgloss.NewStyle().
				Padding(0, 2).
				Background(lipgloss.Color("205")).
				Foreground(lipgloss.Color("0"))

	searchResultStyle = lipgloss.NewStyle().
				PaddingLeft(2)

	searchSelectedStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(lipgloss.Color("237"))

	searchSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243"))
)

// NewSearchModel creates a search model backed by searchFunc.
func NewSearchModel(searchFunc SearchFunc) SearchModel {
	ti := textinput.New()
	ti.Placeholder = "Search titles, albums, artists..."
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 50

	return SearchModel{
		input:      ti,
		searchFunc: searchFunc,
		debounce:   300 * time.Millisecond,
		searchType: SearchAny,
		width:      80,
		height:     20,
	}
}

func (m SearchModel) Init() tea.Cmd {
	return textinput.Blink
}

// debounceMsg is sent after the debounce period.
type debounceMsg struct {
	query string
}

type searchResultsMsg struct {
	query   string
	results []SearchResult
	err     error
}

func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			if m.cursor < len(m.results) {
				m.selected = &m.results[m.cursor]
				return m, tea.Quit
			}

		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.cursor < len(m.results)-1 {
				m.cursor++
			}
			return m, nil

		case "tab":
			m.searchType = (m.searchType + 1) % SearchType(len(searchTabs))
			return m.search(m.input.Value())

		case "shift+tab":
			if m.searchType == 0 {
				m.searchType = SearchType(len(searchTabs) - 1)
			} else {
				m.searchType--
			}
			return m.search(m.input.Value())
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4

	case debounceMsg:
		if msg.query == m.input.Value() && msg.query != m.lastQuery {
			m.lastQuery = msg.query
			return m.search(msg.query)
		}
		return m, nil

	case searchResultsMsg:
		// Results for a query the user has since edited are stale.
		if msg.query != m.input.Value() {
			return m, nil
		}
		m.searching = false
		m.results = msg.results
		m.err = msg.err
		m.cursor = 0
		return m, nil
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	if m.input.Value() != m.lastQuery {
		query := m.input.Value()
		cmds = append(cmds, tea.Tick(m.debounce, func(time.Time) tea.Msg {
			return debounceMsg{query: query}
		}))
	}

	return m, tea.Batch(cmds...)
}

func (m SearchModel) search(query string) (tea.Model, tea.Cmd) {
	if query == "" {
		m.results = nil
		m.err = nil
		return m, nil
	}
	m.searching = true
	fn, st := m.searchFunc, m.searchType
	return m, func() tea.Msg {
		results, err := fn(query, st)
		return searchResultsMsg{query: query, results: results, err: err}
	}
}

func (m SearchModel) View() string {
	var b strings.Builder

	b.WriteString(searchTitleStyle.Render("🔍 Search Library"))
	b.WriteString("\n\n")

	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	for i, tab := range searchTabs {
		if SearchType(i) == m.searchType {
			b.WriteString(searchActiveTabStyle.Render(tab))
		} else {
			b.WriteString(searchTabStyle.Render(tab))
		}
	}
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("Error: " + m.err.Error()))
	case m.searching:
		b.WriteString("Searching...")
	case len(m.results) == 0 && m.input.Value() != "":
		b.WriteString("No results found")
	default:
		maxResults := m.height - 10
		if maxResults < 5 {
			maxResults = 5
		}
		for i, result := range m.results {
			if i >= maxResults {
				b.WriteString(searchSubtitleStyle.Render("  ...and more"))
				break
			}

			line := result.Title
			if result.Subtitle != "" {
				line += " " + searchSubtitleStyle.Render(result.Subtitle)
			}

			if i == m.cursor {
				b.WriteString(searchSelectedStyle.Render("▸ " + line))
			} else {
				b.WriteString(searchResultStyle.Render("  " + line))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(searchSubtitleStyle.Render("↑/↓ navigate • tab switch tag • enter add to queue • esc quit"))

	return b.String()
}

// Selected returns the chosen result, or nil if none.
func (m SearchModel) Selected() *SearchResult {
	return m.selected
}

// RunSearch runs the search and returns the chosen result.
func RunSearch(searchFunc SearchFunc) (*SearchResult, error) {
	p := tea.NewProgram(NewSearchModel(searchFunc), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(SearchModel).Selected(), nil
}
