package wizard

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/cadence/internal/core"
)

// ServerModel is the bubbletea model for the server picker.
type ServerModel struct {
	servers  []core.ServerProfile
	cursor   int
	selected *core.ServerProfile
	width    int
	height   int
}

var (
	serverTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	serverItemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	serverSelectedStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(lipgloss.Color("237"))

	serverDefaultStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("82"))

	serverDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// NewServerModel creates a picker over servers.
func NewServerModel(servers []core.ServerProfile) ServerModel {
	return ServerModel{
		servers: servers,
		width:   80,
		height:  20,
	}
}

func (m ServerModel) Init() tea.Cmd {
	return nil
}

func (m ServerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit

		case "enter", " ":
			if m.cursor < len(m.servers) {
				m.selected = &m.servers[m.cursor]
				return m, tea.Quit
			}

		case "up", "k", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j", "ctrl+n":
			if m.cursor < len(m.servers)-1 {
				m.cursor++
			}

		case "home", "g":
			m.cursor = 0

		case "end", "G":
			if len(m.servers) > 0 {
				m.cursor = len(m.servers) - 1
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m ServerModel) View() string {
	var b strings.Builder

	b.WriteString(serverTitleStyle.Render("🎵 Select Server"))
	b.WriteString("\n\n")

	if len(m.servers) == 0 {
		b.WriteString(serverDimStyle.Render("No servers found"))
		b.WriteString("\n\n")
		b.WriteString(serverDimStyle.Render("Make sure MPD is running with zeroconf enabled, or add a profile by hand."))
	} else {
		for i, s := range m.servers {
			var line strings.Builder
			if s.AutoConnect {
				line.WriteString(serverDefaultStyle.Render("● "))
			} else {
				line.WriteString(serverDimStyle.Render("○ "))
			}
			line.WriteString(s.Name)
			line.WriteString(" " + serverDimStyle.Render("("+s.Address()+")"))

			if i == m.cursor {
				b.WriteString(serverSelectedStyle.Render("▸ " + line.String()))
			} else {
				b.WriteString(serverItemStyle.Render("  " + line.String()))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(serverDimStyle.Render("↑/↓ navigate • enter select • esc quit"))
	b.WriteString("\n")
	b.WriteString(serverDimStyle.Render("● auto-connect  ○ other"))

	return b.String()
}

// Selected returns the chosen server, or nil if the picker was dismissed.
func (m ServerModel) Selected() *core.ServerProfile {
	return m.selected
}

// RunServerPicker runs the picker and returns the chosen server.
func RunServerPicker(servers []core.ServerProfile) (*core.ServerProfile, error) {
	p := tea.NewProgram(NewServerModel(servers), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	return finalModel.(ServerModel).Selected(), nil
}
