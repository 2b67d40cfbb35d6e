package wizard

import (
	"os"

	"github.com/tessro/cadence/internal/core"
	"golang.org/x/term"
)

// Interactive decides whether prompts may be shown and runs them.
type Interactive struct {
	enabled    bool
	searchFunc SearchFunc
	servers    []core.ServerProfile
}

// NewInteractive creates an enabled handler.
func NewInteractive() *Interactive {
	return &Interactive{enabled: true}
}

func (i *Interactive) SetEnabled(enabled bool) {
	i.enabled = enabled
}

func (i *Interactive) SetSearchFunc(fn SearchFunc) {
	i.searchFunc = fn
}

func (i *Interactive) SetServers(servers []core.ServerProfile) {
	i.servers = servers
}

// IsTerminal returns true if stdin and stdout are terminals.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// CanInteract returns true if interactive mode is available.
func (i *Interactive) CanInteract() bool {
	return i.enabled && IsTerminal()
}

// PromptSearch launches the search if interactive mode is available.
// Returns nil if cancelled or not interactive.
func (i *Interactive) PromptSearch() (*SearchResult, error) {
	if !i.CanInteract() || i.searchFunc == nil {
		return nil, nil
	}
	return RunSearch(i.searchFunc)
}

// PromptServer launches the server picker. A single server is returned
// without prompting.
func (i *Interactive) PromptServer() (*core.ServerProfile, error) {
	switch {
	case len(i.servers) == 1:
		return &i.servers[0], nil
	case !i.CanInteract() || len(i.servers) == 0:
		return nil, nil
	}
	return RunServerPicker(i.servers)
}
