package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/profile"
	"github.com/tessro/cadence/internal/wizard"
	"golang.org/x/term"
)

var (
	profileAddHost        string
	profileAddPort        int
	profileAddStreamURL   string
	profileAddAuto        bool
	profileAddAskPassword bool
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Aliases: []string{"profiles"},
	Short:   "Manage saved servers",
	Long: `Saved servers live in the profile database ([store] path). Profiles
from [[profiles]] in the config file are listed too but are read-only.`,
	RunE: runProfileList,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved servers",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show the server a command would connect to",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileShow,
}

var profileAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Save a server",
	Long: `Save a server profile. Without --host, a form asks for the details
when running in a terminal.

Examples:
  cadence profile add den --host 192.168.1.20 --auto-connect
  cadence profile add kitchen --host kitchen.local --ask-password
  cadence profile add`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfileAdd,
}

var profileRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved server",
	Args:    cobra.ExactArgs(1),
	RunE:    runProfileRemove,
}

var profileUseCmd = &cobra.Command{
	Use:   "use [name]",
	Short: "Make a saved server the auto-connect default",
	Long:  `Mark a saved server as the auto-connect default. Without a name, pick one interactively.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileUse,
}

func init() {
	f := profileAddCmd.Flags()
	f.StringVar(&profileAddHost, "host", "", "server host")
	f.IntVar(&profileAddPort, "port", core.DefaultPort, "server port")
	f.StringVar(&profileAddStreamURL, "stream-url", "", "HTTP stream URL served by this server")
	f.BoolVar(&profileAddAuto, "auto-connect", false, "connect to this server by default")
	f.BoolVar(&profileAddAskPassword, "ask-password", false, "prompt for a password")

	profileCmd.AddCommand(profileListCmd, profileShowCmd, profileAddCmd, profileRemoveCmd, profileUseCmd)
	rootCmd.AddCommand(profileCmd)
}

type profileRow struct {
	core.ServerProfile
	Source string `json:"source"`
}

func runProfileList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var rows []profileRow
	for _, p := range cfg.Profiles {
		rows = append(rows, profileRow{p, "config"})
	}

	if _, err := os.Stat(cfg.Store.Path); err == nil {
		store, err := profile.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		saved, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}
		for _, p := range saved {
			rows = append(rows, profileRow{p, "store"})
		}
	}

	if JSONOutput() {
		if rows == nil {
			rows = []profileRow{}
		}
		return printJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println("No saved servers. Add one with 'cadence profile add' or find one with 'cadence discover'.")
		return nil
	}
	t := NewTable("", "NAME", "ADDRESS", "SOURCE")
	for _, r := range rows {
		t.Row(StatusIcon(r.AutoConnect), r.Name, r.Address(), r.Source)
	}
	t.Flush()
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var (
		p   core.ServerProfile
		err error
	)
	if len(args) == 1 {
		chain, closeFn, cerr := providers()
		if cerr != nil {
			return cerr
		}
		defer closeFn()
		p, err = chain.Get(ctx, args[0])
	} else {
		p, err = resolveProfile(ctx)
	}
	if err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(p)
	}
	t := NewTable()
	t.Row("name", p.Name)
	t.Row("address", p.Address())
	if p.Password != "" {
		t.Row("password", "set")
	}
	if p.StreamURL != "" {
		t.Row("stream", p.StreamURL)
	}
	t.Row("auto-connect", onOff(p.AutoConnect))
	t.Flush()
	return nil
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	p := core.ServerProfile{
		Host:        profileAddHost,
		Port:        profileAddPort,
		StreamURL:   profileAddStreamURL,
		AutoConnect: profileAddAuto,
	}
	if len(args) == 1 {
		p.Name = args[0]
	}

	if p.Host == "" {
		if !wizard.IsTerminal() {
			return fmt.Errorf("--host is required when not running interactively")
		}
		var err error
		if p, err = profileForm(p); err != nil {
			return err
		}
	}
	if p.Name == "" {
		p.Name = p.Host
	}

	if profileAddAskPassword {
		pw, err := readPassword(fmt.Sprintf("Password for %s: ", p.Name))
		if err != nil {
			return err
		}
		p.Password = pw
	}

	return saveProfile(cmd.Context(), p)
}

func saveProfile(ctx context.Context, p core.ServerProfile) error {
	store, err := profile.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return done("saved", "Saved %s (%s)", p.Name, p.Address())
}

// profileForm asks for the fields of p that are still empty.
func profileForm(p core.ServerProfile) (core.ServerProfile, error) {
	port := strconv.Itoa(p.Port)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("How this server is shown and selected with --profile").
				Value(&p.Name),
			huh.NewInput().
				Title("Host").
				Value(&p.Host).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("host is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Port").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 || n > 65535 {
						return errors.New("port must be 1-65535")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Connect to this server by default?").
				Value(&p.AutoConnect),
		),
	)
	if err := form.Run(); err != nil {
		return p, fmt.Errorf("cancelled: %w", err)
	}
	p.Port, _ = strconv.Atoi(port)
	return p, nil
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("cannot prompt for a password without a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func runProfileRemove(cmd *cobra.Command, args []string) error {
	store, err := profile.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete %q: %w", args[0], err)
	}
	return done("deleted", "Deleted %s", args[0])
}

func runProfileUse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := profile.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var p core.ServerProfile
	if len(args) == 1 {
		if p, err = store.Get(ctx, args[0]); err != nil {
			return fmt.Errorf("profile %q: %w", args[0], err)
		}
	} else {
		saved, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}
		in := wizard.NewInteractive()
		in.SetServers(saved)
		sel, err := in.PromptServer()
		if err != nil {
			return err
		}
		if sel == nil {
			return fmt.Errorf("no profile selected")
		}
		p = *sel
	}

	p.AutoConnect = true
	if err := store.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return done("updated", "%s is now the default server", p.Name)
}
