package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/discovery"
	"github.com/tessro/cadence/internal/wizard"
)

var (
	discoverTimeout time.Duration
	discoverSave    bool
	discoverAuto    bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover [name]",
	Short: "Find servers on the local network",
	Long: `Browse mDNS for servers announcing _mpd._tcp.

With --save, the named server (or one picked interactively) is stored as a
profile.

Examples:
  cadence discover
  cadence discover --save --auto-connect
  cadence discover "Music Player @ den" --save`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 0, "how long to browse (default: [discovery] timeout)")
	discoverCmd.Flags().BoolVar(&discoverSave, "save", false, "save a server as a profile")
	discoverCmd.Flags().BoolVar(&discoverAuto, "auto-connect", false, "with --save, make it the default server")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	timeout := discoverTimeout
	if timeout == 0 {
		timeout = cfg.Discovery.TimeoutDuration()
	}
	d := discovery.New(timeout)

	if !JSONOutput() {
		fmt.Printf("Searching for %s...\n", timeout)
	}
	servers, err := d.Discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if discoverSave {
		return saveDiscovered(cmd, d, servers, args)
	}

	if JSONOutput() {
		if servers == nil {
			servers = []*discovery.Server{}
		}
		return printJSON(servers)
	}
	if len(servers) == 0 {
		fmt.Println("No servers found")
		return nil
	}
	t := NewTable("NAME", "HOST", "ADDRESS")
	for _, s := range servers {
		t.Row(s.Instance, s.Host, s.IP+":"+strconv.Itoa(s.Port))
	}
	t.Flush()
	return nil
}

func saveDiscovered(cmd *cobra.Command, d *discovery.Discovery, servers []*discovery.Server, args []string) error {
	var p *core.ServerProfile
	if len(args) == 1 {
		srv := d.Lookup(args[0])
		if srv == nil {
			return fmt.Errorf("server %q not found", args[0])
		}
		sp := srv.Profile()
		p = &sp
	} else {
		profiles := make([]core.ServerProfile, len(servers))
		for i, s := range servers {
			profiles[i] = s.Profile()
		}
		in := wizard.NewInteractive()
		in.SetServers(profiles)
		sel, err := in.PromptServer()
		if err != nil {
			return err
		}
		p = sel
	}
	if p == nil {
		return fmt.Errorf("no server selected")
	}
	p.AutoConnect = discoverAuto
	return saveProfile(cmd.Context(), *p)
}
