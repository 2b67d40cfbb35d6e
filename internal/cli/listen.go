package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/browser"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Open the server's HTTP stream",
	Long: `Open the stream URL of the selected profile (stream_url) with the
default application, for servers that have an httpd output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := resolveProfile(cmd.Context())
		if err != nil {
			return err
		}
		if p.StreamURL == "" {
			return fmt.Errorf("profile %q has no stream URL. Set one with 'cadence profile add %s --host %s --stream-url <url>'", p.Name, p.Name, p.Host)
		}
		if err := browser.Open(p.StreamURL); err != nil {
			return err
		}
		if JSONOutput() {
			return printJSON(map[string]string{"status": "opened", "url": p.StreamURL})
		}
		fmt.Printf("Opened %s\n", p.StreamURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
