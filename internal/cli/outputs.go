package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/mpd/client"
)

var outputsCmd = &cobra.Command{
	Use:     "outputs",
	Aliases: []string{"output"},
	Short:   "List and switch audio outputs",
	RunE:    runOutputsList,
}

func init() {
	for _, a := range []struct {
		name, short, status string
		fn                  func(*client.Client, context.Context, int) error
	}{
		{"enable", "Enable an output", "enabled", (*client.Client).EnableOutput},
		{"disable", "Disable an output", "disabled", (*client.Client).DisableOutput},
		{"toggle", "Toggle an output", "toggled", (*client.Client).ToggleOutput},
	} {
		outputsCmd.AddCommand(outputCommand(a.name, a.short, a.status, a.fn))
	}
	rootCmd.AddCommand(outputsCmd)
}

func runOutputsList(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		outputs, err := c.Outputs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list outputs: %w", err)
		}
		if JSONOutput() {
			return printJSON(outputs)
		}
		if len(outputs) == 0 {
			fmt.Println("No outputs")
			return nil
		}
		t := NewTable("", "ID", "NAME", "PLUGIN")
		for _, o := range outputs {
			t.Row(StatusIcon(o.Enabled), strconv.Itoa(o.ID), o.Name, o.Plugin)
		}
		t.Flush()
		return nil
	})
}

// outputCommand builds `outputs <name> <id|name>`.
func outputCommand(name, short, status string, fn func(*client.Client, context.Context, int) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id|name>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				outputs, err := c.Outputs(ctx)
				if err != nil {
					return fmt.Errorf("failed to list outputs: %w", err)
				}
				o, err := findOutput(outputs, args[0])
				if err != nil {
					return err
				}
				if err := fn(c, ctx, o.ID); err != nil {
					return fmt.Errorf("failed to %s output: %w", name, err)
				}
				return done(status, "%s %s", strings.ToUpper(status[:1])+status[1:], o.Name)
			})
		},
	}
}

// findOutput matches an output by id, then by case-insensitive name.
func findOutput(outputs []core.Output, ref string) (core.Output, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		for _, o := range outputs {
			if o.ID == id {
				return o, nil
			}
		}
	}
	for _, o := range outputs {
		if strings.EqualFold(o.Name, ref) {
			return o, nil
		}
	}
	return core.Output{}, fmt.Errorf("output %q not found", ref)
}
