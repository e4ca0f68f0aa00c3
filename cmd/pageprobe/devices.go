package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/nao1215/pageprobe/internal/browser"
)

// NewDevicesCmd creates the devices command.
func NewDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List device emulation presets",
		Long: `Devices lists the presets accepted by 'pageprobe probe --device'.

Names are matched case-insensitively.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			renderDevices(cmd.OutOrStdout(), browser.Devices())
			return nil
		},
	}
}

// newTable returns a table writer in the style used by every listing.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderDevices(w io.Writer, devices []browser.Device) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Viewport", "Scale", "Mobile", "Touch", "User Agent"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Scale", Align: text.AlignRight},
		{Name: "User Agent", WidthMax: 48},
	})

	for _, d := range devices {
		ua := d.UserAgent
		if ua == "" {
			ua = "(browser default)"
		}
		t.AppendRow(table.Row{
			d.Name,
			fmt.Sprintf("%dx%d", d.Width, d.Height),
			fmt.Sprintf("%g", d.Scale),
			yesNo(d.Mobile),
			yesNo(d.Touch),
			ua,
		})
	}
	t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
