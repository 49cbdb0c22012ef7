// Package variants implements the variants command, which displays the
// configured feed variants in a formatted table.
package variants

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/retronews/retronews/internal/source"
)

// Command returns the variants command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the mirrored feed variants",
		Run: func(cmd *cobra.Command, args []string) {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)

			t.AppendHeader(table.Row{"Variant", "Title", "Feed URL", "Story URL"})
			for _, cfg := range source.All() {
				t.AppendRow(table.Row{
					cfg.Variant,
					cfg.Title,
					cfg.FeedURL,
					cfg.StoryURL,
				})
			}
			t.AppendFooter(table.Row{"Total", len(source.All()), "", ""})

			t.Render()
		},
	}
}
