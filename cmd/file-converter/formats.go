package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavel-fokin/file-converter/internal/format"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats [format]",
		Short: "Show the formats each source can be converted to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := format.NewMatrix()

			sources := m.Sources()
			if len(args) == 1 {
				sources = []format.Format{format.Normalize(args[0])}
			}

			rows := make([][]string, 0, len(sources))
			for _, source := range sources {
				targets := m.LegalTargets(source)
				names := make([]string, len(targets))
				for i, t := range targets {
					names[i] = string(t)
				}
				if len(names) == 0 {
					names = []string{"-"}
				}
				rows = append(rows, []string{string(source), strings.Join(names, ", ")})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Source", "Targets"}, rows, nil))
			return nil
		},
	}
}
