package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete artifacts older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(os.Stderr)
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.service.Sweep(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Removed", "Failed", "Reclaimed"},
				[][]string{{strconv.Itoa(result.Removed), strconv.Itoa(result.Failed), humanize.IBytes(uint64(result.Reclaimed))}},
				[]columnAlignment{alignRight, alignRight, alignRight},
			))
			if result.Failed > 0 {
				return fmt.Errorf("%d artifacts could not be removed", result.Failed)
			}
			return nil
		},
	}
}
