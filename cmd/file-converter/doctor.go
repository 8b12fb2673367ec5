package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavel-fokin/file-converter/internal/deps"
)

func newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external converters are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}

			results := deps.Check(cfg.Tools(), nil)
			fmt.Fprintln(cmd.OutOrStdout(), renderDoctor(results))
			if !deps.AllPassed(results) {
				return errors.New("some converters are missing; their conversions will fail")
			}
			return nil
		},
	}
}

func renderDoctor(results []deps.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		path := r.Path
		if path == "" {
			path = "-"
		}
		rows = append(rows, []string{r.Name, r.Binary, r.Detail, path, strings.Join(r.Backends, ", ")})
	}
	return renderTable([]string{"Tool", "Binary", "Status", "Path", "Backends"}, rows, nil)
}
