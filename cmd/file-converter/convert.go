package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newConvertCommand() *cobra.Command {
	var (
		target string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			dispatcher, err := newDispatcher(cfg, logger, nil)
			if err != nil {
				return err
			}

			input, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			out, err := filepath.Abs(outDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			output, err := dispatcher.Dispatch(cmd.Context(), input, out, target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "to", "t", "", "Target format")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
