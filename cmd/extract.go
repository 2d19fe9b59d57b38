package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <path>",
	Short: "Print the text extracted from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("extract"); err != nil {
			return err
		}
		ext, err := initExtractor(cfg)
		if err != nil {
			return err
		}
		return extractFile(cmd.Context(), cmd.OutOrStdout(), ext, args[0])
	},
}

func extractFile(ctx context.Context, w io.Writer, ext fileExtractor, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "read %s", path)
	}
	text, err := ext.ProcessBytes(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
