package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kernel/extkit/pkg/crx"
	"github.com/kernel/extkit/pkg/extensions"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ExtractInput holds input for extracting an archive into a directory.
type ExtractInput struct {
	Path string
	Dest string
}

// Extract unpacks a ZIP or CRX file into a directory. Entries under
// _metadata/ are skipped.
func (a ArcCmd) Extract(ctx context.Context, in ExtractInput) error {
	data, err := readInput(in.Path)
	if err != nil {
		return err
	}
	payload, err := crx.Unwrap(data)
	if err != nil {
		return err
	}

	dest, err := filepath.Abs(in.Dest)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	pterm.Info.Printf("Extracting %s...\n", in.Path)
	n, err := extensions.Extract(ctx, payload, dest, a.workers)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", in.Path, err)
	}
	pterm.Success.Printf("Extracted %d files to %s\n", n, dest)
	return nil
}

// UnwrapInput holds input for stripping a CRX header.
type UnwrapInput struct {
	Path   string
	Output string
}

// Unwrap writes the ZIP payload of a CRX file.
func (a ArcCmd) Unwrap(ctx context.Context, in UnwrapInput) error {
	data, err := readInput(in.Path)
	if err != nil {
		return err
	}
	payload, err := crx.Unwrap(data)
	if err != nil {
		return err
	}

	output := in.Output
	if output == "" {
		output = strings.TrimSuffix(in.Path, filepath.Ext(in.Path)) + ".zip"
	}
	if output == in.Path {
		return fmt.Errorf("refusing to overwrite input %s; pass -o", in.Path)
	}
	if err := os.WriteFile(output, payload, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	pterm.Success.Printf("Wrote %s (%d header bytes removed)\n", output, len(data)-len(payload))
	return nil
}

var extractCmd = &cobra.Command{
	Use:   "extract <file> <dir>",
	Short: "Extract a ZIP or CRX file into a directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runExtract,
}

var unwrapCmd = &cobra.Command{
	Use:   "unwrap <file.crx>",
	Short: "Strip the CRX header and write the ZIP payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnwrap,
}

func init() {
	unwrapCmd.Flags().StringP("output", "o", "", "Output path (default <file>.zip)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	a, err := newArcCmd(cmd)
	if err != nil {
		return err
	}
	return a.Extract(cmd.Context(), ExtractInput{Path: args[0], Dest: args[1]})
}

func runUnwrap(cmd *cobra.Command, args []string) error {
	a, err := newArcCmd(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	return a.Unwrap(cmd.Context(), UnwrapInput{Path: args[0], Output: output})
}
