package extensions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kernel/extkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// PackInput holds input for packing an extension directory.
type PackInput struct {
	// Source is a directory, or the id of a cached extension.
	Source          string
	Output          string
	ExcludeDefaults bool
	Store           bool
	Verbose         bool
}

// Pack writes an extension directory to a ZIP archive.
func (e ExtCmd) Pack(ctx context.Context, in PackInput) error {
	srcDir, err := e.resolveSource(in.Source)
	if err != nil {
		return err
	}

	output := in.Output
	if output == "" {
		output = filepath.Base(srcDir) + ".zip"
	}
	absOutput, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	pterm.Info.Printf("Packing %s...\n", srcDir)
	stats, err := util.PackDirectoryToFile(srcDir, absOutput, &util.PackOptions{
		ExcludeDefaults: in.ExcludeDefaults,
		Store:           in.Store,
		Verbose:         in.Verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", srcDir, err)
	}

	if in.Verbose {
		for _, p := range stats.ExcludedPaths {
			pterm.Debug.Printf("excluded %s\n", p)
		}
	}
	pterm.Success.Printf("Wrote %s (%d files, %s; %d excluded, %s)\n",
		absOutput, stats.FilesIncluded, util.FormatBytes(stats.BytesIncluded),
		stats.FilesExcluded, util.FormatBytes(stats.BytesExcluded))
	return nil
}

// resolveSource accepts an existing directory or a cached extension id.
func (e ExtCmd) resolveSource(source string) (string, error) {
	if st, err := os.Stat(source); err == nil && st.IsDir() {
		return filepath.Abs(source)
	}
	return e.cachedPath(source)
}

// ExportInput holds input for copying a cached extension out of the cache.
type ExportInput struct {
	ID   string
	Dest string
}

// Export copies a cached extension into an empty or new directory.
func (e ExtCmd) Export(ctx context.Context, in ExportInput) error {
	srcDir, err := e.cachedPath(in.ID)
	if err != nil {
		return err
	}

	destDir, err := filepath.Abs(in.Dest)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if st, err := os.Stat(destDir); err == nil {
		if !st.IsDir() {
			return fmt.Errorf("output path exists and is not a directory: %s", destDir)
		}
		entries, _ := os.ReadDir(destDir)
		if len(entries) > 0 {
			return fmt.Errorf("output directory must be empty: %s", destDir)
		}
	}

	if err := util.CopyDir(srcDir, destDir, nil); err != nil {
		return fmt.Errorf("failed to copy extension: %w", err)
	}
	pterm.Success.Printf("Exported %s to %s\n", in.ID, destDir)
	return nil
}

var packCmd = &cobra.Command{
	Use:   "pack <dir|id>",
	Short: "Pack an extension directory into a ZIP archive",
	Long: `Pack an unpacked extension into a ZIP archive. The source is a directory or
the id of a cached extension. Development files (node_modules, .git, test
files, logs) and the _metadata directory are left out unless
--no-default-exclusions is given.`,
	Example: `  extkit extensions pack ./my-extension -o my-extension.zip
  extkit extensions pack fmkadmapgofadopljbjfkapdkoienihi`,
	Args: cobra.ExactArgs(1),
	RunE: runPack,
}

var exportCmd = &cobra.Command{
	Use:   "export <id> <dir>",
	Short: "Copy a cached extension into a directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func init() {
	packCmd.Flags().StringP("output", "o", "", "Output path for the ZIP archive (default <dir>.zip)")
	packCmd.Flags().Bool("no-default-exclusions", false, "Include development files")
	packCmd.Flags().Bool("store", false, "Store entries without compression")
	packCmd.Flags().BoolP("verbose", "v", false, "List excluded files")
}

func runPack(cmd *cobra.Command, args []string) error {
	e, err := newExtCmd(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	noDefaults, _ := cmd.Flags().GetBool("no-default-exclusions")
	store, _ := cmd.Flags().GetBool("store")
	verbose, _ := cmd.Flags().GetBool("verbose")
	return e.Pack(cmd.Context(), PackInput{
		Source:          args[0],
		Output:          output,
		ExcludeDefaults: noDefaults,
		Store:           store,
		Verbose:         verbose,
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := newExtCmd(cmd)
	if err != nil {
		return err
	}
	return e.Export(cmd.Context(), ExportInput{ID: args[0], Dest: args[1]})
}
