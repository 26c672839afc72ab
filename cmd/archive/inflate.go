package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kernel/extkit/pkg/flate"
	"github.com/kernel/extkit/pkg/table"
	"github.com/kernel/extkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// InflateInput holds input for decoding raw DEFLATE streams.
type InflateInput struct {
	Paths      []string
	OutputDir  string
	Dictionary string
	SizeHint   int
}

// Inflate decodes each raw DEFLATE file to <name>.inflated, in OutputDir or
// next to the input. Files are decoded concurrently on a worker pool.
func (a ArcCmd) Inflate(ctx context.Context, in InflateInput) error {
	opts := flate.Options{ExpectedSize: in.SizeHint}
	if in.Dictionary != "" {
		dict, err := readInput(in.Dictionary)
		if err != nil {
			return err
		}
		opts.Dictionary = dict
	}

	pool := flate.NewPool(a.workers)
	defer pool.Close()

	pending := make([]<-chan flate.Result, len(in.Paths))
	sizes := make([]int, len(in.Paths))
	for i, p := range in.Paths {
		data, err := readInput(p)
		if err != nil {
			return err
		}
		sizes[i] = len(data)
		pending[i] = pool.Submit(data, opts)
	}

	rows := pterm.TableData{{"Input", "Compressed", "Inflated", "Output"}}
	for i, p := range in.Paths {
		out, err := flate.Await(ctx, pending[i])
		if err != nil {
			return fmt.Errorf("failed to inflate %s: %w", p, err)
		}

		dir := in.OutputDir
		if dir == "" {
			dir = filepath.Dir(p)
		}
		target := filepath.Join(dir, filepath.Base(p)+".inflated")
		if err := os.WriteFile(target, out, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
		rows = append(rows, []string{p, util.FormatBytes(int64(sizes[i])), util.FormatBytes(int64(len(out))), target})
	}

	table.PrintTableNoPad(rows, true)
	return nil
}

var inflateCmd = &cobra.Command{
	Use:   "inflate <file>...",
	Short: "Decode raw DEFLATE streams",
	Long: `Decode files holding raw DEFLATE data (no zlib or gzip framing) and write
each result to <file>.inflated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInflate,
}

func init() {
	inflateCmd.Flags().StringP("output-dir", "d", "", "Directory for decoded files (default next to each input)")
	inflateCmd.Flags().String("dict", "", "File holding a preset dictionary")
	inflateCmd.Flags().Int("size", 0, "Expected decoded size, used to preallocate")
}

func runInflate(cmd *cobra.Command, args []string) error {
	a, err := newArcCmd(cmd)
	if err != nil {
		return err
	}
	outDir, _ := cmd.Flags().GetString("output-dir")
	dict, _ := cmd.Flags().GetString("dict")
	size, _ := cmd.Flags().GetInt("size")
	return a.Inflate(cmd.Context(), InflateInput{
		Paths:      args,
		OutputDir:  outDir,
		Dictionary: dict,
		SizeHint:   size,
	})
}
