// Package archive provides commands for inspecting and unpacking ZIP and CRX
// files without touching the extension cache.
package archive

import (
	"fmt"
	"io"
	"os"

	"github.com/kernel/extkit/internal/config"
	"github.com/spf13/cobra"
)

// ArcCmd handles archive operations.
type ArcCmd struct {
	out     io.Writer
	workers int
}

// ArchiveCmd is the parent command for archive operations.
var ArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect and unpack ZIP, CRX and raw DEFLATE files",
	Long: `Work with archive files directly.

CRX2 and CRX3 packages are accepted wherever a ZIP archive is; their signature
header is stripped first.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	ArchiveCmd.AddCommand(listCmd)
	ArchiveCmd.AddCommand(extractCmd)
	ArchiveCmd.AddCommand(unwrapCmd)
	ArchiveCmd.AddCommand(inflateCmd)
}

func newArcCmd(cmd *cobra.Command) (ArcCmd, error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return ArcCmd{}, err
	}
	return ArcCmd{out: cmd.OutOrStdout(), workers: cfg.Workers}, nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
