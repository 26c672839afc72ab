package archive

import (
	"context"
	"fmt"

	"github.com/kernel/extkit/internal/cliflag"
	"github.com/kernel/extkit/pkg/crx"
	"github.com/kernel/extkit/pkg/table"
	"github.com/kernel/extkit/pkg/util"
	"github.com/kernel/extkit/pkg/zipread"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// ListInput holds input for listing an archive.
type ListInput struct {
	Path   string
	Output string
}

type containerView struct {
	Format        string `json:"format"`
	Version       uint32 `json:"version,omitempty"`
	PayloadOffset int    `json:"payload_offset"`
	ExtensionID   string `json:"extension_id,omitempty"`
}

type entryView struct {
	Name             string `json:"name"`
	Method           string `json:"method"`
	CompressedSize   uint64 `json:"compressed_size"`
	UncompressedSize uint64 `json:"uncompressed_size"`
	CRC32            string `json:"crc32"`
	Dir              bool   `json:"dir,omitempty"`
}

type listingView struct {
	Container containerView `json:"container"`
	Entries   []entryView   `json:"entries"`
}

// List prints the container header and the central directory of a ZIP or
// CRX file.
func (a ArcCmd) List(ctx context.Context, in ListInput) error {
	data, err := readInput(in.Path)
	if err != nil {
		return err
	}

	h, err := crx.Inspect(data)
	if err != nil {
		return err
	}
	container := containerView{Format: "zip", PayloadOffset: h.PayloadOffset}
	if h.Version != 0 {
		container.Format = "crx"
		container.Version = h.Version
		// Unsigned or unusual headers simply have no id to show.
		container.ExtensionID, _ = crx.ExtensionID(data)
	}

	entries, err := zipread.Open(data[h.PayloadOffset:])
	if err != nil {
		return err
	}
	view := listingView{
		Container: container,
		Entries: lo.Map(entries, func(e zipread.Entry, _ int) entryView {
			return entryView{
				Name:             e.Name,
				Method:           methodName(e.Method),
				CompressedSize:   e.CompressedSize,
				UncompressedSize: e.UncompressedSize,
				CRC32:            fmt.Sprintf("%08x", e.CRC32),
				Dir:              e.IsDir(),
			}
		}),
	}

	if in.Output == cliflag.OutputJSON {
		return util.PrintPrettyJSON(a.out, view)
	}

	if container.Format == "crx" {
		pterm.Info.Printf("CRX%d package, ZIP payload at offset %d\n", container.Version, container.PayloadOffset)
		if container.ExtensionID != "" {
			pterm.Info.Printf("Extension ID: %s\n", container.ExtensionID)
		}
	}

	rows := pterm.TableData{{"Name", "Method", "Size", "Compressed", "CRC32"}}
	var total uint64
	for _, e := range view.Entries {
		rows = append(rows, []string{
			e.Name,
			e.Method,
			util.FormatBytes(int64(e.UncompressedSize)),
			util.FormatBytes(int64(e.CompressedSize)),
			e.CRC32,
		})
		total += e.UncompressedSize
	}
	table.PrintTableNoPad(rows, true)
	pterm.Info.Printf("%d entries, %s uncompressed\n", len(view.Entries), util.FormatBytes(int64(total)))
	return nil
}

func methodName(m uint16) string {
	switch m {
	case zipread.Store:
		return "store"
	case zipread.Deflate:
		return "deflate"
	default:
		return fmt.Sprintf("method %d", m)
	}
}

var listCmd = &cobra.Command{
	Use:     "ls <file>",
	Aliases: []string{"list"},
	Short:   "List the entries of a ZIP or CRX file",
	Args:    cobra.ExactArgs(1),
	RunE:    runList,
}

func init() {
	cliflag.AddOutputFlag(listCmd.Flags())
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newArcCmd(cmd)
	if err != nil {
		return err
	}
	return a.List(cmd.Context(), ListInput{Path: args[0], Output: cliflag.GetOutput(cmd.Flags())})
}
