package extensions

import (
	"context"
	"fmt"

	"github.com/kernel/extkit/internal/cliflag"
	"github.com/kernel/extkit/pkg/table"
	"github.com/kernel/extkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// EnsureInput holds input for ensuring extensions are cached.
type EnsureInput struct {
	IDs    []string
	Open   bool
	Output string
}

type ensureResult struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

// Ensure makes sure every id is unpacked in the cache, downloading the ones
// that are missing. It stops at the first failure.
func (e ExtCmd) Ensure(ctx context.Context, in EnsureInput) error {
	jsonOutput := in.Output == cliflag.OutputJSON

	results := make([]ensureResult, 0, len(in.IDs))
	for _, id := range in.IDs {
		if !jsonOutput {
			pterm.Info.Printf("Ensuring %s...\n", id)
		}
		path, err := e.cache.Ensure(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to ensure %s: %w", id, err)
		}
		results = append(results, ensureResult{ID: id, Path: path, Source: e.cache.SourceURL(id)})

		if in.Open && e.open != nil {
			if err := e.open(path); err != nil && !jsonOutput {
				pterm.Warning.Printf("Could not open %s: %v\n", path, err)
			}
		}
	}

	if jsonOutput {
		return util.PrintPrettyJSON(e.out, results)
	}

	rows := pterm.TableData{{"ID", "Path"}}
	for _, r := range results {
		rows = append(rows, []string{r.ID, r.Path})
	}
	table.PrintTableNoPad(rows, true)
	pterm.Success.Printf("%d extension(s) ready\n", len(results))
	return nil
}

var ensureCmd = &cobra.Command{
	Use:   "ensure <id>...",
	Short: "Download and unpack extensions that are not cached yet",
	Long: `Return the cache directory of each extension, downloading and unpacking it
first when it is missing. Cached extensions are returned without network access.`,
	Example: `  extkit extensions ensure fmkadmapgofadopljbjfkapdkoienihi
  extkit extensions ensure --open nkbihfbeogaeaoehlefnkodbefgpgknn`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnsure,
}

func init() {
	ensureCmd.Flags().Bool("open", false, "Open each directory in the file manager")
	cliflag.AddOutputFlag(ensureCmd.Flags())
}

func runEnsure(cmd *cobra.Command, args []string) error {
	e, err := newExtCmd(cmd)
	if err != nil {
		return err
	}
	open, _ := cmd.Flags().GetBool("open")
	return e.Ensure(cmd.Context(), EnsureInput{
		IDs:    args,
		Open:   open,
		Output: cliflag.GetOutput(cmd.Flags()),
	})
}
