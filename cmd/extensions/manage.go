package extensions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kernel/extkit/internal/cliflag"
	"github.com/kernel/extkit/pkg/extensions"
	"github.com/kernel/extkit/pkg/table"
	"github.com/kernel/extkit/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// ListInput holds input for listing cached extensions.
type ListInput struct {
	Output string
}

// List prints the cached extensions.
func (e ExtCmd) List(ctx context.Context, in ListInput) error {
	cached, err := e.cache.List()
	if err != nil {
		return err
	}

	if in.Output == cliflag.OutputJSON {
		return util.PrintPrettyJSON(e.out, cached)
	}

	if len(cached) == 0 {
		pterm.Info.Println("No cached extensions")
		return nil
	}

	rows := pterm.TableData{{"ID", "Name", "Version", "Size", "Path"}}
	for _, c := range cached {
		rows = append(rows, []string{c.ID, util.OrDash(c.Name), util.OrDash(c.Version), util.FormatBytes(c.Size), c.Path})
	}
	table.PrintTableNoPad(rows, true)

	total := lo.SumBy(cached, func(c extensions.CachedExtension) int64 { return c.Size })
	pterm.Info.Printf("%d extension(s), %s total\n", len(cached), util.FormatBytes(total))
	return nil
}

// PathInput holds input for printing a cache path.
type PathInput struct {
	ID string
}

// Path prints the cache directory of a cached extension.
func (e ExtCmd) Path(ctx context.Context, in PathInput) error {
	dir, err := e.cachedPath(in.ID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(e.out, dir)
	return err
}

// RemoveInput holds input for removing cached extensions.
type RemoveInput struct {
	IDs []string
}

// Remove deletes cached extensions.
func (e ExtCmd) Remove(ctx context.Context, in RemoveInput) error {
	for _, id := range in.IDs {
		if err := e.cache.Remove(id); err != nil {
			return fmt.Errorf("failed to remove %s: %w", id, err)
		}
		pterm.Success.Printf("Removed %s\n", id)
	}
	return nil
}

// cachedPath returns the directory of id, failing when it is not cached.
func (e ExtCmd) cachedPath(id string) (string, error) {
	dir, err := e.cache.Path(id)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !st.IsDir()) {
		return "", fmt.Errorf("extension %s is not cached; run 'extkit extensions ensure %s'", id, id)
	}
	if err != nil {
		return "", err
	}
	return dir, nil
}

var listCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List cached extensions",
	Args:    cobra.NoArgs,
	RunE:    runList,
}

var pathCmd = &cobra.Command{
	Use:   "path <id>",
	Short: "Print the cache directory of an extension",
	Args:  cobra.ExactArgs(1),
	RunE:  runPath,
}

var removeCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"remove"},
	Short:   "Remove extensions from the cache",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runRemove,
}

func init() {
	cliflag.AddOutputFlag(listCmd.Flags())
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := newExtCmd(cmd)
	if err != nil {
		return err
	}
	return e.List(cmd.Context(), ListInput{Output: cliflag.GetOutput(cmd.Flags())})
}

func runPath(cmd *cobra.Command, args []string) error {
	e, err := newExtCmd(cmd)
	if err != nil {
		return err
	}
	return e.Path(cmd.Context(), PathInput{ID: args[0]})
}

func runRemove(cmd *cobra.Command, args []string) error {
	e, err := newExtCmd(cmd)
	if err != nil {
		return err
	}
	return e.Remove(cmd.Context(), RemoveInput{IDs: args})
}
