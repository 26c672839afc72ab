// Package extensions provides commands for managing the local extension cache.
package extensions

import (
	"context"
	"io"

	"github.com/kernel/extkit/internal/config"
	"github.com/kernel/extkit/pkg/extensions"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// ExtensionCache defines the subset of extensions.Cache the commands use.
type ExtensionCache interface {
	Ensure(ctx context.Context, id string) (string, error)
	Import(id, srcDir string) (string, error)
	Path(id string) (string, error)
	List() ([]extensions.CachedExtension, error)
	Remove(id string) error
	SourceURL(id string) string
}

// ExtCmd handles extension cache operations.
type ExtCmd struct {
	cache ExtensionCache
	out   io.Writer
	// open reveals a directory in the desktop file manager.
	open func(path string) error
	// chromeUserData overrides the Chrome user data directory for imports.
	chromeUserData string
}

// ExtensionsCmd is the parent command for cache operations.
var ExtensionsCmd = &cobra.Command{
	Use:     "extensions",
	Aliases: []string{"ext"},
	Short:   "Manage the unpacked extension cache",
	Long: `Download packaged extensions into the local cache and manage cached copies.

Each extension is unpacked into <cache dir>/<id>. A directory under its id is
always complete: downloads are extracted next to it and renamed into place.

Example workflow:
  # Download and unpack an extension
  extkit extensions ensure fmkadmapgofadopljbjfkapdkoienihi

  # See what is cached
  extkit extensions ls

  # Copy a cached extension somewhere else
  extkit extensions export fmkadmapgofadopljbjfkapdkoienihi ./react-devtools`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	ExtensionsCmd.AddCommand(ensureCmd)
	ExtensionsCmd.AddCommand(listCmd)
	ExtensionsCmd.AddCommand(pathCmd)
	ExtensionsCmd.AddCommand(removeCmd)
	ExtensionsCmd.AddCommand(packCmd)
	ExtensionsCmd.AddCommand(exportCmd)
	ExtensionsCmd.AddCommand(importCmd)
}

// newExtCmd builds an ExtCmd from the configuration on the command context.
func newExtCmd(cmd *cobra.Command) (ExtCmd, error) {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return ExtCmd{}, err
	}
	cache := extensions.NewCache(extensions.CacheConfig{
		Root:          cfg.CacheDir,
		ChromeVersion: cfg.ChromeVersion,
		Sources:       cfg.Sources,
		Workers:       cfg.Workers,
	}, extensions.NewFetcher(cfg.UserAgent))

	return ExtCmd{
		cache:          cache,
		out:            cmd.OutOrStdout(),
		open:           browser.OpenFile,
		chromeUserData: cfg.ChromeUserData,
	}, nil
}
