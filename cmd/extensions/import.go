package extensions

import (
	"context"
	"fmt"

	"github.com/kernel/extkit/internal/chrome"
	"github.com/kernel/extkit/pkg/table"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ImportInput holds input for importing an extension from local Chrome.
type ImportInput struct {
	ID           string
	Profile      string
	UserDataDir  string
	ListProfiles bool
}

// Import copies an extension installed in a local Chrome profile into the
// cache, replacing any cached copy.
func (e ExtCmd) Import(ctx context.Context, in ImportInput) error {
	override := in.UserDataDir
	if override == "" {
		override = e.chromeUserData
	}
	userData, err := chrome.UserDataDir(override)
	if err != nil {
		return err
	}

	if in.ListProfiles {
		profiles, err := chrome.ListProfiles(userData)
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			pterm.Warning.Println("No Chrome profiles found")
			return nil
		}
		rows := pterm.TableData{{"Profile"}}
		for _, p := range profiles {
			rows = append(rows, []string{p})
		}
		table.PrintTableNoPad(rows, true)
		return nil
	}

	if in.ID == "" {
		return fmt.Errorf("an extension id is required")
	}
	profile := in.Profile
	if profile == "" {
		profile = chrome.DefaultProfile
	}

	pterm.Info.Printf("Looking for %s in Chrome profile: %s\n", in.ID, profile)
	srcDir, err := chrome.InstalledExtensionPath(userData, profile, in.ID)
	if err != nil {
		pterm.Info.Println("Use --list-profiles to see available profiles")
		return err
	}
	pterm.Info.Printf("Found extension at: %s\n", srcDir)

	dir, err := e.cache.Import(in.ID, srcDir)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", in.ID, err)
	}
	pterm.Success.Printf("Imported %s to %s\n", in.ID, dir)
	return nil
}

var importCmd = &cobra.Command{
	Use:   "import <id>",
	Short: "Copy an extension installed in local Chrome into the cache",
	Long: `Copy the newest installed version of an extension from a local Chrome profile
into the cache, so it can be used without downloading it.

By default the Default profile is used. Use --chrome-profile to pick another
one and --list-profiles to see which profiles exist.`,
	Example: `  extkit extensions import fmkadmapgofadopljbjfkapdkoienihi
  extkit extensions import fmkadmapgofadopljbjfkapdkoienihi --chrome-profile "Profile 1"
  extkit extensions import --list-profiles`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("chrome-profile", chrome.DefaultProfile, "Chrome profile name to import from")
	importCmd.Flags().String("chrome-user-data", "", "Chrome user data directory (default per OS)")
	importCmd.Flags().Bool("list-profiles", false, "List available Chrome profiles and exit")
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := newExtCmd(cmd)
	if err != nil {
		return err
	}
	profile, _ := cmd.Flags().GetString("chrome-profile")
	userData, _ := cmd.Flags().GetString("chrome-user-data")
	listProfiles, _ := cmd.Flags().GetBool("list-profiles")

	in := ImportInput{Profile: profile, UserDataDir: userData, ListProfiles: listProfiles}
	if len(args) > 0 {
		in.ID = args[0]
	}
	return e.Import(cmd.Context(), in)
}
