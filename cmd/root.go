package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/kernel/extkit/cmd/archive"
	"github.com/kernel/extkit/cmd/extensions"
	"github.com/kernel/extkit/cmd/intl"
	"github.com/kernel/extkit/internal/config"
	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Set during build.
var (
	version = "dev"
	commit  = ""
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

var rootCmd = &cobra.Command{
	Use:   "extkit",
	Short: "Download, unpack and inspect packaged browser extensions",
	Long: titleStyle.Render("extkit") + ` keeps a content-addressed cache of unpacked browser extensions.

It downloads CRX packages, strips their signature headers, inflates the ZIP
payload with its own DEFLATE decoder and installs the result atomically under
the cache directory. It also inspects archives and computes the short
identifiers minified bundles use for translation keys.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.Bool("debug", false, "Enable debug logging")
	pf.String("config", "", "Path to a TOML config file (default <config dir>/extkit/config.toml)")
	pf.String("cache-dir", "", "Extension cache directory")
	pf.String("chrome-version", "", "Chrome version sent when downloading from the web store")
	pf.String("user-agent", "", "User-Agent header for downloads")
	pf.Int("workers", 0, "Concurrent entry extraction limit")

	rootCmd.AddCommand(extensions.ExtensionsCmd)
	rootCmd.AddCommand(archive.ArchiveCmd)
	rootCmd.AddCommand(intl.IntlCmd)
}

// loadConfig resolves settings and stores them on the command context.
// Flags override every other source.
func loadConfig(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	if debug, _ := flags.GetBool("debug"); debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetOutput(os.Stderr)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if flags.Changed("cache-dir") {
		cfg.CacheDir, _ = flags.GetString("cache-dir")
	}
	if flags.Changed("chrome-version") {
		cfg.ChromeVersion, _ = flags.GetString("chrome-version")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent, _ = flags.GetString("user-agent")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"cache_dir":      cfg.CacheDir,
		"chrome_version": cfg.ChromeVersion,
		"workers":        cfg.Workers,
	}).Debug("configuration loaded")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(config.NewContext(ctx, cfg))
	return nil
}

// Execute runs the root command.
func Execute() {
	opts := []fang.Option{fang.WithVersion(version)}
	if commit != "" {
		opts = append(opts, fang.WithCommit(commit))
	}
	if err := fang.Execute(context.Background(), rootCmd, opts...); err != nil {
		pterm.Debug.Println(err)
		os.Exit(1)
	}
}
