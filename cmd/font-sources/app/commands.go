// Package app provides the font-sources command line.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stacklok/font-sources/internal/config"
	"github.com/stacklok/font-sources/internal/versions"
)

// Flag names. Each one can also be set through a FONT_SOURCES_ environment
// variable, e.g. FONT_SOURCES_CATALOG_PATH for --catalog-path.
const (
	flagOutput      = "output"
	flagConfig      = "config"
	flagCatalogPath = "catalog-path"
	flagCatalogURL  = "catalog-url"
	flagOffline     = "offline"
	flagCacheDir    = "cache-dir"
	flagStrategy    = "strategy"
	flagConcurrency = "concurrency"
	flagTimeout     = "timeout"
	flagMarker      = "marker"
	flagTokenFile   = "gh-token-file"
	flagList        = "list"
	flagSummary     = "summary"
	flagFamily      = "family"
	flagExclude     = "exclude-family"
	flagVerbose     = "verbose"
)

// NewRootCmd creates the font-sources command. When level is not nil,
// --verbose lowers it to debug.
func NewRootCmd(level *slog.LevelVar) *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:               "font-sources",
		DisableAutoGenTag: true,
		Short:             "Find which Google Fonts upstream repositories are buildable from source",
		Long: `font-sources reads the Google Fonts catalog, collects the upstream repository of
every font family and checks each distinct repository once for a source/config.yaml
build configuration. The result is written as a JSON object keyed by font name.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v.GetBool(flagVerbose) && level != nil {
				level.Set(slog.LevelDebug)
			}
			return runDiscover(cmd, v)
		},
	}

	flags := rootCmd.Flags()
	flags.StringP(flagOutput, "o", "", "Write the report to this file instead of stdout")
	flags.String(flagConfig, "", "Path to configuration file (YAML format)")
	flags.String(flagCatalogPath, "", "Catalog working copy to create or reuse (temporary when empty)")
	flags.String(flagCatalogURL, "", "Catalog repository URL")
	flags.Bool(flagOffline, false, "Read --catalog-path as is, without fetching")
	flags.String(flagCacheDir, "", "Directory keeping repository clones for the checkout strategy (default $XDG_CACHE_HOME/font-sources/repos)")
	flags.String(flagStrategy, "", "Probe strategy: shallow, checkout or github")
	flags.Int(flagConcurrency, 0, "Number of repositories probed at once")
	flags.String(flagTimeout, "", "Timeout of a single repository probe (e.g., 90s, 2m)")
	flags.String(flagMarker, "", "File marking a repository as buildable")
	flags.String(flagTokenFile, "", "File containing a GitHub token")
	flags.BoolP(flagList, "l", false, "Print the distinct repository URLs instead of the report")
	flags.Bool(flagSummary, false, "Print a summary table to stderr")
	flags.StringSlice(flagFamily, nil, "Only include families matching these glob patterns")
	flags.StringSlice(flagExclude, nil, "Exclude families matching these glob patterns")
	flags.BoolP(flagVerbose, "v", false, "Enable debug logging")

	flags.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			slog.Error("Error binding flag", "flag", f.Name, "error", err)
		}
	})
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateConfigCmd())
	return rootCmd
}

func newValidateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config <config-file>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(config.WithConfigPath(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			source := cfg.Catalog.URL
			if cfg.Catalog.Offline {
				source = cfg.Catalog.Path + " (offline)"
			}
			_, err = fmt.Fprintf(out, "Valid configuration\n  Catalog: %s\n  Strategy: %s\n  Marker: %s\n  Concurrency: %d\n  Timeout: %s\n",
				source, cfg.Probe.Strategy, cfg.Probe.MarkerPath, cfg.Probe.Concurrency, cfg.Probe.GetTimeout())
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.Get()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(out, string(output))
				return err
			case "":
				_, err := fmt.Fprintf(out, "font-sources %s\n  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s\n",
					info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
				return err
			default:
				return fmt.Errorf("unknown format %q, expected json", format)
			}
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}
