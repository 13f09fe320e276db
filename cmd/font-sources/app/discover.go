package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/stacklok/font-sources/internal/candidates"
	"github.com/stacklok/font-sources/internal/catalog"
	"github.com/stacklok/font-sources/internal/config"
	"github.com/stacklok/font-sources/internal/discovery"
	"github.com/stacklok/font-sources/internal/git"
	"github.com/stacklok/font-sources/internal/probe"
	"github.com/stacklok/font-sources/internal/report"
)

func runDiscover(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	listOnly := v.GetBool(flagList)

	// --list only reads the catalog, so no prober is built
	var (
		prober probe.Prober
		token  string
	)
	if !listOnly {
		token, err = cfg.Probe.GetToken()
		if err != nil {
			return err
		}
		prober, err = probe.New(cfg.ProbeOptions(token))
		if err != nil {
			return fmt.Errorf("failed to create prober: %w", err)
		}
	}

	runner, err := discovery.NewRunner(catalog.NewAccessor(git.NewDefaultGitClient()), prober, discovery.Options{
		Catalog:         cfg.CatalogLocation(),
		Concurrency:     cfg.Probe.Concurrency,
		Families:        cfg.Families,
		ExcludeFamilies: cfg.ExcludeFamilies,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listOnly {
		repos, err := runner.Candidates(ctx)
		if err != nil {
			return err
		}
		urls := candidates.URLs(repos)
		return writeOutput(cmd, v, func(w io.Writer) error {
			return report.WriteRepositoryList(w, urls)
		}, "repositories", len(urls))
	}

	slog.Info("Starting font source discovery",
		"catalog", cfg.Catalog.URL,
		"strategy", cfg.Probe.Strategy,
		"authenticated", token != "")

	rep, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, v, rep.Write, "fonts", rep.Len()); err != nil {
		return err
	}

	// The report is already out, a broken summary does not fail the run
	if v.GetBool(flagSummary) || isTerminal(cmd.ErrOrStderr()) {
		if err := rep.WriteSummary(cmd.ErrOrStderr()); err != nil {
			slog.Warn("Failed to write summary", "error", err)
		}
	}
	return nil
}

// writeOutput sends write to the --output file, atomically, or to stdout
func writeOutput(cmd *cobra.Command, v *viper.Viper, write func(io.Writer) error, countKey string, count int) error {
	output := v.GetString(flagOutput)
	if output == "" || output == "-" {
		return write(cmd.OutOrStdout())
	}
	if err := report.WriteFileAtomic(output, write); err != nil {
		return err
	}
	slog.Info("Report written", "path", output, countKey, count)
	return nil
}

// loadConfig reads the configuration file, when one is given, and applies
// flags and FONT_SOURCES_ environment variables on top of it
func loadConfig(v *viper.Viper) (*config.Config, error) {
	var opts []config.Option
	if path := v.GetString(flagConfig); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}

	// Validation waits until flags and environment are applied
	opts = append(opts, config.WithoutValidation())
	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	setString := func(flag string, dst *string) {
		if v.IsSet(flag) {
			*dst = v.GetString(flag)
		}
	}
	setString(flagCatalogPath, &cfg.Catalog.Path)
	setString(flagCatalogURL, &cfg.Catalog.URL)
	setString(flagCacheDir, &cfg.Probe.CacheDir)
	setString(flagStrategy, &cfg.Probe.Strategy)
	setString(flagTimeout, &cfg.Probe.Timeout)
	setString(flagMarker, &cfg.Probe.MarkerPath)

	if v.IsSet(flagOffline) {
		cfg.Catalog.Offline = v.GetBool(flagOffline)
	}
	if v.IsSet(flagConcurrency) {
		cfg.Probe.Concurrency = v.GetInt(flagConcurrency)
	}
	if v.IsSet(flagTokenFile) {
		cfg.Probe.GitHub = &config.GitHubConfig{TokenFile: v.GetString(flagTokenFile)}
	}
	if v.IsSet(flagFamily) {
		cfg.Families = v.GetStringSlice(flagFamily)
	}
	if v.IsSet(flagExclude) {
		cfg.ExcludeFamilies = v.GetStringSlice(flagExclude)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
