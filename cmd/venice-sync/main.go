package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AbstergoSweden/VeniceAI/internal/cache"
	"github.com/AbstergoSweden/VeniceAI/internal/catalog"
	"github.com/AbstergoSweden/VeniceAI/internal/config"
	"github.com/AbstergoSweden/VeniceAI/internal/fsutil"
	"github.com/AbstergoSweden/VeniceAI/internal/generate"
	"github.com/AbstergoSweden/VeniceAI/internal/httpclient"
	"github.com/AbstergoSweden/VeniceAI/internal/venice"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "venice-sync",
		Short: "Sync Venice.ai models into a provider configuration",
		Long:  "Fetches the Venice.ai model catalog and regenerates a provider configuration file for the gateway.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode")

	rootCmd.AddCommand(
		syncCmd(),
		checkCmd(),
		clearCacheCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch models and write the provider configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, cfg)

			typ, err := catalog.ParseModelType(cfg.Type)
			if err != nil {
				return err
			}
			format, err := generate.ParseFormat(cfg.Format)
			if err != nil {
				return err
			}

			client := newClient(cfg)

			slog.Info("fetching models", "type", typ)
			models, err := client.FetchModels(cmd.Context(), typ)
			if err != nil {
				if errors.Is(err, venice.ErrEmptyCatalog) {
					return fmt.Errorf("no models found")
				}
				return fmt.Errorf("failed to fetch models: %w", err)
			}

			noSummary, _ := cmd.Flags().GetBool("no-summary")
			if !noSummary && !quiet {
				printModelSummary(models)
			}

			embedKey, _ := cmd.Flags().GetBool("embed-key")
			gen := generate.New(cfg.BaseURL, cfg.APIKey, embedKey)
			content, err := gen.Generate(models, format)
			if err != nil {
				return fmt.Errorf("generating output: %w", err)
			}

			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				fmt.Printf("DRY RUN - would write to %s\n\n", cfg.Output)
				fmt.Print(string(content))
				return nil
			}

			if noBackup, _ := cmd.Flags().GetBool("no-backup"); !noBackup {
				backup, err := fsutil.Backup(cfg.Output)
				if err != nil {
					slog.Warn("backup failed, continuing", "error", err)
				} else if backup != "" {
					slog.Info("created backup", "path", backup)
				}
			}

			if err := fsutil.WriteFileAtomic(cfg.Output, content, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", cfg.Output, err)
			}
			if !quiet {
				fmt.Printf("Wrote %s (%d models)\n", cfg.Output, len(models))
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "output file (default: providers.yaml)")
	cmd.Flags().StringP("format", "f", "", "output format: yaml or json")
	cmd.Flags().StringP("type", "t", "", "model type: text, image, code, or all")
	cmd.Flags().String("base-url", "", "API base URL")
	cmd.Flags().String("timeout", "", "HTTP timeout (e.g. 30s)")
	cmd.Flags().Bool("embed-key", false, "embed the API key in the output instead of a placeholder")
	cmd.Flags().Bool("no-summary", false, "skip the model summary table")
	cmd.Flags().Bool("no-backup", false, "don't back up an existing output file")
	cmd.Flags().Bool("no-cache", false, "disable caching")
	cmd.Flags().Bool("dry-run", false, "print the generated document without writing")

	return cmd
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check API status and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			status := newClient(cfg).APIStatus(cmd.Context())
			if !status.OK {
				return fmt.Errorf("API error: %s", status.Message)
			}
			fmt.Printf("API OK - %d models available\n", status.ModelsAvailable)
			return nil
		},
	}
}

func clearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove all cached catalog data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store := cache.New(cfg.CacheDir,
				config.Duration(cfg.CacheFreshTTL, cache.DefaultFreshTTL),
				config.Duration(cfg.CacheStaleTTL, cache.DefaultStaleTTL))
			if err := store.Clear(); err != nil {
				return err
			}
			slog.Info("cache cleared", "dir", cfg.CacheDir)
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// applyFlagOverrides lets explicit sync flags win over file/env config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Output = v
	}
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		cfg.Format = v
	}
	if v, _ := cmd.Flags().GetString("type"); v != "" {
		cfg.Type = v
	}
	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("timeout"); v != "" {
		cfg.Timeout = v
	}
	if v, _ := cmd.Flags().GetBool("no-cache"); v {
		cfg.NoCache = true
	}
}

func newClient(cfg *config.Config) *venice.Client {
	httpc := httpclient.New(
		httpclient.WithRateLimit(cfg.RateLimit),
		httpclient.WithTimeout(config.Duration(cfg.Timeout, 30*time.Second)),
	)

	opts := []venice.Option{venice.WithHTTPClient(httpc)}
	if !cfg.NoCache {
		store := cache.New(cfg.CacheDir,
			config.Duration(cfg.CacheFreshTTL, cache.DefaultFreshTTL),
			config.Duration(cfg.CacheStaleTTL, cache.DefaultStaleTTL))
		opts = append(opts, venice.WithCache(store))
	}

	return venice.New(cfg.APIKey, cfg.BaseURL, opts...)
}

func setupLogging() {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func printModelSummary(models []catalog.Model) {
	fmt.Printf("\nVenice.ai Models (%d)\n", len(models))
	fmt.Println(strings.Repeat("=", 100))

	for _, m := range models {
		caps := strings.Join(m.Capabilities.List(), ", ")
		if caps == "" {
			caps = "-"
		}
		pricing := fmt.Sprintf("%s in / %s out",
			generate.FormatPrice(m.Pricing.InputUSD),
			generate.FormatPrice(m.Pricing.OutputUSD))
		fmt.Printf("%-40s %-6s %8s  %-26s %s\n",
			m.ID, m.Type, generate.FormatTokens(m.ContextTokens), pricing, caps)
	}
	fmt.Println()
}
