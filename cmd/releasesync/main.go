package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quantmind-br/releasesync/internal/app"
	"github.com/quantmind-br/releasesync/internal/cache"
	"github.com/quantmind-br/releasesync/internal/config"
	"github.com/quantmind-br/releasesync/internal/manifest"
	"github.com/quantmind-br/releasesync/internal/pipeline"
	"github.com/quantmind-br/releasesync/pkg/version"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks bad arguments or flags
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// runError marks a run that started and had failing tasks
type runError struct {
	err error
}

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit code
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(viper.New())
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	var usage *usageError
	var failed *runError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &failed):
		return exitFailure
	case errors.As(err, &usage), app.IsSetupError(err):
		return exitUsage
	default:
		return exitFailure
	}
}

// cli carries the state shared by the root command and its subcommands
type cli struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	c := &cli{v: v}

	cmd := &cobra.Command{
		Use:   "releasesync <rule-file> [<download-dir>]",
		Short: "Sync GitHub release assets and branch snapshots into local directories",
		Long: `releasesync downloads the assets of every release of a GitHub repository
whose name matches the rule file's RELEASE_REGEX, extracts each archive
into the directory of the first matching rule and records it in a
config.lock ledger next to the rule file so later runs skip it.

An optional BRANCH directive also syncs a zip snapshot of a branch.`,
		Version:       version.Short(),
		Args:          rangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.run,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.SetGlobalNormalizationFunc(normalizeFlags)

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "settings file (default is ~/.releasesync/config.yaml)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Verbose output")

	flags.Bool("dry-run", false, "Print what would be downloaded without writing anything (alias --testrun)")
	flags.Int("max-concurrent-downloads", config.DefaultMaxDownloads, "Concurrent downloads (0 = number of CPUs)")
	flags.Float64("rate-limit-factor", config.DefaultRateLimitFactor, "Pause 1/N seconds after each download")
	flags.Bool("remove-downloaded", false, "Delete downloaded archives after extraction")
	flags.Bool("move-non-archives", false, "Move non-archive assets into their destination instead of failing")
	flags.Bool("pin-branch", false, "Pin the branch snapshot to the branch head commit")
	flags.Bool("cache", config.DefaultCacheEnabled, "Cache release listings")
	flags.Duration("cache-ttl", config.DefaultCacheTTL, "Release listing cache TTL")
	flags.Duration("timeout", config.DefaultTimeout, "HTTP request timeout")
	flags.Int("max-retries", config.DefaultMaxRetries, "Retries for failed requests")

	// Bind flags to viper
	_ = v.BindPFlag("download.dry_run", flags.Lookup("dry-run"))
	_ = v.BindPFlag("concurrency.max_downloads", flags.Lookup("max-concurrent-downloads"))
	_ = v.BindPFlag("concurrency.rate_limit_factor", flags.Lookup("rate-limit-factor"))
	_ = v.BindPFlag("download.remove_after_extract", flags.Lookup("remove-downloaded"))
	_ = v.BindPFlag("download.move_non_archives", flags.Lookup("move-non-archives"))
	_ = v.BindPFlag("branch.pin", flags.Lookup("pin-branch"))
	_ = v.BindPFlag("cache.enabled", flags.Lookup("cache"))
	_ = v.BindPFlag("cache.ttl", flags.Lookup("cache-ttl"))
	_ = v.BindPFlag("http.timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("http.max_retries", flags.Lookup("max-retries"))

	// Add subcommands
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(c.newBatchCmd())
	cmd.AddCommand(c.newCacheCmd())

	return cmd
}

// normalizeFlags maps the legacy --testrun spelling onto --dry-run
func normalizeFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "testrun" {
		name = "dry-run"
	}
	return pflag.NormalizedName(name)
}

func rangeArgs(lo, hi int) cobra.PositionalArgs {
	check := cobra.RangeArgs(lo, hi)
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(c.v, c.cfgFile)
	if err != nil {
		return nil, err
	}
	if c.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if len(args) > 1 {
		cfg.Download.Directory = args[1]
	}

	return c.withOrchestrator(cmd, cfg, func(ctx context.Context, orchestrator *app.Orchestrator) error {
		summary, err := orchestrator.Run(ctx, args[0])
		if err != nil && summary != nil {
			return &runError{err: failureReport(summary)}
		}
		return err
	})
}

func (c *cli) newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <manifest>",
		Short: "Sync every rule file listed in a manifest",
		Long: `Sync several repositories in one invocation. The manifest (YAML or JSON)
lists rule files; each keeps its own config.lock ledger while all of them
share the download concurrency limit.`,
		Args: rangeArgs(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			m, err := manifest.NewLoader().Load(args[0])
			if err != nil {
				return err
			}

			return c.withOrchestrator(cmd, cfg, func(ctx context.Context, orchestrator *app.Orchestrator) error {
				if _, err := orchestrator.RunManifest(ctx, m); err != nil {
					return &runError{err: err}
				}
				return nil
			})
		},
	}
}

// withOrchestrator builds an orchestrator and runs fn with a context
// cancelled on SIGINT or SIGTERM
func (c *cli) withOrchestrator(cmd *cobra.Command, cfg *config.Config, fn func(context.Context, *app.Orchestrator) error) error {
	// Create context with cancellation
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	orchestrator, err := app.NewOrchestrator(app.OrchestratorOptions{
		Config:    cfg,
		Verbose:   c.verbose,
		Out:       cmd.OutOrStdout(),
		LogOutput: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer orchestrator.Close()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			orchestrator.Logger().Info().Msg("Shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return fn(ctx, orchestrator)
}

// failureReport condenses a failed run into one error line per task
func failureReport(s *pipeline.Summary) error {
	var lines []string
	if s.ListErr != nil {
		lines = append(lines, s.ListErr.Error())
	}
	for _, a := range s.Failed() {
		lines = append(lines, fmt.Sprintf("%s/%s: %v", a.Release, a.Asset, a.Err))
	}
	if b := s.Branch; b != nil && b.Err != nil {
		lines = append(lines, fmt.Sprintf("branch %s: %v", b.Name, b.Err))
	}
	return fmt.Errorf("%d task(s) failed:\n  %s", len(lines), strings.Join(lines, "\n  "))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  rangeArgs(0, 0),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		},
	}
}

func (c *cli) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the release listing cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached release listing",
		Args:  rangeArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCache(func(store *cache.BadgerCache, dir string) error {
				if err := store.Clear(); err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%s)\n", dir)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  rangeArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCache(func(store *cache.BadgerCache, dir string) error {
				stats := store.Stats()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Directory: %s\n", dir)
				fmt.Fprintf(out, "Entries:   %d\n", stats.Entries)
				fmt.Fprintf(out, "Size:      %s\n", humanize.Bytes(uint64(stats.LSMSize+stats.VLogSize)))
				return nil
			})
		},
	})

	return cmd
}

func (c *cli) withCache(fn func(store *cache.BadgerCache, dir string) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	store, err := cache.NewBadgerCache(cache.Options{Directory: cfg.Cache.Directory})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer store.Close()

	return fn(store, cfg.Cache.Directory)
}
