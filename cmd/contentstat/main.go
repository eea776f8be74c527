package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agusx1211/contentstat/internal/contents"
	"github.com/agusx1211/contentstat/internal/fetch"
)

// archResult is the outcome of processing one architecture.
type archResult struct {
	Arch   string
	Report *contents.Report
	Stats  contents.Stats
	Output []byte
}

// app carries what every architecture run shares.
type app struct {
	cfg     *config
	mode    contents.Mode
	filter  *Filter
	fetcher *fetch.Fetcher
	catalog *fetch.Catalog
	logger  *slog.Logger
}

func newApp(cfg *config, logger *slog.Logger) (*app, error) {
	mode, err := contents.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	filter, err := NewFilter(cfg.IgnoreFile, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter: %w", err)
	}
	fetcher := fetch.New(cfg.Timeout, logger)
	return &app{
		cfg:     cfg,
		mode:    mode,
		filter:  filter,
		fetcher: fetcher,
		catalog: newCatalog(cfg, fetcher),
		logger:  logger,
	}, nil
}

func newCatalog(cfg *config, fetcher *fetch.Fetcher) *fetch.Catalog {
	return &fetch.Catalog{
		Fetcher:   fetcher,
		Cache:     fetch.ArchCache{Dir: cfg.CacheDir},
		Mirror:    cfg.Mirror,
		Dist:      cfg.Dist,
		Component: cfg.Component,
	}
}

// load returns the decoded Contents index for arch.
func (a *app) load(ctx context.Context, arch string) (string, error) {
	if a.cfg.Input != "" {
		a.logger.Info("reading local Contents file", "arch", arch, "path", a.cfg.Input)
		return fetch.ReadFile(a.cfg.Input)
	}
	u, err := fetch.URL(a.cfg.Mirror, a.cfg.Dist, a.cfg.Component, arch)
	if err != nil {
		return "", err
	}
	a.logger.Info("downloading Contents file", "arch", arch, "url", u)
	return a.fetcher.Contents(ctx, u)
}

// process builds the report of one architecture. Every call owns its Index.
func (a *app) process(ctx context.Context, arch string) (*archResult, error) {
	text, err := a.load(ctx, arch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", arch, err)
	}

	agg := contents.NewAggregator(a.mode, a.logger.With("arch", arch))
	if !a.filter.Empty() {
		agg.Keep = a.filter.ShouldInclude
	}
	idx := contents.NewIndex(a.cfg.Files)
	st, err := agg.Run(idx, contents.SplitLines(text))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to aggregate Contents file: %w", arch, err)
	}
	a.logger.Info("aggregated Contents file",
		"arch", arch,
		"lines", st.Lines,
		"packages", idx.Len(),
		"ungrouped", st.Ungrouped,
		"skipped", st.Skipped)

	report := contents.NewReport(arch, idx, a.cfg.Top)
	out, err := a.render(report)
	if err != nil {
		return nil, err
	}
	return &archResult{Arch: arch, Report: report, Stats: st, Output: out}, nil
}

func (a *app) render(r *contents.Report) ([]byte, error) {
	if a.cfg.Format == formatYAML {
		return r.YAML()
	}
	var b bytes.Buffer
	if err := r.Render(&b); err != nil {
		return nil, err
	}
	if a.cfg.Files {
		if err := r.RenderFiles(&b); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// run processes every architecture concurrently and returns the results in
// the order the architectures were given.
func (a *app) run(ctx context.Context, arches []string) ([]*archResult, error) {
	results := make([]*archResult, len(arches))
	g, ctx := errgroup.WithContext(ctx)
	for i, arch := range arches {
		g.Go(func() error {
			res, err := a.process(ctx, arch)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// emit prints and persists the results.
func (a *app) emit(stdout io.Writer, results []*archResult) error {
	for i, res := range results {
		if !a.cfg.NoPrint {
			if i > 0 {
				fmt.Fprintln(stdout)
			}
			if _, err := stdout.Write(res.Output); err != nil {
				return fmt.Errorf("failed to print report: %w", err)
			}
		}
		if a.cfg.ToFile {
			path, err := contents.WriteFile(a.cfg.OutputDir, a.cfg.BaseName, res.Arch, a.cfg.extension(), res.Output)
			if err != nil {
				return err
			}
			a.logger.Info("report written", "arch", res.Arch, "path", path)
			if a.cfg.NoPrint {
				fmt.Fprintf(stdout, "Output written to: %s\n", path)
			}
		}
	}
	return nil
}

// normalizeArches lowercases the requested architectures and rejects
// numeric names and repeats.
func normalizeArches(cfg *config, args []string) ([]string, error) {
	if cfg.Input != "" && len(args) != 1 {
		return nil, fmt.Errorf("--input reads a single architecture, got %d", len(args))
	}
	arches := make([]string, 0, len(args))
	seen := make(map[string]bool, len(args))
	for _, arg := range args {
		arch, err := fetch.NormalizeArch(arg)
		if err != nil {
			return nil, err
		}
		if seen[arch] {
			return nil, fmt.Errorf("architecture %q given more than once", arch)
		}
		seen[arch] = true
		arches = append(arches, arch)
	}
	return arches, nil
}

// checkArches makes sure the mirror publishes every architecture. A local
// input file or --any-arch skips the check.
func (a *app) checkArches(ctx context.Context, arches []string) error {
	if a.cfg.AnyArch || a.cfg.Input != "" {
		return nil
	}
	for _, arch := range arches {
		if err := a.catalog.Check(ctx, arch); err != nil {
			return err
		}
	}
	return nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contentstat [architecture...]",
		Short: "Contentstat ranks Debian packages by the number of files they own",
		Long: `Contentstat is a CLI tool that downloads the Debian Contents index of one or
more architectures, counts the files every package installs and prints the
packages owning the most files.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			arches, err := normalizeArches(cfg, args)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			if err := a.checkArches(cmd.Context(), arches); err != nil {
				return err
			}
			results, err := a.run(cmd.Context(), arches)
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), results)
		},
	}
	registerFlags(cmd.PersistentFlags())
	cmd.AddCommand(newArchesCmd())
	return cmd
}

func newArchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "arches",
		Short: "List the architectures the mirror publishes Contents indexes for",
		Long: `Arches reads the listing of <mirror>/dists/<dist>/<component>/ and prints
every architecture a Contents index is linked for. The names are cached so
later runs can validate architectures without the listing; the cache is used
when the mirror cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			arches, err := newCatalog(cfg, fetch.New(cfg.Timeout, logger)).List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list architectures: %w", err)
			}
			w := cmd.OutOrStdout()
			for _, arch := range arches {
				fmt.Fprintln(w, arch)
			}
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
