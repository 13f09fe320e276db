// Package discovery runs the font source discovery pipeline: read the
// catalog, parse every metadata record, probe each distinct repository once
// and aggregate the results into a report.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/font-sources/internal/candidates"
	"github.com/stacklok/font-sources/internal/catalog"
	"github.com/stacklok/font-sources/internal/filtering"
	"github.com/stacklok/font-sources/internal/metadata"
	"github.com/stacklok/font-sources/internal/probe"
	"github.com/stacklok/font-sources/internal/report"
)

// DefaultConcurrency is the number of repositories probed at once
const DefaultConcurrency = 8

// ErrCancelled is returned when a run is interrupted. No report is produced.
var ErrCancelled = errors.New("discovery cancelled")

// Options configures a Runner
type Options struct {
	Catalog catalog.Location

	// Concurrency bounds parallel probes, DefaultConcurrency when zero
	Concurrency int

	// Families restricts the run to family names matching any of these
	// glob patterns. Empty means all families.
	Families []string

	// ExcludeFamilies drops families matching any of these glob patterns,
	// even when they match Families
	ExcludeFamilies []string
}

// Runner executes discovery runs
type Runner struct {
	accessor *catalog.Accessor
	prober   probe.Prober
	filter   *filtering.FamilyFilter
	opts     Options
}

// NewRunner returns a Runner reading the catalog through accessor and probing
// with prober. prober may be nil when only Candidates is used.
func NewRunner(accessor *catalog.Accessor, prober probe.Prober, opts Options) (*Runner, error) {
	if opts.Concurrency == 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", opts.Concurrency)
	}
	filter, err := filtering.NewFamilyFilter(opts.Families, opts.ExcludeFamilies)
	if err != nil {
		return nil, fmt.Errorf("invalid family filter: %w", err)
	}
	return &Runner{accessor: accessor, prober: prober, filter: filter, opts: opts}, nil
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}

// Run performs one discovery pass. Malformed records are logged and skipped,
// unreachable repositories are reported as such. Cancelling ctx stops new
// probes from starting and makes Run return ErrCancelled.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	start := time.Now()
	if r.prober == nil {
		return nil, errors.New("no prober configured")
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	records, catalogCommit, err := r.readCatalog(ctx)
	if err != nil {
		return nil, err
	}

	repos := candidates.Build(records)
	slog.Info("Probing repositories",
		"fonts", len(records),
		"repositories", len(repos),
		"concurrency", r.opts.Concurrency)

	results, err := r.probeAll(ctx, repos)
	if err != nil {
		return nil, err
	}

	rep := report.Build(records, results)
	conflicts := rep.RevConflicts()
	for _, repo := range conflicts {
		slog.Warn("Fonts pin different commits of one repository", "repository", repo)
	}
	slog.Info("Discovery complete",
		"catalog_commit", catalogCommit,
		"fonts", rep.Len(),
		"repositories", len(repos),
		string(probe.OutcomeHasConfig), rep.Count(probe.OutcomeHasConfig),
		string(probe.OutcomeNoConfig), rep.Count(probe.OutcomeNoConfig),
		string(probe.OutcomeUnreachable), rep.Count(probe.OutcomeUnreachable),
		"rev_conflicts", len(conflicts),
		"duration", time.Since(start))
	return rep, nil
}

// Candidates reads the catalog and returns the repositories referenced by the
// selected families, in order of first reference. Nothing is probed.
func (r *Runner) Candidates(ctx context.Context) ([]candidates.Candidate, error) {
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	records, _, err := r.readCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return candidates.Build(records), nil
}

// readCatalog opens the catalog, parses its records and closes it again. The
// checkout is not touched once this returns.
func (r *Runner) readCatalog(ctx context.Context) ([]*metadata.FontRecord, string, error) {
	checkout, err := r.accessor.Open(ctx, r.opts.Catalog)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", cancelled(ctx)
		}
		return nil, "", err
	}
	defer func() {
		if err := checkout.Close(); err != nil {
			slog.Warn("Failed to clean up catalog checkout", "error", err)
		}
	}()

	records, err := r.loadRecords(ctx, checkout)
	if err != nil {
		return nil, "", err
	}
	return records, checkout.Commit, nil
}

// loadRecords parses every catalog record in order, skipping malformed ones
func (r *Runner) loadRecords(ctx context.Context, checkout *catalog.Checkout) ([]*metadata.FontRecord, error) {
	paths, err := checkout.Records()
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata records: %w", err)
	}

	records := make([]*metadata.FontRecord, 0, len(paths))
	malformed := 0
	for _, p := range paths {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}

		record, err := metadata.Load(p)
		if errors.Is(err, metadata.ErrMalformedRecord) {
			malformed++
			slog.Warn("Skipping malformed metadata record", "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if ok, reason := r.filter.ShouldInclude(record.Name); !ok {
			slog.Debug("Skipping family", "family", record.Name, "reason", reason)
			continue
		}
		records = append(records, record)
	}

	slog.Info("Parsed font catalog",
		"records", len(paths),
		"selected", len(records),
		"malformed", malformed)
	return records, nil
}

// probeAll probes every candidate with bounded concurrency. Results are
// keyed by repository URL so their order does not depend on completion order.
func (r *Runner) probeAll(ctx context.Context, repos []candidates.Candidate) (map[string]probe.Result, error) {
	prober := probe.WithCache(r.prober, probe.NewCache())
	results := make([]probe.Result, len(repos))

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i, candidate := range repos {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = prober.Probe(gctx, candidate)
			n := done.Add(1)
			slog.Debug("Probe progress",
				"repository", candidate.URL,
				"fonts", candidate.Fonts,
				"outcome", results[i].Outcome,
				"progress", fmt.Sprintf("%d/%d", n, len(repos)))
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	byURL := make(map[string]probe.Result, len(repos))
	for i, candidate := range repos {
		byURL[candidate.URL] = results[i]
	}
	return byURL, nil
}
