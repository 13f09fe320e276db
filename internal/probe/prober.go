package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"

	"github.com/stacklok/font-sources/internal/candidates"
	"github.com/stacklok/font-sources/internal/git"
)

// DefaultTimeout bounds a single probe, retries included
const DefaultTimeout = 2 * time.Minute

// Options configures New
type Options struct {
	// Strategy defaults to StrategyShallow
	Strategy Strategy

	// MarkerPath defaults to DefaultMarkerPath
	MarkerPath string

	// Timeout bounds each probe. Zero means DefaultTimeout, negative disables it.
	Timeout time.Duration

	Retry RetryPolicy

	// CacheDir is where StrategyCheckout keeps its clones. Required for that strategy.
	CacheDir string

	// MaxRepoFiles and MaxRepoBytes bound in-memory clones
	MaxRepoFiles int64
	MaxRepoBytes int64

	// Token authenticates requests to github.com
	Token string

	// GitClient and GitHubClient replace the default clients
	GitClient    git.Client
	GitHubClient *github.Client
}

// inspector is one way of reading a repository. Errors are classified for
// retry by the prober.
type inspector interface {
	inspect(ctx context.Context, candidate candidates.Candidate) (Result, error)
	retryable(err error) bool
}

type prober struct {
	inspector inspector
	timeout   time.Duration
	retry     RetryPolicy
}

// New returns a Prober for the configured strategy
func New(opts Options) (Prober, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyShallow
	}
	if opts.MarkerPath == "" {
		opts.MarkerPath = DefaultMarkerPath
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.GitClient == nil {
		opts.GitClient = git.NewDefaultGitClient()
	}

	shallow := &gitInspector{
		client:     opts.GitClient,
		markerPath: opts.MarkerPath,
		token:      opts.Token,
		maxFiles:   opts.MaxRepoFiles,
		maxBytes:   opts.MaxRepoBytes,
	}

	var insp inspector
	switch opts.Strategy {
	case StrategyShallow:
		insp = shallow
	case StrategyCheckout:
		if opts.CacheDir == "" {
			return nil, errors.New("a cache directory is required for the checkout strategy")
		}
		checkout := *shallow
		checkout.cacheDir = opts.CacheDir
		insp = &checkout
	case StrategyGitHub:
		client := opts.GitHubClient
		if client == nil {
			client = NewGitHubClient(context.Background(), opts.Token)
		}
		insp = &githubInspector{client: client, markerPath: opts.MarkerPath, fallback: shallow}
	default:
		return nil, fmt.Errorf("unknown probe strategy %q", opts.Strategy)
	}

	slog.Debug("Configured repository prober",
		"strategy", opts.Strategy,
		"marker", opts.MarkerPath,
		"timeout", opts.Timeout,
		"max_attempts", opts.Retry.MaxAttempts)

	return &prober{inspector: insp, timeout: opts.Timeout, retry: opts.Retry}, nil
}

// NewGitHubClient returns a GitHub API client, authenticated when token is set
func NewGitHubClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Probe inspects one repository. Failures yield OutcomeUnreachable.
func (p *prober) Probe(ctx context.Context, candidate candidates.Candidate) Result {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.retry.run(ctx, candidate.URL, func() (Result, error) {
		return p.inspector.inspect(ctx, candidate)
	}, p.inspector.retryable)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			err = fmt.Errorf("probe timed out after %s: %w", p.timeout, err)
		}
		slog.Debug("Repository unreachable",
			"repository", candidate.URL,
			"error", err,
			"duration", time.Since(start))
		return Result{Outcome: OutcomeUnreachable, Error: err.Error()}
	}

	slog.Debug("Probed repository",
		"repository", candidate.URL,
		"outcome", result.Outcome,
		"commit", result.Commit,
		"duration", time.Since(start))
	return result
}
