package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v82/github"

	"github.com/stacklok/font-sources/internal/candidates"
	"github.com/stacklok/font-sources/internal/git"
)

// githubInspector lists the marker directory through the GitHub REST API.
// Repositories not hosted on github.com are handed to fallback.
type githubInspector struct {
	client     *github.Client
	markerPath string
	fallback   inspector
}

// fallbackError carries an error raised by the fallback inspector
type fallbackError struct {
	err error
}

func (e *fallbackError) Error() string { return e.err.Error() }
func (e *fallbackError) Unwrap() error { return e.err }

func (g *githubInspector) inspect(ctx context.Context, candidate candidates.Candidate) (Result, error) {
	owner, repo, ok := GitHubOwnerRepo(candidate.URL)
	if !ok {
		result, err := g.fallback.inspect(ctx, candidate)
		if err != nil {
			return result, &fallbackError{err: err}
		}
		return result, nil
	}

	commit, _, err := g.client.Repositories.GetCommitSHA1(ctx, owner, repo, "HEAD", "")
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve HEAD of %s/%s: %w", owner, repo, rateLimitWait(err))
	}

	_, entries, resp, err := g.client.Repositories.GetContents(ctx, owner, repo, markerDir(g.markerPath),
		&github.RepositoryContentGetOptions{Ref: commit})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return classify(g.markerPath, commit, nil), nil
		}
		return Result{}, fmt.Errorf("failed to list %s/%s: %w", owner, repo, rateLimitWait(err))
	}

	var names []string
	for _, entry := range entries {
		if entry.GetType() == "file" {
			names = append(names, entry.GetName())
		}
	}
	return classify(g.markerPath, commit, names), nil
}

func (g *githubInspector) retryable(err error) bool {
	var fe *fallbackError
	if errors.As(err, &fe) {
		return g.fallback.retryable(fe.err)
	}

	if hasRetryAfter(err) {
		return true
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return respErr.Response != nil && respErr.Response.StatusCode >= http.StatusInternalServerError
	}
	return git.IsTransient(err)
}

// rateLimitWait attaches the wait GitHub asked for to a rate limit error
func rateLimitWait(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return retryAfter(err, time.Until(rateErr.Rate.Reset.Time)+time.Second)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return retryAfter(err, abuseErr.GetRetryAfter())
	}
	return err
}
