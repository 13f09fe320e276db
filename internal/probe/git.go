package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/uuid"

	"github.com/stacklok/font-sources/internal/candidates"
	"github.com/stacklok/font-sources/internal/git"
)

// gitInspector reads repositories with go-git, either fully in memory or
// through an on-disk cache
type gitInspector struct {
	client     git.Client
	markerPath string
	token      string
	maxFiles   int64
	maxBytes   int64

	// cacheDir selects the on-disk mode when set
	cacheDir string
}

func (g *gitInspector) cloneConfig(repoURL string) *git.CloneConfig {
	config := &git.CloneConfig{
		URL:      repoURL,
		Depth:    1,
		MaxFiles: g.maxFiles,
		MaxBytes: g.maxBytes,
	}
	if _, _, ok := GitHubOwnerRepo(repoURL); ok && g.token != "" {
		config.Auth = &git.AuthConfig{Username: "x-access-token", Password: g.token}
	}
	return config
}

func (g *gitInspector) inspect(ctx context.Context, candidate candidates.Candidate) (Result, error) {
	config := g.cloneConfig(candidate.URL)

	var (
		repoInfo *git.RepositoryInfo
		err      error
	)
	if g.cacheDir != "" {
		dir := RepoPath(g.cacheDir, candidate.URL)
		if err := os.MkdirAll(filepath.Dir(dir), 0750); err != nil {
			return Result{}, fmt.Errorf("failed to create cache directory: %w", err)
		}
		repoInfo, err = g.client.CloneOrUpdate(ctx, config, dir)
	} else {
		repoInfo, err = g.client.Clone(ctx, config)
	}
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := g.client.Cleanup(ctx, repoInfo); cerr != nil {
			slog.Debug("Failed to release repository", "repository", candidate.URL, "error", cerr)
		}
	}()

	commit, err := g.client.HeadCommit(repoInfo)
	if err != nil {
		return Result{}, err
	}

	names, err := g.client.ListDirectory(repoInfo, markerDir(g.markerPath))
	if errors.Is(err, object.ErrDirectoryNotFound) {
		return classify(g.markerPath, commit, nil), nil
	}
	if err != nil {
		return Result{}, err
	}
	return classify(g.markerPath, commit, names), nil
}

func (*gitInspector) retryable(err error) bool {
	return git.IsTransient(err)
}

// RepoPath returns the cache location of a repository:
// <cacheDir>/<host>/<org>/<name>-<id>, where id is derived from the whole URL
// so repositories sharing a host, org and name still get distinct directories.
// Repositories given as local paths are placed under the host "local".
func RepoPath(cacheDir, repoURL string) string {
	host := "local"
	p := repoURL
	if u, err := url.Parse(repoURL); err == nil && u.Host != "" {
		host = u.Hostname()
		p = u.Path
	}

	var segments []string
	for _, s := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if s != "." && s != ".." {
			segments = append(segments, s)
		}
	}
	for len(segments) < 2 {
		segments = append([]string{"_"}, segments...)
	}
	segments = segments[len(segments)-2:]

	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(repoURL)).String()[:8]
	return filepath.Join(cacheDir, host, segments[0], segments[1]+"-"+id)
}

// GitHubOwnerRepo splits a github.com repository URL into owner and name
func GitHubOwnerRepo(repoURL string) (owner, repo string, ok bool) {
	u, err := url.Parse(repoURL)
	if err != nil || !strings.EqualFold(u.Hostname(), "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}
