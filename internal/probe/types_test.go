package probe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		marker   string
		names    []string
		expected Result
	}{
		{
			name:     "marker present",
			marker:   "source/config.yaml",
			names:    []string{"Font.glyphs", "config.yaml"},
			expected: Result{Outcome: OutcomeHasConfig, Commit: "c", ConfigFiles: []string{"config.yaml"}},
		},
		{
			name:   "sibling configs sorted shortest first",
			marker: "source/config.yaml",
			names:  []string{"config-vf.yml", "config.yaml", "config-italic.yaml", "config-a.yaml"},
			expected: Result{
				Outcome:     OutcomeHasConfig,
				Commit:      "c",
				ConfigFiles: []string{"config.yaml", "config-a.yaml", "config-vf.yml", "config-italic.yaml"},
			},
		},
		{
			name:     "only variant configs",
			marker:   "source/config.yaml",
			names:    []string{"config-vf.yml", "README.md"},
			expected: Result{Outcome: OutcomeNoConfig, Commit: "c", ConfigFiles: []string{"config-vf.yml"}},
		},
		{
			name:     "empty directory",
			marker:   "source/config.yaml",
			names:    nil,
			expected: Result{Outcome: OutcomeNoConfig, Commit: "c"},
		},
		{
			name:     "other marker",
			marker:   "sources/build.yaml",
			names:    []string{"build.yaml"},
			expected: Result{Outcome: OutcomeHasConfig, Commit: "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, classify(tt.marker, "c", tt.names))
		})
	}
}

func TestMarkerDir(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "source", markerDir("source/config.yaml"))
	assert.Equal(t, "source", markerDir("/source/config.yaml"))
	assert.Equal(t, "a/b", markerDir("a/b/config.yaml"))
	assert.Equal(t, "", markerDir("config.yaml"))
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"shallow", "checkout", "github", " GitHub "} {
		_, err := ParseStrategy(s)
		require.NoError(t, err, s)
	}

	strategy, err := ParseStrategy("checkout")
	require.NoError(t, err)
	assert.Equal(t, StrategyCheckout, strategy)

	_, err = ParseStrategy("api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown probe strategy")
}

func TestRepoPath(t *testing.T) {
	t.Parallel()

	cache := filepath.FromSlash("/cache")
	tests := []struct {
		url      string
		expected string
	}{
		{url: "https://github.com/googlefonts/lexend", expected: "/cache/github.com/googlefonts/lexend-1002d6fc"},
		{url: "https://example.com/a.git", expected: "/cache/example.com/_/a.git-692ed9e5"},
		{url: "https://gitlab.com/group/sub/font", expected: "/cache/gitlab.com/sub/font-e8f11603"},
		{url: "/tmp/repos/org/name", expected: "/cache/local/org/name-0ddc78a0"},
		{url: "https://github.com/../../etc", expected: "/cache/github.com/_/etc-41773894"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, filepath.FromSlash(tt.expected), RepoPath(cache, tt.url))
		})
	}
}

func TestRepoPath_Distinct(t *testing.T) {
	t.Parallel()

	cache := t.TempDir()
	urls := []string{
		"https://gitlab.com/g1/fonts/family",
		"https://gitlab.com/g2/fonts/family",
		"https://gitlab.com/fonts/family",
		"https://codeberg.org/fonts/family",
		"/srv/a/fonts/family",
		"/srv/b/fonts/family",
	}

	seen := make(map[string]string, len(urls))
	for _, u := range urls {
		dir := RepoPath(cache, u)
		if other, dup := seen[dir]; dup {
			t.Fatalf("%s and %s share cache directory %s", other, u, dir)
		}
		seen[dir] = u
		assert.Equal(t, dir, RepoPath(cache, u), "cache location must be stable")
	}
}

func TestGitHubOwnerRepo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url   string
		owner string
		repo  string
		ok    bool
	}{
		{url: "https://github.com/googlefonts/lexend", owner: "googlefonts", repo: "lexend", ok: true},
		{url: "https://github.com/googlefonts/lexend.git", owner: "googlefonts", repo: "lexend", ok: true},
		{url: "https://github.com/googlefonts/lexend/tree/main", owner: "googlefonts", repo: "lexend", ok: true},
		{url: "https://github.com/googlefonts", ok: false},
		{url: "https://example.com/a/b", ok: false},
		{url: "/tmp/repo", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			owner, repo, ok := GitHubOwnerRepo(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}
