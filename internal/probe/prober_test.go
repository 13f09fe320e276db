package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/font-sources/internal/candidates"
	"github.com/stacklok/font-sources/internal/git"
	"github.com/stacklok/font-sources/internal/git/mocks"
)

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Strategy: StrategyCheckout})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache directory")

	_, err = New(Options{Strategy: "svn"})
	require.Error(t, err)

	p, err := New(Options{})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestProbe_GitStrategies(t *testing.T) {
	t.Parallel()

	withConfig := git.CreateTestRepo(t, git.TestRepoConfig{Files: map[string]string{
		"README.md":            "# Alpha",
		"source/config.yaml":   "sources:\n  - Alpha.glyphs\n",
		"source/config-vf.yml": "sources:\n  - AlphaVF.glyphs\n",
		"source/Alpha.glyphs":  "{}",
	}})
	variantOnly := git.CreateTestRepo(t, git.TestRepoConfig{Files: map[string]string{
		"source/config-vf.yml": "sources: []\n",
	}})
	noSourceDir := git.CreateTestRepo(t, git.TestRepoConfig{Files: map[string]string{
		"sources/config.yaml": "sources: []\n",
	}})

	tests := []struct {
		name        string
		url         string
		outcome     Outcome
		configFiles []string
	}{
		{name: "marker present", url: withConfig, outcome: OutcomeHasConfig, configFiles: []string{"config.yaml", "config-vf.yml"}},
		{name: "variant config only", url: variantOnly, outcome: OutcomeNoConfig, configFiles: []string{"config-vf.yml"}},
		{name: "marker directory missing", url: noSourceDir, outcome: OutcomeNoConfig},
		{name: "repository missing", url: "/nonexistent/font/repository", outcome: OutcomeUnreachable},
	}

	for _, strategy := range []Strategy{StrategyShallow, StrategyCheckout} {
		for _, tt := range tests {
			t.Run(string(strategy)+"/"+tt.name, func(t *testing.T) {
				t.Parallel()

				p, err := New(Options{Strategy: strategy, CacheDir: t.TempDir(), Retry: fastRetry()})
				require.NoError(t, err)

				result := p.Probe(context.Background(), candidates.Candidate{URL: tt.url, Fonts: []string{"Alpha"}})
				assert.Equal(t, tt.outcome, result.Outcome)
				assert.Equal(t, tt.configFiles, result.ConfigFiles)
				if tt.outcome == OutcomeUnreachable {
					assert.NotEmpty(t, result.Error)
					assert.Empty(t, result.Commit)
				} else {
					assert.Empty(t, result.Error)
					assert.Len(t, result.Commit, 40)
				}
			})
		}
	}
}

func TestProbe_Idempotent(t *testing.T) {
	t.Parallel()

	repo := git.CreateTestRepo(t, git.TestRepoConfig{Files: map[string]string{"source/config.yaml": "sources: []\n"}})
	cacheDir := t.TempDir()
	p, err := New(Options{Strategy: StrategyCheckout, CacheDir: cacheDir})
	require.NoError(t, err)

	candidate := candidates.Candidate{URL: repo}
	first := p.Probe(context.Background(), candidate)
	second := p.Probe(context.Background(), candidate)

	assert.Equal(t, OutcomeHasConfig, first.Outcome)
	assert.Equal(t, first, second)

	_, err = os.Stat(RepoPath(cacheDir, repo))
	require.NoError(t, err, "checkout should be kept in the cache directory")
}

func TestCheckoutStrategy_KeepsSameNamedRepositoriesApart(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	newRepo := func(group string, files map[string]string) string {
		dir := filepath.Join(base, group, "fonts", "family")
		_, err := gogit.PlainInit(dir, false)
		require.NoError(t, err)
		git.CommitFiles(t, dir, git.TestRepoConfig{Files: files})
		return dir
	}
	withConfig := newRepo("groupA", map[string]string{"source/config.yaml": "sources: []\n"})
	withoutConfig := newRepo("groupB", map[string]string{"README.md": "# Family"})

	cacheDir := t.TempDir()
	p, err := New(Options{Strategy: StrategyCheckout, CacheDir: cacheDir, Retry: fastRetry()})
	require.NoError(t, err)

	assert.Equal(t, OutcomeHasConfig, p.Probe(context.Background(), candidates.Candidate{URL: withConfig}).Outcome)
	assert.Equal(t, OutcomeNoConfig, p.Probe(context.Background(), candidates.Candidate{URL: withoutConfig}).Outcome)

	// A clone of another repository already sitting in the target directory is not reused
	foreign := RepoPath(cacheDir, withoutConfig+"/")
	require.NoError(t, os.MkdirAll(filepath.Dir(foreign), 0750))
	require.NoError(t, os.Rename(RepoPath(cacheDir, withConfig), foreign))

	result := p.Probe(context.Background(), candidates.Candidate{URL: withoutConfig + "/"})
	assert.Equal(t, OutcomeUnreachable, result.Outcome)
	assert.Contains(t, result.Error, git.ErrRemoteMismatch.Error())
}

func TestProbe_CustomMarker(t *testing.T) {
	t.Parallel()

	repo := git.CreateTestRepo(t, git.TestRepoConfig{Files: map[string]string{"config.yaml": "sources: []\n"}})

	p, err := New(Options{MarkerPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHasConfig, p.Probe(context.Background(), candidates.Candidate{URL: repo}).Outcome)

	p, err = New(Options{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoConfig, p.Probe(context.Background(), candidates.Candidate{URL: repo}).Outcome)
}

func TestProbe_RetryClassification(t *testing.T) {
	t.Parallel()

	candidate := candidates.Candidate{URL: "https://github.com/googlefonts/alpha"}

	tests := []struct {
		name      string
		setup     func(m *mocks.MockClient)
		outcome   Outcome
		errorText string
	}{
		{
			name: "transient errors are retried",
			setup: func(m *mocks.MockClient) {
				repoInfo := &git.RepositoryInfo{}
				gomock.InOrder(
					m.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(nil, netTimeout{}).Times(2),
					m.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(repoInfo, nil),
				)
				m.EXPECT().HeadCommit(repoInfo).Return("0123456789abcdef0123456789abcdef01234567", nil)
				m.EXPECT().ListDirectory(repoInfo, "source").Return([]string{"config.yaml"}, nil)
				m.EXPECT().Cleanup(gomock.Any(), repoInfo).Return(nil)
			},
			outcome: OutcomeHasConfig,
		},
		{
			name: "retries are bounded",
			setup: func(m *mocks.MockClient) {
				m.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(nil, netTimeout{}).Times(3)
			},
			outcome:   OutcomeUnreachable,
			errorText: "i/o timeout",
		},
		{
			name: "missing repository is not retried",
			setup: func(m *mocks.MockClient) {
				m.EXPECT().Clone(gomock.Any(), gomock.Any()).
					Return(nil, transport.ErrRepositoryNotFound).Times(1)
			},
			outcome:   OutcomeUnreachable,
			errorText: "repository not found",
		},
		{
			name: "authentication failure is not retried",
			setup: func(m *mocks.MockClient) {
				m.EXPECT().Clone(gomock.Any(), gomock.Any()).
					Return(nil, transport.ErrAuthenticationRequired).Times(1)
			},
			outcome:   OutcomeUnreachable,
			errorText: "authentication required",
		},
		{
			name: "size limit is not retried",
			setup: func(m *mocks.MockClient) {
				m.EXPECT().Clone(gomock.Any(), gomock.Any()).
					Return(nil, git.ErrLimitExceeded).Times(1)
			},
			outcome: OutcomeUnreachable,
		},
		{
			name: "missing marker directory",
			setup: func(m *mocks.MockClient) {
				repoInfo := &git.RepositoryInfo{}
				m.EXPECT().Clone(gomock.Any(), gomock.Any()).Return(repoInfo, nil)
				m.EXPECT().HeadCommit(repoInfo).Return("0123456789abcdef0123456789abcdef01234567", nil)
				m.EXPECT().ListDirectory(repoInfo, "source").Return(nil, object.ErrDirectoryNotFound)
				m.EXPECT().Cleanup(gomock.Any(), repoInfo).Return(errors.New("already released"))
			},
			outcome: OutcomeNoConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			tt.setup(client)

			p, err := New(Options{GitClient: client, Retry: fastRetry()})
			require.NoError(t, err)

			result := p.Probe(context.Background(), candidate)
			assert.Equal(t, tt.outcome, result.Outcome)
			assert.Contains(t, result.Error, tt.errorText)
		})
	}
}

func TestProbe_AuthenticatesGitHubClones(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	var configs []*git.CloneConfig
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, config *git.CloneConfig) (*git.RepositoryInfo, error) {
			configs = append(configs, config)
			return nil, transport.ErrRepositoryNotFound
		}).Times(2)

	p, err := New(Options{GitClient: client, Token: "secret", MaxRepoFiles: 10, MaxRepoBytes: 1024})
	require.NoError(t, err)

	p.Probe(context.Background(), candidates.Candidate{URL: "https://github.com/googlefonts/alpha"})
	p.Probe(context.Background(), candidates.Candidate{URL: "https://example.com/a.git"})

	require.Len(t, configs, 2)
	require.NotNil(t, configs[0].Auth)
	assert.Equal(t, "secret", configs[0].Auth.Password)
	assert.Equal(t, 1, configs[0].Depth)
	assert.Equal(t, int64(10), configs[0].MaxFiles)
	assert.Equal(t, int64(1024), configs[0].MaxBytes)
	assert.Nil(t, configs[1].Auth, "token must not be sent to other hosts")
}

func TestProbe_Timeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Clone(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *git.CloneConfig) (*git.RepositoryInfo, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	p, err := New(Options{GitClient: client, Timeout: 20 * time.Millisecond, Retry: fastRetry()})
	require.NoError(t, err)

	result := p.Probe(context.Background(), candidates.Candidate{URL: "https://example.com/slow.git"})
	assert.Equal(t, OutcomeUnreachable, result.Outcome)
	assert.Contains(t, result.Error, "timed out")
}
