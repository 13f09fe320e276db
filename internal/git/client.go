package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// ErrNotRepository is returned when an on-disk target exists, is not empty and is not a git repository
var ErrNotRepository = errors.New("directory exists and is not a git repository")

// ErrRemoteMismatch is returned when an existing clone tracks a different remote than the one requested
var ErrRemoteMismatch = errors.New("existing clone tracks a different remote")

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client defines the interface for Git operations
type Client interface {
	// Clone clones a repository into memory. No worktree is checked out.
	Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error)

	// CloneOrUpdate clones a repository into dir, or fetches and hard resets
	// an existing clone there. A failed fetch leaves the working copy untouched.
	CloneOrUpdate(ctx context.Context, config *CloneConfig, dir string) (*RepositoryInfo, error)

	// GetFileContent retrieves the content of a file at HEAD
	GetFileContent(repoInfo *RepositoryInfo, path string) ([]byte, error)

	// ListDirectory returns the names of the files directly inside dir at HEAD, sorted.
	// A missing directory yields object.ErrDirectoryNotFound.
	ListDirectory(repoInfo *RepositoryInfo, dir string) ([]string, error)

	// HeadCommit returns the hash of the commit HEAD points to
	HeadCommit(repoInfo *RepositoryInfo) (string, error)

	// Cleanup releases the memory held by an in-memory clone
	Cleanup(ctx context.Context, repoInfo *RepositoryInfo) error
}

// defaultGitClient implements Client using go-git
type defaultGitClient struct{}

// NewDefaultGitClient creates a new defaultGitClient
func NewDefaultGitClient() Client {
	return &defaultGitClient{}
}

func cloneOptions(config *CloneConfig) *git.CloneOptions {
	opts := &git.CloneOptions{
		URL:   config.URL,
		Depth: config.Depth,
		Tags:  git.NoTags,
	}
	if config.Auth != nil && config.Auth.Username != "" {
		opts.Auth = &githttp.BasicAuth{
			Username: config.Auth.Username,
			Password: config.Auth.Password,
		}
		slog.Debug("Using Git HTTP Basic authentication", "username", config.Auth.Username)
	}
	if config.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(config.Branch)
		opts.SingleBranch = true
	}
	return opts
}

// Clone clones a repository into memory
func (c *defaultGitClient) Clone(ctx context.Context, config *CloneConfig) (*RepositoryInfo, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("repository URL is required")
	}

	maxFiles, maxBytes := config.MaxFiles, config.MaxBytes
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	// Only the object database is materialised; inspection goes through the HEAD tree.
	storerFs := &LimitedFs{
		Filesystem:    memfs.New(),
		MaxFiles:      maxFiles,
		TotalFileSize: maxBytes,
	}
	storerCache := cache.NewObjectLRUDefault()
	storer := filesystem.NewStorage(storerFs, storerCache)

	repo, err := git.CloneContext(ctx, storer, nil, cloneOptions(config))
	if err != nil {
		storerCache.Clear()
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}

	repoInfo := &RepositoryInfo{
		Repository:       repo,
		RemoteURL:        config.URL,
		storerFilesystem: storerFs,
		objectCache:      storerCache,
	}
	if err := c.updateRepositoryInfo(repoInfo); err != nil {
		_ = c.Cleanup(ctx, repoInfo)
		return nil, fmt.Errorf("failed to update repository info: %w", err)
	}
	return repoInfo, nil
}

// CloneOrUpdate clones into dir, or updates the clone already there
func (c *defaultGitClient) CloneOrUpdate(ctx context.Context, config *CloneConfig, dir string) (*RepositoryInfo, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("repository URL is required")
	}

	repo, err := git.PlainOpen(dir)
	switch {
	case err == nil:
		if err := checkRemote(repo, config.URL); err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
		if err := c.update(ctx, repo, config); err != nil {
			return nil, err
		}
	case errors.Is(err, git.ErrRepositoryNotExists):
		empty, err := isEmptyDir(dir)
		if err != nil {
			return nil, err
		}
		if !empty {
			return nil, fmt.Errorf("%s: %w", dir, ErrNotRepository)
		}
		slog.Debug("Cloning repository", "repository", config.URL, "dir", dir)
		repo, err = git.PlainCloneContext(ctx, dir, false, cloneOptions(config))
		if err != nil {
			return nil, fmt.Errorf("failed to clone repository: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to open repository at %s: %w", dir, err)
	}

	repoInfo := &RepositoryInfo{
		Repository: repo,
		RemoteURL:  config.URL,
		Dir:        dir,
	}
	if err := c.updateRepositoryInfo(repoInfo); err != nil {
		return nil, fmt.Errorf("failed to update repository info: %w", err)
	}
	return repoInfo, nil
}

// checkRemote fails unless the origin remote of repo points at url
func checkRemote(repo *git.Repository, url string) error {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRemoteMismatch, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || strings.TrimRight(urls[0], "/") != strings.TrimRight(url, "/") {
		return fmt.Errorf("%w: origin is %v, want %s", ErrRemoteMismatch, urls, url)
	}
	return nil
}

// update fetches the tracked branch and moves the worktree to it. Nothing in
// the worktree changes unless the fetch succeeded.
func (*defaultGitClient) update(ctx context.Context, repo *git.Repository, config *CloneConfig) error {
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	if !head.Name().IsBranch() {
		return fmt.Errorf("HEAD is not on a branch, refusing to update")
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		Depth:      config.Depth,
		Tags:       git.NoTags,
		Force:      true,
	}
	if config.Auth != nil && config.Auth.Username != "" {
		fetchOpts.Auth = &githttp.BasicAuth{
			Username: config.Auth.Username,
			Password: config.Auth.Password,
		}
	}

	slog.Debug("Fetching repository", "repository", config.URL, "branch", head.Name().Short())
	if err := repo.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch repository: %w", err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, head.Name().Short()), true)
	if err != nil {
		return fmt.Errorf("failed to resolve remote branch %s: %w", head.Name().Short(), err)
	}
	if remoteRef.Hash() == head.Hash() {
		return nil
	}

	workTree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := workTree.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset worktree to %s: %w", remoteRef.Hash(), err)
	}
	return nil
}

func headTree(repoInfo *RepositoryInfo) (*object.Tree, error) {
	if repoInfo == nil || repoInfo.Repository == nil {
		return nil, fmt.Errorf("repository is nil")
	}

	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	commit, err := repoInfo.Repository.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object: %w", err)
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	return tree, nil
}

// GetFileContent retrieves the content of a file from the repository
func (*defaultGitClient) GetFileContent(repoInfo *RepositoryInfo, filePath string) ([]byte, error) {
	tree, err := headTree(repoInfo)
	if err != nil {
		return nil, err
	}

	file, err := tree.File(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", filePath, err)
	}

	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read file contents: %w", err)
	}

	return []byte(content), nil
}

// ListDirectory returns the file names in dir at HEAD
func (*defaultGitClient) ListDirectory(repoInfo *RepositoryInfo, dir string) ([]string, error) {
	tree, err := headTree(repoInfo)
	if err != nil {
		return nil, err
	}

	dir = path.Clean(dir)
	if dir != "." && dir != "/" {
		tree, err = tree.Tree(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to get directory %s: %w", dir, err)
		}
	}

	var names []string
	for _, entry := range tree.Entries {
		if entry.Mode.IsFile() {
			names = append(names, entry.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// HeadCommit returns the hash HEAD points to
func (*defaultGitClient) HeadCommit(repoInfo *RepositoryInfo) (string, error) {
	if repoInfo == nil || repoInfo.Repository == nil {
		return "", fmt.Errorf("repository is nil")
	}
	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD reference: %w", err)
	}
	return ref.Hash().String(), nil
}

// Cleanup releases memory held by an in-memory clone. On-disk clones are left in place.
func (*defaultGitClient) Cleanup(_ context.Context, repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	if repoInfo.objectCache != nil {
		repoInfo.objectCache.Clear()
	}
	if repoInfo.storerFilesystem != nil {
		_ = util.RemoveAll(repoInfo.storerFilesystem, "/")
	}

	inMemory := repoInfo.Dir == ""
	repoInfo.objectCache = nil
	repoInfo.storerFilesystem = nil
	repoInfo.Repository = nil

	if inMemory {
		runtime.GC()
	}
	return nil
}

// updateRepositoryInfo updates the repository info with current state
func (*defaultGitClient) updateRepositoryInfo(repoInfo *RepositoryInfo) error {
	if repoInfo == nil || repoInfo.Repository == nil {
		return fmt.Errorf("repository is nil")
	}

	ref, err := repoInfo.Repository.Head()
	if err != nil {
		return fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	if ref.Name().IsBranch() {
		repoInfo.Branch = ref.Name().Short()
	}

	return nil
}

func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	return len(entries) == 0, nil
}
