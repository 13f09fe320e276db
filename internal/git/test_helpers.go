package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TestRepoConfig contains configuration for creating a test repository
type TestRepoConfig struct {
	Files  map[string]string // Map of filename to content
	Author *object.Signature // Author for commits (uses default if nil)
}

// CreateTestRepo creates a Git repository in a test temp directory with the specified
// files in a single commit. Returns the repository path; removal is registered with t.Cleanup.
func CreateTestRepo(t *testing.T, config TestRepoConfig) string {
	t.Helper()

	repoDir := t.TempDir()

	if _, err := git.PlainInit(repoDir, false); err != nil {
		t.Fatalf("Failed to init repository: %v", err)
	}

	CommitFiles(t, repoDir, config)
	return repoDir
}

// CommitFiles writes files into an existing test repository and commits them.
// Returns the new commit hash.
func CommitFiles(t *testing.T, repoDir string, config TestRepoConfig) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("Failed to open repository: %v", err)
	}

	workTree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Failed to get worktree: %v", err)
	}

	author := config.Author
	if author == nil {
		author = &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Now(),
		}
	}

	for filename, content := range config.Files {
		filePath := filepath.Join(repoDir, filepath.FromSlash(filename))

		if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", filename, err)
		}

		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write file %s: %v", filename, err)
		}

		if _, err := workTree.Add(filename); err != nil {
			t.Fatalf("Failed to add file %s: %v", filename, err)
		}
	}

	hash, err := workTree.Commit("Test commit", &git.CommitOptions{
		Author:            author,
		AllowEmptyCommits: len(config.Files) == 0,
	})
	if err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}
	return hash
}
