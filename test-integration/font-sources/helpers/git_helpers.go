// Package helpers provides fixtures for the font-sources integration tests.
package helpers

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
)

// GitTestHelper manages Git repositories for testing
type GitTestHelper struct {
	tempDir      string
	repositories []*GitTestRepository
}

// GitTestRepository represents a test Git repository
type GitTestRepository struct {
	Name     string
	Path     string
	CloneURL string
}

// NewGitTestHelper creates a new Git test helper
func NewGitTestHelper() *GitTestHelper {
	tempDir, err := os.MkdirTemp("", "font-repos-*")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return &GitTestHelper{tempDir: tempDir}
}

// CreateRepository creates a repository on a main branch with one initial commit
func (g *GitTestHelper) CreateRepository(name string) *GitTestRepository {
	repoPath := filepath.Join(g.tempDir, name)
	gomega.Expect(os.MkdirAll(repoPath, 0750)).To(gomega.Succeed())

	g.runGitCommand(repoPath, "init", "--initial-branch=main")
	g.runGitCommand(repoPath, "config", "user.name", "Test User")
	g.runGitCommand(repoPath, "config", "user.email", "test@example.com")

	repo := &GitTestRepository{
		Name:     name,
		Path:     repoPath,
		CloneURL: fmt.Sprintf("file://%s", repoPath),
	}
	g.CommitFiles(repo, map[string]string{"README.md": "# " + name + "\n"}, "Initial commit")

	g.repositories = append(g.repositories, repo)
	return repo
}

// CommitFiles writes files into the repository and commits them
func (g *GitTestHelper) CommitFiles(repo *GitTestRepository, files map[string]string, message string) {
	for name, content := range files {
		filePath := filepath.Join(repo.Path, filepath.FromSlash(name))
		gomega.Expect(os.MkdirAll(filepath.Dir(filePath), 0750)).To(gomega.Succeed())
		gomega.Expect(os.WriteFile(filePath, []byte(content), 0600)).To(gomega.Succeed())
		g.runGitCommand(repo.Path, "add", name)
	}
	g.runGitCommand(repo.Path, "commit", "-m", message)
}

// RemoveFiles deletes files from the repository and commits the removal
func (g *GitTestHelper) RemoveFiles(repo *GitTestRepository, message string, names ...string) {
	g.runGitCommand(repo.Path, append([]string{"rm", "-q"}, names...)...)
	g.runGitCommand(repo.Path, "commit", "-m", message)
}

// HeadCommit returns the commit the main branch points at
func (g *GitTestHelper) HeadCommit(repo *GitTestRepository) string {
	return strings.TrimSpace(g.runGitCommand(repo.Path, "rev-parse", "HEAD"))
}

// CleanupRepositories removes all test repositories
func (g *GitTestHelper) CleanupRepositories() error {
	return os.RemoveAll(g.tempDir)
}

// runGitCommand runs a Git command in the specified directory and returns its output
func (*GitTestHelper) runGitCommand(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	gomega.Expect(err).NotTo(gomega.HaveOccurred(),
		"Git command failed: %s\nOutput: %s", cmd.String(), string(output))
	return string(output)
}
