package git

import (
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
)

const (
	// DefaultMaxFiles is the default limit on files written while cloning into memory
	DefaultMaxFiles = 10 * 1000

	// DefaultMaxBytes is the default limit on bytes written while cloning into memory
	DefaultMaxBytes = 100 * 1024 * 1024
)

// AuthConfig contains HTTP basic authentication settings for a clone
type AuthConfig struct {
	Username string
	Password string
}

// CloneConfig contains configuration for cloning a repository
type CloneConfig struct {
	// URL is the repository URL to clone (a local path is accepted as well)
	URL string

	// Branch is the specific branch to clone (optional, defaults to the remote HEAD)
	Branch string

	// Depth limits the fetched history. Zero means a full clone.
	Depth int

	// Auth is used for private repositories (optional)
	Auth *AuthConfig

	// MaxFiles and MaxBytes bound in-memory clones. Zero selects the defaults.
	MaxFiles int64
	MaxBytes int64
}

// RepositoryInfo contains information about a Git repository
type RepositoryInfo struct {
	// Repository is the go-git repository instance
	Repository *git.Repository

	// Branch is the current branch name
	Branch string

	// RemoteURL is the remote repository URL
	RemoteURL string

	// Dir is the working copy location for on-disk clones, empty for in-memory clones
	Dir string

	// storerFilesystem holds the in-memory filesystem containing the Git object database.
	// It must be cleared in Cleanup() to release memory, go-git does not do this on its own.
	storerFilesystem billy.Filesystem

	// objectCache holds the LRU cache for decompressed Git objects. It is cleared in
	// Cleanup() so the garbage collector can reclaim cached objects.
	objectCache cache.Object
}
