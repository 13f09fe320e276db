// Package git provides the Git repository operations used to read the font
// catalog and to probe upstream font repositories.
//
// This package is a thin wrapper around go-git with two clone modes:
//
//   - Clone: a bare clone into an in-memory filesystem (go-billy memfs), bounded
//     by LimitedFs so a single huge repository cannot exhaust memory. Cleanup
//     releases the object cache and filesystem.
//   - CloneOrUpdate: a clone into a directory on disk that is reused across
//     runs. An existing clone is fetched first and only then hard reset to the
//     fetched branch head, so a failed fetch leaves the previous working copy intact.
//
// Both modes are inspected the same way, through the tree of the commit HEAD
// points to (GetFileContent, ListDirectory, HeadCommit).
//
// # Example Usage
//
//	client := git.NewDefaultGitClient()
//	repoInfo, err := client.Clone(ctx, &git.CloneConfig{
//	    URL:   "https://github.com/googlefonts/example",
//	    Depth: 1,
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Cleanup(ctx, repoInfo)
//
//	names, err := client.ListDirectory(repoInfo, "source")
//
// Errors from go-git are wrapped with %w; IsRepositoryNotFound, IsAuthRequired
// and IsTransient classify them for retry decisions.
package git
