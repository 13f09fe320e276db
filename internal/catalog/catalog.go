// Package catalog provides a local working copy of the Google Fonts catalog
// repository and enumerates the metadata records it contains.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/gofrs/flock"

	"github.com/stacklok/font-sources/internal/git"
	"github.com/stacklok/font-sources/internal/metadata"
)

// DefaultURL is the upstream catalog repository
const DefaultURL = "https://github.com/google/fonts"

// DefaultLicenseDirs are the top level catalog directories holding font families
var DefaultLicenseDirs = []string{"apache", "ofl", "ufl"}

// ErrSourceUnavailable is returned when the catalog cannot be cloned, updated or opened
var ErrSourceUnavailable = errors.New("metadata source unavailable")

const lockRetryDelay = 250 * time.Millisecond

// Location describes where the catalog comes from
type Location struct {
	// Path is a working copy to create or reuse. Empty means a temporary
	// checkout removed by Checkout.Close.
	Path string

	// URL defaults to DefaultURL
	URL string

	// Branch defaults to the remote HEAD
	Branch string

	// Offline reuses Path as is, without contacting the remote
	Offline bool

	// LicenseDirs defaults to DefaultLicenseDirs
	LicenseDirs []string
}

// Checkout is a catalog working copy ready to be read
type Checkout struct {
	// Dir is the root of the working copy
	Dir string

	// Commit is the catalog commit being read, empty for an offline snapshot that is not a repository
	Commit string

	licenseDirs []string
	temporary   bool

	// unlock releases the update lock of a persistent checkout
	unlock func()
}

// Accessor opens catalog working copies
type Accessor struct {
	client git.Client
}

// NewAccessor returns an Accessor that uses client for git operations
func NewAccessor(client git.Client) *Accessor {
	return &Accessor{client: client}
}

// Open returns an up to date catalog checkout for loc. A persistent checkout
// stays locked until Close. All failures wrap ErrSourceUnavailable. There is
// no automatic retry.
func (a *Accessor) Open(ctx context.Context, loc Location) (*Checkout, error) {
	if loc.URL == "" {
		loc.URL = DefaultURL
	}
	licenseDirs := loc.LicenseDirs
	if len(licenseDirs) == 0 {
		licenseDirs = DefaultLicenseDirs
	}

	if loc.Offline {
		return openOffline(loc.Path, licenseDirs)
	}

	temporary := loc.Path == ""
	dir := loc.Path
	release := func() {}
	if temporary {
		tmp, err := os.MkdirTemp("", "font-sources-catalog-")
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create temporary directory: %w", ErrSourceUnavailable, err)
		}
		dir = tmp
		release = func() { _ = os.RemoveAll(dir) }
	} else {
		if err := os.MkdirAll(filepath.Dir(dir), 0750); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		unlock, err := lockCheckout(ctx, dir)
		if err != nil {
			return nil, err
		}
		release = unlock
	}

	slog.Info("Updating font catalog", "url", loc.URL, "path", dir)
	start := time.Now()

	repoInfo, err := a.client.CloneOrUpdate(ctx, &git.CloneConfig{
		URL:    loc.URL,
		Branch: loc.Branch,
		Depth:  1,
	}, dir)
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	defer func() {
		_ = a.client.Cleanup(ctx, repoInfo)
	}()

	commit, err := a.client.HeadCommit(repoInfo)
	if err != nil {
		release()
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	slog.Info("Font catalog ready",
		"path", dir,
		"commit", commit,
		"duration", time.Since(start))

	checkout := &Checkout{Dir: dir, Commit: commit, licenseDirs: licenseDirs, temporary: temporary}
	if !temporary {
		checkout.unlock = release
	}
	return checkout, nil
}

func openOffline(dir string, licenseDirs []string) (*Checkout, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: offline mode needs a catalog path", ErrSourceUnavailable)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, dir)
	}

	checkout := &Checkout{Dir: dir, licenseDirs: licenseDirs}
	if repo, err := gogit.PlainOpen(dir); err == nil {
		if head, err := repo.Head(); err == nil {
			checkout.Commit = head.Hash().String()
		}
	}

	slog.Info("Using offline font catalog", "path", dir, "commit", checkout.Commit)
	return checkout, nil
}

// lockCheckout takes the advisory lock guarding dir. It is held until the
// Checkout is closed so no other run resets the tree while it is being read.
func lockCheckout(ctx context.Context, dir string) (func(), error) {
	lock := flock.New(dir + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lock %s: %w", ErrSourceUnavailable, dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s is locked by another process", ErrSourceUnavailable, dir)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release catalog lock", "path", lock.Path(), "error", err)
		}
	}, nil
}

// Records returns the paths of all family metadata records, sorted
func (c *Checkout) Records() ([]string, error) {
	var records []string

	for _, license := range c.licenseDirs {
		licenseDir := filepath.Join(c.Dir, license)
		families, err := os.ReadDir(licenseDir)
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("License directory not found", "path", licenseDir)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", licenseDir, err)
		}

		for _, family := range families {
			if !family.IsDir() {
				continue
			}
			record := filepath.Join(licenseDir, family.Name(), metadata.FileName)
			if _, err := os.Stat(record); err != nil {
				slog.Debug("Family directory without metadata", "path", filepath.Dir(record))
				continue
			}
			records = append(records, record)
		}
	}

	sort.Strings(records)
	return records, nil
}

// Close removes a temporary checkout and releases the update lock of a
// persistent one. Persistent checkouts are left in place.
func (c *Checkout) Close() error {
	if c.unlock != nil {
		c.unlock()
		c.unlock = nil
	}
	if !c.temporary {
		return nil
	}
	if err := os.RemoveAll(c.Dir); err != nil {
		return fmt.Errorf("failed to remove temporary catalog %s: %w", c.Dir, err)
	}
	return nil
}
