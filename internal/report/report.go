// Package report aggregates probe results into the per-font discovery report.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/stacklok/font-sources/internal/metadata"
	"github.com/stacklok/font-sources/internal/probe"
)

// ErrOutputWrite is returned when the report cannot be written
var ErrOutputWrite = errors.New("failed to write report")

// Entry is the report line for one font family
type Entry struct {
	// Repository is nil for fonts whose metadata names no repository
	Repository *string `json:"repository"`

	// Probe is nil when there was nothing to probe
	Probe *probe.Outcome `json:"probe"`

	Commit      string   `json:"commit,omitempty"`
	ConfigFiles []string `json:"config_files,omitempty"`
	Error       string   `json:"error,omitempty"`

	// PinnedCommit and ConfigPath come from the font's metadata record
	PinnedCommit string `json:"pinned_commit,omitempty"`
	ConfigPath   string `json:"config_path,omitempty"`

	// RevConflict is set when fonts sharing the repository pin different commits
	RevConflict bool `json:"rev_conflict,omitempty"`
}

// Report maps font family names to their entries
type Report struct {
	Fonts map[string]Entry
}

// Build creates the report for records, looking up probe results by
// repository URL. Every record appears in the report.
func Build(records []*metadata.FontRecord, results map[string]probe.Result) *Report {
	r := &Report{Fonts: make(map[string]Entry, len(records))}
	pinned := make(map[string]map[string]struct{})

	for _, record := range records {
		if record == nil {
			continue
		}
		if _, dup := r.Fonts[record.Name]; dup {
			slog.Warn("Duplicate font family name, keeping first record",
				"font", record.Name,
				"path", record.Path)
			continue
		}

		entry := Entry{PinnedCommit: record.Commit, ConfigPath: record.ConfigYAML}
		if record.HasRepository() {
			repository := record.RepositoryURL
			entry.Repository = &repository
			if result, ok := results[repository]; ok {
				outcome := result.Outcome
				entry.Probe = &outcome
				entry.Commit = result.Commit
				entry.ConfigFiles = result.ConfigFiles
				entry.Error = result.Error
			}
			if record.Commit != "" {
				if pinned[repository] == nil {
					pinned[repository] = make(map[string]struct{})
				}
				pinned[repository][record.Commit] = struct{}{}
			}
		}
		r.Fonts[record.Name] = entry
	}

	for name, entry := range r.Fonts {
		if entry.Repository != nil && len(pinned[*entry.Repository]) > 1 {
			entry.RevConflict = true
			r.Fonts[name] = entry
		}
	}

	return r
}

// Len returns the number of fonts in the report
func (r *Report) Len() int {
	return len(r.Fonts)
}

// Count returns the number of fonts whose probe ended with outcome
func (r *Report) Count(outcome probe.Outcome) int {
	n := 0
	for _, entry := range r.Fonts {
		if entry.Probe != nil && *entry.Probe == outcome {
			n++
		}
	}
	return n
}

// RevConflicts returns the repositories whose fonts pin different commits, sorted
func (r *Report) RevConflicts() []string {
	seen := make(map[string]struct{})
	for _, entry := range r.Fonts {
		if entry.RevConflict {
			seen[*entry.Repository] = struct{}{}
		}
	}

	repos := make([]string, 0, len(seen))
	for repo := range seen {
		repos = append(repos, repo)
	}
	sort.Strings(repos)
	return repos
}

// MarshalJSON encodes the report as an object keyed by font name.
// Keys are sorted, so equal reports encode to identical bytes.
func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fonts)
}

// Write writes the report as indented JSON
func (r *Report) Write(w io.Writer) error {
	data, err := json.MarshalIndent(r.Fonts, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}
	return nil
}

// WriteRepositoryList writes the distinct urls sorted, one per line
func WriteRepositoryList(w io.Writer, urls []string) error {
	sorted := slices.Clone(urls)
	sort.Strings(sorted)
	for _, url := range slices.Compact(sorted) {
		if _, err := fmt.Fprintln(w, url); err != nil {
			return fmt.Errorf("%w: %w", ErrOutputWrite, err)
		}
	}
	return nil
}
