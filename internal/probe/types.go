package probe

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/stacklok/font-sources/internal/candidates"
)

// Outcome classifies a probed repository
type Outcome string

const (
	// OutcomeHasConfig means the marker file exists at HEAD
	OutcomeHasConfig Outcome = "has_config"
	// OutcomeNoConfig means the repository was readable and has no marker file
	OutcomeNoConfig Outcome = "no_config"
	// OutcomeUnreachable means the repository could not be read
	OutcomeUnreachable Outcome = "unreachable"
)

// Strategy selects how repositories are inspected
type Strategy string

const (
	// StrategyShallow clones the repository objects into memory at depth 1
	StrategyShallow Strategy = "shallow"
	// StrategyCheckout clones into a persistent cache directory on disk
	StrategyCheckout Strategy = "checkout"
	// StrategyGitHub lists the marker directory through the GitHub API, and
	// falls back to StrategyShallow for repositories hosted elsewhere
	StrategyGitHub Strategy = "github"
)

// DefaultMarkerPath is the file whose presence marks a repository as buildable
const DefaultMarkerPath = "source/config.yaml"

// Strategies lists the accepted strategy names
var Strategies = []Strategy{StrategyShallow, StrategyCheckout, StrategyGitHub}

// ParseStrategy returns the Strategy named by s
func ParseStrategy(s string) (Strategy, error) {
	for _, strategy := range Strategies {
		if string(strategy) == strings.ToLower(strings.TrimSpace(s)) {
			return strategy, nil
		}
	}
	return "", fmt.Errorf("unknown probe strategy %q (valid: %s, %s, %s)",
		s, StrategyShallow, StrategyCheckout, StrategyGitHub)
}

// Result is the outcome of probing one repository
type Result struct {
	Outcome Outcome

	// Commit is the HEAD commit the repository was inspected at, when known
	Commit string

	// ConfigFiles lists the config*.yaml and config*.yml files found next to
	// the marker path, shortest name first
	ConfigFiles []string

	// Error describes why the repository was unreachable
	Error string
}

//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks -source=types.go Prober

// Prober determines whether a repository carries the marker file.
// Failures are reported as OutcomeUnreachable, never as errors.
type Prober interface {
	Probe(ctx context.Context, candidate candidates.Candidate) Result
}

// classify builds a Result from the file names found in the marker directory
func classify(markerPath, commit string, names []string) Result {
	markerName := path.Base(markerPath)
	result := Result{Outcome: OutcomeNoConfig, Commit: commit}

	for _, name := range names {
		if name == markerName {
			result.Outcome = OutcomeHasConfig
		}
		if isConfigFile(name) {
			result.ConfigFiles = append(result.ConfigFiles, name)
		}
	}

	sort.Slice(result.ConfigFiles, func(i, j int) bool {
		a, b := result.ConfigFiles[i], result.ConfigFiles[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return result
}

func isConfigFile(name string) bool {
	name = strings.ToLower(name)
	return strings.HasPrefix(name, "config") &&
		(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml"))
}

func markerDir(markerPath string) string {
	return path.Dir(path.Clean("/" + markerPath))[1:]
}
