package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/stacklok/font-sources/internal/probe"
)

// WriteSummary writes a human readable overview of the report: the number of
// fonts and repositories per outcome, followed by how often each config file
// name occurs among repositories that have one.
func (r *Report) WriteSummary(w io.Writer) error {
	fonts := make(map[string]int)
	repos := make(map[string]map[string]struct{})
	configNames := make(map[string]map[string]struct{})

	for _, entry := range r.Fonts {
		key := "no repository"
		if entry.Probe != nil {
			key = string(*entry.Probe)
		} else if entry.Repository != nil {
			key = "not probed"
		}
		fonts[key]++
		if entry.Repository == nil {
			continue
		}

		if repos[key] == nil {
			repos[key] = make(map[string]struct{})
		}
		repos[key][*entry.Repository] = struct{}{}

		for _, name := range entry.ConfigFiles {
			if configNames[name] == nil {
				configNames[name] = make(map[string]struct{})
			}
			configNames[name][*entry.Repository] = struct{}{}
		}
	}

	outcomes := tablewriter.NewWriter(w)
	outcomes.Header("Outcome", "Fonts", "Repositories")
	for _, key := range []string{
		string(probe.OutcomeHasConfig),
		string(probe.OutcomeNoConfig),
		string(probe.OutcomeUnreachable),
		"not probed",
		"no repository",
	} {
		if fonts[key] == 0 {
			continue
		}
		if err := outcomes.Append([]string{key, strconv.Itoa(fonts[key]), strconv.Itoa(len(repos[key]))}); err != nil {
			return fmt.Errorf("%w: %w", ErrOutputWrite, err)
		}
	}
	if err := outcomes.Render(); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	if len(configNames) == 0 {
		return nil
	}

	names := make([]string, 0, len(configNames))
	for name := range configNames {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := len(configNames[names[i]]), len(configNames[names[j]])
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})

	configs := tablewriter.NewWriter(w)
	configs.Header("Config File", "Repositories")
	for _, name := range names {
		if err := configs.Append([]string{name, strconv.Itoa(len(configNames[name]))}); err != nil {
			return fmt.Errorf("%w: %w", ErrOutputWrite, err)
		}
	}
	if err := configs.Render(); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}
	return nil
}
