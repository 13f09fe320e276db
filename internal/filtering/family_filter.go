package filtering

import (
	"fmt"

	"github.com/gobwas/glob"
)

type pattern struct {
	source string
	glob   glob.Glob
}

// FamilyFilter decides which families take part in a run
type FamilyFilter struct {
	include []pattern
	exclude []pattern
}

// NewFamilyFilter compiles include and exclude patterns
func NewFamilyFilter(include, exclude []string) (*FamilyFilter, error) {
	inc, err := compile("include", include)
	if err != nil {
		return nil, err
	}
	exc, err := compile("exclude", exclude)
	if err != nil {
		return nil, err
	}
	return &FamilyFilter{include: inc, exclude: exc}, nil
}

func compile(kind string, sources []string) ([]pattern, error) {
	patterns := make([]pattern, 0, len(sources))
	for i, src := range sources {
		g, err := glob.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %d %q: %w", kind, i, src, err)
		}
		patterns = append(patterns, pattern{source: src, glob: g})
	}
	return patterns, nil
}

// Empty reports whether the filter keeps every family
func (f *FamilyFilter) Empty() bool {
	return f == nil || len(f.include) == 0 && len(f.exclude) == 0
}

// ShouldInclude reports whether name is kept and why
func (f *FamilyFilter) ShouldInclude(name string) (bool, string) {
	if f.Empty() {
		return true, "no family filters specified"
	}

	for _, p := range f.exclude {
		if p.glob.Match(name) {
			return false, fmt.Sprintf("excluded by pattern '%s'", p.source)
		}
	}

	if len(f.include) > 0 {
		for _, p := range f.include {
			if p.glob.Match(name) {
				return true, fmt.Sprintf("included by pattern '%s'", p.source)
			}
		}
		return false, "no match found in include patterns"
	}

	return true, "no match in exclude patterns"
}
