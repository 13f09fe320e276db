// Package candidates groups font records by the upstream repository they reference.
package candidates

import (
	"log/slog"

	"github.com/stacklok/font-sources/internal/metadata"
)

// Candidate is a unique repository referenced by one or more font families
type Candidate struct {
	// URL is the normalized repository URL, the deduplication key
	URL string

	// Fonts lists the families that reference the repository, in catalog order
	Fonts []string
}

// Build returns one Candidate per distinct repository URL, in the order the
// repositories are first referenced. Records without a repository are skipped.
func Build(records []*metadata.FontRecord) []Candidate {
	var result []Candidate
	index := make(map[string]int)

	for _, record := range records {
		if record == nil || !record.HasRepository() {
			continue
		}

		i, seen := index[record.RepositoryURL]
		if !seen {
			index[record.RepositoryURL] = len(result)
			result = append(result, Candidate{
				URL:   record.RepositoryURL,
				Fonts: []string{record.Name},
			})
			continue
		}

		slog.Debug("Repository already referenced",
			"repository", record.RepositoryURL,
			"font", record.Name,
			"first_font", result[i].Fonts[0])
		result[i].Fonts = append(result[i].Fonts, record.Name)
	}

	return result
}

// URLs returns the repository URLs of cs in order
func URLs(cs []Candidate) []string {
	urls := make([]string, 0, len(cs))
	for _, c := range cs {
		urls = append(urls, c.URL)
	}
	return urls
}
