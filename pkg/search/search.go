// Package search provides case-insensitive substring lookup over the
// visible citation nodes, with ordered circular navigation among the
// matches. Matching runs through a single Aho-Corasick automaton built
// from the query.
package search

import (
	"fmt"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/kittclouds/citetree/pkg/tree"
)

// Origin tells where a match was found on a node.
type Origin string

const (
	OriginHighlight  Origin = "highlight"  // the node's captured text
	OriginAnnotation Origin = "annotation" // one of its annotations
)

// Match is a single hit. AnnotationIndex and AnnotationID disambiguate
// annotation hits; both are zero-valued for highlight hits.
// AnnotationIndex is always serialized so a hit on the first annotation
// keeps its position on the wire.
type Match struct {
	Origin          Origin `json:"origin"`
	AnnotationIndex int    `json:"annotationIndex"`
	AnnotationID    int64  `json:"annotationId,omitempty"`
}

// Entry aggregates every match on one node. A node contributes at most
// one entry per search, however many annotations matched.
type Entry struct {
	NodeID  int64   `json:"nodeId"`
	Matches []Match `json:"matches"`
}

// Options controls the match surface.
type Options struct {
	// IncludeAnnotations extends matching to annotation text.
	IncludeAnnotations bool
}

// Searcher holds the current result set and a cursor over it. It is
// constructed and injected like the other engines; it carries no
// reference to storage.
type Searcher struct {
	results []Entry
	cursor  int
}

// NewSearcher creates an empty searcher.
func NewSearcher() *Searcher {
	return &Searcher{cursor: -1}
}

// NormalizeText applies normalization consistent with matching.
// Currently just lowercasing, can be extended for diacritics later.
func NormalizeText(s string) string {
	return strings.ToLower(s)
}

// Search ranks the nodes matching query and resets the cursor to the
// first result. Entries with at least one highlight match sort before
// annotation-only entries; relative order is otherwise preserved.
// Callers pass the visible node set; tombstones are skipped anyway.
func (s *Searcher) Search(query string, nodes []*tree.Node, opts Options) []Entry {
	s.Clear()

	pattern := NormalizeText(strings.TrimSpace(query))
	if pattern == "" {
		return nil
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	ac := builder.Build([]string{pattern})
	contains := func(text string) bool {
		return len(ac.FindAll(NormalizeText(text))) > 0
	}

	var highlighted, annotationOnly []Entry
	for _, n := range nodes {
		if n == nil || n.Deleted {
			continue
		}
		entry := Entry{NodeID: n.ID}
		if contains(n.Text) {
			entry.Matches = append(entry.Matches, Match{Origin: OriginHighlight})
		}
		if opts.IncludeAnnotations {
			for i, a := range n.Annotations {
				if contains(a.Text) {
					entry.Matches = append(entry.Matches, Match{
						Origin:          OriginAnnotation,
						AnnotationIndex: i,
						AnnotationID:    a.ID,
					})
				}
			}
		}
		if len(entry.Matches) == 0 {
			continue
		}
		if entry.Matches[0].Origin == OriginHighlight {
			highlighted = append(highlighted, entry)
		} else {
			annotationOnly = append(annotationOnly, entry)
		}
	}

	s.results = append(highlighted, annotationOnly...)
	if len(s.results) > 0 {
		s.cursor = 0
	}
	return s.results
}

// Results returns the current ranked result set.
func (s *Searcher) Results() []Entry {
	return s.results
}

// Current returns the entry under the cursor, or nil without results.
func (s *Searcher) Current() *Entry {
	if s.cursor < 0 || s.cursor >= len(s.results) {
		return nil
	}
	return &s.results[s.cursor]
}

// Next advances the cursor, wrapping past the last result.
func (s *Searcher) Next() *Entry {
	if len(s.results) == 0 {
		return nil
	}
	s.cursor = (s.cursor + 1) % len(s.results)
	return &s.results[s.cursor]
}

// Previous moves the cursor back, wrapping before the first result.
func (s *Searcher) Previous() *Entry {
	if len(s.results) == 0 {
		return nil
	}
	s.cursor = (s.cursor - 1 + len(s.results)) % len(s.results)
	return &s.results[s.cursor]
}

// Counter renders the position as "i of n"; with no results it is the
// explicit "0 of 0" state, never an error.
func (s *Searcher) Counter() string {
	if len(s.results) == 0 {
		return "0 of 0"
	}
	return fmt.Sprintf("%d of %d", s.cursor+1, len(s.results))
}

// Clear resets results and cursor to the empty state.
func (s *Searcher) Clear() {
	s.results = nil
	s.cursor = -1
}
