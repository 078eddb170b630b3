package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/citetree/pkg/tree"
)

func ptr(id int64) *int64 { return &id }

func corpus() []*tree.Node {
	return []*tree.Node{
		{ID: 1, Text: "notes on set theory", Children: []int64{}},
		{ID: 3, Text: "an introduction to graph theory", Children: []int64{}},
		{
			ID:       5,
			Text:     "chromatic numbers",
			Children: []int64{},
			Annotations: []tree.Annotation{
				{ID: 1, Text: "see also topology", Timestamp: 1},
				{ID: 2, Text: "graph coloring is the key example", Timestamp: 2},
			},
		},
		{ID: 8, Text: "unrelated bookmark", Children: []int64{}},
	}
}

func TestSearchHighlightBeatsAnnotation(t *testing.T) {
	s := NewSearcher()

	results := s.Search("graph", corpus(), Options{IncludeAnnotations: true})

	require.Len(t, results, 2)
	assert.Equal(t, int64(3), results[0].NodeID, "highlight match ranks first")
	assert.Equal(t, int64(5), results[1].NodeID)

	require.Len(t, results[0].Matches, 1)
	assert.Equal(t, OriginHighlight, results[0].Matches[0].Origin)

	require.Len(t, results[1].Matches, 1)
	m := results[1].Matches[0]
	assert.Equal(t, OriginAnnotation, m.Origin)
	assert.Equal(t, 1, m.AnnotationIndex)
	assert.Equal(t, int64(2), m.AnnotationID)
}

func TestSearchAggregatesMatchesPerNode(t *testing.T) {
	nodes := []*tree.Node{
		{
			ID:       2,
			Text:     "graph layouts",
			Children: []int64{},
			Annotations: []tree.Annotation{
				{ID: 1, Text: "force-directed graph drawing"},
				{ID: 2, Text: "graph grids"},
			},
		},
	}
	s := NewSearcher()

	results := s.Search("graph", nodes, Options{IncludeAnnotations: true})

	require.Len(t, results, 1, "one entry per node, however many annotations match")
	require.Len(t, results[0].Matches, 3)
	assert.Equal(t, OriginHighlight, results[0].Matches[0].Origin)
}

func TestSearchCaseInsensitive(t *testing.T) {
	s := NewSearcher()

	results := s.Search("GRAPH Theory", corpus(), Options{})
	require.Len(t, results, 1)
	assert.Equal(t, int64(3), results[0].NodeID)
}

func TestSearchWithoutAnnotations(t *testing.T) {
	s := NewSearcher()

	results := s.Search("graph", corpus(), Options{IncludeAnnotations: false})
	require.Len(t, results, 1)
	assert.Equal(t, int64(3), results[0].NodeID)
}

func TestSearchSkipsTombstones(t *testing.T) {
	nodes := corpus()
	nodes[1].Deleted = true
	s := NewSearcher()

	results := s.Search("graph", nodes, Options{IncludeAnnotations: true})
	require.Len(t, results, 1)
	assert.Equal(t, int64(5), results[0].NodeID)
}

func TestSearchPreservesRelativeOrder(t *testing.T) {
	nodes := []*tree.Node{
		{ID: 1, Text: "alpha graph", Children: []int64{}},
		{ID: 2, Text: "beta graph", Children: []int64{}},
		{ID: 3, Text: "plain", Children: []int64{}, Annotations: []tree.Annotation{{ID: 1, Text: "graph note"}}},
		{ID: 4, Text: "gamma graph", Children: []int64{}},
	}
	s := NewSearcher()

	results := s.Search("graph", nodes, Options{IncludeAnnotations: true})
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.NodeID
	}
	assert.Equal(t, []int64{1, 2, 4, 3}, ids, "stable sort: highlights keep order, annotation-only sinks")
}

func TestFirstAnnotationKeepsIndexOnTheWire(t *testing.T) {
	// A hit on annotation 0 must still carry its position once
	// serialized, or the host cannot tell it from a highlight match.
	nodes := []*tree.Node{
		{
			ID:       4,
			Text:     "plain",
			Children: []int64{},
			Annotations: []tree.Annotation{
				{ID: 9, Text: "graph note"},
			},
		},
	}
	s := NewSearcher()

	results := s.Search("graph", nodes, Options{IncludeAnnotations: true})
	require.Len(t, results, 1)

	data, err := json.Marshal(results[0].Matches[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"origin":"annotation","annotationIndex":0,"annotationId":9}`, string(data))
}

func TestNavigationWrapsAround(t *testing.T) {
	s := NewSearcher()
	s.Search("graph", corpus(), Options{IncludeAnnotations: true})

	require.NotNil(t, s.Current())
	assert.Equal(t, int64(3), s.Current().NodeID)
	assert.Equal(t, "1 of 2", s.Counter())

	next := s.Next()
	require.NotNil(t, next)
	assert.Equal(t, int64(5), next.NodeID)
	assert.Equal(t, "2 of 2", s.Counter())

	wrapped := s.Next()
	require.NotNil(t, wrapped)
	assert.Equal(t, int64(3), wrapped.NodeID, "next wraps past the last result")

	back := s.Previous()
	require.NotNil(t, back)
	assert.Equal(t, int64(5), back.NodeID, "previous wraps before the first result")
}

func TestEmptyResultsCounter(t *testing.T) {
	s := NewSearcher()

	results := s.Search("nothing matches this", corpus(), Options{IncludeAnnotations: true})
	assert.Empty(t, results)
	assert.Equal(t, "0 of 0", s.Counter())
	assert.Nil(t, s.Current())
	assert.Nil(t, s.Next())
	assert.Nil(t, s.Previous())
}

func TestBlankQueryYieldsNothing(t *testing.T) {
	s := NewSearcher()

	assert.Empty(t, s.Search("", corpus(), Options{}))
	assert.Empty(t, s.Search("   ", corpus(), Options{}))
	assert.Equal(t, "0 of 0", s.Counter())
}

func TestClearResetsState(t *testing.T) {
	s := NewSearcher()
	s.Search("graph", corpus(), Options{IncludeAnnotations: true})
	require.NotEmpty(t, s.Results())

	s.Clear()
	assert.Empty(t, s.Results())
	assert.Equal(t, "0 of 0", s.Counter())
	assert.Nil(t, s.Current())
}
