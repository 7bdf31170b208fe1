package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_SkipsMalformedArtifacts(t *testing.T) {
	tc := TurnContext{UserID: "user-1"}
	turn := &TurnArtifacts{
		Documents: []DocumentRef{
			{ID: "doc-1", Scope: "personal", Chunks: []string{"1"}},
			{Scope: "personal"}, // missing id
			{ID: "doc-2", Scope: "personal"},
			{ID: "doc-3", Scope: "personal"},
		},
		Participants: []Participant{
			{Name: "No ID"}, // missing user id
		},
	}

	resolved, _ := ResolveScopes(tc, turn)
	tags := Collect(resolved, turn)

	// Exactly the three well-formed documents survive; collection never throws.
	require.Len(t, tags, 3)
	for _, tag := range tags {
		assert.Equal(t, CategoryDocument, tag.Category())
	}
}

func TestCollect_DeterministicAcrossInputOrder(t *testing.T) {
	tc := TurnContext{UserID: "user-1"}
	forward := &TurnArtifacts{
		Documents: []DocumentRef{
			{ID: "doc-B", Scope: "personal", Chunks: []string{"2", "1"}},
			{ID: "doc-A", Scope: "personal", Chunks: []string{"3"}},
			{ID: "doc-B", Scope: "personal", Chunks: []string{"4"}},
		},
		Models:   []string{"gpt-4o", "gpt-4o-mini"},
		Keywords: []string{"beta", "alpha"},
		WebURLs:  []string{"https://b.example", "https://a.example"},
	}
	backward := &TurnArtifacts{
		Documents: []DocumentRef{
			{ID: "doc-B", Scope: "personal", Chunks: []string{"4"}},
			{ID: "doc-A", Scope: "personal", Chunks: []string{"3"}},
			{ID: "doc-B", Scope: "personal", Chunks: []string{"1", "2"}},
		},
		Models:   []string{"gpt-4o-mini", "gpt-4o"},
		Keywords: []string{"alpha", "beta"},
		WebURLs:  []string{"https://a.example", "https://b.example"},
	}

	resolvedF, _ := ResolveScopes(tc, forward)
	resolvedB, _ := ResolveScopes(tc, backward)

	assert.Equal(t, Collect(resolvedF, forward), Collect(resolvedB, backward))
}

func TestCollect_DocumentChunksUnionWithinTurn(t *testing.T) {
	tc := TurnContext{UserID: "user-1"}
	turn := &TurnArtifacts{
		Documents: []DocumentRef{
			{ID: "doc-A", Scope: "personal", Chunks: []string{"2", "1"}, Classification: "CUI"},
			{ID: "doc-A", Scope: "personal", Chunks: []string{"2", "3"}},
		},
	}

	resolved, _ := ResolveScopes(tc, turn)
	tags := Collect(resolved, turn)

	require.Len(t, tags, 1)
	doc := tags[0].(DocumentTag)
	assert.Equal(t, "doc-A", doc.Value)
	assert.Equal(t, []string{"1", "2", "3"}, doc.Chunks)
	assert.Equal(t, "CUI", doc.Classification)
}

func TestCollect_AllCategories(t *testing.T) {
	tc := TurnContext{UserID: "user-1", ActiveGroupID: "G1"}
	turn := &TurnArtifacts{
		Documents: []DocumentRef{
			{ID: "doc-A", Scope: "group", Chunks: []string{"1"}},
		},
		Models:       []string{"gpt-4o"},
		Agents:       []string{"researcher"},
		Participants: []Participant{{UserID: "user-1", Name: "Pat"}},
		Keywords:     []string{"quarterly report"},
		WebURLs:      []string{"https://example.com/page"},
	}

	resolved, _ := ResolveScopes(tc, turn)
	tags := Collect(resolved, turn)

	require.Len(t, tags, 6)
	categories := make(map[Category]int)
	for _, tag := range tags {
		categories[tag.Category()]++
	}
	for _, c := range []Category{CategoryParticipant, CategoryDocument, CategoryModel, CategoryAgent, CategorySemantic, CategoryWeb} {
		assert.Equal(t, 1, categories[c], "category %s", c)
	}

	doc := tags[1].(DocumentTag)
	assert.Equal(t, ScopeGroup, doc.Scope)
	assert.Equal(t, "G1", doc.ScopeID)
}
