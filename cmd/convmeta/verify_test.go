package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplechat/convmeta/plugin/metadata"
)

func TestParseScope(t *testing.T) {
	ref, err := parseScope("group:g1")
	require.NoError(t, err)
	assert.Equal(t, metadata.ScopeRef{Kind: metadata.ScopeGroup, ID: "g1"}, ref)

	ref, err = parseScope("personal")
	require.NoError(t, err)
	assert.Equal(t, metadata.ScopeRef{Kind: metadata.ScopePersonal}, ref)

	_, err = parseScope("tenant:t1")
	assert.Error(t, err)
}

func TestFormatScope(t *testing.T) {
	assert.Equal(t, "personal", formatScope(metadata.ScopeRef{Kind: metadata.ScopePersonal}))
	assert.Equal(t, "group:g1", formatScope(metadata.ScopeRef{Kind: metadata.ScopeGroup, ID: "g1"}))

	// A merged document's primary context renders through formatScope.
	doc := metadata.NewDocument()
	metadata.Merge(doc, []metadata.ScopeRef{{Kind: metadata.ScopePublic, ID: "ws1"}}, nil)
	primary, ok := doc.PrimaryContext()
	require.True(t, ok)
	assert.Equal(t, "public:ws1", formatScope(primary.Ref()))

	// formatScope and parseScope are inverses.
	ref, err := parseScope(formatScope(metadata.ScopeRef{Kind: metadata.ScopeGroup, ID: "g1"}))
	require.NoError(t, err)
	assert.Equal(t, metadata.ScopeRef{Kind: metadata.ScopeGroup, ID: "g1"}, ref)
}

func TestVerifyDocument(t *testing.T) {
	assert.Empty(t, verifyDocument(nil))
	assert.Empty(t, verifyDocument(metadata.NewDocument()))

	clean := metadata.NewDocument()
	metadata.Merge(clean,
		[]metadata.ScopeRef{{Kind: metadata.ScopeGroup, ID: "g1"}, {Kind: metadata.ScopePersonal}},
		[]metadata.Tag{metadata.ModelTag{Value: "gpt-4"}, metadata.SemanticTag{Value: "budget"}})
	assert.Empty(t, verifyDocument(clean))

	corrupt := &metadata.Document{
		Context: []metadata.ContextEntry{
			{Type: metadata.ContextPrimary, Scope: metadata.ScopeGroup, ID: "g1"},
			{Type: metadata.ContextPrimary, Scope: metadata.ScopeGroup, ID: "g1"},
		},
		Tags: []metadata.Tag{
			metadata.ModelTag{Value: "gpt-4"},
			metadata.ModelTag{Value: "gpt-4"},
		},
		Classification: []string{"internal", "internal"},
	}
	problems := verifyDocument(corrupt)
	assert.Len(t, problems, 4)
}
