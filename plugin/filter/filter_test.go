package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplechat/convmeta/plugin/metadata"
	"github.com/simplechat/convmeta/store"
)

func sampleConversation() *store.Conversation {
	doc := metadata.NewDocument()
	doc.Context = []metadata.ContextEntry{
		{Type: metadata.ContextPrimary, Scope: metadata.ScopePersonal},
		{Type: metadata.ContextSecondary, Scope: metadata.ScopeGroup, ID: "G1"},
	}
	doc.Tags = []metadata.Tag{
		metadata.DocumentTag{Value: "doc-A", Chunks: []string{"1"}},
		metadata.ModelTag{Value: "gpt-4o"},
	}
	doc.Strict = true
	doc.Classification = []string{"CUI"}

	return &store.Conversation{
		ID:        7,
		UID:       "conv-7",
		CreatorID: 42,
		Title:     "budget planning",
		Metadata:  doc,
		RowStatus: store.Normal,
	}
}

func TestFilter_Matches(t *testing.T) {
	c := sampleConversation()

	tests := []struct {
		name       string
		expression string
		expected   bool
	}{
		{"creator match", `creator_id == 42`, true},
		{"creator mismatch", `creator_id == 1`, false},
		{"strict flag", `strict`, true},
		{"scope membership", `"group:G1" in scopes`, true},
		{"absent scope", `"group:G2" in scopes`, false},
		{"primary scope", `primary_scope == "personal"`, true},
		{"classification", `"CUI" in classifications`, true},
		{"tag count", `tag_count >= 2`, true},
		{"title contains", `title.contains("budget")`, true},
		{"compound", `strict && "group:G1" in scopes && row_status == "NORMAL"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expression)
			require.NoError(t, err)

			matched, err := f.Matches(c)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, matched)
		})
	}
}

func TestCompile_RejectsInvalidExpressions(t *testing.T) {
	_, err := Compile(`creator_id ==`)
	assert.Error(t, err)

	// Well-formed but not a boolean.
	_, err = Compile(`title`)
	assert.Error(t, err)

	// Unknown variable.
	_, err = Compile(`unknown_field == 1`)
	assert.Error(t, err)
}

func TestFilter_NilMetadata(t *testing.T) {
	f, err := Compile(`tag_count == 0 && !strict`)
	require.NoError(t, err)

	matched, err := f.Matches(&store.Conversation{ID: 1, UID: "conv-1"})
	require.NoError(t, err)
	assert.True(t, matched)
}
