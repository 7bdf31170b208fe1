package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScope(t *testing.T) {
	tc := TurnContext{UserID: "user-1", ActiveGroupID: "G1"}

	tests := []struct {
		name     string
		ref      DocumentRef
		expected ScopeRef
		ok       bool
	}{
		{
			name:     "personal hit",
			ref:      DocumentRef{ID: "doc-A", Scope: "personal"},
			expected: ScopeRef{Kind: ScopePersonal},
			ok:       true,
		},
		{
			name:     "group hit with explicit group id",
			ref:      DocumentRef{ID: "doc-B", Scope: "group", GroupID: "G2"},
			expected: ScopeRef{Kind: ScopeGroup, ID: "G2"},
			ok:       true,
		},
		{
			name:     "group hit falls back to active group",
			ref:      DocumentRef{ID: "doc-C", Scope: "group"},
			expected: ScopeRef{Kind: ScopeGroup, ID: "G1"},
			ok:       true,
		},
		{
			name:     "public hit with workspace id",
			ref:      DocumentRef{ID: "doc-D", Scope: "public", WorkspaceID: "W1"},
			expected: ScopeRef{Kind: ScopePublic, ID: "W1"},
			ok:       true,
		},
		{
			name: "public hit without workspace id is dropped",
			ref:  DocumentRef{ID: "doc-E", Scope: "public"},
			ok:   false,
		},
		{
			name: "unknown scope label is dropped",
			ref:  DocumentRef{ID: "doc-F", Scope: "cosmos"},
			ok:   false,
		},
		{
			name: "empty scope label is dropped",
			ref:  DocumentRef{ID: "doc-G"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, ok := ResolveScope(tc, tt.ref)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, scope)
			}
		})
	}
}

func TestResolveScope_GroupWithoutAnyGroupID(t *testing.T) {
	// No explicit group id and no active group: the hit cannot be placed.
	_, ok := ResolveScope(TurnContext{UserID: "user-1"}, DocumentRef{ID: "doc-A", Scope: "group"})
	assert.False(t, ok)
}

func TestResolveScopes_FirstSeenOrderAndDedup(t *testing.T) {
	tc := TurnContext{UserID: "user-1"}
	turn := &TurnArtifacts{
		Documents: []DocumentRef{
			{ID: "doc-1", Scope: "group", GroupID: "G1"},
			{ID: "doc-2", Scope: "personal"},
			{ID: "doc-3", Scope: "group", GroupID: "G1"},
			{ID: "doc-4", Scope: "broken"},
			{ID: "doc-5", Scope: "public", WorkspaceID: "W1"},
		},
	}

	resolved, scopes := ResolveScopes(tc, turn)

	// The malformed hit is dropped, not fatal.
	require.Len(t, resolved, 4)
	require.Equal(t, []ScopeRef{
		{Kind: ScopeGroup, ID: "G1"},
		{Kind: ScopePersonal},
		{Kind: ScopePublic, ID: "W1"},
	}, scopes)
}
