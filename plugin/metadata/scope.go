package metadata

import "log/slog"

// ResolvedDocument pairs a retrieval hit with its classified origin.
type ResolvedDocument struct {
	Ref   DocumentRef
	Scope ScopeRef
}

// ResolveScope classifies a single retrieval hit into a (scope, id) pair.
// A group hit without an explicit group id falls back to the user's active
// group from the turn context. Returns false when the hit's origin cannot
// be determined; the caller drops such hits rather than failing the turn.
func ResolveScope(tc TurnContext, ref DocumentRef) (ScopeRef, bool) {
	switch ScopeKind(ref.Scope) {
	case ScopePersonal:
		return ScopeRef{Kind: ScopePersonal}, true
	case ScopeGroup:
		if ref.GroupID != "" {
			return ScopeRef{Kind: ScopeGroup, ID: ref.GroupID}, true
		}
		if tc.ActiveGroupID != "" {
			return ScopeRef{Kind: ScopeGroup, ID: tc.ActiveGroupID}, true
		}
		return ScopeRef{}, false
	case ScopePublic:
		if ref.WorkspaceID == "" {
			return ScopeRef{}, false
		}
		return ScopeRef{Kind: ScopePublic, ID: ref.WorkspaceID}, true
	default:
		return ScopeRef{}, false
	}
}

// ResolveScopes classifies every retrieval hit of a turn. Unclassifiable
// hits are dropped with a warning and excluded from both outputs. The
// returned scope list contains each distinct (scope, id) pair once, in
// first-seen order; that order decides primary-context promotion for a
// conversation's first turn.
func ResolveScopes(tc TurnContext, turn *TurnArtifacts) ([]ResolvedDocument, []ScopeRef) {
	resolved := make([]ResolvedDocument, 0, len(turn.Documents))
	scopes := make([]ScopeRef, 0, 2)
	seen := make(map[ScopeRef]bool)

	for _, ref := range turn.Documents {
		scope, ok := ResolveScope(tc, ref)
		if !ok {
			slog.Warn("dropping retrieval hit with unresolvable scope",
				"document_id", ref.ID, "raw_scope", ref.Scope)
			continue
		}
		resolved = append(resolved, ResolvedDocument{Ref: ref, Scope: scope})
		if !seen[scope] {
			seen[scope] = true
			scopes = append(scopes, scope)
		}
	}

	return resolved, scopes
}
