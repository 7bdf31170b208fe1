package metadata

// AllowedWithoutConfirmation answers whether retrieved data from the
// candidate (scope, id) may be used without asking the user first. It is
// a pure decision over already-loaded metadata: true when strict mode is
// off, when the candidate is the conversation's primary context, or when
// the candidate is an already-recorded secondary context. A genuinely new
// secondary candidate under strict mode requires confirmation.
//
// Enforcement (blocking or prompting the user) belongs to the chat
// orchestration layer, not this package.
func AllowedWithoutConfirmation(doc *Document, candidate ScopeRef) bool {
	if !doc.Strict {
		return true
	}
	return doc.HasContext(candidate)
}

// ApproveContext records a user-confirmed secondary context. It is a no-op
// when the (scope, id) pair is already present. Web scopes are never
// recorded as context.
func ApproveContext(doc *Document, candidate ScopeRef) {
	if candidate.Kind == ScopeWeb || doc.HasContext(candidate) {
		return
	}
	entryType := ContextSecondary
	if _, hasPrimary := doc.PrimaryContext(); !hasPrimary {
		entryType = ContextPrimary
	}
	doc.Context = append(doc.Context, ContextEntry{
		Type:  entryType,
		Scope: candidate.Kind,
		ID:    candidate.ID,
	})
}
