package metadata

// Merge combines a turn's freshly resolved scopes and collected tags into
// the conversation's metadata document, in place.
//
// Context rule: if the document has no primary context, the first scope of
// the slice is promoted to primary; every other distinct (scope, id) pair
// becomes or remains secondary. An existing primary is never demoted.
//
// Tag rule: an incoming tag matching an existing one on (category, dedup
// key) is unioned into the existing entry in place; otherwise it is
// appended. Existing entry order is preserved, new entries are appended in
// first-encountered order.
//
// Classification rule: classification labels observed on incoming document
// tags that are not yet recorded are appended.
//
// Merging the same turn twice yields the same document as merging it once.
func Merge(doc *Document, scopes []ScopeRef, tags []Tag) {
	mergeContext(doc, scopes)
	for _, incoming := range tags {
		mergeTag(doc, incoming)
	}
	mergeClassification(doc, tags)
}

func mergeContext(doc *Document, scopes []ScopeRef) {
	_, hasPrimary := doc.PrimaryContext()
	for _, ref := range scopes {
		if ref.Kind == ScopeWeb {
			// Web hits are tag-only markers, never context.
			continue
		}
		if doc.HasContext(ref) {
			continue
		}
		entryType := ContextSecondary
		if !hasPrimary {
			entryType = ContextPrimary
			hasPrimary = true
		}
		doc.Context = append(doc.Context, ContextEntry{
			Type:  entryType,
			Scope: ref.Kind,
			ID:    ref.ID,
		})
	}
}

func mergeTag(doc *Document, incoming Tag) {
	i := doc.FindTag(incoming.Category(), incoming.DedupKey())
	if i < 0 {
		doc.Tags = append(doc.Tags, incoming)
		return
	}

	switch in := incoming.(type) {
	case DocumentTag:
		existing := doc.Tags[i].(DocumentTag)
		existing.Chunks = unionChunks(existing.Chunks, in.Chunks)
		if existing.Classification == "" {
			existing.Classification = in.Classification
		}
		if existing.Scope == "" {
			existing.Scope = in.Scope
			existing.ScopeID = in.ScopeID
		}
		doc.Tags[i] = existing
	case ParticipantTag:
		existing := doc.Tags[i].(ParticipantTag)
		if existing.Name == "" {
			existing.Name = in.Name
		}
		if existing.Email == "" {
			existing.Email = in.Email
		}
		doc.Tags[i] = existing
	default:
		// Value-only tags carry nothing beyond their dedup key.
	}
}

func mergeClassification(doc *Document, tags []Tag) {
	seen := make(map[string]bool, len(doc.Classification))
	for _, c := range doc.Classification {
		seen[c] = true
	}
	for _, t := range tags {
		dt, ok := t.(DocumentTag)
		if !ok || dt.Classification == "" || seen[dt.Classification] {
			continue
		}
		seen[dt.Classification] = true
		doc.Classification = append(doc.Classification, dt.Classification)
	}
}
