package metadata

import (
	"log/slog"
	"sort"
)

// Collect turns one turn's artifacts into category-bucketed, pre-deduplicated
// tags ready to merge. The result is deterministic regardless of artifact
// ordering: tags are keyed by (category, dedup key) and the output is sorted,
// with document chunk ids unioned as a sorted set. Artifacts missing a
// required field are skipped with a warning; they never abort the pass.
func Collect(resolved []ResolvedDocument, turn *TurnArtifacts) []Tag {
	byKey := make(map[Category]map[string]Tag)
	put := func(t Tag) {
		bucket, ok := byKey[t.Category()]
		if !ok {
			bucket = make(map[string]Tag)
			byKey[t.Category()] = bucket
		}
		bucket[t.DedupKey()] = t
	}

	for _, p := range turn.Participants {
		if p.UserID == "" {
			slog.Warn("skipping participant without user id", "name", p.Name)
			continue
		}
		put(ParticipantTag{UserID: p.UserID, Name: p.Name, Email: p.Email})
	}

	docs := byKey[CategoryDocument]
	for _, rd := range resolved {
		if rd.Ref.ID == "" {
			slog.Warn("skipping document reference without id", "raw_scope", rd.Ref.Scope)
			continue
		}
		if docs == nil {
			docs = make(map[string]Tag)
			byKey[CategoryDocument] = docs
		}
		if existing, ok := docs[rd.Ref.ID]; ok {
			tag := existing.(DocumentTag)
			tag.Chunks = unionChunks(tag.Chunks, rd.Ref.Chunks)
			if tag.Classification == "" {
				tag.Classification = rd.Ref.Classification
			}
			docs[rd.Ref.ID] = tag
			continue
		}
		docs[rd.Ref.ID] = DocumentTag{
			Value:          rd.Ref.ID,
			Scope:          rd.Scope.Kind,
			ScopeID:        rd.Scope.ID,
			Classification: rd.Ref.Classification,
			Chunks:         unionChunks(nil, rd.Ref.Chunks),
		}
	}

	for _, m := range turn.Models {
		if m == "" {
			continue
		}
		put(ModelTag{Value: m})
	}
	for _, a := range turn.Agents {
		if a == "" {
			continue
		}
		put(AgentTag{Value: a})
	}
	for _, k := range turn.Keywords {
		if k == "" {
			continue
		}
		put(SemanticTag{Value: k})
	}
	for _, u := range turn.WebURLs {
		if u == "" {
			continue
		}
		put(WebTag{Value: u})
	}

	return flattenSorted(byKey)
}

// collectionOrder fixes the relative ordering of categories in collector
// output.
var collectionOrder = []Category{
	CategoryParticipant,
	CategoryDocument,
	CategoryModel,
	CategoryAgent,
	CategorySemantic,
	CategoryWeb,
}

func flattenSorted(byKey map[Category]map[string]Tag) []Tag {
	out := make([]Tag, 0, len(byKey))
	for _, category := range collectionOrder {
		bucket := byKey[category]
		if len(bucket) == 0 {
			continue
		}
		keys := make([]string, 0, len(bucket))
		for k := range bucket {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, bucket[k])
		}
	}
	return out
}

// unionChunks merges chunk ids into a sorted set.
func unionChunks(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, c := range existing {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range incoming {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}
