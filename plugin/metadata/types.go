// Package metadata implements conversation metadata collection, merging,
// and scope-based access control. It is a pure data-transformation layer:
// the chat orchestration route supplies per-turn artifacts, this package
// classifies their origin, buckets them into deduplicated tags, and merges
// them into the conversation's persisted metadata document.
package metadata

// ScopeKind identifies the workspace partition a piece of information
// originated from.
type ScopeKind string

const (
	// ScopePersonal is the user's own workspace.
	ScopePersonal ScopeKind = "personal"
	// ScopeGroup is a shared group workspace, identified by group id.
	ScopeGroup ScopeKind = "group"
	// ScopePublic is a public workspace, identified by workspace id.
	ScopePublic ScopeKind = "public"
	// ScopeWeb marks web-search results. Used for tag categorization only;
	// web hits never enter a conversation's context list.
	ScopeWeb ScopeKind = "web"
)

// ScopeRef is a resolved (scope, id) pair. Personal and web scopes use an
// empty ID sentinel; group and public scopes carry their identifier.
type ScopeRef struct {
	Kind ScopeKind `json:"scope"`
	ID   string    `json:"id,omitempty"`
}

// ContextType distinguishes the conversation's primary context from
// secondary ones.
type ContextType string

const (
	ContextPrimary   ContextType = "primary"
	ContextSecondary ContextType = "secondary"
)

// ContextEntry records one scope referenced by the conversation.
// Field names are part of the persisted document contract.
type ContextEntry struct {
	Type  ContextType `json:"type"`
	Scope ScopeKind   `json:"scope"`
	ID    string      `json:"id,omitempty"`
}

// Ref returns the entry's (scope, id) pair.
func (e ContextEntry) Ref() ScopeRef {
	return ScopeRef{Kind: e.Scope, ID: e.ID}
}

// Category buckets tags by the kind of entity they reference.
type Category string

const (
	CategoryParticipant Category = "participant"
	CategoryDocument    Category = "document"
	CategoryModel       Category = "model"
	CategoryAgent       Category = "agent"
	CategorySemantic    Category = "semantic"
	CategoryWeb         Category = "web"
)

// Tag is one category-bucketed record of something referenced during a
// conversation. Two tags of the same category with the same dedup key
// represent the same underlying entity and are merged, never duplicated.
type Tag interface {
	Category() Category
	DedupKey() string
}

// ParticipantTag records a user who took part in the conversation.
type ParticipantTag struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (t ParticipantTag) Category() Category { return CategoryParticipant }
func (t ParticipantTag) DedupKey() string   { return t.UserID }

// DocumentTag records a cited document. Chunks is the set of chunk ids
// cited so far, kept sorted; re-citing the document unions chunk ids into
// the existing tag instead of creating a new entry.
type DocumentTag struct {
	Value          string    `json:"value"`
	Scope          ScopeKind `json:"scope,omitempty"`
	ScopeID        string    `json:"id,omitempty"`
	Classification string    `json:"classification,omitempty"`
	Chunks         []string  `json:"chunks,omitempty"`
}

func (t DocumentTag) Category() Category { return CategoryDocument }
func (t DocumentTag) DedupKey() string   { return t.Value }

// ModelTag records a model or deployment invoked during the conversation.
type ModelTag struct {
	Value string `json:"value"`
}

func (t ModelTag) Category() Category { return CategoryModel }
func (t ModelTag) DedupKey() string   { return t.Value }

// AgentTag records an agent invoked during the conversation.
type AgentTag struct {
	Value string `json:"value"`
}

func (t AgentTag) Category() Category { return CategoryAgent }
func (t AgentTag) DedupKey() string   { return t.Value }

// SemanticTag records an extracted keyword.
type SemanticTag struct {
	Value string `json:"value"`
}

func (t SemanticTag) Category() Category { return CategorySemantic }
func (t SemanticTag) DedupKey() string   { return t.Value }

// WebTag records a web URL visited during the conversation.
type WebTag struct {
	Value string `json:"value"`
}

func (t WebTag) Category() Category { return CategoryWeb }
func (t WebTag) DedupKey() string   { return t.Value }

// Document is a conversation's metadata document as persisted in the store.
// Field names and nesting are externally observable: the conversation
// details UI renders them directly.
type Document struct {
	Context        []ContextEntry `json:"context"`
	Tags           []Tag          `json:"tags"`
	Strict         bool           `json:"strict"`
	Classification []string       `json:"classification"`
}

// NewDocument returns an empty metadata document.
func NewDocument() *Document {
	return &Document{
		Context:        []ContextEntry{},
		Tags:           []Tag{},
		Classification: []string{},
	}
}

// PrimaryContext returns the document's primary context entry, if any.
func (d *Document) PrimaryContext() (ContextEntry, bool) {
	for _, e := range d.Context {
		if e.Type == ContextPrimary {
			return e, true
		}
	}
	return ContextEntry{}, false
}

// HasContext reports whether the (scope, id) pair is already recorded,
// as either primary or secondary context.
func (d *Document) HasContext(ref ScopeRef) bool {
	for _, e := range d.Context {
		if e.Scope == ref.Kind && e.ID == ref.ID {
			return true
		}
	}
	return false
}

// FindTag returns the index of the tag with the given category and dedup
// key, or -1 when absent.
func (d *Document) FindTag(category Category, key string) int {
	for i, t := range d.Tags {
		if t.Category() == category && t.DedupKey() == key {
			return i
		}
	}
	return -1
}

// TurnContext carries the per-request state the engine needs. It is passed
// explicitly rather than read from ambient settings so the engine stays
// unit-testable.
type TurnContext struct {
	UserID        string
	ActiveGroupID string
	StrictDefault bool
}

// Participant is one member of the conversation's participant list.
type Participant struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
}

// DocumentRef is a raw retrieval hit as supplied by the chat orchestration
// layer, before scope resolution.
type DocumentRef struct {
	ID             string   `json:"id"`
	Scope          string   `json:"scope"` // raw scope label: "personal", "group", "public"
	GroupID        string   `json:"group_id,omitempty"`
	WorkspaceID    string   `json:"workspace_id,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Chunks         []string `json:"chunks,omitempty"`
}

// TurnArtifacts is everything one chat turn produced that feeds the
// metadata engine. Message is the user's turn text; it is only consulted
// when Keywords is empty and a keyword extractor is configured.
type TurnArtifacts struct {
	Message      string        `json:"message,omitempty"`
	Documents    []DocumentRef `json:"documents,omitempty"`
	Models       []string      `json:"models,omitempty"`
	Agents       []string      `json:"agents,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
	Keywords     []string      `json:"keywords,omitempty"`
	WebURLs      []string      `json:"web_urls,omitempty"`
}
