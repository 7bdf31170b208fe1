// Package conversation provides the business logic for conversation
// metadata: collecting artifacts from a retrieval turn, merging them into
// the persisted metadata document, and answering strict-mode checks.
//
// The service layer sits between callers (CLI, future transports) and the
// store. All writes go through an optimistic read-modify-write loop keyed
// on the conversation's version column, so concurrent turns against the
// same conversation never lose each other's tags.
package conversation

import (
	"context"

	"github.com/simplechat/convmeta/plugin/metadata"
	"github.com/simplechat/convmeta/store"
)

// Service defines the core business logic for conversation metadata.
type Service interface {
	// CreateConversation creates a new conversation with an empty metadata
	// document. The strict flag defaults from the profile when the request
	// leaves it unset.
	CreateConversation(ctx context.Context, create *CreateConversationRequest) (*store.Conversation, error)

	// GetMetadata returns the metadata document for a conversation.
	GetMetadata(ctx context.Context, uid string) (*metadata.Document, error)

	// CollectAndMerge runs the full per-turn pipeline: resolve scopes,
	// collect tags, and merge both into the persisted document. Version
	// conflicts are retried by re-merging against the fresh document.
	CollectAndMerge(ctx context.Context, uid string, tc metadata.TurnContext, turn *metadata.TurnArtifacts) (*MergeResult, error)

	// SetStrict flips the conversation's strict-mode flag.
	SetStrict(ctx context.Context, uid string, strict bool) (*store.Conversation, error)

	// AllowedWithoutConfirmation reports whether a retrieval against the
	// candidate scope may proceed without user confirmation.
	AllowedWithoutConfirmation(ctx context.Context, uid string, candidate metadata.ScopeRef) (bool, error)

	// ApproveContext records a user-confirmed scope in the document's
	// context list, unblocking subsequent strict-mode checks for it.
	ApproveContext(ctx context.Context, uid string, candidate metadata.ScopeRef) (*store.Conversation, error)

	// ListConversations lists conversations, optionally narrowed by a CEL
	// filter expression evaluated against each conversation's metadata.
	ListConversations(ctx context.Context, find *store.FindConversation, filterExpr string) ([]*store.Conversation, error)

	// ArchiveConversation marks a conversation archived; the retention job
	// deletes archived rows after the configured window.
	ArchiveConversation(ctx context.Context, uid string) error

	// DeleteConversation removes a conversation permanently.
	DeleteConversation(ctx context.Context, uid string) error
}

// CreateConversationRequest represents the request to create a conversation.
type CreateConversationRequest struct {
	CreatorID int32
	Title     string
	// Strict overrides the profile default when set.
	Strict *bool
}

// MergeResult describes the outcome of one CollectAndMerge call.
type MergeResult struct {
	Conversation *store.Conversation
	// Scopes are the distinct resolved scopes of this turn, in first-seen
	// order.
	Scopes []metadata.ScopeRef
	// Tags are the deduplicated tags collected from this turn, before
	// merging into the document.
	Tags []metadata.Tag
	// DroppedDocuments counts retrieval hits whose scope could not be
	// resolved and which therefore contributed nothing.
	DroppedDocuments int
	// ConflictRetries counts how many times the merge was retried after a
	// concurrent writer bumped the version.
	ConflictRetries int
}
