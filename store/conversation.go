package store

import (
	"errors"

	"github.com/simplechat/convmeta/plugin/metadata"
)

// RowStatus is the lifecycle state of a conversation row.
type RowStatus string

const (
	// Normal is the active state.
	Normal RowStatus = "NORMAL"
	// Archived marks a conversation hidden from listings and eligible for
	// vacuum once past retention.
	Archived RowStatus = "ARCHIVED"
)

var (
	// ErrConversationNotFound is returned when no conversation matches.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrVersionConflict is returned when an optimistic-concurrency write
	// observes a stale version. Callers re-read and re-merge.
	ErrVersionConflict = errors.New("conversation version conflict")
)

// Conversation is one chat thread's persisted record. Metadata holds the
// context/tags/strict/classification document maintained by the metadata
// engine; Version is the optimistic-concurrency token checked on every
// metadata write.
type Conversation struct {
	ID        int32
	UID       string
	CreatorID int32
	Title     string
	Metadata  *metadata.Document
	Version   int64
	CreatedTs int64
	UpdatedTs int64
	RowStatus RowStatus
}

// Strict reports the conversation's strict-mode flag.
func (c *Conversation) Strict() bool {
	return c.Metadata != nil && c.Metadata.Strict
}

type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32
	RowStatus *RowStatus
}

// UpdateConversationMetadata is an optimistic read-modify-write: the update
// applies only when the row still carries ExpectedVersion, and bumps the
// version on success.
type UpdateConversationMetadata struct {
	ID              int32
	Metadata        *metadata.Document
	Title           *string
	RowStatus       *RowStatus
	UpdatedTs       int64
	ExpectedVersion int64
}

type DeleteConversation struct {
	ID int32
}
