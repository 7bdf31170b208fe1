package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversationMetadata(ctx context.Context, update *UpdateConversationMetadata) (*Conversation, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	// VacuumConversations permanently removes archived conversations whose
	// updated_ts is older than beforeTs. Returns the number of rows removed.
	VacuumConversations(ctx context.Context, beforeTs int64) (int64, error)
}
