package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/simplechat/convmeta/internal/profile"
	"github.com/simplechat/convmeta/store/cache"
)

const conversationCachePrefix = "conversation:"

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Cache settings
	cacheConfig cache.Config

	conversationCache cache.CacheService
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	cacheConfig := cache.Config{
		Capacity:        1000,
		DefaultTTL:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}

	return &Store{
		driver:            driver,
		profile:           profile,
		cacheConfig:       cacheConfig,
		conversationCache: cache.NewService(cacheConfig),
	}
}

// NewWithCache creates a Store with an externally constructed cache, e.g.
// a tiered memory+Redis cache for multi-instance deployments.
func NewWithCache(driver Driver, profile *profile.Profile, conversationCache cache.CacheService) *Store {
	return &Store{
		driver:            driver,
		profile:           profile,
		conversationCache: conversationCache,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	s.conversationCache.Close()
	return s.driver.Close()
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	conversation, err := s.driver.CreateConversation(ctx, create)
	if err != nil {
		return nil, err
	}
	s.cacheConversation(ctx, conversation)
	return conversation, nil
}

// GetConversation looks up one conversation, cache-aside by UID. The cache
// path only fires for pure UID lookups: any other predicate must go to the
// driver so its filter semantics apply.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	if find.UID != nil && find.ID == nil && find.CreatorID == nil && find.RowStatus == nil {
		if cached := s.conversationFromCache(ctx, *find.UID); cached != nil {
			return cached, nil
		}
	}

	conversation, err := s.driver.GetConversation(ctx, find)
	if err != nil {
		return nil, err
	}
	s.cacheConversation(ctx, conversation)
	return conversation, nil
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

func (s *Store) UpdateConversationMetadata(ctx context.Context, update *UpdateConversationMetadata) (*Conversation, error) {
	conversation, err := s.driver.UpdateConversationMetadata(ctx, update)
	if err != nil {
		return nil, err
	}
	s.cacheConversation(ctx, conversation)
	return conversation, nil
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	conversation, err := s.driver.GetConversation(ctx, &FindConversation{ID: &delete.ID})
	if err == nil {
		s.invalidateConversation(ctx, conversation.UID)
	}
	return s.driver.DeleteConversation(ctx, delete)
}

func (s *Store) VacuumConversations(ctx context.Context, beforeTs int64) (int64, error) {
	// Vacuumed rows may still sit in cache; cheapest correct move is a
	// prefix invalidation.
	if err := s.conversationCache.Invalidate(ctx, conversationCachePrefix+"*"); err != nil {
		slog.Warn("failed to invalidate conversation cache before vacuum", "error", err)
	}
	return s.driver.VacuumConversations(ctx, beforeTs)
}

func (s *Store) cacheConversation(ctx context.Context, conversation *Conversation) {
	if conversation == nil || conversation.UID == "" {
		return
	}
	data, err := json.Marshal(conversation)
	if err != nil {
		slog.Warn("failed to marshal conversation for cache", "uid", conversation.UID, "error", err)
		return
	}
	if err := s.conversationCache.Set(ctx, conversationCachePrefix+conversation.UID, data, 0); err != nil {
		slog.Warn("failed to cache conversation", "uid", conversation.UID, "error", err)
	}
}

func (s *Store) conversationFromCache(ctx context.Context, uid string) *Conversation {
	data, ok := s.conversationCache.Get(ctx, conversationCachePrefix+uid)
	if !ok {
		return nil
	}
	var conversation Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		slog.Warn("failed to unmarshal cached conversation", "uid", uid, "error", err)
		return nil
	}
	return &conversation
}

func (s *Store) invalidateConversation(ctx context.Context, uid string) {
	if err := s.conversationCache.Invalidate(ctx, conversationCachePrefix+uid); err != nil {
		slog.Warn("failed to invalidate cached conversation", "uid", uid, "error", err)
	}
}
