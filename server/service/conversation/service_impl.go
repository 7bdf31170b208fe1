package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/simplechat/convmeta/internal/profile"
	"github.com/simplechat/convmeta/plugin/filter"
	"github.com/simplechat/convmeta/plugin/keywords"
	"github.com/simplechat/convmeta/plugin/metadata"
	metaerrors "github.com/simplechat/convmeta/server/internal/errors"
	"github.com/simplechat/convmeta/server/internal/observability"
	"github.com/simplechat/convmeta/store"
)

// maxConflictRetries bounds how often a merge is re-applied after losing a
// version race. Each retry reloads the row and re-merges, so the loop is
// effectively a bounded CAS.
const maxConflictRetries = 3

type service struct {
	store     *store.Store
	profile   *profile.Profile
	extractor keywords.Extractor
	logger    *slog.Logger
}

var _ Service = (*service)(nil)

// New creates a conversation service. The extractor is optional; when nil,
// turns without explicit keywords simply carry none.
func New(st *store.Store, p *profile.Profile, extractor keywords.Extractor, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:     st,
		profile:   p,
		extractor: extractor,
		logger:    logger,
	}
}

func (s *service) CreateConversation(ctx context.Context, create *CreateConversationRequest) (*store.Conversation, error) {
	if create == nil {
		return nil, metaerrors.InvalidArgument("create request is required")
	}

	strict := s.profile.StrictDefault
	if create.Strict != nil {
		strict = *create.Strict
	}
	doc := metadata.NewDocument()
	doc.Strict = strict

	now := time.Now().Unix()
	conversation, err := s.store.CreateConversation(ctx, &store.Conversation{
		UID:       shortuuid.New(),
		CreatorID: create.CreatorID,
		Title:     create.Title,
		Metadata:  doc,
		CreatedTs: now,
		UpdatedTs: now,
	})
	if err != nil {
		return nil, metaerrors.StorageUnavailable("failed to create conversation", err)
	}

	s.logger.Info("conversation created",
		slog.String(observability.LogFieldConversation, conversation.UID),
		slog.Bool("strict", strict))
	return conversation, nil
}

func (s *service) GetMetadata(ctx context.Context, uid string) (*metadata.Document, error) {
	conversation, err := s.loadByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if conversation.Metadata == nil {
		return metadata.NewDocument(), nil
	}
	return conversation.Metadata, nil
}

func (s *service) CollectAndMerge(ctx context.Context, uid string, tc metadata.TurnContext, turn *metadata.TurnArtifacts) (*MergeResult, error) {
	if turn == nil {
		return nil, metaerrors.InvalidArgument("turn artifacts are required")
	}

	reqCtx := observability.NewRequestContext(s.logger, uid, tc.UserID)
	metrics := observability.GlobalMetrics()

	// Backfill keywords only when the caller extracted none; explicit
	// keywords always win.
	if len(turn.Keywords) == 0 && turn.Message != "" && s.extractor != nil {
		turn.Keywords = s.extractor.Extract(ctx, &keywords.ExtractRequest{Message: turn.Message})
	}

	resolved, scopes := metadata.ResolveScopes(tc, turn)
	dropped := len(turn.Documents) - len(resolved)
	for i := 0; i < dropped; i++ {
		metrics.RecordDroppedArtifact()
	}
	tags := metadata.Collect(resolved, turn)

	conversation, retries, err := s.mutateMetadata(ctx, uid, func(doc *metadata.Document) {
		metadata.Merge(doc, scopes, tags)
	})
	metrics.RecordMerge(reqCtx.Duration(), err != nil)
	if err != nil {
		reqCtx.Error("merge failed", err,
			slog.Int(observability.LogFieldRetry, retries))
		return nil, err
	}

	reqCtx.Info("turn merged",
		slog.Int("scopes", len(scopes)),
		slog.Int("tags", len(tags)),
		slog.Int("dropped", dropped),
		slog.Int(observability.LogFieldRetry, retries),
		slog.Int64("version", conversation.Version))

	return &MergeResult{
		Conversation:     conversation,
		Scopes:           scopes,
		Tags:             tags,
		DroppedDocuments: dropped,
		ConflictRetries:  retries,
	}, nil
}

func (s *service) SetStrict(ctx context.Context, uid string, strict bool) (*store.Conversation, error) {
	conversation, _, err := s.mutateMetadata(ctx, uid, func(doc *metadata.Document) {
		doc.Strict = strict
	})
	return conversation, err
}

func (s *service) AllowedWithoutConfirmation(ctx context.Context, uid string, candidate metadata.ScopeRef) (bool, error) {
	conversation, err := s.loadByUID(ctx, uid)
	if err != nil {
		return false, err
	}
	doc := conversation.Metadata
	if doc == nil {
		doc = metadata.NewDocument()
	}
	return metadata.AllowedWithoutConfirmation(doc, candidate), nil
}

func (s *service) ApproveContext(ctx context.Context, uid string, candidate metadata.ScopeRef) (*store.Conversation, error) {
	conversation, _, err := s.mutateMetadata(ctx, uid, func(doc *metadata.Document) {
		metadata.ApproveContext(doc, candidate)
	})
	return conversation, err
}

func (s *service) ListConversations(ctx context.Context, find *store.FindConversation, filterExpr string) ([]*store.Conversation, error) {
	if find == nil {
		find = &store.FindConversation{}
	}
	list, err := s.store.ListConversations(ctx, find)
	if err != nil {
		return nil, metaerrors.StorageUnavailable("failed to list conversations", err)
	}
	if filterExpr == "" {
		return list, nil
	}

	f, err := filter.Compile(filterExpr)
	if err != nil {
		return nil, metaerrors.Wrap(err, metaerrors.ErrCodeInvalidArgument, "invalid filter expression")
	}
	filtered := make([]*store.Conversation, 0, len(list))
	for _, conversation := range list {
		ok, err := f.Matches(conversation)
		if err != nil {
			return nil, metaerrors.Wrap(err, metaerrors.ErrCodeInvalidArgument, "failed to evaluate filter")
		}
		if ok {
			filtered = append(filtered, conversation)
		}
	}
	return filtered, nil
}

func (s *service) ArchiveConversation(ctx context.Context, uid string) error {
	conversation, err := s.loadByUID(ctx, uid)
	if err != nil {
		return err
	}
	archived := store.Archived
	_, err = s.store.UpdateConversationMetadata(ctx, &store.UpdateConversationMetadata{
		ID:              conversation.ID,
		RowStatus:       &archived,
		UpdatedTs:       time.Now().Unix(),
		ExpectedVersion: conversation.Version,
	})
	if err != nil {
		return s.mapStoreError(err, uid)
	}
	return nil
}

func (s *service) DeleteConversation(ctx context.Context, uid string) error {
	conversation, err := s.loadByUID(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, &store.DeleteConversation{ID: conversation.ID}); err != nil {
		return s.mapStoreError(err, uid)
	}
	return nil
}

// mutateMetadata is the optimistic write loop shared by every metadata
// mutation. The mutate callback must be re-applicable: on a version
// conflict the row is reloaded (bypassing the UID cache) and the callback
// runs again against the fresh document.
func (s *service) mutateMetadata(ctx context.Context, uid string, mutate func(doc *metadata.Document)) (*store.Conversation, int, error) {
	conversation, err := s.loadByUID(ctx, uid)
	if err != nil {
		return nil, 0, err
	}

	metrics := observability.GlobalMetrics()
	retries := 0
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		doc := conversation.Metadata
		if doc == nil {
			doc = metadata.NewDocument()
		}
		mutate(doc)

		updated, err := s.store.UpdateConversationMetadata(ctx, &store.UpdateConversationMetadata{
			ID:              conversation.ID,
			Metadata:        doc,
			UpdatedTs:       time.Now().Unix(),
			ExpectedVersion: conversation.Version,
		})
		if err == nil {
			return updated, retries, nil
		}
		if errors.Is(err, store.ErrConversationNotFound) {
			return nil, retries, metaerrors.NotFound("conversation not found: " + uid)
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, retries, metaerrors.StorageUnavailable("failed to update conversation metadata", err)
		}

		retries++
		metrics.RecordConflictRetry()
		s.logger.Warn("version conflict, re-merging",
			slog.String(observability.LogFieldConversation, uid),
			slog.Int(observability.LogFieldRetry, retries))

		// Reload by ID: the UID path is cache-aside and may still hold the
		// stale version we just lost to.
		conversation, err = s.store.GetConversation(ctx, &store.FindConversation{ID: &conversation.ID})
		if err != nil {
			return nil, retries, s.mapStoreError(err, uid)
		}
	}

	return nil, retries, metaerrors.ConflictRetriesExhausted(
		"conversation "+uid+" kept changing concurrently", store.ErrVersionConflict)
}

func (s *service) loadByUID(ctx context.Context, uid string) (*store.Conversation, error) {
	if uid == "" {
		return nil, metaerrors.InvalidArgument("conversation uid is required")
	}
	conversation, err := s.store.GetConversation(ctx, &store.FindConversation{UID: &uid})
	if err != nil {
		return nil, s.mapStoreError(err, uid)
	}
	return conversation, nil
}

func (s *service) mapStoreError(err error, uid string) error {
	if errors.Is(err, store.ErrConversationNotFound) {
		return metaerrors.NotFound("conversation not found: " + uid)
	}
	if errors.Is(err, store.ErrVersionConflict) {
		return metaerrors.VersionConflict("conversation " + uid + " was modified concurrently")
	}
	return metaerrors.StorageUnavailable("storage operation failed", err)
}
