package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplechat/convmeta/internal/profile"
	"github.com/simplechat/convmeta/plugin/keywords"
	"github.com/simplechat/convmeta/plugin/metadata"
	metaerrors "github.com/simplechat/convmeta/server/internal/errors"
	"github.com/simplechat/convmeta/store"
)

// fakeDriver is an in-memory store.Driver with the same optimistic
// versioning semantics as the SQL drivers.
type fakeDriver struct {
	mu            sync.Mutex
	conversations map[int32]*store.Conversation
	nextID        int32

	// updateErr, when set, fails every UpdateConversationMetadata call.
	updateErr error
	// conflicts injects that many version conflicts; each one also runs
	// concurrentWrite against the stored row, simulating the writer we
	// lost the race to.
	conflicts       int
	concurrentWrite func(c *store.Conversation)
}

var _ store.Driver = (*fakeDriver)(nil)

func newFakeDriver() *fakeDriver {
	return &fakeDriver{conversations: map[int32]*store.Conversation{}, nextID: 1}
}

func (d *fakeDriver) GetDB() *sql.DB                            { return nil }
func (d *fakeDriver) Close() error                              { return nil }
func (d *fakeDriver) IsInitialized(context.Context) (bool, error) { return true, nil }
func (d *fakeDriver) Migrate(context.Context) error             { return nil }

func (d *fakeDriver) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.nextID
	d.nextID++
	if create.Version == 0 {
		create.Version = 1
	}
	if create.RowStatus == "" {
		create.RowStatus = store.Normal
	}
	d.conversations[create.ID] = cloneConversation(create)
	return cloneConversation(create), nil
}

func (d *fakeDriver) GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error) {
	list, err := d.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, store.ErrConversationNotFound
	}
	return list[0], nil
}

func (d *fakeDriver) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := []*store.Conversation{}
	for _, c := range d.conversations {
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		if find.UID != nil && c.UID != *find.UID {
			continue
		}
		if find.CreatorID != nil && c.CreatorID != *find.CreatorID {
			continue
		}
		if find.RowStatus != nil && c.RowStatus != *find.RowStatus {
			continue
		}
		list = append(list, cloneConversation(c))
	}
	return list, nil
}

func (d *fakeDriver) UpdateConversationMetadata(_ context.Context, update *store.UpdateConversationMetadata) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.updateErr != nil {
		return nil, d.updateErr
	}
	c, ok := d.conversations[update.ID]
	if !ok {
		return nil, store.ErrConversationNotFound
	}
	if d.conflicts > 0 {
		d.conflicts--
		c.Version++
		if d.concurrentWrite != nil {
			d.concurrentWrite(c)
		}
		return nil, store.ErrVersionConflict
	}
	if c.Version != update.ExpectedVersion {
		return nil, store.ErrVersionConflict
	}
	if update.Metadata != nil {
		c.Metadata = update.Metadata
	}
	if update.Title != nil {
		c.Title = *update.Title
	}
	if update.RowStatus != nil {
		c.RowStatus = *update.RowStatus
	}
	c.UpdatedTs = update.UpdatedTs
	c.Version++
	return cloneConversation(c), nil
}

func (d *fakeDriver) DeleteConversation(_ context.Context, del *store.DeleteConversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.conversations[del.ID]; !ok {
		return store.ErrConversationNotFound
	}
	delete(d.conversations, del.ID)
	return nil
}

func (d *fakeDriver) VacuumConversations(_ context.Context, beforeTs int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var removed int64
	for id, c := range d.conversations {
		if c.RowStatus == store.Archived && c.UpdatedTs < beforeTs {
			delete(d.conversations, id)
			removed++
		}
	}
	return removed, nil
}

func cloneConversation(c *store.Conversation) *store.Conversation {
	data, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	clone := &store.Conversation{}
	if err := json.Unmarshal(data, clone); err != nil {
		panic(err)
	}
	return clone
}

func newTestService(t *testing.T, driver *fakeDriver) Service {
	t.Helper()
	st := store.New(driver, &profile.Profile{Mode: "demo"})
	return New(st, &profile.Profile{Mode: "demo"}, nil, nil)
}

func createTestConversation(t *testing.T, svc Service) *store.Conversation {
	t.Helper()
	c, err := svc.CreateConversation(context.Background(), &CreateConversationRequest{
		CreatorID: 101,
		Title:     "quarterly planning",
	})
	require.NoError(t, err)
	return c
}

func sampleTurn() *metadata.TurnArtifacts {
	return &metadata.TurnArtifacts{
		Documents: []metadata.DocumentRef{
			{ID: "doc-1", Scope: "personal", Chunks: []string{"c1"}},
		},
		Models:   []string{"gpt-4"},
		Keywords: []string{"planning"},
	}
}

func TestCreateConversation_StrictDefault(t *testing.T) {
	driver := newFakeDriver()
	st := store.New(driver, &profile.Profile{Mode: "demo"})
	svc := New(st, &profile.Profile{Mode: "demo", StrictDefault: true}, nil, nil)

	c, err := svc.CreateConversation(context.Background(), &CreateConversationRequest{CreatorID: 1})
	require.NoError(t, err)
	assert.True(t, c.Strict())
	assert.NotEmpty(t, c.UID)
	assert.EqualValues(t, 1, c.Version)

	// Explicit flag beats the profile default.
	off := false
	c2, err := svc.CreateConversation(context.Background(), &CreateConversationRequest{CreatorID: 1, Strict: &off})
	require.NoError(t, err)
	assert.False(t, c2.Strict())
}

func TestCollectAndMerge_Basic(t *testing.T) {
	svc := newTestService(t, newFakeDriver())
	c := createTestConversation(t, svc)
	tc := metadata.TurnContext{UserID: "u1"}

	result, err := svc.CollectAndMerge(context.Background(), c.UID, tc, sampleTurn())
	require.NoError(t, err)
	require.NotNil(t, result.Conversation.Metadata)

	doc := result.Conversation.Metadata
	require.Len(t, doc.Context, 1)
	assert.Equal(t, metadata.ContextPrimary, doc.Context[0].Type)
	assert.Equal(t, metadata.ScopePersonal, doc.Context[0].Scope)
	assert.Equal(t, int64(2), result.Conversation.Version)
	assert.Zero(t, result.ConflictRetries)
	assert.Zero(t, result.DroppedDocuments)
}

func TestCollectAndMerge_Idempotence(t *testing.T) {
	svc := newTestService(t, newFakeDriver())
	c := createTestConversation(t, svc)
	tc := metadata.TurnContext{UserID: "u1"}

	first, err := svc.CollectAndMerge(context.Background(), c.UID, tc, sampleTurn())
	require.NoError(t, err)
	second, err := svc.CollectAndMerge(context.Background(), c.UID, tc, sampleTurn())
	require.NoError(t, err)

	// Re-sending the same turn bumps the version but changes nothing else.
	assert.Equal(t, first.Conversation.Metadata.Context, second.Conversation.Metadata.Context)
	assert.Equal(t, len(first.Conversation.Metadata.Tags), len(second.Conversation.Metadata.Tags))
	assert.Equal(t, first.Conversation.Metadata.Classification, second.Conversation.Metadata.Classification)
	assert.Equal(t, first.Conversation.Version+1, second.Conversation.Version)
}

func TestCollectAndMerge_ConflictRetryRemerges(t *testing.T) {
	driver := newFakeDriver()
	svc := newTestService(t, driver)
	c := createTestConversation(t, svc)

	// Simulate losing one race to a writer that tagged another model.
	driver.conflicts = 1
	driver.concurrentWrite = func(stored *store.Conversation) {
		doc := stored.Metadata
		if doc == nil {
			doc = metadata.NewDocument()
			stored.Metadata = doc
		}
		metadata.Merge(doc, nil, []metadata.Tag{metadata.ModelTag{Value: "claude-3"}})
	}

	result, err := svc.CollectAndMerge(context.Background(), c.UID, metadata.TurnContext{UserID: "u1"}, sampleTurn())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ConflictRetries)

	// Both writers' tags survive: the retry re-merged on the fresh row.
	doc := result.Conversation.Metadata
	assert.GreaterOrEqual(t, doc.FindTag(metadata.CategoryModel, "claude-3"), 0)
	assert.GreaterOrEqual(t, doc.FindTag(metadata.CategoryModel, "gpt-4"), 0)
	assert.GreaterOrEqual(t, doc.FindTag(metadata.CategoryDocument, "doc-1"), 0)
}

func TestCollectAndMerge_RetriesExhausted(t *testing.T) {
	driver := newFakeDriver()
	svc := newTestService(t, driver)
	c := createTestConversation(t, svc)

	driver.conflicts = maxConflictRetries

	_, err := svc.CollectAndMerge(context.Background(), c.UID, metadata.TurnContext{UserID: "u1"}, sampleTurn())
	require.Error(t, err)
	assert.True(t, metaerrors.IsCode(err, metaerrors.ErrCodeConflictRetriesExhausted))
}

func TestCollectAndMerge_StorageErrorLeavesDocumentIntact(t *testing.T) {
	driver := newFakeDriver()
	svc := newTestService(t, driver)
	c := createTestConversation(t, svc)

	_, err := svc.CollectAndMerge(context.Background(), c.UID, metadata.TurnContext{UserID: "u1"}, sampleTurn())
	require.NoError(t, err)

	driver.updateErr = assert.AnError
	_, err = svc.CollectAndMerge(context.Background(), c.UID, metadata.TurnContext{UserID: "u1"}, &metadata.TurnArtifacts{
		Models: []string{"gpt-5"},
	})
	require.Error(t, err)
	assert.True(t, metaerrors.IsCode(err, metaerrors.ErrCodeStorageUnavailable))

	// The stored document is untouched by the failed merge.
	driver.updateErr = nil
	stored, storeErr := driver.GetConversation(context.Background(), &store.FindConversation{ID: &c.ID})
	require.NoError(t, storeErr)
	assert.Equal(t, -1, stored.Metadata.FindTag(metadata.CategoryModel, "gpt-5"))
	assert.GreaterOrEqual(t, stored.Metadata.FindTag(metadata.CategoryModel, "gpt-4"), 0)
}

func TestCollectAndMerge_NotFound(t *testing.T) {
	svc := newTestService(t, newFakeDriver())
	_, err := svc.CollectAndMerge(context.Background(), "missing", metadata.TurnContext{UserID: "u1"}, sampleTurn())
	require.Error(t, err)
	assert.True(t, metaerrors.IsCode(err, metaerrors.ErrCodeNotFound))
}

func TestCollectAndMerge_CountsDroppedDocuments(t *testing.T) {
	svc := newTestService(t, newFakeDriver())
	c := createTestConversation(t, svc)

	// Group hit with no group anywhere resolves to nothing.
	turn := &metadata.TurnArtifacts{
		Documents: []metadata.DocumentRef{
			{ID: "doc-1", Scope: "personal"},
			{ID: "doc-2", Scope: "group"},
		},
	}
	result, err := svc.CollectAndMerge(context.Background(), c.UID, metadata.TurnContext{UserID: "u1"}, turn)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DroppedDocuments)
	assert.Len(t, result.Scopes, 1)
}

// staticExtractor returns a fixed keyword list for every message.
type staticExtractor struct{ terms []string }

func (s staticExtractor) Extract(context.Context, *keywords.ExtractRequest) []string {
	return s.terms
}

func TestCollectAndMerge_KeywordBackfill(t *testing.T) {
	driver := newFakeDriver()
	st := store.New(driver, &profile.Profile{Mode: "demo"})
	svc := New(st, &profile.Profile{Mode: "demo"}, staticExtractor{terms: []string{"kubernetes"}}, nil)
	c := createTestConversation(t, svc)

	result, err := svc.CollectAndMerge(context.Background(), c.UID, metadata.TurnContext{UserID: "u1"}, &metadata.TurnArtifacts{
		Message: "how do I debug a Kubernetes pod",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Conversation.Metadata.FindTag(metadata.CategorySemantic, "kubernetes"), 0)

	// Explicit keywords suppress extraction.
	result, err = svc.CollectAndMerge(context.Background(), c.UID, metadata.TurnContext{UserID: "u1"}, &metadata.TurnArtifacts{
		Message:  "anything",
		Keywords: []string{"terraform"},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Conversation.Metadata.FindTag(metadata.CategorySemantic, "terraform"), 0)
}

func TestSetStrictAndGate(t *testing.T) {
	svc := newTestService(t, newFakeDriver())
	c := createTestConversation(t, svc)
	ctx := context.Background()

	// Non-strict: everything is allowed.
	allowed, err := svc.AllowedWithoutConfirmation(ctx, c.UID, metadata.ScopeRef{Kind: metadata.ScopeGroup, ID: "g9"})
	require.NoError(t, err)
	assert.True(t, allowed)

	_, err = svc.SetStrict(ctx, c.UID, true)
	require.NoError(t, err)

	// Strict with empty context: unknown scope needs confirmation.
	allowed, err = svc.AllowedWithoutConfirmation(ctx, c.UID, metadata.ScopeRef{Kind: metadata.ScopeGroup, ID: "g9"})
	require.NoError(t, err)
	assert.False(t, allowed)

	// User approval unblocks it.
	updated, err := svc.ApproveContext(ctx, c.UID, metadata.ScopeRef{Kind: metadata.ScopeGroup, ID: "g9"})
	require.NoError(t, err)
	require.NotEmpty(t, updated.Metadata.Context)

	allowed, err = svc.AllowedWithoutConfirmation(ctx, c.UID, metadata.ScopeRef{Kind: metadata.ScopeGroup, ID: "g9"})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestListConversations_Filter(t *testing.T) {
	svc := newTestService(t, newFakeDriver())
	ctx := context.Background()

	a := createTestConversation(t, svc)
	_, err := svc.SetStrict(ctx, a.UID, true)
	require.NoError(t, err)
	createTestConversation(t, svc)

	all, err := svc.ListConversations(ctx, nil, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	strictOnly, err := svc.ListConversations(ctx, nil, "strict")
	require.NoError(t, err)
	require.Len(t, strictOnly, 1)
	assert.Equal(t, a.UID, strictOnly[0].UID)

	_, err = svc.ListConversations(ctx, nil, "title +")
	require.Error(t, err)
	assert.True(t, metaerrors.IsCode(err, metaerrors.ErrCodeInvalidArgument))
}

func TestArchiveAndDelete(t *testing.T) {
	driver := newFakeDriver()
	svc := newTestService(t, driver)
	ctx := context.Background()
	c := createTestConversation(t, svc)

	require.NoError(t, svc.ArchiveConversation(ctx, c.UID))
	stored, err := driver.GetConversation(ctx, &store.FindConversation{ID: &c.ID})
	require.NoError(t, err)
	assert.Equal(t, store.Archived, stored.RowStatus)

	require.NoError(t, svc.DeleteConversation(ctx, c.UID))
	err = svc.DeleteConversation(ctx, c.UID)
	require.Error(t, err)
	assert.True(t, metaerrors.IsCode(err, metaerrors.ErrCodeNotFound))
}

func TestCleanupJob_RunNow(t *testing.T) {
	driver := newFakeDriver()
	st := store.New(driver, &profile.Profile{Mode: "demo"})
	svc := New(st, &profile.Profile{Mode: "demo"}, nil, nil)
	ctx := context.Background()

	c := createTestConversation(t, svc)
	require.NoError(t, svc.ArchiveConversation(ctx, c.UID))
	// Age the row past the retention window.
	driver.mu.Lock()
	driver.conversations[c.ID].UpdatedTs = 0
	driver.mu.Unlock()

	job := NewCleanupJob(st, CleanupConfig{RetentionDays: 7}, nil)
	deleted, err := job.RunNow(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}
