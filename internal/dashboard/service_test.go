package dashboard

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ocdul/social-listening/internal/cache"
	"github.com/ocdul/social-listening/internal/config"
	"github.com/ocdul/social-listening/internal/editor"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/gateway"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/query"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/ocdul/social-listening/internal/session"
	"github.com/ocdul/social-listening/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock implementation of the data access gateway
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Fetch(ctx context.Context, p query.Params, limit int) ([]models.Mention, error) {
	args := m.Called(ctx, p, limit)
	return args.Get(0).([]models.Mention), args.Error(1)
}

func (m *MockStore) Count(ctx context.Context, p query.Params) (int64, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) LastUpdated(ctx context.Context, alertID int64) (*time.Time, error) {
	args := m.Called(ctx, alertID)
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockStore) Timeline(ctx context.Context, p query.Params) ([]models.TimelinePoint, error) {
	args := m.Called(ctx, p)
	return args.Get(0).([]models.TimelinePoint), args.Error(1)
}

func (m *MockStore) SentimentBreakdown(ctx context.Context, p query.Params) ([]models.SentimentCount, error) {
	args := m.Called(ctx, p)
	return args.Get(0).([]models.SentimentCount), args.Error(1)
}

func (m *MockStore) Relabel(ctx context.Context, table string, id int64, sentiment models.Sentiment, confidence float64) error {
	args := m.Called(ctx, table, id, sentiment, confidence)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, table string, id int64) (gateway.DeleteResult, error) {
	args := m.Called(ctx, table, id)
	return args.Get(0).(gateway.DeleteResult), args.Error(1)
}

func (m *MockStore) AuditLog(ctx context.Context, entry models.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockStorage is a mock implementation of the storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(ctx context.Context, filename string, data []byte) error {
	args := m.Called(ctx, filename, data)
	return args.Error(0)
}

func (m *MockStorage) Retrieve(ctx context.Context, filename string) ([]byte, error) {
	args := m.Called(ctx, filename)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]storage.Object), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, filename string) error {
	args := m.Called(ctx, filename)
	return args.Error(0)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendEditorReport(ctx context.Context, report *models.EditorReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockNotificationService) Enabled() bool {
	return m.Called().Bool(0)
}

func sentimentPtr(s models.Sentiment) *models.Sentiment { return &s }

func fixtureMentions() []models.Mention {
	day := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	return []models.Mention{
		{ID: 1, AlertID: 7, CreatedTime: day, Platform: models.PlatformFacebook, Text: "buen servicio", Sentiment: sentimentPtr(models.SentimentPositive), Author: "ana", Likes: 10, Comments: 2, Shares: 1, SourceTable: "posts_facebook"},
		{ID: 2, AlertID: 7, CreatedTime: day.Add(-time.Hour), Platform: models.PlatformX, Text: "pésimo, \"nunca\" más", Sentiment: sentimentPtr(models.SentimentNegative), Author: "luis", Likes: 3, SourceTable: "respuestas_x"},
		{ID: 3, AlertID: 7, CreatedTime: day.Add(-2 * time.Hour), Platform: models.PlatformTikTok, Text: "ok", Author: "eva", Likes: 1, Shares: 4, SourceTable: "comentarios_tiktok"},
	}
}

type fixture struct {
	service       *Service
	store         *MockStore
	storage       *MockStorage
	notifications *MockNotificationService
	cache         *cache.MentionCache
	session       *session.Session
}

func newFixture(t *testing.T, superEditor bool) *fixture {
	t.Helper()
	reg := schema.Default()
	f := &fixture{
		store:         &MockStore{},
		storage:       &MockStorage{},
		notifications: &MockNotificationService{},
		cache:         cache.New[[]models.Mention](time.Minute),
	}
	f.service = NewService(&config.Config{DefaultFetchLimit: 100}, f.store, reg, f.cache, f.storage, f.notifications)
	f.service.now = func() time.Time { return time.Date(2025, 1, 31, 8, 30, 0, 0, time.UTC) }

	mgr := session.NewManager(reg, filters.DefaultOptions(), 0)
	sess, err := mgr.Create(session.Identity{Actor: "ana", AlertID: 7, SuperEditor: superEditor})
	require.NoError(t, err)
	f.service.ResetFilters(sess)
	f.session = sess
	return f
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	f.store.On("Fetch", mock.Anything, mock.AnythingOfType("query.Params"), 100).Return(fixtureMentions(), nil).Once()
	_, err := f.service.LoadMentions(context.Background(), f.session, 0)
	require.NoError(t, err)
}

func TestLoadMentionsRequiresAppliedFilters(t *testing.T) {
	f := newFixture(t, false)
	mgr := session.NewManager(schema.Default(), filters.DefaultOptions(), 0)
	fresh, err := mgr.Create(session.Identity{Actor: "ana", AlertID: 7})
	require.NoError(t, err)

	_, err = f.service.LoadMentions(context.Background(), fresh, 0)
	assert.ErrorIs(t, err, filters.ErrScopeNotApplied)
	f.store.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoadMentionsUsesCache(t *testing.T) {
	f := newFixture(t, false)
	f.load(t)

	assert.Len(t, f.session.Mentions, 3)
	assert.Len(t, f.session.Grid, 3)
	assert.Contains(t, f.session.Records, "respuestas_x:2")

	again, err := f.service.LoadMentions(context.Background(), f.session, 0)
	require.NoError(t, err)
	assert.Len(t, again, 3)
	f.store.AssertNumberOfCalls(t, "Fetch", 1)

	metrics := f.service.Snapshot()
	assert.Equal(t, 2, metrics.Fetches)
	assert.Equal(t, 1, metrics.CacheHits)
}

func TestLoadMentionsKeepsPreviousSetOnError(t *testing.T) {
	f := newFixture(t, false)
	f.load(t)

	unavailable := &gateway.DataUnavailableError{Op: "fetch", Err: errors.New("connection refused")}
	f.store.On("Fetch", mock.Anything, mock.AnythingOfType("query.Params"), 20).Return([]models.Mention(nil), unavailable).Once()

	_, err := f.service.LoadMentions(context.Background(), f.session, 20)
	assert.True(t, gateway.IsDataUnavailable(err))
	assert.Len(t, f.session.Mentions, 3)
	assert.Equal(t, 1, f.service.Snapshot().FetchErrors)
}

func TestSummary(t *testing.T) {
	f := newFixture(t, false)
	f.load(t)

	updated := time.Date(2025, 1, 30, 22, 0, 0, 0, time.UTC)
	f.store.On("Count", mock.Anything, mock.AnythingOfType("query.Params")).Return(int64(40), nil)
	f.store.On("LastUpdated", mock.Anything, int64(7)).Return(&updated, nil)
	f.store.On("SentimentBreakdown", mock.Anything, mock.AnythingOfType("query.Params")).Return([]models.SentimentCount{
		{Sentiment: models.SentimentPositive, Count: 30},
		{Sentiment: models.SentimentNegative, Count: 10},
	}, nil)
	f.store.On("Timeline", mock.Anything, mock.AnythingOfType("query.Params")).Return([]models.TimelinePoint{
		{Day: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), Platform: models.PlatformX, Count: 40},
	}, nil)

	summary, err := f.service.Summary(context.Background(), f.session)
	require.NoError(t, err)

	assert.Equal(t, int64(40), summary.Total)
	assert.Equal(t, 3, summary.Loaded)
	assert.Equal(t, &updated, summary.LastUpdated)
	assert.InDelta(t, 75.0, summary.SentimentShare[models.SentimentPositive], 0.001)
	assert.InDelta(t, 25.0, summary.SentimentShare[models.SentimentNegative], 0.001)
	assert.Equal(t, int64(14), summary.Likes)
	assert.Equal(t, int64(2), summary.Comments)
	assert.Equal(t, int64(5), summary.Shares)
	assert.Equal(t, map[models.ContentKind]int{
		models.KindPost:    1,
		models.KindReply:   1,
		models.KindComment: 1,
	}, summary.ByContentKind)
	assert.Len(t, summary.Timeline, 1)
}

func TestSummarySurfacesStoreErrors(t *testing.T) {
	f := newFixture(t, false)
	f.store.On("Count", mock.Anything, mock.Anything).Return(int64(0), &gateway.DataUnavailableError{Op: "count", Err: errors.New("timeout")})

	_, err := f.service.Summary(context.Background(), f.session)
	require.Error(t, err)
	assert.True(t, gateway.IsDataUnavailable(err))
}

func TestEditorOperationsRequireSuperEditor(t *testing.T) {
	f := newFixture(t, false)
	f.load(t)

	_, err := f.service.DiffRelabels(f.session, f.session.Grid)
	assert.ErrorIs(t, err, ErrEditorAccessDenied)
	_, err = f.service.DiffDeletions(f.session, f.session.Grid)
	assert.ErrorIs(t, err, ErrEditorAccessDenied)
	_, err = f.service.QueueSnapshot(f.session)
	assert.ErrorIs(t, err, ErrEditorAccessDenied)
	assert.ErrorIs(t, f.service.ClearQueue(f.session), ErrEditorAccessDenied)
	_, err = f.service.ApplyQueue(context.Background(), f.session)
	assert.ErrorIs(t, err, ErrEditorAccessDenied)
}

func TestDiffRelabelsTracksRenderedGrid(t *testing.T) {
	f := newFixture(t, true)
	f.load(t)

	rows := append([]editor.GridRow(nil), f.session.Grid...)
	rows[0].Sentiment = models.SentimentNeutral

	changed, err := f.service.DiffRelabels(f.session, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, models.SentimentNeutral, f.session.Grid[0].Sentiment)

	// Resubmitting the same grid queues nothing new
	changed, err = f.service.DiffRelabels(f.session, rows)
	require.NoError(t, err)
	assert.Zero(t, changed)

	rows[2].MarkedForDelete = true
	queued, err := f.service.DiffDeletions(f.session, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	pending, err := f.service.QueueSnapshot(f.session)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, models.ActionRelabel, pending[0].Action)
	assert.Equal(t, "comentarios_tiktok:3", pending[1].RecordKey)

	require.NoError(t, f.service.ClearQueue(f.session))
	assert.Zero(t, f.session.Queue.Len())
	assert.Equal(t, models.SentimentPositive, f.session.Grid[0].Sentiment)
}

func TestDiffRelabelsKeepsRejectedRows(t *testing.T) {
	f := newFixture(t, true)
	f.load(t)

	rows := append([]editor.GridRow(nil), f.session.Grid...)
	rows[0].Sentiment = models.SentimentNeutral
	rows[1].Sentiment = models.SentimentAll

	changed, err := f.service.DiffRelabels(f.session, rows)
	assert.Equal(t, 1, changed)
	require.Error(t, err)
	assert.ErrorIs(t, err, editor.ErrInvalidSentiment)
	assert.Equal(t, models.SentimentNeutral, f.session.Grid[0].Sentiment)
	assert.Equal(t, models.SentimentNegative, f.session.Grid[1].Sentiment, "a rejected row is not rendered as changed")

	// The same submission is rejected again rather than silently accepted
	changed, err = f.service.DiffRelabels(f.session, rows)
	assert.Zero(t, changed)
	assert.ErrorIs(t, err, editor.ErrInvalidSentiment)
	assert.Equal(t, 1, f.session.Queue.Len())
}

func TestDeletionReplacesRelabelInGrid(t *testing.T) {
	f := newFixture(t, true)
	f.load(t)

	rows := append([]editor.GridRow(nil), f.session.Grid...)
	rows[0].Sentiment = models.SentimentNegative
	_, err := f.service.DiffRelabels(f.session, rows)
	require.NoError(t, err)

	rows[0].MarkedForDelete = true
	queued, err := f.service.DiffDeletions(f.session, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	pending, err := f.service.QueueSnapshot(f.session)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.ActionDelete, pending[0].Action)
	assert.True(t, f.session.Grid[0].MarkedForDelete)
	assert.Equal(t, models.SentimentPositive, f.session.Grid[0].Sentiment)

	_, err = f.service.DiffRelabels(f.session, rows)
	assert.ErrorIs(t, err, editor.ErrQueuedForDeletion)
	assert.Equal(t, 1, f.session.Queue.Len())
}

func TestApplyQueue(t *testing.T) {
	f := newFixture(t, true)
	f.load(t)

	rows := append([]editor.GridRow(nil), f.session.Grid...)
	rows[0].Sentiment = models.SentimentNegative
	_, err := f.service.DiffRelabels(f.session, rows)
	require.NoError(t, err)

	f.store.On("Relabel", mock.Anything, "posts_facebook", int64(1), models.SentimentNegative, editor.ManualConfidence).Return(nil).Once()
	f.store.On("AuditLog", mock.Anything, mock.AnythingOfType("models.AuditEntry")).Return(nil).Once()
	f.notifications.On("Enabled").Return(true)
	f.notifications.On("SendEditorReport", mock.Anything, mock.MatchedBy(func(r *models.EditorReport) bool {
		return r.Actor == "ana" && r.AlertID == 7 && r.Succeeded == 1 && r.Failed == 0
	})).Return(errors.New("webhook down")).Once()

	result, err := f.service.ApplyQueue(context.Background(), f.session)
	require.NoError(t, err, "report failures are only logged")
	assert.Equal(t, 1, result.SuccessCount)
	assert.Zero(t, f.session.Queue.Len())
	assert.Empty(t, f.session.Mentions, "stale mentions are dropped after a write")
	assert.Zero(t, f.cache.Len(), "cached results of the alert are invalidated")

	metrics := f.service.Snapshot()
	assert.Equal(t, 1, metrics.Applies)
	assert.Equal(t, 1, metrics.EditsSucceeded)
	f.store.AssertExpectations(t)
	f.notifications.AssertExpectations(t)
}

func TestApplyQueueKeepsCacheWhenNothingWritten(t *testing.T) {
	f := newFixture(t, true)
	f.load(t)

	rows := append([]editor.GridRow(nil), f.session.Grid...)
	rows[1].MarkedForDelete = true
	_, err := f.service.DiffDeletions(f.session, rows)
	require.NoError(t, err)

	f.store.On("Delete", mock.Anything, "respuestas_x", int64(2)).
		Return(gateway.DeleteResult{}, &gateway.DataUnavailableError{Op: "delete", Err: errors.New("timeout")}).Once()
	f.notifications.On("Enabled").Return(false)

	result, err := f.service.ApplyQueue(context.Background(), f.session)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Failed(), 1)
	assert.Equal(t, 1, f.cache.Len())
	assert.Len(t, f.session.Mentions, 3)
	f.notifications.AssertNotCalled(t, "SendEditorReport", mock.Anything, mock.Anything)
}

func TestEditorView(t *testing.T) {
	f := newFixture(t, true)
	f.load(t)

	view := filters.View{Sentiments: []models.Sentiment{models.SentimentNegative}}
	got := f.service.EditorView(f.session, view)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestExport(t *testing.T) {
	f := newFixture(t, false)
	f.load(t)

	var stored []byte
	f.storage.On("Store", mock.Anything, "alert-7/mentions-20250131-083000.csv", mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(2).([]byte) }).Return(nil).Once()

	name, err := f.service.Export(context.Background(), f.session)
	require.NoError(t, err)
	assert.Equal(t, "alert-7/mentions-20250131-083000.csv", name)

	records, err := csv.NewReader(strings.NewReader(string(stored))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, []string{"2", "X (Twitter)", "Reply", "2025-01-10T11:00:00Z", "luis", "pésimo, \"nunca\" más", "NEG", "", "3", "0", "0", "respuestas_x"}, records[2])
	assert.Equal(t, "", records[3][6], "unscored mentions export an empty sentiment")
	assert.Equal(t, 1, f.service.Snapshot().Exports)
}

func TestExportWithoutStorage(t *testing.T) {
	svc := NewService(&config.Config{}, &MockStore{}, schema.Default(), nil, nil, nil)
	mgr := session.NewManager(schema.Default(), filters.DefaultOptions(), 0)
	sess, err := mgr.Create(session.Identity{Actor: "ana", AlertID: 7})
	require.NoError(t, err)

	_, err = svc.Export(context.Background(), sess)
	assert.ErrorIs(t, err, ErrExportUnavailable)
}

func TestListAndDownloadExports(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	modified := time.Date(2025, 1, 30, 10, 0, 0, 0, time.UTC)

	f.storage.On("List", ctx, "alert-7/").Return([]storage.Object{
		{Name: "alert-7/mentions-20250101-090000.csv", Size: 10, ModifiedAt: modified},
		{Name: "alert-7/mentions-20250130-100000.csv", Size: 20, ModifiedAt: modified},
	}, nil).Once()

	exports, err := f.service.ListExports(ctx, f.session)
	require.NoError(t, err)
	require.Len(t, exports, 2)
	assert.Equal(t, "mentions-20250130-100000.csv", exports[0].Name, "newest first, relative to the alert")
	assert.Equal(t, int64(20), exports[0].Size)

	f.storage.On("Retrieve", ctx, "alert-7/mentions-20250130-100000.csv").Return([]byte("id\n"), nil).Once()
	data, err := f.service.DownloadExport(ctx, f.session, "mentions-20250130-100000.csv")
	require.NoError(t, err)
	assert.Equal(t, "id\n", string(data))

	f.storage.On("Retrieve", ctx, "alert-7/mentions-20240101-000000.csv").
		Return([]byte(nil), fmt.Errorf("read: %w", storage.ErrNotFound)).Once()
	_, err = f.service.DownloadExport(ctx, f.session, "mentions-20240101-000000.csv")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	f.storage.AssertExpectations(t)
}

func TestDownloadExportStaysInsideAlert(t *testing.T) {
	f := newFixture(t, false)

	for _, name := range []string{"", "../alert-8/mentions.csv", "alert-8/mentions.csv", "..", "mentions.txt"} {
		_, err := f.service.DownloadExport(context.Background(), f.session, name)
		assert.ErrorIs(t, err, ErrInvalidExportName, name)
	}
	f.storage.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything)
}

func TestPruneExports(t *testing.T) {
	f := newFixture(t, false)
	f.service.config.ExportRetention = 7 * 24 * time.Hour
	ctx := context.Background()
	now := f.service.now()

	f.storage.On("List", ctx, "").Return([]storage.Object{
		{Name: "alert-7/old.csv", ModifiedAt: now.AddDate(0, 0, -30)},
		{Name: "alert-8/gone.csv", ModifiedAt: now.AddDate(0, 0, -8)},
		{Name: "alert-8/locked.csv", ModifiedAt: now.AddDate(0, 0, -9)},
		{Name: "alert-7/recent.csv", ModifiedAt: now.AddDate(0, 0, -1)},
		{Name: "alert-7/undated.csv"},
	}, nil).Once()
	f.storage.On("Delete", ctx, "alert-7/old.csv").Return(nil).Once()
	f.storage.On("Delete", ctx, "alert-8/gone.csv").Return(fmt.Errorf("delete: %w", storage.ErrNotFound)).Once()
	f.storage.On("Delete", ctx, "alert-8/locked.csv").Return(errors.New("lease held")).Once()

	removed, err := f.service.PruneExports(ctx)
	assert.Equal(t, 2, removed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lease held")
	assert.Equal(t, 2, f.service.Snapshot().ExportsPruned)
	f.storage.AssertExpectations(t)
	f.storage.AssertNotCalled(t, "Delete", ctx, "alert-7/recent.csv")
}

func TestPruneExportsDisabled(t *testing.T) {
	f := newFixture(t, false)

	removed, err := f.service.PruneExports(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
	f.storage.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}
