package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ocdul/social-listening/internal/cache"
	"github.com/ocdul/social-listening/internal/config"
	"github.com/ocdul/social-listening/internal/editor"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/gateway"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/notifications"
	"github.com/ocdul/social-listening/internal/query"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/ocdul/social-listening/internal/session"
	"github.com/ocdul/social-listening/internal/storage"
	"github.com/sirupsen/logrus"
)

// ErrEditorAccessDenied is returned when a session without editor rights
// touches the pending-edit queue
var ErrEditorAccessDenied = errors.New("super editor access required")

// Store is everything the dashboard needs from the data access gateway
type Store interface {
	editor.Gateway
	Fetch(ctx context.Context, p query.Params, limit int) ([]models.Mention, error)
	Count(ctx context.Context, p query.Params) (int64, error)
	LastUpdated(ctx context.Context, alertID int64) (*time.Time, error)
	Timeline(ctx context.Context, p query.Params) ([]models.TimelinePoint, error)
	SentimentBreakdown(ctx context.Context, p query.Params) ([]models.SentimentCount, error)
}

var _ Store = (*gateway.Gateway)(nil)

// Service implements the dashboard operations on top of a session. Callers
// hold the session (session.Run) for the duration of each call.
type Service struct {
	config              *config.Config
	store               Store
	registry            *schema.Registry
	cache               *cache.MentionCache
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	metrics             *Metrics
	mu                  sync.RWMutex
	now                 func() time.Time
}

// Metrics holds editor activity counters
type Metrics struct {
	Fetches        int       `json:"fetches"`
	CacheHits      int       `json:"cache_hits"`
	FetchErrors    int       `json:"fetch_errors"`
	Applies        int       `json:"applies"`
	EditsSucceeded int       `json:"edits_succeeded"`
	EditsFailed    int       `json:"edits_failed"`
	Exports        int       `json:"exports"`
	ExportsPruned  int       `json:"exports_pruned"`
	LastApply      time.Time `json:"last_apply,omitempty"`
}

// NewService creates a dashboard service. storage and notificationService
// may be nil when exports or reports are not configured.
func NewService(cfg *config.Config, store Store, registry *schema.Registry, resultCache *cache.MentionCache, storage storage.StorageInterface, notificationService notifications.NotificationInterface) *Service {
	return &Service{
		config:              cfg,
		store:               store,
		registry:            registry,
		cache:               resultCache,
		storage:             storage,
		notificationService: notificationService,
		metrics:             &Metrics{},
		now:                 time.Now,
	}
}

// ApplyFilters validates and applies a new selection
func (s *Service) ApplyFilters(sess *session.Session, sel filters.Selection) error {
	if err := sess.Filters.Apply(sel); err != nil {
		return err
	}
	logrus.Debugf("Session %s applied filters %+v", sess.ID, sess.Filters.State())
	return nil
}

// ResetFilters restores the default selection
func (s *Service) ResetFilters(sess *session.Session) {
	sess.Filters.Reset()
}

// LoadMentions fetches the mentions of the applied scope, newest first, and
// makes them the session's editable set. On failure the previously loaded
// set is kept.
func (s *Service) LoadMentions(ctx context.Context, sess *session.Session, limit int) ([]models.Mention, error) {
	p, err := sess.Filters.Params(sess.Identity.AlertID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.config.DefaultFetchLimit
	}

	key := cache.Key(sess.Identity.Actor, p, limit)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.record(func(m *Metrics) { m.Fetches++; m.CacheHits++ })
			sess.Materialize(cached)
			return cached, nil
		}
	}

	mentions, err := s.store.Fetch(ctx, p, limit)
	if err != nil {
		s.record(func(m *Metrics) { m.FetchErrors++ })
		logrus.Errorf("Failed to load mentions for session %s: %v", sess.ID, err)
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, p.AlertID, mentions)
	}
	s.record(func(m *Metrics) { m.Fetches++ })
	sess.Materialize(mentions)
	return mentions, nil
}

// Count returns the number of mentions of the applied scope, ignoring limits
func (s *Service) Count(ctx context.Context, sess *session.Session) (int64, error) {
	p, err := sess.Filters.Params(sess.Identity.AlertID)
	if err != nil {
		return 0, err
	}
	return s.store.Count(ctx, p)
}

// LastUpdated returns the data freshness of an alert, independent of filters
func (s *Service) LastUpdated(ctx context.Context, alertID int64) (*time.Time, error) {
	return s.store.LastUpdated(ctx, alertID)
}

// ApplyQueue commits the session's pending edits. Cached results of the
// alert are dropped once anything was written and an editor report is sent
// when notifications are configured.
func (s *Service) ApplyQueue(ctx context.Context, sess *session.Session) (editor.ApplyResult, error) {
	if err := requireEditor(sess); err != nil {
		return editor.ApplyResult{}, err
	}

	result := sess.Queue.Apply(ctx, s.store, sess.Identity.Actor)

	if result.SuccessCount > 0 {
		if s.cache != nil {
			dropped := s.cache.InvalidateAlert(sess.Identity.AlertID)
			logrus.Debugf("Dropped %d cached result(s) of alert %d", dropped, sess.Identity.AlertID)
		}
		sess.Materialize(nil)
	}

	s.record(func(m *Metrics) {
		m.Applies++
		m.EditsSucceeded += result.SuccessCount
		m.EditsFailed += result.ErrorCount
		m.LastApply = s.now()
	})

	if len(result.Outcomes) > 0 && s.notificationService != nil && s.notificationService.Enabled() {
		report := &models.EditorReport{
			Actor:       sess.Identity.Actor,
			AlertID:     sess.Identity.AlertID,
			GeneratedAt: s.now(),
			Succeeded:   result.SuccessCount,
			Failed:      result.ErrorCount,
			Outcomes:    result.Outcomes,
		}
		if err := s.notificationService.SendEditorReport(ctx, report); err != nil {
			logrus.Errorf("Failed to send editor report: %v", err)
		}
	}

	return result, nil
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// Snapshot returns a copy of the current metrics
func (s *Service) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.metrics
}

func (s *Service) record(update func(*Metrics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(s.metrics)
}

// PurgeCache drops expired cached results
func (s *Service) PurgeCache() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.PurgeExpired()
}
