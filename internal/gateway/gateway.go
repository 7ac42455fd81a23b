package gateway

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/query"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/sirupsen/logrus"
)

// DB is the subset of sqlx the gateway needs
type DB interface {
	sqlx.ExtContext
}

// Options carries the schema names the gateway qualifies tables with
type Options struct {
	ContentSchema string
	RawSchema     string
	AuditTable    string
}

// Gateway executes built queries and mutations against the relational store.
// It is the only place store errors are translated into typed errors.
type Gateway struct {
	db       DB
	builder  *query.Builder
	registry *schema.Registry
	opts     Options
	now      func() time.Time
}

// New creates a gateway over db using the registry's tables
func New(db DB, registry *schema.Registry, opts Options) *Gateway {
	if opts.AuditTable == "" {
		opts.AuditTable = "editor_audit_log"
	}
	return &Gateway{
		db:       db,
		builder:  query.NewBuilder(registry, opts.ContentSchema),
		registry: registry,
		opts:     opts,
		now:      time.Now,
	}
}

// Builder exposes the query builder bound to the gateway's schema
func (g *Gateway) Builder() *query.Builder {
	return g.builder
}

// Fetch returns the unified mentions of the scope, newest first
func (g *Gateway) Fetch(ctx context.Context, p query.Params, limit int) ([]models.Mention, error) {
	q, err := g.builder.Unified(p, limit)
	if errors.Is(err, query.ErrNoQuery) {
		skippedQueries.WithLabelValues("fetch").Inc()
		return []models.Mention{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []mentionRow
	start := time.Now()
	err = sqlx.SelectContext(ctx, g.db, &rows, g.db.Rebind(q.SQL), q.Args...)
	observe("fetch", start, err)
	if err != nil {
		logrus.Errorf("Unified fetch over %d tables failed: %v", len(q.Tables), err)
		return nil, unavailable("fetch", err)
	}

	mentions := make([]models.Mention, 0, len(rows))
	for _, r := range rows {
		mentions = append(mentions, r.toMention())
	}
	logrus.Debugf("Fetched %d mentions from %d tables", len(mentions), len(q.Tables))
	return mentions, nil
}

// Count returns the total number of mentions in scope, ignoring any limit
func (g *Gateway) Count(ctx context.Context, p query.Params) (int64, error) {
	q, err := g.builder.Count(p)
	if errors.Is(err, query.ErrNoQuery) {
		skippedQueries.WithLabelValues("count").Inc()
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var total int64
	start := time.Now()
	err = sqlx.GetContext(ctx, g.db, &total, g.db.Rebind(q.SQL), q.Args...)
	observe("count", start, err)
	if err != nil {
		return 0, unavailable("count", err)
	}
	return total, nil
}

// LastUpdated returns the newest created_time of the alert, nil when the
// alert has no rows
func (g *Gateway) LastUpdated(ctx context.Context, alertID int64) (*time.Time, error) {
	q, err := g.builder.LastUpdated(alertID)
	if errors.Is(err, query.ErrNoQuery) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var last dbTime
	start := time.Now()
	err = g.db.QueryRowxContext(ctx, g.db.Rebind(q.SQL), q.Args...).Scan(&last)
	observe("last_updated", start, err)
	if err != nil {
		return nil, unavailable("last_updated", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// Timeline returns per-day, per-platform mention counts
func (g *Gateway) Timeline(ctx context.Context, p query.Params) ([]models.TimelinePoint, error) {
	q, err := g.builder.Timeline(p)
	if errors.Is(err, query.ErrNoQuery) {
		return []models.TimelinePoint{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []timelineRow
	start := time.Now()
	err = sqlx.SelectContext(ctx, g.db, &rows, g.db.Rebind(q.SQL), q.Args...)
	observe("timeline", start, err)
	if err != nil {
		return nil, unavailable("timeline", err)
	}

	points := make([]models.TimelinePoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, models.TimelinePoint{
			Day:      r.Day.Time,
			Platform: models.Platform(r.Platform),
			Count:    r.Total,
		})
	}
	return points, nil
}

// SentimentBreakdown returns mention counts per sentiment code. Rows without
// a sentiment are reported under SentimentAll.
func (g *Gateway) SentimentBreakdown(ctx context.Context, p query.Params) ([]models.SentimentCount, error) {
	q, err := g.builder.SentimentBreakdown(p)
	if errors.Is(err, query.ErrNoQuery) {
		return []models.SentimentCount{}, nil
	}
	if err != nil {
		return nil, err
	}

	var rows []sentimentRow
	start := time.Now()
	err = sqlx.SelectContext(ctx, g.db, &rows, g.db.Rebind(q.SQL), q.Args...)
	observe("sentiment_breakdown", start, err)
	if err != nil {
		return nil, unavailable("sentiment_breakdown", err)
	}

	counts := make([]models.SentimentCount, 0, len(rows))
	for _, r := range rows {
		counts = append(counts, models.SentimentCount{
			Sentiment: models.Sentiment(r.Sentiment.String),
			Count:     r.Total,
		})
	}
	return counts, nil
}

// Ping checks the store is reachable
func (g *Gateway) Ping(ctx context.Context) error {
	var one int
	if err := g.db.QueryRowxContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (g *Gateway) contentTable(name string) string {
	return g.builder.Qualify(name)
}

func (g *Gateway) rawTable(name string) string {
	if g.opts.RawSchema == "" {
		return name
	}
	return g.opts.RawSchema + "." + name
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
