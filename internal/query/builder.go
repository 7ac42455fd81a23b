package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/schema"
)

// ErrNoQuery is returned when the scope resolves to zero tables. Callers
// must short-circuit to an empty result instead of contacting the store.
var ErrNoQuery = errors.New("query: no content tables in scope")

// Query is a statement with `?` bindvars and its arguments in bind order
type Query struct {
	SQL    string
	Args   []interface{}
	Tables []string
}

// Params is the filtering applied to every sub-query
type Params struct {
	AlertID   int64
	Platforms []models.Platform
	Start     time.Time
	End       time.Time // inclusive, already rounded up to end of day
	Sentiment models.Sentiment
}

// Builder composes SQL over the registry's content tables. Identifiers are
// only ever taken from the registry; values are always bound.
type Builder struct {
	registry *schema.Registry
	schema   string
}

// NewBuilder creates a builder that qualifies tables with contentSchema
// (no qualification when empty)
func NewBuilder(registry *schema.Registry, contentSchema string) *Builder {
	return &Builder{registry: registry, schema: contentSchema}
}

// Registry returns the registry the builder reads identifiers from
func (b *Builder) Registry() *schema.Registry {
	return b.registry
}

// Qualify prefixes a registry identifier with the content schema
func (b *Builder) Qualify(table string) string {
	return qualify(b.schema, table)
}

func qualify(schemaName, table string) string {
	if schemaName == "" {
		return table
	}
	return schemaName + "." + table
}

// Unified builds the normalized UNION ALL fetch ordered by created_time
// descending. limit <= 0 means no limit.
func (b *Builder) Unified(p Params, limit int) (Query, error) {
	q, err := b.union(p, func(t schema.Table) string {
		return fmt.Sprintf(`SELECT id, alerta_id, created_time, origin, text, sentiment_pred, sentiment_confidence,
	%s AS author, %s AS likes, %s AS comments, %s AS shares, '%s' AS table_source
FROM %s`,
			t.Author.SQL(), t.Likes.SQL(), t.Comments.SQL(), t.Shares.SQL(), t.Name, b.Qualify(t.Name))
	}, "")
	if err != nil {
		return Query{}, err
	}

	q.SQL += "\nORDER BY created_time DESC"
	if limit > 0 {
		q.SQL += "\nLIMIT " + strconv.Itoa(limit)
	}
	return q, nil
}

// Count builds a total row count over the scope, unaffected by any limit
func (b *Builder) Count(p Params) (Query, error) {
	q, err := b.union(p, func(t schema.Table) string {
		return "SELECT COUNT(*) AS n FROM " + b.Qualify(t.Name)
	}, "")
	if err != nil {
		return Query{}, err
	}
	q.SQL = "SELECT COALESCE(SUM(n), 0) AS total FROM (\n" + q.SQL + "\n) counts"
	return q, nil
}

// Timeline builds per-day, per-platform counts
func (b *Builder) Timeline(p Params) (Query, error) {
	q, err := b.union(p, func(t schema.Table) string {
		return "SELECT DATE(created_time) AS day, origin AS platform, COUNT(*) AS n FROM " + b.Qualify(t.Name)
	}, "GROUP BY DATE(created_time), origin")
	if err != nil {
		return Query{}, err
	}
	q.SQL = "SELECT day, platform, SUM(n) AS total FROM (\n" + q.SQL + "\n) timeline\nGROUP BY day, platform\nORDER BY day, platform"
	return q, nil
}

// SentimentBreakdown builds counts grouped by sentiment code
func (b *Builder) SentimentBreakdown(p Params) (Query, error) {
	q, err := b.union(p, func(t schema.Table) string {
		return "SELECT sentiment_pred AS sentiment, COUNT(*) AS n FROM " + b.Qualify(t.Name)
	}, "GROUP BY sentiment_pred")
	if err != nil {
		return Query{}, err
	}
	q.SQL = "SELECT sentiment, SUM(n) AS total FROM (\n" + q.SQL + "\n) breakdown\nGROUP BY sentiment\nORDER BY sentiment"
	return q, nil
}

// LastUpdated builds the newest created_time across every registered table
// of the alert, independent of any filter
func (b *Builder) LastUpdated(alertID int64) (Query, error) {
	tables := b.registry.All()
	if len(tables) == 0 {
		return Query{}, ErrNoQuery
	}

	parts := make([]string, 0, len(tables))
	q := Query{}
	for _, t := range tables {
		parts = append(parts, "SELECT MAX(created_time) AS last_seen FROM "+b.Qualify(t.Name)+" WHERE alerta_id = ?")
		q.Args = append(q.Args, alertID)
		q.Tables = append(q.Tables, t.Name)
	}
	q.SQL = "SELECT MAX(last_seen) AS last_updated FROM (\n" + strings.Join(parts, "\nUNION ALL\n") + "\n) freshness"
	return q, nil
}

// union renders one filtered sub-query per table in registry order and joins
// them. Arguments are appended in exactly the same order as the sub-queries.
func (b *Builder) union(p Params, selectFrom func(schema.Table) string, suffix string) (Query, error) {
	tables := b.registry.Flatten(p.Platforms)
	if len(tables) == 0 {
		return Query{}, ErrNoQuery
	}

	filterSentiment := p.Sentiment.Valid()
	parts := make([]string, 0, len(tables))
	q := Query{}

	for _, t := range tables {
		var sb strings.Builder
		sb.WriteString(selectFrom(t))
		sb.WriteString("\nWHERE alerta_id = ? AND origin = ? AND created_time BETWEEN ? AND ?")
		args := []interface{}{p.AlertID, string(t.Platform), p.Start, p.End}
		if filterSentiment {
			sb.WriteString(" AND sentiment_pred = ?")
			args = append(args, string(p.Sentiment))
		}
		if suffix != "" {
			sb.WriteString("\n" + suffix)
		}

		parts = append(parts, sb.String())
		q.Args = append(q.Args, args...)
		q.Tables = append(q.Tables, t.Name)
	}

	q.SQL = strings.Join(parts, "\nUNION ALL\n")
	return q, nil
}
