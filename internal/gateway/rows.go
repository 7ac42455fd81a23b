package gateway

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ocdul/social-listening/internal/models"
)

// dbTime scans timestamps that arrive either as time.Time (pgx, typed SQLite
// columns) or as text (SQLite aggregates and expressions)
type dbTime struct {
	Time  time.Time
	Valid bool
}

var textTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *dbTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v, true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into a timestamp", value)
}

func (t *dbTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range textTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed, true
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

type mentionRow struct {
	ID          int64           `db:"id"`
	AlertID     int64           `db:"alerta_id"`
	CreatedTime dbTime          `db:"created_time"`
	Origin      string          `db:"origin"`
	Text        sql.NullString  `db:"text"`
	Sentiment   sql.NullString  `db:"sentiment_pred"`
	Confidence  sql.NullFloat64 `db:"sentiment_confidence"`
	Author      sql.NullString  `db:"author"`
	Likes       sql.NullInt64   `db:"likes"`
	Comments    sql.NullInt64   `db:"comments"`
	Shares      sql.NullInt64   `db:"shares"`
	TableSource string          `db:"table_source"`
}

func (r mentionRow) toMention() models.Mention {
	m := models.Mention{
		ID:          r.ID,
		AlertID:     r.AlertID,
		CreatedTime: r.CreatedTime.Time,
		Platform:    models.Platform(r.Origin),
		Text:        r.Text.String,
		Author:      r.Author.String,
		Likes:       r.Likes.Int64,
		Comments:    r.Comments.Int64,
		Shares:      r.Shares.Int64,
		SourceTable: r.TableSource,
	}
	if r.Sentiment.Valid {
		s := models.Sentiment(r.Sentiment.String)
		m.Sentiment = &s
	}
	if r.Confidence.Valid {
		c := r.Confidence.Float64
		m.SentimentConfidence = &c
	}
	return m
}

type timelineRow struct {
	Day      dbTime `db:"day"`
	Platform string `db:"platform"`
	Total    int64  `db:"total"`
}

type sentimentRow struct {
	Sentiment sql.NullString `db:"sentiment"`
	Total     int64          `db:"total"`
}
