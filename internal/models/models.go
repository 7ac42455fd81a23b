package models

import (
	"fmt"
	"strings"
	"time"
)

// Platform is the value stored in the origin column of every content table
type Platform string

const (
	PlatformFacebook  Platform = "Facebook"
	PlatformInstagram Platform = "Instagram"
	PlatformX         Platform = "X"
	PlatformTikTok    Platform = "TikTok"
)

// AllPlatforms lists the supported networks in display order
var AllPlatforms = []Platform{PlatformFacebook, PlatformX, PlatformInstagram, PlatformTikTok}

// Label returns the name shown to analysts
func (p Platform) Label() string {
	if p == PlatformX {
		return "X (Twitter)"
	}
	return string(p)
}

// ParsePlatform accepts either the stored value or the display label
func ParsePlatform(label string) (Platform, error) {
	trimmed := strings.TrimSpace(label)
	for _, p := range AllPlatforms {
		if strings.EqualFold(trimmed, string(p)) || strings.EqualFold(trimmed, p.Label()) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", label)
}

// ContentKind is the shape of a unit of content
type ContentKind string

const (
	KindPost    ContentKind = "Post"
	KindComment ContentKind = "Comment"
	KindReply   ContentKind = "Reply"
	KindQuote   ContentKind = "Quote"
)

// Sentiment is the machine-assigned polarity code
type Sentiment string

const (
	SentimentPositive Sentiment = "POS"
	SentimentNeutral  Sentiment = "NEU"
	SentimentNegative Sentiment = "NEG"

	// SentimentAll is the "no filter" choice in a filter scope
	SentimentAll Sentiment = ""
)

var sentimentLabels = map[Sentiment]string{
	SentimentPositive: "Positivo",
	SentimentNeutral:  "Neutro",
	SentimentNegative: "Negativo",
}

// Valid reports whether s is one of POS, NEU or NEG
func (s Sentiment) Valid() bool {
	_, ok := sentimentLabels[s]
	return ok
}

// Label returns the display label, "Desconocido" for unknown codes
func (s Sentiment) Label() string {
	if label, ok := sentimentLabels[s]; ok {
		return label
	}
	if s == SentimentAll {
		return "Todos"
	}
	return "Desconocido"
}

// ParseSentiment accepts a code, a display label or one of the "all" spellings
func ParseSentiment(value string) (Sentiment, error) {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "", "all", "todos", "todas":
		return SentimentAll, nil
	}
	for code, label := range sentimentLabels {
		if strings.EqualFold(trimmed, string(code)) || strings.EqualFold(trimmed, label) {
			return code, nil
		}
	}
	return "", fmt.Errorf("unknown sentiment %q", value)
}

// Mention is one unified row produced from any of the content tables
type Mention struct {
	ID                  int64      `json:"id"`
	AlertID             int64      `json:"alert_id"`
	CreatedTime         time.Time  `json:"created_time"`
	Platform            Platform   `json:"platform"`
	Text                string     `json:"text"`
	Sentiment           *Sentiment `json:"sentiment,omitempty"`
	SentimentConfidence *float64   `json:"sentiment_confidence,omitempty"`
	Author              string     `json:"author"`
	Likes               int64      `json:"likes"`
	Comments            int64      `json:"comments"`
	Shares              int64      `json:"shares"`
	SourceTable         string     `json:"source_table"`
}

// Key identifies the mention within a result set
func (m Mention) Key() string {
	return fmt.Sprintf("%s:%d", m.SourceTable, m.ID)
}

// SentimentCode returns the sentiment or SentimentAll when it is null
func (m Mention) SentimentCode() Sentiment {
	if m.Sentiment == nil {
		return SentimentAll
	}
	return *m.Sentiment
}

// EditAction is the kind of change a pending edit carries
type EditAction string

const (
	ActionRelabel EditAction = "RELABEL"
	ActionDelete  EditAction = "DELETE"
)

// DeletedMarker is written to the audit log as the new value of a delete
const DeletedMarker = "DELETED"

// PendingEdit is a queued, not yet committed change to one mention
type PendingEdit struct {
	RecordKey         string     `json:"record_key"`
	SourceTable       string     `json:"source_table"`
	RecordID          int64      `json:"record_id"`
	Action            EditAction `json:"action"`
	PreviousSentiment Sentiment  `json:"previous_sentiment"`
	NewSentiment      Sentiment  `json:"new_sentiment,omitempty"`
	TextPreview       string     `json:"text_preview"`
	EnqueuedAt        time.Time  `json:"enqueued_at"`
}

// AuditEntry is one append-only row of the editor audit log
type AuditEntry struct {
	Actor             string    `json:"actor"`
	SourceTable       string    `json:"source_table"`
	RecordID          int64     `json:"record_id"`
	PreviousSentiment string    `json:"previous_sentiment"`
	NewSentiment      string    `json:"new_sentiment"`
	ChangedAt         time.Time `json:"changed_at"`
}

// TimelinePoint is the number of mentions of one platform on one day
type TimelinePoint struct {
	Day      time.Time `json:"day"`
	Platform Platform  `json:"platform"`
	Count    int64     `json:"count"`
}

// SentimentCount is the number of mentions carrying one sentiment code
type SentimentCount struct {
	Sentiment Sentiment `json:"sentiment"`
	Count     int64     `json:"count"`
}

// Summary holds the aggregated view of the currently applied scope
type Summary struct {
	Total          int64                 `json:"total"`
	Loaded         int                   `json:"loaded"`
	LastUpdated    *time.Time            `json:"last_updated,omitempty"`
	Sentiment      []SentimentCount      `json:"sentiment"`
	SentimentShare map[Sentiment]float64 `json:"sentiment_share"`
	Timeline       []TimelinePoint       `json:"timeline"`
	ByContentKind  map[ContentKind]int   `json:"by_content_kind"`
	Likes          int64                 `json:"likes"`
	Comments       int64                 `json:"comments"`
	Shares         int64                 `json:"shares"`
}

// EditOutcome is the result of applying one pending edit
type EditOutcome struct {
	Edit   PendingEdit `json:"edit"`
	OK     bool        `json:"ok"`
	Detail string      `json:"detail,omitempty"`
}

// EditorReport summarizes one batch apply of the pending-edit queue
type EditorReport struct {
	Actor       string        `json:"actor"`
	AlertID     int64         `json:"alert_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Outcomes    []EditOutcome `json:"outcomes"`
}
