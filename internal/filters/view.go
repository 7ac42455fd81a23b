package filters

import (
	"sort"
	"time"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/schema"
)

// SortOrder orders a materialized mention table
type SortOrder string

const (
	SortNewest         SortOrder = "date_desc"
	SortOldest         SortOrder = "date_asc"
	SortConfidenceHigh SortOrder = "confidence_desc"
	SortConfidenceLow  SortOrder = "confidence_asc"
	SortLikesHigh      SortOrder = "likes_desc"
	SortLikesLow       SortOrder = "likes_asc"
)

// View narrows an already fetched mention set in memory. Zero-valued fields
// do not filter.
type View struct {
	Platforms  []models.Platform
	Sentiments []models.Sentiment
	Kinds      []models.ContentKind
	Start      *time.Time
	End        *time.Time
	Sort       SortOrder
}

// Apply returns the mentions matching the view, sorted. The input is not
// modified.
func (v View) Apply(mentions []models.Mention, reg *schema.Registry) []models.Mention {
	out := make([]models.Mention, 0, len(mentions))
	var end time.Time
	if v.End != nil {
		end = EndOfDay(*v.End)
	}

	for _, m := range mentions {
		if len(v.Platforms) > 0 && !containsPlatform(v.Platforms, m.Platform) {
			continue
		}
		if len(v.Sentiments) > 0 && !containsSentiment(v.Sentiments, m.SentimentCode()) {
			continue
		}
		if len(v.Kinds) > 0 && !v.matchesKind(m, reg) {
			continue
		}
		if v.Start != nil && m.CreatedTime.Before(*v.Start) {
			continue
		}
		if v.End != nil && m.CreatedTime.After(end) {
			continue
		}
		out = append(out, m)
	}

	if less := v.less(out); less != nil {
		sort.SliceStable(out, less)
	}
	return out
}

func (v View) matchesKind(m models.Mention, reg *schema.Registry) bool {
	if reg == nil {
		return false
	}
	t, ok := reg.Lookup(m.SourceTable)
	if !ok {
		return false
	}
	for _, k := range v.Kinds {
		if k == t.Kind {
			return true
		}
	}
	return false
}

func (v View) less(ms []models.Mention) func(i, j int) bool {
	switch v.Sort {
	case SortNewest:
		return func(i, j int) bool { return ms[i].CreatedTime.After(ms[j].CreatedTime) }
	case SortOldest:
		return func(i, j int) bool { return ms[i].CreatedTime.Before(ms[j].CreatedTime) }
	case SortConfidenceHigh:
		return func(i, j int) bool { return confidence(ms[i], -1) > confidence(ms[j], -1) }
	case SortConfidenceLow:
		return func(i, j int) bool { return confidence(ms[i], 2) < confidence(ms[j], 2) }
	case SortLikesHigh:
		return func(i, j int) bool { return ms[i].Likes > ms[j].Likes }
	case SortLikesLow:
		return func(i, j int) bool { return ms[i].Likes < ms[j].Likes }
	}
	return nil
}

// confidence returns the score, or missing when the mention has none, so
// unscored rows sort last in both directions
func confidence(m models.Mention, missing float64) float64 {
	if m.SentimentConfidence == nil {
		return missing
	}
	return *m.SentimentConfidence
}

func containsPlatform(list []models.Platform, p models.Platform) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}

func containsSentiment(list []models.Sentiment, s models.Sentiment) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
