package dashboard

import (
	"context"
	"fmt"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/session"
)

// Summary aggregates the applied scope. Totals, sentiment and timeline come
// from the store; engagement and content kind KPIs are computed over the
// loaded mentions.
func (s *Service) Summary(ctx context.Context, sess *session.Session) (*models.Summary, error) {
	p, err := sess.Filters.Params(sess.Identity.AlertID)
	if err != nil {
		return nil, err
	}

	total, err := s.store.Count(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to count mentions: %w", err)
	}
	lastUpdated, err := s.store.LastUpdated(ctx, p.AlertID)
	if err != nil {
		return nil, fmt.Errorf("failed to read last update: %w", err)
	}
	breakdown, err := s.store.SentimentBreakdown(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to break down sentiment: %w", err)
	}
	timeline, err := s.store.Timeline(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to build timeline: %w", err)
	}

	summary := &models.Summary{
		Total:          total,
		Loaded:         len(sess.Mentions),
		LastUpdated:    lastUpdated,
		Sentiment:      breakdown,
		SentimentShare: sentimentShare(breakdown),
		Timeline:       timeline,
		ByContentKind:  make(map[models.ContentKind]int),
	}

	for _, m := range sess.Mentions {
		summary.Likes += m.Likes
		summary.Comments += m.Comments
		summary.Shares += m.Shares
		if t, ok := s.registry.Lookup(m.SourceTable); ok {
			summary.ByContentKind[t.Kind]++
		}
	}

	return summary, nil
}

// sentimentShare returns each code's percentage of the breakdown total
func sentimentShare(breakdown []models.SentimentCount) map[models.Sentiment]float64 {
	var total int64
	for _, c := range breakdown {
		total += c.Count
	}

	share := make(map[models.Sentiment]float64, len(breakdown))
	if total == 0 {
		return share
	}
	for _, c := range breakdown {
		share[c.Sentiment] = float64(c.Count) * 100 / float64(total)
	}
	return share
}
