package editor

import (
	"context"
	"fmt"

	"github.com/ocdul/social-listening/internal/gateway"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/sirupsen/logrus"
)

// ManualConfidence is the confidence written with an analyst relabel
const ManualConfidence = 1.0

// Gateway is the mutation surface the queue applies edits through
type Gateway interface {
	Relabel(ctx context.Context, table string, id int64, sentiment models.Sentiment, confidence float64) error
	Delete(ctx context.Context, table string, id int64) (gateway.DeleteResult, error)
	AuditLog(ctx context.Context, entry models.AuditEntry) error
}

var _ Gateway = (*gateway.Gateway)(nil)

// ApplyResult reports a batch apply. Failures are part of the normal result.
type ApplyResult struct {
	SuccessCount int                  `json:"success_count"`
	ErrorCount   int                  `json:"error_count"`
	Outcomes     []models.EditOutcome `json:"outcomes"`
}

// Failed returns the edits that were not applied, so a caller can offer to
// queue them again
func (r ApplyResult) Failed() []models.PendingEdit {
	var out []models.PendingEdit
	for _, o := range r.Outcomes {
		if !o.OK {
			out = append(out, o.Edit)
		}
	}
	return out
}

// Apply commits every queued edit in enqueue order. A failing edit does not
// stop the others. Successful edits are audited; audit failures are only
// logged. The queue is cleared afterwards whatever the outcome.
func (q *Queue) Apply(ctx context.Context, gw Gateway, actor string) ApplyResult {
	edits := q.Snapshot()
	defer q.Clear()

	result := ApplyResult{Outcomes: make([]models.EditOutcome, 0, len(edits))}
	for _, edit := range edits {
		outcome := applyOne(ctx, gw, actor, edit)
		if outcome.OK {
			result.SuccessCount++
		} else {
			result.ErrorCount++
			logrus.Warnf("Edit %s (%s) failed: %s", edit.RecordKey, edit.Action, outcome.Detail)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	logrus.Infof("Applied editor queue for %s: %d succeeded, %d failed", actor, result.SuccessCount, result.ErrorCount)
	return result
}

func applyOne(ctx context.Context, gw Gateway, actor string, edit models.PendingEdit) models.EditOutcome {
	outcome := models.EditOutcome{Edit: edit}
	entry := models.AuditEntry{
		Actor:             actor,
		SourceTable:       edit.SourceTable,
		RecordID:          edit.RecordID,
		PreviousSentiment: string(edit.PreviousSentiment),
	}

	switch edit.Action {
	case models.ActionRelabel:
		if err := gw.Relabel(ctx, edit.SourceTable, edit.RecordID, edit.NewSentiment, ManualConfidence); err != nil {
			outcome.Detail = err.Error()
			return outcome
		}
		entry.NewSentiment = string(edit.NewSentiment)
		outcome.Detail = fmt.Sprintf("relabeled as %s", edit.NewSentiment)

	case models.ActionDelete:
		res, err := gw.Delete(ctx, edit.SourceTable, edit.RecordID)
		if err != nil {
			outcome.Detail = err.Error()
			return outcome
		}
		entry.NewSentiment = models.DeletedMarker
		outcome.Detail = res.Detail()

	default:
		outcome.Detail = fmt.Sprintf("unknown action %q", edit.Action)
		return outcome
	}

	outcome.OK = true
	if err := gw.AuditLog(ctx, entry); err != nil {
		logrus.Errorf("Failed to audit %s on %s/%d: %v", edit.Action, edit.SourceTable, edit.RecordID, err)
	}
	return outcome
}
