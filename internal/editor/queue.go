package editor

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnresolvedRecord is returned when a record key does not map to a
	// mention with a registered source table
	ErrUnresolvedRecord = errors.New("record does not resolve to a known source table")

	// ErrInvalidSentiment is returned when a relabel target is not POS, NEU or NEG
	ErrInvalidSentiment = errors.New("invalid target sentiment")

	// ErrQueuedForDeletion is returned when a record already queued for
	// deletion is relabeled
	ErrQueuedForDeletion = errors.New("record is queued for deletion")
)

const previewRunes = 50

// GridRow is one row of the editable table as the UI last rendered it
type GridRow struct {
	Key             string           `json:"key"`
	Sentiment       models.Sentiment `json:"sentiment"`
	MarkedForDelete bool             `json:"marked_for_delete"`
}

// RecordSet indexes the materialized mentions by key
type RecordSet map[string]models.Mention

// NewRecordSet indexes mentions
func NewRecordSet(mentions []models.Mention) RecordSet {
	rs := make(RecordSet, len(mentions))
	for _, m := range mentions {
		rs[m.Key()] = m
	}
	return rs
}

// Queue buffers edits until they are applied or cleared. A record has at
// most one entry. It is owned by a single session and not safe for
// concurrent use.
type Queue struct {
	registry *schema.Registry
	entries  []models.PendingEdit
	now      func() time.Time
}

// NewQueue creates an empty queue that resolves tables against registry
func NewQueue(registry *schema.Registry) *Queue {
	return &Queue{registry: registry, now: time.Now}
}

// EnqueueRelabel queues a sentiment change for m. Re-enqueueing the same
// target is a no-op; a different target replaces the queued one in place.
// A record queued for deletion cannot be relabeled. It reports whether the
// queue changed.
func (q *Queue) EnqueueRelabel(m models.Mention, target models.Sentiment) (bool, error) {
	if err := q.resolve(m); err != nil {
		return false, err
	}
	if !target.Valid() {
		return false, fmt.Errorf("%s: %w %q", m.Key(), ErrInvalidSentiment, target)
	}

	if i := q.find(m.Key()); i >= 0 {
		if q.entries[i].Action == models.ActionDelete {
			return false, fmt.Errorf("%s: %w", m.Key(), ErrQueuedForDeletion)
		}
		if q.entries[i].NewSentiment == target {
			return false, nil
		}
		q.entries[i].NewSentiment = target
		q.entries[i].EnqueuedAt = q.now()
		return true, nil
	}

	q.entries = append(q.entries, q.entry(m, models.ActionRelabel, target))
	return true, nil
}

// EnqueueDeletion queues m for deletion. A queued relabel of m is replaced
// in place. It reports whether the queue changed.
func (q *Queue) EnqueueDeletion(m models.Mention) (bool, error) {
	if err := q.resolve(m); err != nil {
		return false, err
	}
	if i := q.find(m.Key()); i >= 0 {
		if q.entries[i].Action == models.ActionDelete {
			return false, nil
		}
		logrus.Debugf("Deletion of %s replaces its queued relabel", m.Key())
		q.entries[i] = q.entry(m, models.ActionDelete, "")
		return true, nil
	}
	q.entries = append(q.entries, q.entry(m, models.ActionDelete, ""))
	return true, nil
}

// Pending returns the queued edit of a record, if any
func (q *Queue) Pending(key string) (models.PendingEdit, bool) {
	if i := q.find(key); i >= 0 {
		return q.entries[i], true
	}
	return models.PendingEdit{}, false
}

// DiffAndEnqueue queues a relabel for every row whose sentiment differs from
// the previous render. Rows that do not resolve are rejected and reported;
// the remaining rows are still processed. It returns how many entries were
// added or replaced.
func (q *Queue) DiffAndEnqueue(previous, current []GridRow, records RecordSet) (int, error) {
	before := make(map[string]models.Sentiment, len(previous))
	for _, row := range previous {
		before[row.Key] = row.Sentiment
	}

	var errs []error
	changed := 0
	for _, row := range current {
		old, seen := before[row.Key]
		if !seen {
			m, ok := records[row.Key]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: %w", row.Key, ErrUnresolvedRecord))
				continue
			}
			old = m.SentimentCode()
		}
		if old == row.Sentiment {
			continue
		}

		m, ok := records[row.Key]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", row.Key, ErrUnresolvedRecord))
			continue
		}
		added, err := q.EnqueueRelabel(m, row.Sentiment)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if added {
			changed++
		}
	}

	if changed > 0 {
		logrus.Debugf("Queued %d relabel(s), %d pending", changed, len(q.entries))
	}
	return changed, errors.Join(errs...)
}

// DiffAndEnqueueDeletions drops every queued deletion and re-derives them
// from the current delete flags. Relabel entries of unflagged records are
// left untouched; a relabel replaced by a deletion is not restored when the
// flag is cleared. It returns the number of deletions queued.
func (q *Queue) DiffAndEnqueueDeletions(current []GridRow, records RecordSet) (int, error) {
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.Action != models.ActionDelete {
			kept = append(kept, e)
		}
	}
	q.entries = kept

	var errs []error
	queued := 0
	for _, row := range current {
		if !row.MarkedForDelete {
			continue
		}
		m, ok := records[row.Key]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: %w", row.Key, ErrUnresolvedRecord))
			continue
		}
		added, err := q.EnqueueDeletion(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if added {
			queued++
		}
	}
	return queued, errors.Join(errs...)
}

// Clear empties the queue
func (q *Queue) Clear() {
	q.entries = nil
}

// Snapshot returns a copy of the queued edits in enqueue order
func (q *Queue) Snapshot() []models.PendingEdit {
	out := make([]models.PendingEdit, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of queued edits
func (q *Queue) Len() int {
	return len(q.entries)
}

func (q *Queue) resolve(m models.Mention) error {
	if m.SourceTable == "" {
		return fmt.Errorf("%s: %w", m.Key(), ErrUnresolvedRecord)
	}
	if _, ok := q.registry.Lookup(m.SourceTable); !ok {
		return fmt.Errorf("%s: %w", m.Key(), ErrUnresolvedRecord)
	}
	return nil
}

func (q *Queue) find(key string) int {
	for i, e := range q.entries {
		if e.RecordKey == key {
			return i
		}
	}
	return -1
}

func (q *Queue) entry(m models.Mention, action models.EditAction, target models.Sentiment) models.PendingEdit {
	return models.PendingEdit{
		RecordKey:         m.Key(),
		SourceTable:       m.SourceTable,
		RecordID:          m.ID,
		Action:            action,
		PreviousSentiment: m.SentimentCode(),
		NewSentiment:      target,
		TextPreview:       Preview(m.Text),
		EnqueuedAt:        q.now(),
	}
}

// Preview shortens text to its first 50 characters
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes]) + "..."
}
