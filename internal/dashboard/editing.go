package dashboard

import (
	"github.com/ocdul/social-listening/internal/editor"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/session"
)

func requireEditor(sess *session.Session) error {
	if !sess.Identity.SuperEditor {
		return ErrEditorAccessDenied
	}
	return nil
}

// EditorView returns the materialized mentions narrowed by the editor-local
// filters
func (s *Service) EditorView(sess *session.Session, view filters.View) []models.Mention {
	return view.Apply(sess.Mentions, s.registry)
}

// DiffRelabels compares the submitted grid with the last rendered one and
// queues a relabel for every changed sentiment. The grid is re-rendered from
// the queue, so a rejected row keeps its previous value and is reported
// again when resubmitted.
func (s *Service) DiffRelabels(sess *session.Session, rows []editor.GridRow) (int, error) {
	if err := requireEditor(sess); err != nil {
		return 0, err
	}

	changed, err := sess.Queue.DiffAndEnqueue(sess.Grid, rows, sess.Records)
	sess.SyncGrid()
	return changed, err
}

// DiffDeletions re-derives the queued deletions from the submitted delete
// flags
func (s *Service) DiffDeletions(sess *session.Session, rows []editor.GridRow) (int, error) {
	if err := requireEditor(sess); err != nil {
		return 0, err
	}

	queued, err := sess.Queue.DiffAndEnqueueDeletions(rows, sess.Records)
	sess.SyncGrid()
	return queued, err
}

// QueueSnapshot returns the pending edits in enqueue order
func (s *Service) QueueSnapshot(sess *session.Session) ([]models.PendingEdit, error) {
	if err := requireEditor(sess); err != nil {
		return nil, err
	}
	return sess.Queue.Snapshot(), nil
}

// ClearQueue drops every pending edit and resets the rendered grid
func (s *Service) ClearQueue(sess *session.Session) error {
	if err := requireEditor(sess); err != nil {
		return err
	}
	sess.Queue.Clear()
	sess.Materialize(sess.Mentions)
	return nil
}
