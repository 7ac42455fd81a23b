package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/sirupsen/logrus"
)

// PhaseOutcome is the result of one statement of a delete
type PhaseOutcome struct {
	Table        string
	RowsAffected int64
	Err          error
}

// DeleteResult carries the authoritative delete and the optional best-effort
// raw-store cleanup that ran before it
type DeleteResult struct {
	Primary  PhaseOutcome
	Upstream *PhaseOutcome
}

// Succeeded reports the outcome of the authoritative delete only
func (r DeleteResult) Succeeded() bool {
	return r.Primary.Err == nil
}

// Detail describes both phases for logs and the editor report
func (r DeleteResult) Detail() string {
	var parts []string
	if r.Primary.Err != nil {
		parts = append(parts, fmt.Sprintf("delete from %s failed: %v", r.Primary.Table, r.Primary.Err))
	} else {
		parts = append(parts, fmt.Sprintf("deleted from %s", r.Primary.Table))
	}
	switch {
	case r.Upstream == nil:
		parts = append(parts, "no raw source")
	case r.Upstream.Err != nil:
		parts = append(parts, fmt.Sprintf("raw cleanup in %s skipped: %v", r.Upstream.Table, r.Upstream.Err))
	default:
		parts = append(parts, fmt.Sprintf("raw cleanup removed %d row(s) from %s", r.Upstream.RowsAffected, r.Upstream.Table))
	}
	return strings.Join(parts, "; ")
}

// Relabel overwrites the sentiment of exactly one row. The request is
// validated before any SQL is built.
func (g *Gateway) Relabel(ctx context.Context, table string, id int64, sentiment models.Sentiment, confidence float64) error {
	if !sentiment.Valid() {
		return &MutationRejectedError{Table: table, RecordID: id, Reason: fmt.Sprintf("invalid sentiment %q", sentiment)}
	}
	if confidence < 0 || confidence > 1 {
		return &MutationRejectedError{Table: table, RecordID: id, Reason: fmt.Sprintf("confidence %.2f outside [0,1]", confidence)}
	}
	t, err := g.resolve(table, id)
	if err != nil {
		return err
	}

	stmt := "UPDATE " + g.contentTable(t.Name) + " SET sentiment_pred = ?, sentiment_confidence = ? WHERE id = ?"
	start := time.Now()
	res, err := g.db.ExecContext(ctx, g.db.Rebind(stmt), string(sentiment), confidence, id)
	observe("relabel", start, err)
	if err != nil {
		return unavailable("relabel", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("relabel", err)
	}
	if affected == 0 {
		return fmt.Errorf("relabel %s/%d: %w", t.Name, id, ErrRecordNotFound)
	}

	logrus.Infof("Relabeled %s/%d as %s", t.Name, id, sentiment)
	return nil
}

// Delete removes a content row. The matching raw ingestion row is removed
// first on a best-effort basis; only the content delete decides the result.
func (g *Gateway) Delete(ctx context.Context, table string, id int64) (DeleteResult, error) {
	t, err := g.resolve(table, id)
	if err != nil {
		return DeleteResult{Primary: PhaseOutcome{Table: table, Err: err}}, err
	}

	result := DeleteResult{}
	if t.Raw != nil {
		upstream := g.deleteUpstream(ctx, t, id)
		if upstream.Err != nil {
			upstreamDeleteFailures.Inc()
			logrus.Warnf("Raw cleanup for %s/%d failed, continuing with content delete: %v", t.Name, id, upstream.Err)
		}
		result.Upstream = &upstream
	}

	result.Primary = g.deleteContent(ctx, t, id)
	if result.Primary.Err != nil {
		logrus.Errorf("Delete of %s/%d failed: %v", t.Name, id, result.Primary.Err)
		return result, result.Primary.Err
	}

	logrus.Infof("Deleted %s/%d (%s)", t.Name, id, result.Detail())
	return result, nil
}

func (g *Gateway) deleteUpstream(ctx context.Context, t schema.Table, id int64) PhaseOutcome {
	raw := t.Raw
	outcome := PhaseOutcome{Table: g.rawTable(raw.Table)}

	var link interface{}
	lookup := "SELECT " + raw.LinkColumn + " FROM " + g.contentTable(t.Name) + " WHERE id = ?"
	start := time.Now()
	err := g.db.QueryRowxContext(ctx, g.db.Rebind(lookup), id).Scan(&link)
	if isNoRows(err) {
		// a missing content row is not a store failure
		observe("raw_lookup", start, nil)
		outcome.Err = fmt.Errorf("resolve raw key: %w", ErrRecordNotFound)
		return outcome
	}
	observe("raw_lookup", start, err)
	if err != nil {
		outcome.Err = fmt.Errorf("resolve raw key: %w", err)
		return outcome
	}
	if link == nil {
		outcome.Err = fmt.Errorf("content row has no %s", raw.LinkColumn)
		return outcome
	}

	stmt := "DELETE FROM " + outcome.Table + " WHERE " + raw.KeyColumn + " = ?"
	start = time.Now()
	res, err := g.db.ExecContext(ctx, g.db.Rebind(stmt), link)
	observe("raw_delete", start, err)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.RowsAffected, _ = res.RowsAffected()
	return outcome
}

func (g *Gateway) deleteContent(ctx context.Context, t schema.Table, id int64) PhaseOutcome {
	outcome := PhaseOutcome{Table: g.contentTable(t.Name)}

	stmt := "DELETE FROM " + outcome.Table + " WHERE id = ?"
	start := time.Now()
	res, err := g.db.ExecContext(ctx, g.db.Rebind(stmt), id)
	observe("delete", start, err)
	if err != nil {
		outcome.Err = unavailable("delete", err)
		return outcome
	}

	affected, err := res.RowsAffected()
	if err != nil {
		outcome.Err = unavailable("delete", err)
		return outcome
	}
	if affected == 0 {
		outcome.Err = fmt.Errorf("delete %s/%d: %w", t.Name, id, ErrRecordNotFound)
		return outcome
	}
	outcome.RowsAffected = affected
	return outcome
}

// AuditLog appends one entry to the editor audit table. Callers treat a
// failure as non-fatal.
func (g *Gateway) AuditLog(ctx context.Context, entry models.AuditEntry) error {
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = g.now().UTC()
	}

	stmt := "INSERT INTO " + g.contentTable(g.opts.AuditTable) +
		" (user_name, table_name, record_id, old_sentiment, new_sentiment, changed_at) VALUES (?, ?, ?, ?, ?, ?)"
	start := time.Now()
	_, err := g.db.ExecContext(ctx, g.db.Rebind(stmt),
		entry.Actor, entry.SourceTable, entry.RecordID, entry.PreviousSentiment, entry.NewSentiment, entry.ChangedAt)
	observe("audit", start, err)
	if err != nil {
		return unavailable("audit", err)
	}
	return nil
}

// resolve maps a source table name onto the registry. Unknown names never
// reach SQL.
func (g *Gateway) resolve(table string, id int64) (schema.Table, error) {
	t, ok := g.registry.Lookup(table)
	if !ok {
		return schema.Table{}, &MutationRejectedError{Table: table, RecordID: id, Reason: "unknown source table"}
	}
	return t, nil
}
