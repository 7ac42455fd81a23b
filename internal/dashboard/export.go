package dashboard

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/session"
	"github.com/ocdul/social-listening/internal/storage"
	"github.com/sirupsen/logrus"
)

var (
	// ErrExportUnavailable is returned when no export storage is configured
	ErrExportUnavailable = errors.New("export storage not configured")

	// ErrInvalidExportName is returned for download names that are not a
	// plain CSV file name
	ErrInvalidExportName = errors.New("invalid export name")
)

var exportHeader = []string{
	"id", "platform", "content_kind", "created_time", "author", "text",
	"sentiment", "sentiment_confidence", "likes", "comments", "shares", "source_table",
}

// Export writes the loaded mentions as CSV to export storage and returns
// the stored file name
func (s *Service) Export(ctx context.Context, sess *session.Session) (string, error) {
	if s.storage == nil {
		return "", ErrExportUnavailable
	}

	data, err := s.encodeCSV(sess.Mentions)
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	filename := exportPrefix(sess.Identity.AlertID) + "mentions-" + s.now().UTC().Format("20060102-150405") + ".csv"
	if err := s.storage.Store(ctx, filename, data); err != nil {
		return "", fmt.Errorf("failed to store export: %w", err)
	}

	s.record(func(m *Metrics) { m.Exports++ })
	logrus.Infof("Exported %d mention(s) of alert %d to %s", len(sess.Mentions), sess.Identity.AlertID, filename)
	return filename, nil
}

// ListExports returns the stored exports of the session's alert, newest
// first. Names are relative to the alert.
func (s *Service) ListExports(ctx context.Context, sess *session.Session) ([]storage.Object, error) {
	if s.storage == nil {
		return nil, ErrExportUnavailable
	}

	prefix := exportPrefix(sess.Identity.AlertID)
	objects, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	for i := range objects {
		objects[i].Name = strings.TrimPrefix(objects[i].Name, prefix)
	}
	sort.SliceStable(objects, func(i, j int) bool { return objects[i].Name > objects[j].Name })
	return objects, nil
}

// DownloadExport returns one stored export of the session's alert
func (s *Service) DownloadExport(ctx context.Context, sess *session.Session, name string) ([]byte, error) {
	if s.storage == nil {
		return nil, ErrExportUnavailable
	}
	if name == "" || path.Base(name) != name || strings.HasPrefix(name, ".") || path.Ext(name) != ".csv" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExportName, name)
	}
	return s.storage.Retrieve(ctx, exportPrefix(sess.Identity.AlertID)+name)
}

// PruneExports deletes exports older than the configured retention and
// returns how many were removed. A zero retention keeps everything.
func (s *Service) PruneExports(ctx context.Context) (int, error) {
	if s.storage == nil || s.config.ExportRetention <= 0 {
		return 0, nil
	}

	objects, err := s.storage.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to list exports: %w", err)
	}

	cutoff := s.now().Add(-s.config.ExportRetention)
	var errs []error
	removed := 0
	for _, obj := range objects {
		if obj.ModifiedAt.IsZero() || !obj.ModifiedAt.Before(cutoff) {
			continue
		}
		if err := s.storage.Delete(ctx, obj.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.record(func(m *Metrics) { m.ExportsPruned += removed })
		logrus.Infof("Pruned %d export(s) older than %s", removed, s.config.ExportRetention)
	}
	return removed, errors.Join(errs...)
}

func exportPrefix(alertID int64) string {
	return "alert-" + strconv.FormatInt(alertID, 10) + "/"
}

func (s *Service) encodeCSV(mentions []models.Mention) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, m := range mentions {
		kind := ""
		if t, ok := s.registry.Lookup(m.SourceTable); ok {
			kind = string(t.Kind)
		}
		confidence := ""
		if m.SentimentConfidence != nil {
			confidence = strconv.FormatFloat(*m.SentimentConfidence, 'f', -1, 64)
		}
		record := []string{
			strconv.FormatInt(m.ID, 10),
			m.Platform.Label(),
			kind,
			m.CreatedTime.UTC().Format(time.RFC3339),
			m.Author,
			m.Text,
			string(m.SentimentCode()),
			confidence,
			strconv.FormatInt(m.Likes, 10),
			strconv.FormatInt(m.Comments, 10),
			strconv.FormatInt(m.Shares, 10),
			m.SourceTable,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
