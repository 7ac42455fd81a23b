package filters

import (
	"errors"
	"fmt"
	"time"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/query"
)

// ErrScopeNotApplied is returned when data is requested before the analyst
// applied a filter selection
var ErrScopeNotApplied = errors.New("filters have not been applied")

// ValidationError reports an invalid filter selection. The query is never
// issued for an invalid scope.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Options tunes validation and preset resolution
type Options struct {
	MaxRangeDays int
	HistoryStart time.Time
	Location     *time.Location
	Now          func() time.Time
}

// DefaultOptions returns the production limits
func DefaultOptions() Options {
	return Options{
		MaxRangeDays: 730,
		HistoryStart: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		Location:     time.UTC,
		Now:          time.Now,
	}
}

// State is the serializable view of a scope
type State struct {
	Platforms []models.Platform `json:"platforms"`
	Start     time.Time         `json:"date_start"`
	End       time.Time         `json:"date_end"`
	Sentiment models.Sentiment  `json:"sentiment"`
	Preset    Preset            `json:"preset"`
	Applied   bool              `json:"applied"`
}

// Selection is an analyst's filter choice as submitted by the UI. Platforms
// and Sentiment may use display labels.
type Selection struct {
	Platforms []string
	Preset    Preset
	Start     time.Time
	End       time.Time
	Sentiment string
}

// Scope is the filter state of one session
type Scope struct {
	opts  Options
	state State
}

// NewScope returns the default scope: every platform, the last 30 days, all
// sentiments, not applied
func NewScope(opts Options) *Scope {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s := &Scope{opts: opts}
	s.state = s.defaults()
	return s
}

func (s *Scope) defaults() State {
	start, end := s.resolvePreset(PresetLast30Days)
	return State{
		Platforms: append([]models.Platform(nil), models.AllPlatforms...),
		Start:     start,
		End:       end,
		Sentiment: models.SentimentAll,
		Preset:    PresetLast30Days,
	}
}

// State returns a copy of the current selection
func (s *Scope) State() State {
	out := s.state
	out.Platforms = append([]models.Platform(nil), s.state.Platforms...)
	return out
}

// Applied reports whether a selection has been applied
func (s *Scope) Applied() bool {
	return s.state.Applied
}

// Validate checks the current selection
func (s *Scope) Validate() (bool, string) {
	if err := s.validate(s.state); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// Apply validates a selection and makes it the active scope. An invalid
// selection leaves the scope unchanged.
func (s *Scope) Apply(sel Selection) error {
	next := State{Preset: sel.Preset, Applied: true}
	if next.Preset == "" {
		next.Preset = PresetCustom
	}

	for _, label := range sel.Platforms {
		p, err := models.ParsePlatform(label)
		if err != nil {
			return &ValidationError{Message: fmt.Sprintf("unsupported social network: %s", label)}
		}
		next.Platforms = appendUnique(next.Platforms, p)
	}

	sentiment, err := models.ParseSentiment(sel.Sentiment)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("unsupported sentiment: %s", sel.Sentiment)}
	}
	next.Sentiment = sentiment

	if next.Preset == PresetCustom {
		next.Start, next.End = s.calendarDate(sel.Start), s.calendarDate(sel.End)
	} else {
		if !next.Preset.Valid() {
			return &ValidationError{Message: fmt.Sprintf("unsupported time period: %s", sel.Preset)}
		}
		next.Start, next.End = s.resolvePreset(next.Preset)
	}

	if err := s.validate(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Reset restores the default selection and marks it applied
func (s *Scope) Reset() {
	s.state = s.defaults()
	s.state.Applied = true
}

// Params converts the applied scope into query parameters for alertID. The
// end date is rounded up to the last instant of its day.
func (s *Scope) Params(alertID int64) (query.Params, error) {
	if !s.state.Applied {
		return query.Params{}, ErrScopeNotApplied
	}
	if err := s.validate(s.state); err != nil {
		return query.Params{}, err
	}
	return query.Params{
		AlertID:   alertID,
		Platforms: append([]models.Platform(nil), s.state.Platforms...),
		Start:     s.state.Start,
		End:       EndOfDay(s.state.End),
		Sentiment: s.state.Sentiment,
	}, nil
}

func (s *Scope) validate(st State) error {
	if len(st.Platforms) == 0 {
		return &ValidationError{Message: "select at least one social network"}
	}
	if st.Start.After(st.End) {
		return &ValidationError{Message: "start date cannot be after end date"}
	}
	if st.Preset != PresetFullHistory && s.opts.MaxRangeDays > 0 {
		if days := int(st.End.Sub(st.Start).Hours() / 24); days > s.opts.MaxRangeDays {
			return &ValidationError{Message: fmt.Sprintf("date range cannot exceed %d days", s.opts.MaxRangeDays)}
		}
	}
	return nil
}

// dateOnly truncates an instant to the start of its day in the scope's
// location
func (s *Scope) dateOnly(t time.Time) time.Time {
	return s.calendarDate(t.In(s.opts.Location))
}

// calendarDate keeps the year, month and day of a picked date as written and
// places midnight in the scope's location
func (s *Scope) calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.opts.Location)
}

// Location is the zone the scope resolves calendar dates in
func (s *Scope) Location() *time.Location {
	return s.opts.Location
}

// EndOfDay returns the last representable instant of t's day
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

func appendUnique(list []models.Platform, p models.Platform) []models.Platform {
	for _, existing := range list {
		if existing == p {
			return list
		}
	}
	return append(list, p)
}
