package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ocdul/social-listening/internal/editor"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/models"
)

const dateLayout = "2006-01-02"

type createSessionRequest struct {
	Actor       string `json:"actor" validate:"required,max=120"`
	AlertID     int64  `json:"alert_id" validate:"required,gt=0"`
	SuperEditor bool   `json:"super_editor"`
}

type filtersRequest struct {
	Platforms []string `json:"platforms" validate:"dive,required"`
	Preset    string   `json:"preset"`
	DateStart string   `json:"date_start" validate:"omitempty,datetime=2006-01-02"`
	DateEnd   string   `json:"date_end" validate:"omitempty,datetime=2006-01-02"`
	Sentiment string   `json:"sentiment"`
}

// normalize resolves the preset before validation, so an unknown or
// missing preset is validated as a custom range
func (r *filtersRequest) normalize() {
	r.Preset = string(filters.ParsePreset(r.Preset))
}

func (r filtersRequest) selection() (filters.Selection, error) {
	sel := filters.Selection{
		Platforms: r.Platforms,
		Preset:    filters.Preset(r.Preset),
		Sentiment: r.Sentiment,
	}
	if sel.Preset == filters.PresetCustom && (r.DateStart == "" || r.DateEnd == "") {
		return sel, errors.New("a custom range requires date_start and date_end")
	}
	var err error
	if r.DateStart != "" {
		if sel.Start, err = time.Parse(dateLayout, r.DateStart); err != nil {
			return sel, err
		}
	}
	if r.DateEnd != "" {
		if sel.End, err = time.Parse(dateLayout, r.DateEnd); err != nil {
			return sel, err
		}
	}
	return sel, nil
}

type gridRowRequest struct {
	Key             string `json:"key" validate:"required"`
	Sentiment       string `json:"sentiment" validate:"omitempty,oneof=POS NEU NEG"`
	MarkedForDelete bool   `json:"marked_for_delete"`
}

type gridRequest struct {
	Rows []gridRowRequest `json:"rows" validate:"required,dive"`
}

func (r gridRequest) rows() []editor.GridRow {
	out := make([]editor.GridRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, editor.GridRow{
			Key:             row.Key,
			Sentiment:       models.Sentiment(row.Sentiment),
			MarkedForDelete: row.MarkedForDelete,
		})
	}
	return out
}

// validationMessage flattens validator errors into one readable line
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// viewFromQuery reads editor-local filters from repeated query parameters.
// Dates are calendar days in loc.
func viewFromQuery(values map[string][]string, loc *time.Location) (filters.View, error) {
	var view filters.View
	for _, label := range values["platform"] {
		p, err := models.ParsePlatform(label)
		if err != nil {
			return view, err
		}
		view.Platforms = append(view.Platforms, p)
	}
	for _, value := range values["sentiment"] {
		s, err := models.ParseSentiment(value)
		if err != nil {
			return view, err
		}
		view.Sentiments = append(view.Sentiments, s)
	}
	for _, kind := range values["kind"] {
		view.Kinds = append(view.Kinds, models.ContentKind(kind))
	}
	if v := first(values["start"]); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return view, fmt.Errorf("invalid start date %q", v)
		}
		view.Start = &t
	}
	if v := first(values["end"]); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			return view, fmt.Errorf("invalid end date %q", v)
		}
		view.End = &t
	}
	view.Sort = filters.SortOrder(first(values["sort"]))
	return view, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
