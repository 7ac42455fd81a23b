package filters

import (
	"strings"
	"time"
)

// Preset is a named time period
type Preset string

const (
	PresetCustom      Preset = "custom"
	PresetLast7Days   Preset = "last_7_days"
	PresetLast30Days  Preset = "last_30_days"
	PresetThisMonth   Preset = "this_month"
	PresetLast3Months Preset = "last_3_months"
	PresetFullHistory Preset = "full_history"
)

var presetLabels = map[Preset]string{
	PresetCustom:      "Rango personalizado",
	PresetLast7Days:   "Últimos 7 días",
	PresetLast30Days:  "Últimos 30 días",
	PresetThisMonth:   "Este mes",
	PresetLast3Months: "Últimos 3 meses",
	PresetFullHistory: "Histórico Completo",
}

// Presets lists the periods in the order the UI offers them
var Presets = []Preset{PresetCustom, PresetLast7Days, PresetLast30Days, PresetThisMonth, PresetLast3Months, PresetFullHistory}

// Valid reports whether p is a known period
func (p Preset) Valid() bool {
	_, ok := presetLabels[p]
	return ok
}

// Label returns the display name
func (p Preset) Label() string {
	return presetLabels[p]
}

// ParsePreset accepts a preset identifier or its display name. Anything else
// is treated as a custom range.
func ParsePreset(value string) Preset {
	trimmed := strings.TrimSpace(value)
	for p, label := range presetLabels {
		if strings.EqualFold(trimmed, string(p)) || strings.EqualFold(trimmed, label) {
			return p
		}
	}
	return PresetCustom
}

// resolvePreset computes the date range of a period relative to the clock.
// Custom falls back to the last 30 days.
func (s *Scope) resolvePreset(p Preset) (time.Time, time.Time) {
	end := s.dateOnly(s.opts.Now())

	switch p {
	case PresetLast7Days:
		return end.AddDate(0, 0, -7), end
	case PresetThisMonth:
		return time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location()), end
	case PresetLast3Months:
		return end.AddDate(0, 0, -90), end
	case PresetFullHistory:
		return s.calendarDate(s.opts.HistoryStart), end
	default:
		return end.AddDate(0, 0, -30), end
	}
}
