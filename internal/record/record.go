package record

import (
	"math"
	"time"
)

// Location is a latitude/longitude pair captured when a meal was logged.
// Immutable once attached to a record.
type Location struct {
	Lat float64
	Lon float64
}

// Record is a single meal log entry. A record starts life as a draft
// (no ID, zero Timestamp) produced by the analyzer and becomes persisted
// exactly once when appended to the store, which assigns both.
type Record struct {
	ID          string
	MealName    string
	Calories    int // kcal
	Protein     int // grams
	Fat         int // grams
	Carbs       int // grams
	Description string
	Location    *Location
	Timestamp   time.Time
}

// Draft reports whether the record has not been persisted yet.
func (r Record) Draft() bool {
	return r.ID == "" || r.Timestamp.IsZero()
}

// Totals holds summed nutrient values over a set of records.
type Totals struct {
	Calories int
	Protein  int
	Fat      int
	Carbs    int
}

func (t *Totals) Add(r Record) {
	t.Calories += r.Calories
	t.Protein += r.Protein
	t.Fat += r.Fat
	t.Carbs += r.Carbs
}

// CoerceAmount normalizes an arbitrary decoded JSON value to a non-negative
// integer nutrient amount. Missing, non-numeric, and negative inputs all
// collapse to 0. Idempotent: coercing an already-coerced value is a no-op.
func CoerceAmount(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0
	}
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	return int(math.Round(f))
}

// fallbackNameRunes matches the prefix length the analyzer uses when the
// service returns no meal name.
const fallbackNameRunes = 15

// FallbackName derives a meal name from the user's description when the
// analysis response carries none.
func FallbackName(description string) string {
	if description == "" {
		return "Meal"
	}
	runes := []rune(description)
	if len(runes) <= fallbackNameRunes {
		return description
	}
	return string(runes[:fallbackNameRunes]) + "..."
}
