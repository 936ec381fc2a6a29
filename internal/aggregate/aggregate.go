// Package aggregate derives daily totals, date groupings, and date-filtered
// subsets from a snapshot of meal records. Everything here is a pure function
// recomputed from scratch on each call; per-user record volume is small
// enough that caching is not worth the bookkeeping.
package aggregate

import (
	"sort"
	"time"

	"github.com/sadopc/nutrilog/internal/record"
)

const dayFormat = "2006-01-02"

// Bucket returns the calendar day of t in the observer's local timezone as
// YYYY-MM-DD. This is the single definition of day bucketing: two records
// share a bucket iff their timestamps fall on the same local calendar day.
func Bucket(t time.Time) string {
	return t.Local().Format(dayFormat)
}

// Today returns the current local day bucket.
func Today() string {
	return Bucket(time.Now())
}

// Sum folds nutrient totals over records. Sum(nil) is all zeros.
func Sum(recs []record.Record) record.Totals {
	var t record.Totals
	for _, r := range recs {
		t.Add(r)
	}
	return t
}

// DailyTotals sums nutrients over the records whose bucket equals day.
func DailyTotals(recs []record.Record, day string) record.Totals {
	return Sum(ForDate(recs, day))
}

// ForDate returns the records whose local-day bucket equals day, keeping
// the input order.
func ForDate(recs []record.Record, day string) []record.Record {
	var out []record.Record
	for _, r := range recs {
		if Bucket(r.Timestamp) == day {
			out = append(out, r)
		}
	}
	return out
}

// DayGroup is one bucket of the grouped log view.
type DayGroup struct {
	Date    string
	Records []record.Record
}

// GroupByDate buckets records by local day, most recent bucket first.
// Records within a bucket keep their input order.
func GroupByDate(recs []record.Record) []DayGroup {
	byDay := make(map[string][]record.Record)
	for _, r := range recs {
		day := Bucket(r.Timestamp)
		byDay[day] = append(byDay[day], r)
	}

	groups := make([]DayGroup, 0, len(byDay))
	for day, rs := range byDay {
		groups = append(groups, DayGroup{Date: day, Records: rs})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date > groups[j].Date
	})
	return groups
}

// DayTotal is one bar of the calorie trend chart.
type DayTotal struct {
	Date   string
	Totals record.Totals
}

// LastNDays returns per-day totals for the n days ending at today
// (a YYYY-MM-DD bucket), oldest first. Days without records appear with
// zero totals so the chart keeps its shape.
func LastNDays(recs []record.Record, n int, today string) []DayTotal {
	end, err := time.ParseInLocation(dayFormat, today, time.Local)
	if err != nil || n <= 0 {
		return nil
	}

	out := make([]DayTotal, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i).Format(dayFormat)
		out = append(out, DayTotal{Date: day, Totals: DailyTotals(recs, day)})
	}
	return out
}
