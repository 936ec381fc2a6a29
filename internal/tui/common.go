package tui

import (
	"fmt"
	"time"

	"github.com/sadopc/nutrilog/internal/aggregate"
	"github.com/sadopc/nutrilog/internal/record"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewHistory
	viewTrends
	viewSettings
)

var viewNames = []string{"Dashboard", "History", "Trends", "Settings"}

// --- Messages ---

// snapshotMsg carries a full record snapshot from the store subscription.
type snapshotMsg struct {
	records []record.Record
}

// subClosedMsg signals that the store subscription has ended.
type subClosedMsg struct{}

// analysisDoneMsg carries the draft produced by the analysis pipeline.
// gen identifies the request; stale results are dropped.
type analysisDoneMsg struct {
	gen   int
	draft record.Record
	err   error
}

type savedMsg struct {
	rec record.Record
}

type statusMsg struct {
	text    string
	isError bool
}

type clipboardDoneMsg struct {
	count int
}

type exportDoneMsg struct {
	path string
}

type settingsSavedMsg struct {
	goal  int
	model string
	title string
}

type tickMsg time.Time

// --- Helpers ---

// formatDate renders a bucket date as Today, Yesterday, or the date itself.
func formatDate(day string) string {
	today := aggregate.Today()
	if day == today {
		return "Today"
	}
	t, err := time.ParseInLocation("2006-01-02", day, time.Local)
	if err != nil {
		return day
	}
	if aggregate.Bucket(time.Now().AddDate(0, 0, -1)) == day {
		return "Yesterday"
	}
	return t.Format("Mon, Jan 02")
}

func formatClock(t time.Time) string {
	return t.Local().Format("15:04")
}

func formatMacros(tot record.Totals) string {
	return fmt.Sprintf("P %dg  F %dg  C %dg", tot.Protein, tot.Fat, tot.Carbs)
}
