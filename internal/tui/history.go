package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/nutrilog/internal/aggregate"
	"github.com/sadopc/nutrilog/internal/export"
	"github.com/sadopc/nutrilog/internal/record"
)

// historyModel shows one local day of meals at a time, with a selection
// set for clipboard export.
type historyModel struct {
	exporter *export.Exporter

	width  int
	height int

	records []record.Record
	day     string
	cursor  int
}

func newHistoryModel(exporter *export.Exporter) historyModel {
	return historyModel{
		exporter: exporter,
		day:      aggregate.Today(),
	}
}

func (h *historyModel) setSize(w, hgt int) {
	h.width = w
	h.height = hgt
}

func (h *historyModel) setRecords(recs []record.Record) {
	h.records = recs
	meals := aggregate.ForDate(h.records, h.day)
	if h.cursor >= len(meals) {
		h.cursor = max(0, len(meals)-1)
	}
}

func (h historyModel) update(msg tea.Msg) (historyModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		meals := aggregate.ForDate(h.records, h.day)
		switch {
		case key.Matches(msg, keys.Up):
			if h.cursor > 0 {
				h.cursor--
			}
		case key.Matches(msg, keys.Down):
			if h.cursor < len(meals)-1 {
				h.cursor++
			}
		case key.Matches(msg, keys.Left):
			return h.shiftDay(-1), nil
		case key.Matches(msg, keys.Right):
			if h.day != aggregate.Today() {
				return h.shiftDay(1), nil
			}
		case key.Matches(msg, keys.Select):
			if h.cursor < len(meals) {
				h.exporter.Selection.Toggle(meals[h.cursor].ID)
			}
		case key.Matches(msg, keys.Copy):
			return h, h.copyCmd()
		}
	}
	return h, nil
}

// shiftDay moves the visible day. Changing the day invalidates the
// selection.
func (h historyModel) shiftDay(delta int) historyModel {
	t, err := time.ParseInLocation("2006-01-02", h.day, time.Local)
	if err != nil {
		h.day = aggregate.Today()
		return h
	}
	h.day = aggregate.Bucket(t.AddDate(0, 0, delta))
	h.cursor = 0
	h.exporter.Selection.Clear()
	return h
}

func (h historyModel) copyCmd() tea.Cmd {
	exporter := h.exporter
	meals := aggregate.ForDate(h.records, h.day)
	scope := export.ScopeDay
	if exporter.Selection.Len() > 0 {
		scope = export.ScopeSelected
	}
	return func() tea.Msg {
		doc, err := exporter.Export(meals, scope)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Copy failed: %v", err), isError: true}
		}
		// Count the record blocks in the document.
		return clipboardDoneMsg{count: strings.Count(doc, "--- ")}
	}
}

func (h historyModel) view() string {
	w := h.width - 4
	meals := aggregate.ForDate(h.records, h.day)
	tot := aggregate.Sum(meals)

	title := titleStyle.Render(formatDate(h.day))
	dayTotal := highlightStyle.Render(fmt.Sprintf("%d kcal", tot.Calories))
	header := fmt.Sprintf("%s  %s  %s", title, dayTotal, mutedStyle.Render(formatMacros(tot)))

	var rows []string
	rows = append(rows, header)
	rows = append(rows, "")

	if len(meals) == 0 {
		rows = append(rows, mutedStyle.Render("No meals on this day"))
	}

	for i, m := range meals {
		cursor := "  "
		style := normalItemStyle
		if i == h.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		mark := "[ ]"
		if h.exporter.Selection.Has(m.ID) {
			mark = accentStyle.Render("[x]")
		}
		row := style.Render(fmt.Sprintf("%s%s %s  %-24s %4d kcal",
			cursor, mark, formatClock(m.Timestamp), m.MealName, m.Calories))
		rows = append(rows, row)
	}

	rows = append(rows, "")
	sel := ""
	if n := h.exporter.Selection.Len(); n > 0 {
		sel = accentStyle.Render(fmt.Sprintf("  %d selected", n))
	}
	rows = append(rows, mutedStyle.Render("  ←/→: day  space: select  c: copy")+sel)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
