package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/nutrilog/internal/aggregate"
	"github.com/sadopc/nutrilog/internal/record"
)

type dashboardModel struct {
	width  int
	height int

	records   []record.Record
	dailyGoal int

	// scroll is the first visible line of the grouped log panel.
	scroll int
}

func newDashboardModel(dailyGoal int) dashboardModel {
	return dashboardModel{dailyGoal: dailyGoal}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d *dashboardModel) setRecords(recs []record.Record) {
	d.records = recs
	d.clampScroll()
}

func (d *dashboardModel) clampScroll() {
	limit := max(0, len(d.logLines())-d.logWindow())
	if d.scroll > limit {
		d.scroll = limit
	}
	if d.scroll < 0 {
		d.scroll = 0
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Up):
			d.scroll--
			d.clampScroll()
		case key.Matches(msg, keys.Down):
			d.scroll++
			d.clampScroll()
		}
	}
	return d, nil
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	goalPanel := d.renderGoalPanel(contentWidth)
	todayPanel := d.renderTodayPanel(contentWidth)
	logPanel := d.renderLogPanel(contentWidth)

	return lipgloss.JoinVertical(lipgloss.Left, goalPanel, todayPanel, logPanel)
}

func (d dashboardModel) renderGoalPanel(w int) string {
	today := aggregate.Today()
	tot := aggregate.DailyTotals(d.records, today)

	style := calorieStyle
	if d.dailyGoal > 0 && tot.Calories > d.dailyGoal {
		style = calorieOverStyle
	}
	counter := style.Width(w - 6).Render(fmt.Sprintf("%d / %d kcal", tot.Calories, d.dailyGoal))

	bar := d.renderProgressBar(w-10, tot.Calories)
	macros := mutedStyle.Width(w - 6).Align(lipgloss.Center).Render(formatMacros(tot))

	content := lipgloss.JoinVertical(lipgloss.Center, counter, bar, macros)
	return activePanelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderProgressBar(w, calories int) string {
	if w < 4 || d.dailyGoal <= 0 {
		return ""
	}
	ratio := float64(calories) / float64(d.dailyGoal)
	filled := min(w, int(ratio*float64(w)))

	fillStyle := successStyle
	if ratio > 1 {
		fillStyle = warningStyle
	}
	return fillStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", w-filled))
}

func (d dashboardModel) renderTodayPanel(w int) string {
	today := aggregate.Today()
	meals := aggregate.ForDate(d.records, today)

	title := titleStyle.Render("Today")
	count := mutedStyle.Render(fmt.Sprintf("%d meals", len(meals)))
	header := fmt.Sprintf("%s  %s", title, count)

	if len(meals) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("No meals logged today. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, header)
	for _, m := range meals {
		row := fmt.Sprintf("  %s  %-24s %s",
			mutedStyle.Render(formatClock(m.Timestamp)),
			m.MealName,
			highlightStyle.Render(fmt.Sprintf("%4d kcal", m.Calories)),
		)
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

// logWindow is how many log lines fit under the goal and today panels.
func (d dashboardModel) logWindow() int {
	return max(5, d.height-16)
}

// logLines renders the full log grouped by day, most recent day first,
// with a header line per day.
func (d dashboardModel) logLines() []string {
	var lines []string
	for _, g := range aggregate.GroupByDate(d.records) {
		dayTotal := aggregate.Sum(g.Records)
		header := fmt.Sprintf("%s  %s",
			subtitleStyle.Render(formatDate(g.Date)),
			mutedStyle.Render(fmt.Sprintf("%d kcal", dayTotal.Calories)),
		)
		lines = append(lines, header)
		for _, m := range g.Records {
			lines = append(lines, fmt.Sprintf("  %s  %-24s %s",
				mutedStyle.Render(formatClock(m.Timestamp)),
				m.MealName,
				highlightStyle.Render(fmt.Sprintf("%4d kcal", m.Calories)),
			))
		}
	}
	return lines
}

func (d dashboardModel) renderLogPanel(w int) string {
	title := titleStyle.Render("Log")
	if len(d.records) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No meals yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	lines := d.logLines()
	window := d.logWindow()
	end := min(len(lines), d.scroll+window)

	var rows []string
	rows = append(rows, title)
	rows = append(rows, lines[d.scroll:end]...)
	if d.scroll > 0 || end < len(lines) {
		rows = append(rows, mutedStyle.Render("  ↑/↓ scroll"))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
