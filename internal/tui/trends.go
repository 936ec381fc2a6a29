package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/nutrilog/internal/aggregate"
	"github.com/sadopc/nutrilog/internal/record"
)

const trendDays = 7

type trendsModel struct {
	width  int
	height int

	records   []record.Record
	dailyGoal int
	offset    int // 7-day blocks back from today (0 = current)

	chart barchart.Model
}

func newTrendsModel(dailyGoal int) trendsModel {
	return trendsModel{
		dailyGoal: dailyGoal,
		chart:     barchart.New(60, 12),
	}
}

func (r *trendsModel) setSize(w, h int) {
	r.width = w
	r.height = h
	r.buildChart()
}

func (r *trendsModel) setRecords(recs []record.Record) {
	r.records = recs
	r.buildChart()
}

func (r trendsModel) update(msg tea.Msg) (trendsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			r.buildChart()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			r.buildChart()
		}
	}
	return r, nil
}

// anchorDay is the last day of the visible window.
func (r trendsModel) anchorDay() string {
	return aggregate.Bucket(time.Now().AddDate(0, 0, -trendDays*r.offset))
}

func (r trendsModel) window() []aggregate.DayTotal {
	return aggregate.LastNDays(r.records, trendDays, r.anchorDay())
}

func (r *trendsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	for _, day := range r.window() {
		label := day.Date
		if t, err := time.ParseInLocation("2006-01-02", day.Date, time.Local); err == nil {
			label = t.Format("Mon 02")
		}

		style := lipgloss.NewStyle().Foreground(colorSecondary)
		if r.dailyGoal > 0 && day.Totals.Calories > r.dailyGoal {
			style = lipgloss.NewStyle().Foreground(colorWarning)
		}
		if day.Totals.Calories == 0 {
			style = lipgloss.NewStyle().Foreground(colorSubtle)
		}

		bars = append(bars, barchart.BarData{
			Label: label,
			Values: []barchart.BarValue{{
				Name:  day.Date,
				Value: float64(day.Totals.Calories),
				Style: style,
			}},
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r trendsModel) view() string {
	w := r.width - 4
	window := r.window()

	var dateLabel string
	if len(window) > 0 {
		from, _ := time.ParseInLocation("2006-01-02", window[0].Date, time.Local)
		to, _ := time.ParseInLocation("2006-01-02", window[len(window)-1].Date, time.Local)
		dateLabel = mutedStyle.Render(fmt.Sprintf("%s — %s", from.Format("Jan 02"), to.Format("Jan 02, 2006")))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Calorie Trend"), "  ", dateLabel,
	)

	chartView := r.chart.View()
	tableView := r.renderTable(w, window)
	nav := mutedStyle.Render("  ←/→: navigate")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", chartView, "", tableView, "", nav,
		),
	)
}

func (r trendsModel) renderTable(w int, window []aggregate.DayTotal) string {
	if len(window) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	var rows []string
	headerRow := mutedStyle.Render(fmt.Sprintf("  %-12s %8s %8s %8s %8s", "Date", "kcal", "P (g)", "F (g)", "C (g)"))
	rows = append(rows, headerRow)
	rows = append(rows, mutedStyle.Render("  "+strings.Repeat("─", min(w-6, 50))))

	for _, day := range window {
		kcal := fmt.Sprintf("%8d", day.Totals.Calories)
		if r.dailyGoal > 0 && day.Totals.Calories > r.dailyGoal {
			kcal = warningStyle.Render(kcal)
		}
		rows = append(rows, fmt.Sprintf("  %-12s %s %8d %8d %8d",
			day.Date, kcal, day.Totals.Protein, day.Totals.Fat, day.Totals.Carbs,
		))
	}

	return strings.Join(rows, "\n")
}
