package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/sadopc/nutrilog/internal/aggregate"
	"github.com/sadopc/nutrilog/internal/analyze"
	"github.com/sadopc/nutrilog/internal/export"
	"github.com/sadopc/nutrilog/internal/geo"
	"github.com/sadopc/nutrilog/internal/record"
	"github.com/sadopc/nutrilog/internal/store"
)

// App is the root Bubble Tea model.
type App struct {
	store    *store.Store
	sub      *store.Subscription
	analyzer *analyze.Client
	exporter *export.Exporter
	logger   *zap.Logger
	userID   string

	width  int
	height int

	records   []record.Record
	dailyGoal int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	entry     entryModel
	dashboard dashboardModel
	history   historyModel
	trends    trendsModel
	settings  settingsModel

	help   help.Model
	status string
}

func NewApp(s *store.Store, analyzer *analyze.Client, locator geo.Provider, userID string, logger *zap.Logger) (App, error) {
	sub, err := s.Subscribe(userID)
	if err != nil {
		return App{}, fmt.Errorf("subscribe: %w", err)
	}

	goal := s.GetIntSetting("daily_goal_kcal", 2000)
	title, err := s.GetSetting("export_title")
	if err != nil || title == "" {
		title = "nutrilog diet log"
	}
	exporter := export.NewExporter(title)

	h := help.New()
	h.ShowAll = false

	return App{
		store:      s,
		sub:        sub,
		analyzer:   analyzer,
		exporter:   exporter,
		logger:     logger,
		userID:     userID,
		dailyGoal:  goal,
		activeView: viewDashboard,
		entry:      newEntryModel(s, analyzer, locator, exporter, userID, logger),
		dashboard:  newDashboardModel(goal),
		history:    newHistoryModel(exporter),
		trends:     newTrendsModel(goal),
		settings:   newSettingsModel(s),
		help:       h,
	}, nil
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(a.sub),
		a.settings.refresh(),
		tickCmd(),
	)
}

// waitForSnapshot blocks on the subscription and is re-armed after every
// delivered snapshot.
func waitForSnapshot(sub *store.Subscription) tea.Cmd {
	return func() tea.Msg {
		recs, ok := <-sub.Updates()
		if !ok {
			return subClosedMsg{}
		}
		return snapshotMsg{records: recs}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.entry.setSize(a.width, contentHeight)
		a.dashboard.setSize(a.width, contentHeight)
		a.history.setSize(a.width, contentHeight)
		a.trends.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}
		if a.entry.active() {
			var cmd tea.Cmd
			a.entry, cmd = a.entry.update(msg)
			return a, cmd
		}
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.New):
			var cmd tea.Cmd
			a.entry, cmd = a.entry.open()
			return a, cmd
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			return a.switchView(viewDashboard)
		case key.Matches(msg, keys.Tab2):
			return a.switchView(viewHistory)
		case key.Matches(msg, keys.Tab3):
			return a.switchView(viewTrends)
		case key.Matches(msg, keys.Tab4):
			return a.switchView(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchView((a.activeView + 1) % 4)
		}
		return a.updateActiveView(msg)

	case snapshotMsg:
		a.records = msg.records
		a.exporter.Selection.Prune(a.records)
		a.dashboard.setRecords(a.records)
		a.history.setRecords(a.records)
		a.trends.setRecords(a.records)
		return a, waitForSnapshot(a.sub)

	case subClosedMsg:
		return a, tea.Quit

	case tickMsg:
		return a, tickCmd()

	case analysisDoneMsg:
		var cmd tea.Cmd
		a.entry, cmd = a.entry.handleResult(msg)
		return a, cmd

	case savedMsg:
		a.status = fmt.Sprintf("Saved %s (%d kcal)", msg.rec.MealName, msg.rec.Calories)
		return a, nil

	case clipboardDoneMsg:
		a.status = fmt.Sprintf("Copied %d records to clipboard", msg.count)
		return a, nil

	case statusMsg:
		a.status = msg.text
		if msg.isError {
			a.logger.Warn("status", zap.String("text", msg.text))
		}
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.exportPicking = false
		return a, nil

	case settingsSavedMsg:
		a.dailyGoal = msg.goal
		a.dashboard.dailyGoal = msg.goal
		a.trends.dailyGoal = msg.goal
		a.trends.buildChart()
		a.exporter.Title = msg.title
		if a.analyzer != nil {
			a.analyzer.SetModel(msg.model)
		}
		a.status = "Settings saved"
		return a, nil
	}

	return a.updateActiveView(msg)
}

// switchView changes the active view. Switching views drops any pending
// export selection.
func (a App) switchView(v viewState) (tea.Model, tea.Cmd) {
	if v != a.activeView {
		a.exporter.Selection.Clear()
	}
	a.activeView = v
	if v == viewSettings {
		return a, a.settings.refresh()
	}
	return a, nil
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewHistory:
		a.history, cmd = a.history.update(msg)
	case viewTrends:
		a.trends, cmd = a.trends.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	return a.activeView == viewSettings && a.settings.formActive
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewDashboard:
		content = a.dashboard.view()
	case viewHistory:
		content = a.history.view()
	case viewTrends:
		content = a.trends.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := a.height - headerHeight - footerHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	// Overlays
	if a.entry.active() {
		content = a.entry.view()
	}
	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("nutrilog")
	gap := a.width - lipgloss.Width(title) - lipgloss.Width(tabRow) - 4
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	// Today's total in the footer
	tot := aggregate.DailyTotals(a.records, aggregate.Today())
	todayInfo := successStyle.Render(fmt.Sprintf(" ● %d/%d kcal", tot.Calories, a.dailyGoal))
	if a.dailyGoal > 0 && tot.Calories > a.dailyGoal {
		todayInfo = warningStyle.Render(fmt.Sprintf(" ▲ %d/%d kcal", tot.Calories, a.dailyGoal))
	}

	left := footerStyle.Render(helpView)
	right := todayInfo + status

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	formats := []string{"CSV", "JSON"}
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range formats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < 1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	recs := a.records
	return func() tea.Msg {
		home, _ := os.UserHomeDir()
		dateStr := time.Now().Format("2006-01-02")

		var path string
		if format == 0 {
			path = filepath.Join(home, fmt.Sprintf("nutrilog-export-%s.csv", dateStr))
			if err := export.ToCSV(recs, path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(home, fmt.Sprintf("nutrilog-export-%s.json", dateStr))
			if err := export.ToJSON(recs, path); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		}

		return exportDoneMsg{path: path}
	}
}
