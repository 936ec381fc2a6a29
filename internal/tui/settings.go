package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/nutrilog/internal/store"
)

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	dailyGoal   *string
	model       *string
	exportTitle *string
}

func newSettingsModel(s *store.Store) settingsModel {
	dg, m, et := "", "", ""
	return settingsModel{
		store:       s,
		dailyGoal:   &dg,
		model:       &m,
		exportTitle: &et,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, _ := s.store.GetAllSettings()
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.dailyGoal = s.getVal("daily_goal_kcal", "2000")
	*s.model = s.getVal("analysis_model", "gemini-2.5-flash")
	*s.exportTitle = s.getVal("export_title", "nutrilog diet log")

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Daily calorie goal (kcal)").Value(s.dailyGoal).
				Validate(func(v string) error {
					if _, err := strconv.Atoi(v); err != nil {
						return fmt.Errorf("must be a whole number")
					}
					return nil
				}),
			huh.NewInput().Title("Analysis model").Value(s.model),
			huh.NewInput().Title("Export title").Value(s.exportTitle),
		),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.saveSettings()
		goal, _ := strconv.Atoi(*s.dailyGoal)
		saved := settingsSavedMsg{goal: goal, model: *s.model, title: *s.exportTitle}
		return s, tea.Batch(s.refresh(), func() tea.Msg { return saved })
	}

	return s, cmd
}

func (s settingsModel) saveSettings() {
	s.store.SetSetting("daily_goal_kcal", *s.dailyGoal)
	s.store.SetSetting("analysis_model", *s.model)
	s.store.SetSetting("export_title", *s.exportTitle)
}

func (s settingsModel) getVal(k, fallback string) string {
	v, err := s.store.GetSetting(k)
	if err != nil {
		return fallback
	}
	return v
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Settings")
		formView := s.form.View()
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", formView),
		)
	}

	title := titleStyle.Render("Settings")
	hint := mutedStyle.Render("Press enter to edit settings")

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	for _, setting := range s.settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.Key)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}

	rows = append(rows, "")
	rows = append(rows, hint)

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case "daily_goal_kcal":
		if kcal, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%d kcal", kcal)
		}
	case "user_id":
		if len(v) > 8 {
			return v[:8] + "…"
		}
	}
	return v
}
