package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/sadopc/nutrilog/internal/analyze"
	"github.com/sadopc/nutrilog/internal/export"
	"github.com/sadopc/nutrilog/internal/geo"
	"github.com/sadopc/nutrilog/internal/record"
	"github.com/sadopc/nutrilog/internal/store"
)

type entryState int

const (
	entryIdle entryState = iota
	entryForm
	entryAnalyzing
	entryConfirm
	entryEdit
)

// entryModel drives the new-meal flow: describe or attach a photo,
// run the analysis, review the draft, save.
type entryModel struct {
	store    *store.Store
	analyzer *analyze.Client
	locator  geo.Provider
	exporter *export.Exporter
	logger   *zap.Logger
	userID   string

	width  int
	height int

	state entryState
	form  *huh.Form
	gen   int // analysis generation; stale results are dropped

	draft record.Record

	// Form values as pointers (survive value copies)
	description *string
	imagePath   *string
	useLocation *bool

	// Draft-edit form values
	editName     *string
	editCalories *string
	editProtein  *string
	editFat      *string
	editCarbs    *string
}

func newEntryModel(s *store.Store, analyzer *analyze.Client, locator geo.Provider, exporter *export.Exporter, userID string, logger *zap.Logger) entryModel {
	desc, img := "", ""
	loc := false
	en, ec, ep, ef, eca := "", "", "", "", ""
	return entryModel{
		store:        s,
		analyzer:     analyzer,
		locator:      locator,
		exporter:     exporter,
		logger:       logger,
		userID:       userID,
		description:  &desc,
		imagePath:    &img,
		useLocation:  &loc,
		editName:     &en,
		editCalories: &ec,
		editProtein:  &ep,
		editFat:      &ef,
		editCarbs:    &eca,
	}
}

func (e *entryModel) setSize(w, h int) {
	e.width = w
	e.height = h
}

func (e entryModel) active() bool { return e.state != entryIdle }

func (e entryModel) open() (entryModel, tea.Cmd) {
	if e.analyzer == nil {
		return e, func() tea.Msg {
			return statusMsg{text: "Analysis unavailable: set GEMINI_API_KEY and restart", isError: true}
		}
	}
	*e.description = ""
	*e.imagePath = ""
	*e.useLocation = false

	e.form = huh.NewForm(
		huh.NewGroup(
			huh.NewText().Title("What did you eat?").
				Description("Describe the meal, or leave empty and attach a photo").
				Value(e.description),
			huh.NewInput().Title("Photo path (optional)").Value(e.imagePath),
			huh.NewConfirm().Title("Attach location?").Value(e.useLocation),
		),
	).WithShowHelp(true).WithShowErrors(true)

	e.state = entryForm
	return e, e.form.Init()
}

func (e entryModel) update(msg tea.Msg) (entryModel, tea.Cmd) {
	switch e.state {
	case entryForm:
		return e.updateForm(msg)
	case entryAnalyzing:
		if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
			// Abandon the in-flight analysis; its result will be stale.
			e.gen++
			e.state = entryIdle
			return e, nil
		}
	case entryConfirm:
		return e.updateConfirm(msg)
	case entryEdit:
		return e.updateEdit(msg)
	}
	return e, nil
}

func (e entryModel) updateForm(msg tea.Msg) (entryModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			e.state = entryIdle
			e.form = nil
			return e, nil
		}
	}

	form, cmd := e.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		e.form = f
	}

	if e.form.State == huh.StateCompleted {
		e.form = nil
		if strings.TrimSpace(*e.description) == "" && strings.TrimSpace(*e.imagePath) == "" {
			e.state = entryIdle
			return e, func() tea.Msg {
				return statusMsg{text: "Nothing to analyze: describe the meal or attach a photo", isError: true}
			}
		}
		e.state = entryAnalyzing
		e.gen++
		return e, e.analyzeCmd(e.gen, *e.description, strings.TrimSpace(*e.imagePath))
	}

	return e, cmd
}

func (e entryModel) updateConfirm(msg tea.Msg) (entryModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			e.state = entryIdle
			return e, nil
		case "enter":
			e.state = entryIdle
			return e.save()
		case "c":
			return e, e.copyDraftCmd()
		case "e":
			return e.showEditForm()
		}
	}
	return e, nil
}

// showEditForm lets the user adjust the analyzed draft before saving.
func (e entryModel) showEditForm() (entryModel, tea.Cmd) {
	*e.editName = e.draft.MealName
	*e.editCalories = strconv.Itoa(e.draft.Calories)
	*e.editProtein = strconv.Itoa(e.draft.Protein)
	*e.editFat = strconv.Itoa(e.draft.Fat)
	*e.editCarbs = strconv.Itoa(e.draft.Carbs)

	e.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Meal name").Value(e.editName),
			huh.NewInput().Title("Calories (kcal)").Value(e.editCalories).Validate(validateAmount),
			huh.NewInput().Title("Protein (g)").Value(e.editProtein).Validate(validateAmount),
			huh.NewInput().Title("Fat (g)").Value(e.editFat).Validate(validateAmount),
			huh.NewInput().Title("Carbs (g)").Value(e.editCarbs).Validate(validateAmount),
		),
	).WithShowHelp(true).WithShowErrors(true)

	e.state = entryEdit
	return e, e.form.Init()
}

func validateAmount(v string) error {
	if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
		return fmt.Errorf("must be a whole number")
	}
	return nil
}

func (e entryModel) updateEdit(msg tea.Msg) (entryModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			e.state = entryConfirm
			e.form = nil
			return e, nil
		}
	}

	form, cmd := e.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		e.form = f
	}

	if e.form.State == huh.StateCompleted {
		e.form = nil
		e.applyEdits()
		e.state = entryConfirm
		return e, nil
	}

	return e, cmd
}

// applyEdits writes the form values back into the draft. Amounts are
// clamped to zero; a blanked name falls back to the description.
func (e *entryModel) applyEdits() {
	name := strings.TrimSpace(*e.editName)
	if name == "" {
		name = record.FallbackName(e.draft.Description)
	}
	e.draft.MealName = name
	e.draft.Calories = clampAmount(*e.editCalories)
	e.draft.Protein = clampAmount(*e.editProtein)
	e.draft.Fat = clampAmount(*e.editFat)
	e.draft.Carbs = clampAmount(*e.editCarbs)
}

func clampAmount(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return max(0, n)
}

func (e entryModel) copyDraftCmd() tea.Cmd {
	exporter := e.exporter
	draft := e.draft
	return func() tea.Msg {
		if _, err := exporter.ExportDraft(draft); err != nil {
			return statusMsg{text: fmt.Sprintf("Copy failed: %v", err), isError: true}
		}
		return clipboardDoneMsg{count: 1}
	}
}

// handleResult applies an analysisDoneMsg, dropping results from
// superseded requests.
func (e entryModel) handleResult(msg analysisDoneMsg) (entryModel, tea.Cmd) {
	if msg.gen != e.gen || e.state != entryAnalyzing {
		return e, nil
	}
	if msg.err != nil {
		e.state = entryIdle
		return e, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Analysis failed: %v", msg.err), isError: true}
		}
	}
	e.draft = msg.draft
	e.state = entryConfirm
	return e, nil
}

func (e entryModel) analyzeCmd(gen int, description, imagePath string) tea.Cmd {
	analyzer := e.analyzer
	useLoc := *e.useLocation
	locator := e.locator
	return func() tea.Msg {
		ctx := context.Background()

		var image []byte
		var mime string
		if imagePath != "" {
			data, err := os.ReadFile(imagePath)
			if err != nil {
				return analysisDoneMsg{gen: gen, err: fmt.Errorf("read photo: %w", err)}
			}
			image = data
			mime = mimeFromPath(imagePath)
		}

		draft, err := analyzer.Analyze(ctx, description, image, mime)
		if err != nil {
			return analysisDoneMsg{gen: gen, err: err}
		}
		if useLoc {
			draft.Location = geo.Fetch(ctx, locator)
		}
		return analysisDoneMsg{gen: gen, draft: draft}
	}
}

func (e entryModel) save() (entryModel, tea.Cmd) {
	s := e.store
	userID := e.userID
	draft := e.draft
	logger := e.logger
	return e, func() tea.Msg {
		rec, err := s.Append(userID, draft)
		if err != nil {
			logger.Error("save meal failed", zap.Error(err))
			return statusMsg{text: fmt.Sprintf("Save failed: %v", err), isError: true}
		}
		return savedMsg{rec: rec}
	}
}

func mimeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func (e entryModel) view() string {
	w := e.width - 4

	switch e.state {
	case entryForm:
		title := titleStyle.Render("New Meal")
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", e.form.View()),
		)

	case entryAnalyzing:
		title := titleStyle.Render("New Meal")
		body := warningStyle.Render("Analyzing...")
		hint := mutedStyle.Render("esc: cancel")
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", hint),
		)

	case entryConfirm:
		title := titleStyle.Render("Review Draft")
		name := highlightStyle.Render(e.draft.MealName)
		kcal := fmt.Sprintf("%d kcal", e.draft.Calories)
		macros := mutedStyle.Render(formatMacros(record.Totals{
			Protein: e.draft.Protein,
			Fat:     e.draft.Fat,
			Carbs:   e.draft.Carbs,
		}))
		desc := subtitleStyle.Render(e.draft.Description)
		loc := ""
		if e.draft.Location != nil {
			loc = mutedStyle.Render(fmt.Sprintf("@ %.4f, %.4f", e.draft.Location.Lat, e.draft.Location.Lon))
		}
		hint := mutedStyle.Render("enter: save  e: edit  c: copy  esc: discard")
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", name, kcal+"  "+macros, desc, loc, "", hint),
		)

	case entryEdit:
		title := titleStyle.Render("Edit Draft")
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", e.form.View()),
		)
	}
	return ""
}
