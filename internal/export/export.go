package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/sadopc/nutrilog/internal/record"
)

var (
	// ErrNothingToExport is returned when the requested scope matches no records.
	ErrNothingToExport = errors.New("nothing to export")

	// ErrExportFailed wraps clipboard or filesystem failures.
	ErrExportFailed = errors.New("export failed")
)

// Scope selects which records an export covers.
type Scope int

const (
	// ScopeAll exports every record passed in.
	ScopeAll Scope = iota
	// ScopeSelected exports only records in the selection set. An empty
	// selection falls back to exporting everything.
	ScopeSelected
	// ScopeDraft exports a single not-yet-saved record, ignoring the
	// selection.
	ScopeDraft
	// ScopeDay exports the records of a single local day.
	ScopeDay
)

func (s Scope) String() string {
	switch s {
	case ScopeSelected:
		return "selected"
	case ScopeDraft:
		return "draft"
	case ScopeDay:
		return "day"
	default:
		return "all"
	}
}

// Selection tracks which record ids the user has marked for export.
// It is not safe for concurrent use; callers serialize access.
type Selection struct {
	ids map[string]struct{}
}

func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle adds the id if absent and removes it if present. Returns whether
// the id is selected after the toggle.
func (s *Selection) Toggle(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) Len() int { return len(s.ids) }

func (s *Selection) Clear() {
	for id := range s.ids {
		delete(s.ids, id)
	}
}

// Prune drops selected ids that no longer appear in recs. Snapshots are
// authoritative, so a selection must never outlive its records.
func (s *Selection) Prune(recs []record.Record) {
	if len(s.ids) == 0 {
		return
	}
	live := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		live[r.ID] = struct{}{}
	}
	for id := range s.ids {
		if _, ok := live[id]; !ok {
			delete(s.ids, id)
		}
	}
}

// Exporter formats records as shareable text and copies them to the
// system clipboard. The zero value is not usable; use NewExporter.
type Exporter struct {
	Selection *Selection
	Title     string

	// writeClipboard is swapped in tests.
	writeClipboard func(string) error
}

func NewExporter(title string) *Exporter {
	return &Exporter{
		Selection:      NewSelection(),
		Title:          title,
		writeClipboard: clipboard.WriteAll,
	}
}

// Export formats the records in scope and writes them to the clipboard.
// Any successful export clears the selection; on failure the selection is
// kept so the user can retry.
func (e *Exporter) Export(recs []record.Record, scope Scope) (string, error) {
	doc := e.Document(recs, scope)
	if doc == "" {
		return "", ErrNothingToExport
	}
	if err := e.writeClipboard(doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	e.Selection.Clear()
	return doc, nil
}

// ExportDraft copies a single unsaved record to the clipboard. The
// selection is not consulted for scoping.
func (e *Exporter) ExportDraft(r record.Record) (string, error) {
	return e.Export([]record.Record{r}, ScopeDraft)
}

// Document builds the export text without touching the clipboard or the
// selection. Returns "" when no records are in scope.
func (e *Exporter) Document(recs []record.Record, scope Scope) string {
	scoped := recs
	if scope == ScopeSelected && e.Selection.Len() > 0 {
		scoped = make([]record.Record, 0, e.Selection.Len())
		for _, r := range recs {
			if e.Selection.Has(r.ID) {
				scoped = append(scoped, r)
			}
		}
	}
	if len(scoped) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s (%d records)\n", e.Title, scope, len(scoped))
	for _, r := range scoped {
		b.WriteString("\n")
		writeRecord(&b, r)
	}
	return b.String()
}

func writeRecord(b *strings.Builder, r record.Record) {
	fmt.Fprintf(b, "--- %s ---\n", r.MealName)
	if !r.Timestamp.IsZero() {
		fmt.Fprintf(b, "Time: %s\n", r.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	if r.Location != nil {
		fmt.Fprintf(b, "Location: lat %.6f, lon %.6f\n", r.Location.Lat, r.Location.Lon)
	}
	if r.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", r.Description)
	}
	fmt.Fprintf(b, "Calories: %d kcal | Protein: %d g | Fat: %d g | Carbs: %d g\n",
		r.Calories, r.Protein, r.Fat, r.Carbs)
}
