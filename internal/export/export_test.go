package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/nutrilog/internal/record"
)

func sampleRecords() []record.Record {
	now := time.Now()
	return []record.Record{
		{
			ID:          "r1",
			MealName:    "Oatmeal with Berries",
			Calories:    350,
			Protein:     12,
			Fat:         8,
			Carbs:       55,
			Description: "oatmeal with blueberries and honey",
			Timestamp:   now.Add(-3 * time.Hour),
		},
		{
			ID:          "r2",
			MealName:    "Chicken Salad",
			Calories:    520,
			Protein:     42,
			Fat:         22,
			Carbs:       18,
			Description: "grilled chicken salad, olive oil dressing",
			Location:    &record.Location{Lat: 25.033, Lon: 121.5654},
			Timestamp:   now.Add(-1 * time.Hour),
		},
		{
			ID:          "r3",
			MealName:    "Espresso",
			Calories:    5,
			Protein:     0,
			Fat:         0,
			Carbs:       1,
			Description: "double shot",
			Timestamp:   now,
		},
	}
}

func newTestExporter() (*Exporter, *[]string) {
	var writes []string
	e := NewExporter("nutrilog diet log")
	e.writeClipboard = func(s string) error {
		writes = append(writes, s)
		return nil
	}
	return e, &writes
}

// ============================================================
// Selection
// ============================================================

func TestSelectionToggle(t *testing.T) {
	s := NewSelection()

	if !s.Toggle("r1") {
		t.Fatal("first toggle should select")
	}
	if !s.Has("r1") || s.Len() != 1 {
		t.Fatalf("expected r1 selected, len=%d", s.Len())
	}
	if s.Toggle("r1") {
		t.Fatal("second toggle should deselect")
	}
	if s.Has("r1") || s.Len() != 0 {
		t.Fatal("expected r1 deselected")
	}
}

func TestSelectionIgnoresEmptyID(t *testing.T) {
	s := NewSelection()
	if s.Toggle("") {
		t.Fatal("empty id should not select")
	}
	if s.Len() != 0 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestSelectionClear(t *testing.T) {
	s := NewSelection()
	s.Toggle("r1")
	s.Toggle("r2")
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("len after clear = %d", s.Len())
	}
}

func TestSelectionPrune(t *testing.T) {
	s := NewSelection()
	s.Toggle("r1")
	s.Toggle("gone")

	s.Prune(sampleRecords())
	if !s.Has("r1") {
		t.Fatal("live id pruned")
	}
	if s.Has("gone") {
		t.Fatal("dead id survived prune")
	}
}

// ============================================================
// Document
// ============================================================

func TestDocumentHeaderAndBlocks(t *testing.T) {
	e, _ := newTestExporter()
	recs := sampleRecords()

	doc := e.Document(recs, ScopeAll)
	if !strings.HasPrefix(doc, "nutrilog diet log - all (3 records)\n") {
		t.Fatalf("bad header: %q", strings.SplitN(doc, "\n", 2)[0])
	}
	for _, r := range recs {
		if !strings.Contains(doc, fmt.Sprintf("--- %s ---", r.MealName)) {
			t.Fatalf("missing block for %s", r.MealName)
		}
	}
	if !strings.Contains(doc, "Calories: 520 kcal | Protein: 42 g | Fat: 22 g | Carbs: 18 g") {
		t.Fatal("missing nutrient line")
	}
}

func TestDocumentLocationLineConditional(t *testing.T) {
	e, _ := newTestExporter()
	recs := sampleRecords()

	doc := e.Document(recs, ScopeAll)
	if !strings.Contains(doc, "Location: lat 25.033000, lon 121.565400") {
		t.Fatal("missing location line for located record")
	}
	if strings.Count(doc, "Location:") != 1 {
		t.Fatalf("location line should appear once, got %d", strings.Count(doc, "Location:"))
	}
}

func TestDocumentDraftOmitsTime(t *testing.T) {
	e, _ := newTestExporter()
	draft := record.Record{
		MealName:    "Pending Meal",
		Calories:    100,
		Description: "not yet saved",
	}

	doc := e.Document([]record.Record{draft}, ScopeAll)
	if strings.Contains(doc, "Time:") {
		t.Fatal("draft record must not have a time line")
	}
	if !strings.Contains(doc, "Description: not yet saved") {
		t.Fatal("description missing")
	}
}

func TestDocumentSelectedScope(t *testing.T) {
	e, _ := newTestExporter()
	recs := sampleRecords()
	e.Selection.Toggle("r1")
	e.Selection.Toggle("r3")

	doc := e.Document(recs, ScopeSelected)
	if !strings.HasPrefix(doc, "nutrilog diet log - selected (2 records)\n") {
		t.Fatalf("bad header: %q", strings.SplitN(doc, "\n", 2)[0])
	}
	if strings.Contains(doc, "Chicken Salad") {
		t.Fatal("unselected record leaked into export")
	}
}

func TestDocumentSelectedEmptyFallsBackToAll(t *testing.T) {
	e, _ := newTestExporter()
	recs := sampleRecords()

	doc := e.Document(recs, ScopeSelected)
	if !strings.Contains(doc, "(3 records)") {
		t.Fatalf("empty selection should export everything: %q", strings.SplitN(doc, "\n", 2)[0])
	}
}

func TestDocumentEmpty(t *testing.T) {
	e, _ := newTestExporter()
	if doc := e.Document(nil, ScopeAll); doc != "" {
		t.Fatalf("expected empty document, got %q", doc)
	}
}

// ============================================================
// Export
// ============================================================

func TestExportWritesClipboard(t *testing.T) {
	e, writes := newTestExporter()

	doc, err := e.Export(sampleRecords(), ScopeAll)
	if err != nil {
		t.Fatal(err)
	}
	if len(*writes) != 1 || (*writes)[0] != doc {
		t.Fatal("document not written to clipboard")
	}
}

func TestExportNothingInScope(t *testing.T) {
	e, writes := newTestExporter()

	_, err := e.Export(nil, ScopeAll)
	if !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("expected ErrNothingToExport, got %v", err)
	}
	if len(*writes) != 0 {
		t.Fatal("clipboard should be untouched")
	}
}

func TestExportClearsSelectionOnSuccess(t *testing.T) {
	e, _ := newTestExporter()
	e.Selection.Toggle("r1")
	e.Selection.Toggle("r2")

	if _, err := e.Export(sampleRecords(), ScopeSelected); err != nil {
		t.Fatal(err)
	}
	if e.Selection.Len() != 0 {
		t.Fatalf("selection should clear after a successful export, len=%d", e.Selection.Len())
	}
}

func TestExportKeepsSelectionOnFailure(t *testing.T) {
	e, _ := newTestExporter()
	e.writeClipboard = func(string) error { return errors.New("no display") }
	e.Selection.Toggle("r1")

	_, err := e.Export(sampleRecords(), ScopeSelected)
	if !errors.Is(err, ErrExportFailed) {
		t.Fatalf("expected ErrExportFailed, got %v", err)
	}
	if !e.Selection.Has("r1") {
		t.Fatal("selection must survive a failed export")
	}
}

func TestExportAllScopeAlsoClearsSelection(t *testing.T) {
	e, _ := newTestExporter()
	e.Selection.Toggle("r1")
	e.Selection.Toggle("r2")

	if _, err := e.Export(sampleRecords(), ScopeAll); err != nil {
		t.Fatal(err)
	}
	if e.Selection.Len() != 0 {
		t.Fatalf("after a successful export the selection set must be empty, got len=%d", e.Selection.Len())
	}
}

func TestExportDraftIgnoresSelectionForScoping(t *testing.T) {
	e, writes := newTestExporter()
	e.Selection.Toggle("r1")

	draft := record.Record{MealName: "Pending Meal", Calories: 300, Description: "unsaved"}
	doc, err := e.ExportDraft(draft)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(doc, "nutrilog diet log - draft (1 records)\n") {
		t.Fatalf("bad header: %q", strings.SplitN(doc, "\n", 2)[0])
	}
	if !strings.Contains(doc, "--- Pending Meal ---") {
		t.Fatal("draft block missing")
	}
	if strings.Contains(doc, "Time:") {
		t.Fatal("draft export must omit the time line")
	}
	if len(*writes) != 1 {
		t.Fatal("draft not written to clipboard")
	}
	if e.Selection.Len() != 0 {
		t.Fatal("successful draft export should clear the selection like any other copy")
	}
}

// ============================================================
// CSV
// ============================================================

func TestToCSV(t *testing.T) {
	recs := sampleRecords()
	path := filepath.Join(t.TempDir(), "test.csv")

	if err := ToCSV(recs, path); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	// header + 3 data rows
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows (1 header + 3 data), got %d", len(rows))
	}
	if rows[0][1] != "Meal" || rows[0][3] != "Calories" {
		t.Fatalf("bad header: %v", rows[0])
	}

	row := rows[2]
	if row[1] != "Chicken Salad" {
		t.Fatalf("Meal = %q", row[1])
	}
	if row[3] != "520" {
		t.Fatalf("Calories = %q", row[3])
	}
	if row[8] != "25.033000" || row[9] != "121.565400" {
		t.Fatalf("location columns = %q, %q", row[8], row[9])
	}

	// Record without a location leaves the columns empty.
	if rows[1][8] != "" || rows[1][9] != "" {
		t.Fatalf("expected empty location columns, got %q, %q", rows[1][8], rows[1][9])
	}
}

func TestToCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	if err := ToCSV(nil, path); err != nil {
		t.Fatal(err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	r := csv.NewReader(f)
	rows, _ := r.ReadAll()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row (header only), got %d", len(rows))
	}
}

func TestToCSVBadPath(t *testing.T) {
	if err := ToCSV(nil, "/nonexistent/dir/file.csv"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToCSVSpecialCharacters(t *testing.T) {
	recs := []record.Record{
		{
			ID:          "r1",
			MealName:    `Meal "Special"`,
			Description: `notes with "quotes" and, commas`,
			Timestamp:   time.Now(),
		},
	}
	path := filepath.Join(t.TempDir(), "special.csv")

	if err := ToCSV(recs, path); err != nil {
		t.Fatal(err)
	}

	f, _ := os.Open(path)
	defer f.Close()
	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("CSV should be valid even with special chars: %v", err)
	}
	if rows[1][1] != `Meal "Special"` {
		t.Fatalf("meal name mangled: %q", rows[1][1])
	}
	if rows[1][7] != `notes with "quotes" and, commas` {
		t.Fatalf("description mangled: %q", rows[1][7])
	}
}

// ============================================================
// JSON
// ============================================================

func TestToJSON(t *testing.T) {
	recs := sampleRecords()
	path := filepath.Join(t.TempDir(), "test.json")

	if err := ToJSON(recs, path); err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var result jsonExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if result.Count != 3 {
		t.Fatalf("count = %d, want 3", result.Count)
	}
	if len(result.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(result.Records))
	}
	if result.ExportedAt == "" {
		t.Fatal("exported_at should not be empty")
	}

	jr := result.Records[1]
	if jr.MealName != "Chicken Salad" || jr.Calories != 520 {
		t.Fatalf("record mangled: %+v", jr)
	}
	if jr.Lat == nil || *jr.Lat != 25.033 {
		t.Fatal("location lost in json export")
	}
	if result.Records[0].Lat != nil {
		t.Fatal("unlocated record should omit lat")
	}
}

func TestToJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	if err := ToJSON(nil, path); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var result jsonExport
	json.Unmarshal(data, &result)

	if result.Count != 0 {
		t.Fatalf("count = %d, want 0", result.Count)
	}
	if result.Records != nil {
		t.Fatal("records should be nil/null for empty export")
	}
}

func TestToJSONBadPath(t *testing.T) {
	if err := ToJSON(nil, "/nonexistent/dir/file.json"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestToJSONValidTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ts.json")
	ToJSON(sampleRecords(), path)

	data, _ := os.ReadFile(path)
	var result jsonExport
	json.Unmarshal(data, &result)

	if _, err := time.Parse(time.RFC3339, result.ExportedAt); err != nil {
		t.Fatalf("exported_at is not valid RFC3339: %q", result.ExportedAt)
	}
	for _, jr := range result.Records {
		if _, err := time.Parse(time.RFC3339, jr.Timestamp); err != nil {
			t.Fatalf("timestamp is not valid RFC3339: %q", jr.Timestamp)
		}
	}
}
