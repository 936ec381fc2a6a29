package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/nutrilog/internal/record"
)

type jsonExport struct {
	ExportedAt string       `json:"exported_at"`
	Count      int          `json:"count"`
	Records    []jsonRecord `json:"records"`
}

type jsonRecord struct {
	ID          string   `json:"id"`
	MealName    string   `json:"meal_name"`
	Timestamp   string   `json:"timestamp,omitempty"`
	Calories    int      `json:"calories"`
	Protein     int      `json:"protein"`
	Fat         int      `json:"fat"`
	Carbs       int      `json:"carbs"`
	Description string   `json:"description,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

func ToJSON(recs []record.Record, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(recs),
	}

	for _, r := range recs {
		timeStr := ""
		if !r.Timestamp.IsZero() {
			timeStr = r.Timestamp.Local().Format(time.RFC3339)
		}
		jr := jsonRecord{
			ID:          r.ID,
			MealName:    r.MealName,
			Timestamp:   timeStr,
			Calories:    r.Calories,
			Protein:     r.Protein,
			Fat:         r.Fat,
			Carbs:       r.Carbs,
			Description: r.Description,
		}
		if r.Location != nil {
			lat, lon := r.Location.Lat, r.Location.Lon
			jr.Lat, jr.Lon = &lat, &lon
		}
		export.Records = append(export.Records, jr)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
