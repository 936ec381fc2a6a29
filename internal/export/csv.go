package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/sadopc/nutrilog/internal/record"
)

func ToCSV(recs []record.Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	// Header
	if err := w.Write([]string{"ID", "Meal", "Time", "Calories", "Protein (g)", "Fat (g)", "Carbs (g)", "Description", "Lat", "Lon"}); err != nil {
		return err
	}

	for _, r := range recs {
		timeStr := ""
		if !r.Timestamp.IsZero() {
			timeStr = r.Timestamp.Local().Format(time.RFC3339)
		}
		lat, lon := "", ""
		if r.Location != nil {
			lat = fmt.Sprintf("%.6f", r.Location.Lat)
			lon = fmt.Sprintf("%.6f", r.Location.Lon)
		}

		row := []string{
			r.ID,
			r.MealName,
			timeStr,
			fmt.Sprintf("%d", r.Calories),
			fmt.Sprintf("%d", r.Protein),
			fmt.Sprintf("%d", r.Fat),
			fmt.Sprintf("%d", r.Carbs),
			r.Description,
			lat,
			lon,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return w.Error()
}
