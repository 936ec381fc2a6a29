package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/nutrilog/internal/record"
)

// ErrPersistFailed wraps any failure to append a record. Appends are
// all-or-nothing: either the full record lands with a server timestamp
// or nothing is stored.
var ErrPersistFailed = errors.New("store: append failed")

// timeLayout keeps a fixed-width fraction so lexicographic ordering of the
// stored text matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Append persists a draft under userID, assigning its id and server
// timestamp, and returns the persisted record. Subscribers of userID
// receive a fresh snapshot.
func (s *Store) Append(userID string, draft record.Record) (record.Record, error) {
	if userID == "" {
		return record.Record{}, fmt.Errorf("%w: empty user id", ErrPersistFailed)
	}
	if !draft.Draft() {
		return record.Record{}, fmt.Errorf("%w: record is already persisted", ErrPersistFailed)
	}

	persisted := draft
	persisted.ID = uuid.NewString()
	persisted.Timestamp = time.Now().UTC()

	var lat, lon any
	if persisted.Location != nil {
		lat = persisted.Location.Lat
		lon = persisted.Location.Lon
	}

	_, err := s.db.Exec(
		`INSERT INTO meal_logs (id, user_id, meal_name, calories, protein, fat, carbs, description, lat, lon, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		persisted.ID, userID, persisted.MealName,
		persisted.Calories, persisted.Protein, persisted.Fat, persisted.Carbs,
		persisted.Description, lat, lon,
		persisted.Timestamp.Format(timeLayout),
	)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	s.notify(userID)
	return persisted, nil
}

// ListRecords returns all of a user's records ordered by recency.
func (s *Store) ListRecords(userID string) ([]record.Record, error) {
	rows, err := s.db.Query(
		`SELECT id, meal_name, calories, protein, fat, carbs, description, lat, lon, timestamp
		 FROM meal_logs WHERE user_id = ? ORDER BY timestamp DESC, id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var recs []record.Record
	for rows.Next() {
		var r record.Record
		var ts string
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.MealName, &r.Calories, &r.Protein, &r.Fat, &r.Carbs,
			&r.Description, &lat, &lon, &ts); err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			r.Location = &record.Location{Lat: lat.Float64, Lon: lon.Float64}
		}
		r.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
