package models

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event is an immutable audit record of a housing state transition.
type Event struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Kind      EventKind      `gorm:"size:10;not null" json:"kind"`
	Category  EventCategory  `gorm:"size:40;not null" json:"category"`
	Section   EventSection   `gorm:"size:40;not null" json:"section"`
	Old       datatypes.JSON `json:"old"`
	New       datatypes.JSON `json:"new"`
	Conflict  bool           `gorm:"not null;index" json:"conflict"`
	CreatedBy string         `gorm:"size:36;not null" json:"created_by"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

type HousingEvent struct {
	EventId        string `gorm:"primaryKey;size:36" json:"event_id"`
	HousingGeoCode string `gorm:"primaryKey;size:5" json:"housing_geo_code"`
	HousingId      string `gorm:"primaryKey;size:36;index" json:"housing_id"`
}

// Snapshot serializes a housing state for an event. A nil housing yields an empty snapshot.
func Snapshot(h *Housing) (datatypes.JSON, error) {
	if h == nil {
		return nil, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// InsertEvents writes events and their housing links. Housings must already exist.
// Events already recorded under the same id are left as they are.
func InsertEvents(tx *gorm.DB, events []Event, links []HousingEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&events, 500).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&links, 500).Error
}

type ConflictEventRow struct {
	EventId        string    `gorm:"column:event_id" json:"event_id"`
	Name           string    `gorm:"column:name" json:"name"`
	Category       string    `gorm:"column:category" json:"category"`
	HousingGeoCode string    `gorm:"column:housing_geo_code" json:"housing_geo_code"`
	HousingId      string    `gorm:"column:housing_id" json:"housing_id"`
	LocalId        string    `gorm:"column:local_id" json:"local_id"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

// ListConflictEvents returns the conflict events raised since the given time, oldest first.
func ListConflictEvents(ctx context.Context, db *gorm.DB, since time.Time) ([]ConflictEventRow, error) {
	var rows []ConflictEventRow
	err := db.WithContext(ctx).
		Table("events").
		Select("events.id AS event_id, events.name, events.category, he.housing_geo_code, he.housing_id, COALESCE(h.local_id, '') AS local_id, events.created_at").
		Joins("JOIN housing_events he ON he.event_id = events.id").
		Joins("LEFT JOIN housings h ON h.id = he.housing_id").
		Where("events.conflict = ? AND events.created_at >= ?", true, since).
		Order("events.created_at ASC, events.id ASC").
		Scan(&rows).Error
	return rows, err
}
