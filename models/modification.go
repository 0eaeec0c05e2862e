package models

import (
	"context"
	"iter"
	"time"

	"gorm.io/gorm"
)

// Modification is a legacy marker left when someone changed housing or owner data by hand.
type Modification struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	HousingId string           `gorm:"size:36;not null;index" json:"housing_id"`
	Kind      ModificationKind `gorm:"size:40;not null" json:"kind"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func ListModificationsAfter(ctx context.Context, db *gorm.DB, housingId string, afterId string, limit int) ([]Modification, error) {
	q := db.WithContext(ctx).Where("housing_id = ?", housingId)
	if afterId != "" {
		q = q.Where("id > ?", afterId)
	}
	var modifications []Modification
	err := q.Order("id ASC").Limit(limit).Find(&modifications).Error
	return modifications, err
}

// StreamModifications pages through the markers recorded against a housing.
func StreamModifications(ctx context.Context, db *gorm.DB, housingId string, pageSize int) iter.Seq2[Modification, error] {
	return streamByKey(pageSize, func(after *Modification, limit int) ([]Modification, error) {
		afterId := ""
		if after != nil {
			afterId = after.ID
		}
		return ListModificationsAfter(ctx, db, housingId, afterId, limit)
	})
}
