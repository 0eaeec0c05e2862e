package workflow

import (
	"context"
	"iter"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"gorm.io/gorm"
)

// DuplicateGroup holds the housings sharing a base local id. The canonical housing, when it exists,
// comes first; decorated housings follow in disambiguator order.
type DuplicateGroup struct {
	Base         models.NaturalKey
	Housings     []models.Housing
	HasCanonical bool
}

// StreamDuplicateGroups yields one group per base local id found among decorated housings.
// Groups are read lazily: the next group is only looked up once the consumer is done with the
// previous one, so merges committed in between are visible.
func StreamDuplicateGroups(ctx context.Context, db *gorm.DB, filter models.HousingFilter, pageSize int) iter.Seq2[DuplicateGroup, error] {
	filter.DecoratedOnly = true
	return func(yield func(DuplicateGroup, error) bool) {
		// Bases carry no separator, so the decorated ids of one base are contiguous in key order.
		var last *models.NaturalKey
		for housing, err := range models.StreamHousings(ctx, db, filter, pageSize) {
			if err != nil {
				yield(DuplicateGroup{}, err)
				return
			}
			base, ok := models.SplitDecoratedLocalId(housing.LocalId)
			if !ok {
				continue
			}
			key := models.NaturalKey{GeoCode: housing.GeoCode, LocalId: base}
			if last != nil && *last == key {
				continue
			}
			last = &key

			group, err := loadDuplicateGroup(ctx, db, key)
			if err != nil {
				yield(DuplicateGroup{}, err)
				return
			}
			if len(group.Housings) == 0 {
				continue
			}
			if !yield(group, nil) {
				return
			}
		}
	}
}

func loadDuplicateGroup(ctx context.Context, db *gorm.DB, key models.NaturalKey) (DuplicateGroup, error) {
	group := DuplicateGroup{Base: key}
	canonical, err := models.FindHousing(ctx, db, key)
	if err != nil {
		return group, err
	}
	decorated, err := models.ListDecoratedHousings(ctx, db, key)
	if err != nil {
		return group, err
	}
	if canonical != nil {
		group.HasCanonical = true
		group.Housings = append(group.Housings, *canonical)
	}
	group.Housings = append(group.Housings, decorated...)
	return group, nil
}
