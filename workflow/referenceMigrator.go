package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"gorm.io/gorm"
)

type referenceRow struct {
	HousingId string
	ForeignId string
}

// ReplaceDuplicates moves every reference of the duplicates onto the merged housing, writes the merged
// housing, deletes the duplicates and strips the decoration from the merged local id. It runs in one
// transaction: a failure leaves the group as it was.
func ReplaceDuplicates(ctx context.Context, db *gorm.DB, merged models.Housing, duplicates []models.Housing) error {
	duplicateIds := make([]string, 0, len(duplicates))
	for _, d := range duplicates {
		if d.ID != merged.ID {
			duplicateIds = append(duplicateIds, d.ID)
		}
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range models.HousingReferenceTables {
			if err := migrateReferences(tx, table, merged, duplicateIds); err != nil {
				return fmt.Errorf("migrate %s: %w", table.Table, err)
			}
		}
		if err := models.UpsertHousings(tx, []models.Housing{merged}); err != nil {
			return fmt.Errorf("upsert merged housing: %w", err)
		}
		if err := models.DeleteHousings(tx, duplicateIds); err != nil {
			return fmt.Errorf("delete duplicates: %w", err)
		}
		if base, ok := models.SplitDecoratedLocalId(merged.LocalId); ok {
			if err := models.UpdateHousingLocalId(tx, merged.ID, base); err != nil {
				return fmt.Errorf("normalize local id: %w", err)
			}
		}
		return nil
	})
}

// migrateReferences re-points the rows of one reference table from the duplicates to the target.
// A row whose foreign key the target already holds is dropped instead of moved.
func migrateReferences(tx *gorm.DB, table models.HousingReferenceTable, target models.Housing, duplicateIds []string) error {
	if len(duplicateIds) == 0 {
		return nil
	}

	var existing []string
	if err := tx.Table(table.Table).
		Where("housing_id = ?", target.ID).
		Pluck(table.ForeignKey, &existing).Error; err != nil {
		return err
	}
	held := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		held[id] = struct{}{}
	}

	var rows []referenceRow
	if err := tx.Table(table.Table).
		Select("housing_id, "+table.ForeignKey+" AS foreign_id").
		Where("housing_id IN ?", duplicateIds).
		Order("housing_id ASC, " + table.ForeignKey + " ASC").
		Scan(&rows).Error; err != nil {
		return err
	}

	moves := make(map[string][]string)
	var order []string
	for _, row := range rows {
		if _, ok := held[row.ForeignId]; ok {
			continue
		}
		held[row.ForeignId] = struct{}{}
		if _, ok := moves[row.HousingId]; !ok {
			order = append(order, row.HousingId)
		}
		moves[row.HousingId] = append(moves[row.HousingId], row.ForeignId)
	}

	for _, housingId := range order {
		err := tx.Exec(
			"UPDATE "+table.Table+" SET housing_geo_code = ?, housing_id = ? WHERE housing_id = ? AND "+table.ForeignKey+" IN ?",
			target.GeoCode, target.ID, housingId, moves[housingId],
		).Error
		if err != nil {
			return err
		}
	}

	return tx.Exec("DELETE FROM "+table.Table+" WHERE housing_id IN ?", duplicateIds).Error
}
