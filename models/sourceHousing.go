package models

import (
	"context"
	"errors"
	"iter"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SourceOwner struct {
	IdPersonne string     `json:"idpersonne" validate:"required"`
	FullName   string     `json:"full_name" validate:"required"`
	BirthDate  *time.Time `json:"birth_date"`
	RawAddress []string   `json:"raw_address"`
	Kind       *string    `json:"kind"`
}

func (o SourceOwner) ToOwner() Owner {
	idPersonne := o.IdPersonne
	return Owner{
		ID:         OwnerIdFor(o.IdPersonne),
		IdPersonne: &idPersonne,
		FullName:   o.FullName,
		BirthDate:  o.BirthDate,
		RawAddress: slices.Clone(o.RawAddress),
		Kind:       o.Kind,
	}
}

// SourceHousing is one line of a yearly external snapshot, staged before reconciliation.
type SourceHousing struct {
	DataFileYear       string                           `gorm:"primaryKey;size:20" json:"data_file_year" validate:"required"`
	GeoCode            string                           `gorm:"primaryKey;size:5" json:"geo_code" validate:"required,len=5"`
	LocalId            string                           `gorm:"primaryKey;size:40" json:"local_id" validate:"required,max=40"`
	Invariant          string                           `gorm:"size:40" json:"invariant" validate:"required"`
	BuildingId         *string                          `gorm:"size:40" json:"building_id"`
	CadastralReference *string                          `gorm:"size:40" json:"cadastral_reference"`
	RawAddress         datatypes.JSONSlice[string]      `json:"raw_address"`
	Longitude          *float64                         `json:"longitude" validate:"omitempty,longitude"`
	Latitude           *float64                         `json:"latitude" validate:"omitempty,latitude"`
	BuildingYear       *int                             `json:"building_year"`
	HousingKind        string                           `gorm:"size:20" json:"housing_kind" validate:"required"`
	RoomsCount         *int                             `json:"rooms_count" validate:"omitempty,min=0"`
	LivingArea         *decimal.Decimal                 `gorm:"type:decimal(10,2)" json:"living_area"`
	Uncomfortable      *bool                            `json:"uncomfortable"`
	VacancyStartYear   *int                             `json:"vacancy_start_year"`
	TaxedFlag          *bool                            `json:"taxed"`
	EnergyConsumption  *string                          `gorm:"size:1" json:"energy_consumption" validate:"omitempty,oneof=A B C D E F G"`
	DataYears          datatypes.JSONSlice[int]         `json:"data_years"`
	MutationDate       *time.Time                       `json:"mutation_date"`
	Owner              datatypes.JSONType[SourceOwner]  `json:"owner"`
	CoOwners           datatypes.JSONSlice[SourceOwner] `json:"co_owners"`
}

func (s SourceHousing) Key() NaturalKey {
	return NaturalKey{GeoCode: s.GeoCode, LocalId: s.LocalId}
}

// FindSourceHousing returns the snapshot of the natural key in the given data file, or nil.
func FindSourceHousing(ctx context.Context, db *gorm.DB, dataFileYear string, key NaturalKey) (*SourceHousing, error) {
	var source SourceHousing
	err := db.WithContext(ctx).
		Where("data_file_year = ? AND geo_code = ? AND local_id = ?", dataFileYear, key.GeoCode, key.LocalId).
		First(&source).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func ListSourceHousingsAfter(ctx context.Context, db *gorm.DB, dataFileYear string, after *NaturalKey, limit int) ([]SourceHousing, error) {
	q := db.WithContext(ctx).Where("data_file_year = ?", dataFileYear)
	if after != nil {
		q = q.Where("geo_code > ? OR (geo_code = ? AND local_id > ?)", after.GeoCode, after.GeoCode, after.LocalId)
	}
	var sources []SourceHousing
	err := q.Order("geo_code ASC, local_id ASC").Limit(limit).Find(&sources).Error
	return sources, err
}

// StreamSourceHousings pages through a data file in natural key order.
func StreamSourceHousings(ctx context.Context, db *gorm.DB, dataFileYear string, pageSize int) iter.Seq2[SourceHousing, error] {
	return streamByKey(pageSize, func(after *SourceHousing, limit int) ([]SourceHousing, error) {
		var key *NaturalKey
		if after != nil {
			k := after.Key()
			key = &k
		}
		return ListSourceHousingsAfter(ctx, db, dataFileYear, key, limit)
	})
}

func CountSourceHousings(ctx context.Context, db *gorm.DB, dataFileYear string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&SourceHousing{}).Where("data_file_year = ?", dataFileYear).Count(&count).Error
	return count, err
}

// UpsertSourceHousings stages snapshot lines, replacing lines already staged for the same key.
func UpsertSourceHousings(tx *gorm.DB, sources []SourceHousing) error {
	if len(sources) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "data_file_year"}, {Name: "geo_code"}, {Name: "local_id"}},
		UpdateAll: true,
	}).Create(&sources).Error
}
