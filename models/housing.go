package models

import (
	"cmp"
	"context"
	"errors"
	"iter"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocalIdSeparator joins a base local id and its disambiguator in a decorated local id.
const LocalIdSeparator = "-"

// SubStatusExitedVacancy is the sub-status given to a completed housing that left the vacancy file.
const SubStatusExitedVacancy = "exited vacancy"

var decoratedLocalIdRegexp = regexp.MustCompile(`^([^` + LocalIdSeparator + `]+)` + LocalIdSeparator + `([0-9]+)$`)

// housingNamespace seeds deterministic housing ids so the same natural key always yields the same id.
var housingNamespace = uuid.MustParse("5d2f7a6c-2a61-4f4e-9d0e-2a4f0b3b1c7e")

type NaturalKey struct {
	GeoCode string `json:"geo_code"`
	LocalId string `json:"local_id"`
}

func (k NaturalKey) Less(o NaturalKey) bool {
	if k.GeoCode != o.GeoCode {
		return k.GeoCode < o.GeoCode
	}
	return k.LocalId < o.LocalId
}

type Housing struct {
	ID                 string                      `gorm:"primaryKey;size:36" json:"id"`
	GeoCode            string                      `gorm:"size:5;not null;uniqueIndex:idx_housings_natural_key" json:"geo_code"`
	LocalId            string                      `gorm:"size:40;not null;uniqueIndex:idx_housings_natural_key" json:"local_id"`
	Invariant          string                      `gorm:"size:40" json:"invariant"`
	BuildingId         *string                     `gorm:"size:40" json:"building_id"`
	CadastralReference *string                     `gorm:"size:40" json:"cadastral_reference"`
	RawAddress         datatypes.JSONSlice[string] `json:"raw_address"`
	Longitude          *float64                    `json:"longitude"`
	Latitude           *float64                    `json:"latitude"`
	BuildingYear       *int                        `json:"building_year"`
	HousingKind        string                      `gorm:"size:20" json:"housing_kind"`
	RoomsCount         *int                        `json:"rooms_count"`
	LivingArea         *decimal.Decimal            `gorm:"type:decimal(10,2)" json:"living_area"`
	Uncomfortable      *bool                       `json:"uncomfortable"`
	VacancyStartYear   *int                        `json:"vacancy_start_year"`
	TaxedFlag          *bool                       `json:"taxed"`
	EnergyConsumption  *string                     `gorm:"size:1" json:"energy_consumption"`
	Occupancy          OccupancyKind               `gorm:"size:10;not null" json:"occupancy"`
	OccupancyIntended  *OccupancyKind              `gorm:"size:10" json:"occupancy_intended"`
	Status             HousingStatus               `gorm:"not null" json:"status"`
	SubStatus          *string                     `gorm:"size:100" json:"sub_status"`
	Precisions         datatypes.JSONSlice[string] `json:"precisions"`
	VacancyReasons     datatypes.JSONSlice[string] `json:"vacancy_reasons"`
	Source             *string                     `gorm:"size:40" json:"source"`
	DataYears          datatypes.JSONSlice[int]    `json:"data_years"`
	DataFileYears      datatypes.JSONSlice[string] `json:"data_file_years"`
	MutationDate       *time.Time                  `json:"mutation_date"`

	Owner    *Owner  `gorm:"-" json:"owner,omitempty"`
	CoOwners []Owner `gorm:"-" json:"co_owners,omitempty"`
}

func (h Housing) Key() NaturalKey {
	return NaturalKey{GeoCode: h.GeoCode, LocalId: h.LocalId}
}

// Clone returns a deep copy so callers can derive a new state without touching the original.
func (h Housing) Clone() Housing {
	c := h
	c.RawAddress = slices.Clone(h.RawAddress)
	c.Precisions = slices.Clone(h.Precisions)
	c.VacancyReasons = slices.Clone(h.VacancyReasons)
	c.DataYears = slices.Clone(h.DataYears)
	c.DataFileYears = slices.Clone(h.DataFileYears)
	if h.Owner != nil {
		o := h.Owner.Clone()
		c.Owner = &o
	}
	if h.CoOwners != nil {
		c.CoOwners = make([]Owner, len(h.CoOwners))
		for i, o := range h.CoOwners {
			c.CoOwners[i] = o.Clone()
		}
	}
	return c
}

// HousingIdFor derives the id of a housing from its natural key.
func HousingIdFor(key NaturalKey) string {
	return uuid.NewSHA1(housingNamespace, []byte(key.GeoCode+"|"+key.LocalId)).String()
}

// SplitDecoratedLocalId returns the base of a decorated local id such as "123456789012-2".
func SplitDecoratedLocalId(localId string) (base string, ok bool) {
	m := decoratedLocalIdRegexp.FindStringSubmatch(localId)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func IsDecoratedLocalId(localId string) bool {
	_, ok := SplitDecoratedLocalId(localId)
	return ok
}

type HousingFilter struct {
	GeoCodes []string
	// DecoratedOnly keeps housings whose local id carries a disambiguator suffix.
	DecoratedOnly bool
	// DataFileYearPrefix keeps housings that carry at least one tag with this prefix.
	DataFileYearPrefix string
}

func (f HousingFilter) apply(db *gorm.DB) *gorm.DB {
	if len(f.GeoCodes) > 0 {
		db = db.Where("geo_code IN ?", f.GeoCodes)
	}
	if f.DecoratedOnly {
		db = db.Where("local_id LIKE ?", "%"+LocalIdSeparator+"%")
	}
	if f.DataFileYearPrefix != "" {
		db = db.Where(jsonText(db, "data_file_years")+" LIKE ?", "%\""+f.DataFileYearPrefix+"%")
	}
	return db
}

// FindHousing returns the housing for the natural key, or nil when there is none.
func FindHousing(ctx context.Context, db *gorm.DB, key NaturalKey) (*Housing, error) {
	var housing Housing
	err := db.WithContext(ctx).
		Where("geo_code = ? AND local_id = ?", key.GeoCode, key.LocalId).
		First(&housing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := LoadHousingOwners(ctx, db, []*Housing{&housing}); err != nil {
		return nil, err
	}
	return &housing, nil
}

// ListHousingsAfter returns up to limit housings strictly after the given key, in natural key order.
func ListHousingsAfter(ctx context.Context, db *gorm.DB, filter HousingFilter, after *NaturalKey, limit int) ([]Housing, error) {
	q := filter.apply(db.WithContext(ctx).Model(&Housing{}))
	if after != nil {
		q = q.Where("geo_code > ? OR (geo_code = ? AND local_id > ?)", after.GeoCode, after.GeoCode, after.LocalId)
	}
	var housings []Housing
	if err := q.Order("geo_code ASC, local_id ASC").Limit(limit).Find(&housings).Error; err != nil {
		return nil, err
	}
	refs := make([]*Housing, len(housings))
	for i := range housings {
		refs[i] = &housings[i]
	}
	if err := LoadHousingOwners(ctx, db, refs); err != nil {
		return nil, err
	}
	return housings, nil
}

// StreamHousings pages through the housings matching the filter in natural key order.
func StreamHousings(ctx context.Context, db *gorm.DB, filter HousingFilter, pageSize int) iter.Seq2[Housing, error] {
	return streamByKey(pageSize, func(after *Housing, limit int) ([]Housing, error) {
		var key *NaturalKey
		if after != nil {
			k := after.Key()
			key = &k
		}
		return ListHousingsAfter(ctx, db, filter, key, limit)
	})
}

// UpsertHousings writes the housings keyed by natural key and replaces their owner links.
func UpsertHousings(tx *gorm.DB, housings []Housing) error {
	if len(housings) == 0 {
		return nil
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "geo_code"}, {Name: "local_id"}},
		UpdateAll: true,
	}).Create(&housings).Error; err != nil {
		return err
	}
	return replaceHousingOwners(tx, housings)
}

func DeleteHousings(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("housing_id IN ?", ids).Delete(&HousingOwner{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&Housing{}).Error
}

func UpdateHousingLocalId(tx *gorm.DB, id string, localId string) error {
	return tx.Model(&Housing{}).Where("id = ?", id).Update("local_id", localId).Error
}

func CountHousings(ctx context.Context, db *gorm.DB, filter HousingFilter) (int64, error) {
	var count int64
	err := filter.apply(db.WithContext(ctx).Model(&Housing{})).Count(&count).Error
	return count, err
}

// ListDecoratedHousings returns the housings of geoCode whose local id decorates base, ordered by
// their numeric disambiguator.
func ListDecoratedHousings(ctx context.Context, db *gorm.DB, key NaturalKey) ([]Housing, error) {
	var candidates []Housing
	if err := db.WithContext(ctx).
		Where("geo_code = ? AND local_id LIKE ?", key.GeoCode, key.LocalId+LocalIdSeparator+"%").
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	housings := candidates[:0]
	for _, h := range candidates {
		if base, ok := SplitDecoratedLocalId(h.LocalId); ok && base == key.LocalId {
			housings = append(housings, h)
		}
	}
	slices.SortStableFunc(housings, func(a, b Housing) int {
		return cmp.Compare(decoratorOf(a.LocalId), decoratorOf(b.LocalId))
	})

	refs := make([]*Housing, len(housings))
	for i := range housings {
		refs[i] = &housings[i]
	}
	if err := LoadHousingOwners(ctx, db, refs); err != nil {
		return nil, err
	}
	return housings, nil
}

func decoratorOf(localId string) int {
	m := decoratedLocalIdRegexp.FindStringSubmatch(localId)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[2])
	return n
}
