package models

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ownerNamespace = uuid.MustParse("0b8e3f52-5c8a-4a7a-b3a4-7d2e6f1c9a10")

type Owner struct {
	ID         string                      `gorm:"primaryKey;size:36" json:"id"`
	IdPersonne *string                     `gorm:"size:40;uniqueIndex" json:"idpersonne"`
	FullName   string                      `gorm:"size:255;not null" json:"full_name"`
	BirthDate  *time.Time                  `json:"birth_date"`
	RawAddress datatypes.JSONSlice[string] `json:"raw_address"`
	Kind       *string                     `gorm:"size:40" json:"kind"`
	Email      *string                     `gorm:"size:255" json:"email"`
}

func (o Owner) Clone() Owner {
	c := o
	c.RawAddress = slices.Clone(o.RawAddress)
	return c
}

// OwnerIdFor derives the id of an owner known to the external source by its person identifier.
func OwnerIdFor(idPersonne string) string {
	return uuid.NewSHA1(ownerNamespace, []byte(idPersonne)).String()
}

// HousingOwner links an owner to a housing. Rank 1 is the primary owner; co-owners follow.
type HousingOwner struct {
	OwnerId        string `gorm:"primaryKey;size:36" json:"owner_id"`
	HousingGeoCode string `gorm:"primaryKey;size:5" json:"housing_geo_code"`
	HousingId      string `gorm:"primaryKey;size:36;index" json:"housing_id"`
	Rank           int    `gorm:"column:owner_rank;not null" json:"rank"`
}

// LoadHousingOwners fills Owner and CoOwners on each housing from the housing_owners links.
func LoadHousingOwners(ctx context.Context, db *gorm.DB, housings []*Housing) error {
	if len(housings) == 0 {
		return nil
	}
	byId := make(map[string]*Housing, len(housings))
	ids := make([]string, 0, len(housings))
	for _, h := range housings {
		byId[h.ID] = h
		ids = append(ids, h.ID)
	}

	var links []HousingOwner
	if err := db.WithContext(ctx).
		Where("housing_id IN ?", ids).
		Order("housing_id ASC, owner_rank ASC").
		Find(&links).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}

	ownerIds := make([]string, 0, len(links))
	for _, l := range links {
		ownerIds = append(ownerIds, l.OwnerId)
	}
	var owners []Owner
	if err := db.WithContext(ctx).Where("id IN ?", ownerIds).Find(&owners).Error; err != nil {
		return err
	}
	ownerById := make(map[string]Owner, len(owners))
	for _, o := range owners {
		ownerById[o.ID] = o
	}

	for _, l := range links {
		h, ok := byId[l.HousingId]
		if !ok {
			continue
		}
		o, ok := ownerById[l.OwnerId]
		if !ok {
			continue
		}
		if l.Rank == 1 {
			owner := o
			h.Owner = &owner
		} else {
			h.CoOwners = append(h.CoOwners, o)
		}
	}
	return nil
}

// sourceOwnerColumns are the owner columns the external source is authoritative for. Other
// columns, such as email, are entered by operators and survive an upsert.
var sourceOwnerColumns = []string{"full_name", "birth_date", "raw_address", "kind"}

// replaceHousingOwners upserts the owners carried by the housings and rewrites their links.
func replaceHousingOwners(tx *gorm.DB, housings []Housing) error {
	storedIds, err := storedOwnerIds(tx, housings)
	if err != nil {
		return err
	}

	var owners []Owner
	var links []HousingOwner
	ids := make([]string, 0, len(housings))
	seen := make(map[string]struct{})
	for _, h := range housings {
		ids = append(ids, h.ID)
		rank := 1
		linked := make(map[string]struct{})
		add := func(o Owner, rank int) {
			if o.IdPersonne != nil {
				if id, ok := storedIds[*o.IdPersonne]; ok {
					o.ID = id
				}
			}
			if _, ok := linked[o.ID]; ok {
				return
			}
			linked[o.ID] = struct{}{}
			if _, ok := seen[o.ID]; !ok {
				seen[o.ID] = struct{}{}
				owners = append(owners, o)
			}
			links = append(links, HousingOwner{
				OwnerId:        o.ID,
				HousingGeoCode: h.GeoCode,
				HousingId:      h.ID,
				Rank:           rank,
			})
		}
		if h.Owner != nil {
			add(*h.Owner, rank)
		}
		for _, co := range h.CoOwners {
			rank++
			add(co, rank)
		}
	}

	if len(owners) > 0 {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(sourceOwnerColumns),
		}).Create(&owners).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("housing_id IN ?", ids).Delete(&HousingOwner{}).Error; err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	return tx.Create(&links).Error
}

// storedOwnerIds maps each person identifier carried by the housings to the id of the owner row
// already holding it, whatever id that row was created with.
func storedOwnerIds(tx *gorm.DB, housings []Housing) (map[string]string, error) {
	var idPersonnes []string
	for _, h := range housings {
		if h.Owner != nil && h.Owner.IdPersonne != nil {
			idPersonnes = append(idPersonnes, *h.Owner.IdPersonne)
		}
		for _, co := range h.CoOwners {
			if co.IdPersonne != nil {
				idPersonnes = append(idPersonnes, *co.IdPersonne)
			}
		}
	}
	storedIds := make(map[string]string, len(idPersonnes))
	if len(idPersonnes) == 0 {
		return storedIds, nil
	}
	slices.Sort(idPersonnes)
	var stored []Owner
	if err := tx.Select("id", "id_personne").
		Where("id_personne IN ?", slices.Compact(idPersonnes)).
		Find(&stored).Error; err != nil {
		return nil, err
	}
	for _, o := range stored {
		if o.IdPersonne != nil {
			storedIds[*o.IdPersonne] = o.ID
		}
	}
	return storedIds, nil
}
