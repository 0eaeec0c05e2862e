package models

import "time"

type Note struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedBy string    `gorm:"size:36;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type HousingNote struct {
	NoteId         string `gorm:"primaryKey;size:36" json:"note_id"`
	HousingGeoCode string `gorm:"primaryKey;size:5" json:"housing_geo_code"`
	HousingId      string `gorm:"primaryKey;size:36;index" json:"housing_id"`
}

type Campaign struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type CampaignHousing struct {
	CampaignId     string `gorm:"primaryKey;size:36" json:"campaign_id"`
	HousingGeoCode string `gorm:"primaryKey;size:5" json:"housing_geo_code"`
	HousingId      string `gorm:"primaryKey;size:36;index" json:"housing_id"`
}

func (CampaignHousing) TableName() string {
	return "campaigns_housing"
}

type Group struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type GroupHousing struct {
	GroupId        string `gorm:"primaryKey;size:36" json:"group_id"`
	HousingGeoCode string `gorm:"primaryKey;size:5" json:"housing_geo_code"`
	HousingId      string `gorm:"primaryKey;size:36;index" json:"housing_id"`
}

func (GroupHousing) TableName() string {
	return "groups_housing"
}

// HousingReferenceTable describes a table whose rows point at a housing by (geo code, id).
type HousingReferenceTable struct {
	Table      string
	ForeignKey string
}

// HousingReferenceTables lists every table referencing a housing that must follow it on merge.
var HousingReferenceTables = []HousingReferenceTable{
	{Table: "campaigns_housing", ForeignKey: "campaign_id"},
	{Table: "housing_events", ForeignKey: "event_id"},
	{Table: "housing_notes", ForeignKey: "note_id"},
	{Table: "groups_housing", ForeignKey: "group_id"},
}
