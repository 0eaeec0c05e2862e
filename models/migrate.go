package models

import "gorm.io/gorm"

// MigrateTables creates or updates every table the housing jobs read or write.
func MigrateTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Housing{},
		&Owner{},
		&HousingOwner{},
		&Event{},
		&HousingEvent{},
		&Note{},
		&HousingNote{},
		&Campaign{},
		&CampaignHousing{},
		&Group{},
		&GroupHousing{},
		&Modification{},
		&SourceHousing{},
	)
}
