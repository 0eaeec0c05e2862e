package workflow

import (
	"io"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/housing_backend/config"
	"bitbucket.org/mmdatafocus/housing_backend/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens a private in-memory store migrated with every housing table.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), config.InitConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTables(db))
	return db
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seedActor(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{ID: "00000000-0000-0000-0000-000000000001", Email: "system@housing.test"}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func newHousing(geoCode, localId string, status models.HousingStatus) models.Housing {
	return models.Housing{
		ID:          models.HousingIdFor(models.NaturalKey{GeoCode: geoCode, LocalId: localId}),
		GeoCode:     geoCode,
		LocalId:     localId,
		Invariant:   "inv-" + localId,
		HousingKind: "APPART",
		RoomsCount:  intPtr(2),
		Occupancy:   models.OccupancyVacant,
		Status:      status,
	}
}

func newSource(year, geoCode, localId string) models.SourceHousing {
	return models.SourceHousing{
		DataFileYear: year,
		GeoCode:      geoCode,
		LocalId:      localId,
		Invariant:    "inv-" + localId,
		HousingKind:  "MAISON",
		RoomsCount:   intPtr(5),
		DataYears:    datatypes.JSONSlice[int]{2023},
	}
}

func withOwner(s models.SourceHousing, idPersonne, fullName string) models.SourceHousing {
	s.Owner = datatypes.NewJSONType(models.SourceOwner{IdPersonne: idPersonne, FullName: fullName})
	return s
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}
