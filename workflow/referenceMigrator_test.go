package workflow

import (
	"context"
	"testing"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testGeoCode = "75056"

func seedHousings(t *testing.T, db *gorm.DB, housings ...models.Housing) {
	t.Helper()
	require.NoError(t, models.UpsertHousings(db, housings))
}

func linkCampaigns(t *testing.T, db *gorm.DB, h models.Housing, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&models.CampaignHousing{CampaignId: id, HousingGeoCode: h.GeoCode, HousingId: h.ID}).Error)
	}
}

func linkEvents(t *testing.T, db *gorm.DB, h models.Housing, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&models.HousingEvent{EventId: id, HousingGeoCode: h.GeoCode, HousingId: h.ID}).Error)
	}
}

func linkNotes(t *testing.T, db *gorm.DB, h models.Housing, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&models.HousingNote{NoteId: id, HousingGeoCode: h.GeoCode, HousingId: h.ID}).Error)
	}
}

func linkGroups(t *testing.T, db *gorm.DB, h models.Housing, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.Create(&models.GroupHousing{GroupId: id, HousingGeoCode: h.GeoCode, HousingId: h.ID}).Error)
	}
}

func referenceCounts(t *testing.T, db *gorm.DB, housingId string) map[string]int64 {
	t.Helper()
	counts := make(map[string]int64)
	for _, table := range models.HousingReferenceTables {
		var n int64
		require.NoError(t, db.Table(table.Table).Where("housing_id = ?", housingId).Count(&n).Error)
		counts[table.Table] = n
	}
	return counts
}

func TestReplaceDuplicates_ConservesReferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	canonical := newHousing(testGeoCode, "123456789012", models.HousingStatusWaiting)
	first := newHousing(testGeoCode, "123456789012-1", models.HousingStatusWaiting)
	second := newHousing(testGeoCode, "123456789012-2", models.HousingStatusWaiting)
	seedHousings(t, db, canonical, first, second)

	linkCampaigns(t, db, canonical, "c1")
	linkCampaigns(t, db, first, "c1", "c2")
	linkCampaigns(t, db, second, "c2", "c3")
	linkEvents(t, db, first, "e1")
	linkEvents(t, db, second, "e1", "e2")
	linkNotes(t, db, first, "n1")
	linkNotes(t, db, second, "n2")
	linkGroups(t, db, canonical, "g1")
	linkGroups(t, db, second, "g1")

	merged := MergeHousings([]models.Housing{canonical, first, second})
	require.NoError(t, ReplaceDuplicates(ctx, db, merged, []models.Housing{first, second}))

	assert.Equal(t, map[string]int64{
		"campaigns_housing": 3,
		"housing_events":    2,
		"housing_notes":     2,
		"groups_housing":    1,
	}, referenceCounts(t, db, canonical.ID))
	for _, d := range []models.Housing{first, second} {
		for table, n := range referenceCounts(t, db, d.ID) {
			assert.Zerof(t, n, "%s still references %s", table, d.LocalId)
		}
	}

	var housings []models.Housing
	require.NoError(t, db.Find(&housings).Error)
	require.Len(t, housings, 1)
	assert.Equal(t, canonical.ID, housings[0].ID)
	assert.Equal(t, "123456789012", housings[0].LocalId)
}

func TestReplaceDuplicates_WithoutCanonicalStripsDecoration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := newHousing(testGeoCode, "123456789012-1", models.HousingStatusWaiting)
	second := newHousing(testGeoCode, "123456789012-2", models.HousingStatusCompleted)
	second.DataYears = []int{2023}
	seedHousings(t, db, first, second)
	linkNotes(t, db, second, "n1")

	merged := MergeHousings([]models.Housing{first, second})
	require.NoError(t, ReplaceDuplicates(ctx, db, merged, []models.Housing{second}))

	stored, err := models.FindHousing(ctx, db, models.NaturalKey{GeoCode: testGeoCode, LocalId: "123456789012"})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, models.HousingStatusCompleted, stored.Status)
	assert.EqualValues(t, 1, referenceCounts(t, db, first.ID)["housing_notes"])
}

func TestReplaceDuplicates_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	canonical := newHousing(testGeoCode, "123456789012", models.HousingStatusWaiting)
	duplicate := newHousing(testGeoCode, "123456789012-1", models.HousingStatusWaiting)
	seedHousings(t, db, canonical, duplicate)
	linkCampaigns(t, db, duplicate, "c1")

	require.NoError(t, ReplaceDuplicates(ctx, db, MergeHousings([]models.Housing{canonical, duplicate}), []models.Housing{duplicate}))
	once, err := models.FindHousing(ctx, db, canonical.Key())
	require.NoError(t, err)
	countsOnce := referenceCounts(t, db, canonical.ID)

	require.NoError(t, ReplaceDuplicates(ctx, db, MergeHousings([]models.Housing{*once}), nil))
	twice, err := models.FindHousing(ctx, db, canonical.Key())
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, countsOnce, referenceCounts(t, db, canonical.ID))
}

func TestReplaceDuplicates_RollsBackOnFailure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	canonical := newHousing(testGeoCode, "123456789012", models.HousingStatusWaiting)
	duplicate := newHousing(testGeoCode, "123456789012-1", models.HousingStatusWaiting)
	seedHousings(t, db, canonical, duplicate)
	linkCampaigns(t, db, duplicate, "c1")
	require.NoError(t, db.Exec("DROP TABLE groups_housing").Error)

	err := ReplaceDuplicates(ctx, db, MergeHousings([]models.Housing{canonical, duplicate}), []models.Housing{duplicate})
	require.Error(t, err)

	assert.EqualValues(t, 1, countWhere(t, db, "campaigns_housing", "housing_id = ?", duplicate.ID))
	assert.EqualValues(t, 2, countWhere(t, db, "housings", "geo_code = ?", testGeoCode))
}

func countWhere(t *testing.T, db *gorm.DB, table string, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Where(query, args...).Count(&n).Error)
	return n
}
