package workflow

import (
	"slices"

	"bitbucket.org/mmdatafocus/housing_backend/models"
)

// MergeHousings folds duplicates into one housing.
//
// Identity fields (id, geo code, local id, invariant, address) come from the first housing. Optional
// descriptive fields take the first value set across the group. Current-state fields come from the
// youngest housing, the one whose data years reach the highest year. Year tags are unioned.
func MergeHousings(housings []models.Housing) models.Housing {
	if len(housings) == 0 {
		return models.Housing{}
	}

	merged := housings[0].Clone()
	youngest := 0
	for i := 1; i < len(housings); i++ {
		mergeFirstDefined(&merged, &housings[i])
		if isYounger(&housings[i], &housings[youngest]) {
			youngest = i
		}
	}
	takeCurrentState(&merged, &housings[youngest])

	var dataYears []int
	var dataFileYears []string
	for i := range housings {
		dataYears = unionDataYears(dataYears, housings[i].DataYears)
		dataFileYears = unionFileYears(dataFileYears, housings[i].DataFileYears)
	}
	merged.DataYears = dataYears
	merged.DataFileYears = dataFileYears
	return merged
}

func mergeFirstDefined(merged *models.Housing, h *models.Housing) {
	merged.BuildingId = firstDefined(merged.BuildingId, h.BuildingId)
	merged.CadastralReference = firstDefined(merged.CadastralReference, h.CadastralReference)
	merged.Longitude = firstDefined(merged.Longitude, h.Longitude)
	merged.Latitude = firstDefined(merged.Latitude, h.Latitude)
	merged.BuildingYear = firstDefined(merged.BuildingYear, h.BuildingYear)
	merged.Uncomfortable = firstDefined(merged.Uncomfortable, h.Uncomfortable)
	merged.VacancyStartYear = firstDefined(merged.VacancyStartYear, h.VacancyStartYear)
	merged.TaxedFlag = firstDefined(merged.TaxedFlag, h.TaxedFlag)
	merged.MutationDate = firstDefined(merged.MutationDate, h.MutationDate)
}

func takeCurrentState(merged *models.Housing, youngest *models.Housing) {
	y := youngest.Clone()
	merged.HousingKind = y.HousingKind
	merged.RoomsCount = y.RoomsCount
	merged.LivingArea = y.LivingArea
	merged.Status = y.Status
	merged.SubStatus = y.SubStatus
	merged.Precisions = y.Precisions
	merged.VacancyReasons = y.VacancyReasons
	merged.Occupancy = y.Occupancy
	merged.OccupancyIntended = y.OccupancyIntended
	merged.Source = y.Source
	merged.EnergyConsumption = y.EnergyConsumption
	merged.Owner = y.Owner
	merged.CoOwners = y.CoOwners
}

func firstDefined[T any](current *T, candidate *T) *T {
	if current != nil {
		return current
	}
	return candidate
}

// isYounger reports whether a reaches a strictly higher data year than b. A housing without data
// years is never younger, so ties keep the earlier housing.
func isYounger(a *models.Housing, b *models.Housing) bool {
	if len(a.DataYears) == 0 {
		return false
	}
	if len(b.DataYears) == 0 {
		return true
	}
	return slices.Max(a.DataYears) > slices.Max(b.DataYears)
}
