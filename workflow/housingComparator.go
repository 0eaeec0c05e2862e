package workflow

import (
	"slices"

	"bitbucket.org/mmdatafocus/housing_backend/models"
)

const (
	EventNameMissingFromSource    = "Missing from the vacancy file"
	EventNameMissingToReview      = "Missing from the vacancy file, follow-up to review"
	EventNameOwnershipConflict    = "Possible ownership conflict"
	EventNameOccupancyConflict    = "Back in the vacancy file after completion"
	EventNamePrimaryOwnerChange   = "Change of primary owner"
	EventNameOccupancyStateChange = "Occupancy status change"
)

// EventDraft is an audit event decided for one housing. The persister stamps the actor and time.
type EventDraft struct {
	Name           string
	Kind           models.EventKind
	Category       models.EventCategory
	Section        models.EventSection
	Old            *models.Housing
	New            *models.Housing
	Conflict       bool
	HousingGeoCode string
	HousingId      string
}

// Decision is the next state of one housing. A nil Housing means nothing is written automatically.
type Decision struct {
	Housing *models.Housing
	Events  []EventDraft
}

// missingStatuses may be closed automatically when the housing leaves the vacancy file.
var missingStatuses = []models.HousingStatus{
	models.HousingStatusNeverContacted,
	models.HousingStatusWaiting,
	models.HousingStatusCompleted,
}

// Decide computes the next state of a housing from its stored state, the external snapshot of the
// current data file and the manual changes recorded against it. It performs no I/O.
func Decide(before *models.Housing, now *models.SourceHousing, modifications []models.Modification) Decision {
	switch {
	case before != nil && now == nil:
		return decideMissing(before, modifications)
	case before != nil && now != nil:
		return decidePresent(before, now, modifications)
	case before == nil && now != nil:
		return decideNew(now)
	default:
		return Decision{}
	}
}

func decideMissing(before *models.Housing, modifications []models.Modification) Decision {
	ownershipModified := AnyOwnershipModification(modifications)

	if !ownershipModified && slices.Contains(missingStatuses, before.Status) {
		next := exitVacancy(before)
		return Decision{
			Housing: &next,
			Events:  []EventDraft{missingEvent(before, &next)},
		}
	}

	// Statuses outside missingStatuses land here even without an ownership modification:
	// they are left untouched for review.
	if !ownershipModified {
		return Decision{
			Events: []EventDraft{{
				Name:           EventNameMissingToReview,
				Kind:           models.EventKindUpdate,
				Category:       models.EventCategoryFollowup,
				Section:        models.EventSectionSituation,
				Old:            cloneHousing(before),
				Conflict:       true,
				HousingGeoCode: before.GeoCode,
				HousingId:      before.ID,
			}},
		}
	}

	events := []EventDraft{ownershipConflictEvent(before, nil)}
	if before.Status == models.HousingStatusWaiting || before.Status == models.HousingStatusCompleted {
		next := exitVacancy(before)
		events = append(events, missingEvent(before, &next))
		return Decision{Housing: &next, Events: events}
	}
	return Decision{Events: events}
}

func decidePresent(before *models.Housing, now *models.SourceHousing, modifications []models.Modification) Decision {
	ownershipModified := AnyOwnershipModification(modifications)
	external := housingFromSource(now, before.ID)

	var next models.Housing
	var events []EventDraft

	if !ownershipModified {
		switch before.Status {
		case models.HousingStatusNeverContacted:
			next = adoptSource(before, &external)
		case models.HousingStatusCompleted:
			next = adoptOwners(before, &external)
			events = append(events, occupancyConflictEvent(before, &external))
		default:
			next = adoptOwners(before, &external)
		}
	} else {
		events = append(events, ownershipConflictEvent(before, &external))
		switch before.Status {
		case models.HousingStatusNeverContacted:
			next = adoptOwners(before, &external)
		case models.HousingStatusCompleted:
			next = before.Clone()
			events = append(events, occupancyConflictEvent(before, &external))
		default:
			next = before.Clone()
		}
	}

	next.DataFileYears = unionFileYears(before.DataFileYears, external.DataFileYears)
	next.DataYears = unionDataYears(before.DataYears, external.DataYears)

	if ownerFullName(before.Owner) != ownerFullName(external.Owner) {
		// When the stored owners are kept, the new owner only exists in the snapshot.
		reported := &next
		if ownerFullName(next.Owner) != ownerFullName(external.Owner) {
			reported = &external
		}
		events = append(events, EventDraft{
			Name:           EventNamePrimaryOwnerChange,
			Kind:           models.EventKindUpdate,
			Category:       models.EventCategoryOwnership,
			Section:        models.EventSectionOwnership,
			Old:            cloneHousing(before),
			New:            cloneHousing(reported),
			HousingGeoCode: before.GeoCode,
			HousingId:      before.ID,
		})
	}

	return Decision{Housing: &next, Events: events}
}

func decideNew(now *models.SourceHousing) Decision {
	next := housingFromSource(now, models.HousingIdFor(now.Key()))
	return Decision{
		Housing: &next,
		Events: []EventDraft{{
			Name:           EventNameOccupancyStateChange,
			Kind:           models.EventKindCreate,
			Category:       models.EventCategoryOccupancy,
			Section:        models.EventSectionSituation,
			New:            cloneHousing(&next),
			HousingGeoCode: next.GeoCode,
			HousingId:      next.ID,
		}},
	}
}

func exitVacancy(before *models.Housing) models.Housing {
	next := before.Clone()
	subStatus := models.SubStatusExitedVacancy
	next.Status = models.HousingStatusCompleted
	next.SubStatus = &subStatus
	return next
}

// adoptSource takes the descriptive fields of the snapshot and keeps the follow-up state.
func adoptSource(before *models.Housing, external *models.Housing) models.Housing {
	next := external.Clone()
	next.ID = before.ID
	next.Occupancy = before.Occupancy
	next.OccupancyIntended = before.OccupancyIntended
	next.Status = before.Status
	next.SubStatus = before.SubStatus
	next.Precisions = slices.Clone(before.Precisions)
	next.VacancyReasons = slices.Clone(before.VacancyReasons)
	next.EnergyConsumption = before.EnergyConsumption
	next.Source = before.Source
	return next
}

func adoptOwners(before *models.Housing, external *models.Housing) models.Housing {
	next := before.Clone()
	ext := external.Clone()
	next.Owner = ext.Owner
	next.CoOwners = ext.CoOwners
	return next
}

func missingEvent(before *models.Housing, next *models.Housing) EventDraft {
	return EventDraft{
		Name:           EventNameMissingFromSource,
		Kind:           models.EventKindUpdate,
		Category:       models.EventCategoryFollowup,
		Section:        models.EventSectionSituation,
		Old:            cloneHousing(before),
		New:            cloneHousing(next),
		HousingGeoCode: before.GeoCode,
		HousingId:      before.ID,
	}
}

func ownershipConflictEvent(before *models.Housing, external *models.Housing) EventDraft {
	return EventDraft{
		Name:           EventNameOwnershipConflict,
		Kind:           models.EventKindUpdate,
		Category:       models.EventCategoryOwnership,
		Section:        models.EventSectionOwnership,
		Old:            cloneHousing(before),
		New:            cloneHousing(external),
		Conflict:       true,
		HousingGeoCode: before.GeoCode,
		HousingId:      before.ID,
	}
}

func occupancyConflictEvent(before *models.Housing, external *models.Housing) EventDraft {
	return EventDraft{
		Name:           EventNameOccupancyConflict,
		Kind:           models.EventKindUpdate,
		Category:       models.EventCategoryOccupancy,
		Section:        models.EventSectionSituation,
		Old:            cloneHousing(before),
		New:            cloneHousing(external),
		Conflict:       true,
		HousingGeoCode: before.GeoCode,
		HousingId:      before.ID,
	}
}

// housingFromSource materializes a snapshot as a vacant, never contacted housing.
func housingFromSource(now *models.SourceHousing, id string) models.Housing {
	h := models.Housing{
		ID:                 id,
		GeoCode:            now.GeoCode,
		LocalId:            now.LocalId,
		Invariant:          now.Invariant,
		BuildingId:         now.BuildingId,
		CadastralReference: now.CadastralReference,
		RawAddress:         slices.Clone(now.RawAddress),
		Longitude:          now.Longitude,
		Latitude:           now.Latitude,
		BuildingYear:       now.BuildingYear,
		HousingKind:        now.HousingKind,
		RoomsCount:         now.RoomsCount,
		LivingArea:         now.LivingArea,
		Uncomfortable:      now.Uncomfortable,
		VacancyStartYear:   now.VacancyStartYear,
		TaxedFlag:          now.TaxedFlag,
		EnergyConsumption:  now.EnergyConsumption,
		Occupancy:          models.OccupancyVacant,
		Status:             models.HousingStatusNeverContacted,
		DataYears:          unionDataYears(nil, now.DataYears),
		DataFileYears:      []string{now.DataFileYear},
		MutationDate:       now.MutationDate,
	}
	source := sourceName(now.DataFileYear)
	h.Source = &source

	owner := now.Owner.Data()
	if owner.IdPersonne != "" {
		o := owner.ToOwner()
		h.Owner = &o
	}
	for _, co := range now.CoOwners {
		h.CoOwners = append(h.CoOwners, co.ToOwner())
	}
	return h
}

// sourceName strips the year from a data file tag: "lovac-2024" comes from "lovac".
func sourceName(dataFileYear string) string {
	for i := len(dataFileYear) - 1; i >= 0; i-- {
		if dataFileYear[i] == '-' {
			return dataFileYear[:i]
		}
	}
	return dataFileYear
}

func ownerFullName(o *models.Owner) string {
	if o == nil {
		return ""
	}
	return o.FullName
}

func cloneHousing(h *models.Housing) *models.Housing {
	if h == nil {
		return nil
	}
	c := h.Clone()
	return &c
}

func unionFileYears(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// unionDataYears returns the distinct years of both inputs, most recent first.
func unionDataYears(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	out = slices.Compact(out)
	slices.Reverse(out)
	return out
}
