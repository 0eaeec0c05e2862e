package models

import "fmt"

type HousingStatus int

const (
	HousingStatusNeverContacted HousingStatus = 0
	HousingStatusWaiting        HousingStatus = 1
	HousingStatusFirstContact   HousingStatus = 2
	HousingStatusInProgress     HousingStatus = 3
	HousingStatusCompleted      HousingStatus = 4
	HousingStatusBlocked        HousingStatus = 5
)

func (s HousingStatus) String() string {
	switch s {
	case HousingStatusNeverContacted:
		return "never-contacted"
	case HousingStatusWaiting:
		return "waiting"
	case HousingStatusFirstContact:
		return "first-contact"
	case HousingStatusInProgress:
		return "in-progress"
	case HousingStatusCompleted:
		return "completed"
	case HousingStatusBlocked:
		return "blocked"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

type OccupancyKind string

const (
	OccupancyVacant        OccupancyKind = "V"
	OccupancyRent          OccupancyKind = "L"
	OccupancyShortRent     OccupancyKind = "RS"
	OccupancySecondary     OccupancyKind = "R"
	OccupancyOwnerOccupied OccupancyKind = "P"
	OccupancyCommercial    OccupancyKind = "B"
	OccupancyDependency    OccupancyKind = "D"
	OccupancyDemolished    OccupancyKind = "T"
	OccupancyUnknown       OccupancyKind = "inc"
)

type ModificationKind string

const (
	ModificationKindOwnerUpdate         ModificationKind = "owner-update"
	ModificationKindOwnerCreation       ModificationKind = "owner-creation"
	ModificationKindHousingOwnersUpdate ModificationKind = "housing-owners-update"
	ModificationKindHousingUpdate       ModificationKind = "housing-update"
)

type EventKind string

const (
	EventKindCreate EventKind = "Create"
	EventKindUpdate EventKind = "Update"
	EventKindDelete EventKind = "Delete"
)

type EventCategory string

const (
	EventCategoryFollowup  EventCategory = "Followup"
	EventCategoryOwnership EventCategory = "Ownership"
	EventCategoryOccupancy EventCategory = "Occupancy"
)

type EventSection string

const (
	EventSectionSituation EventSection = "Situation"
	EventSectionOwnership EventSection = "Ownership"
	EventSectionDiagnosis EventSection = "Diagnosis"
)
