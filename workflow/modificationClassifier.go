package workflow

import "bitbucket.org/mmdatafocus/housing_backend/models"

// IsOwnershipKind reports whether a manual change touched ownership data.
func IsOwnershipKind(kind models.ModificationKind) bool {
	switch kind {
	case models.ModificationKindOwnerUpdate,
		models.ModificationKindOwnerCreation,
		models.ModificationKindHousingOwnersUpdate:
		return true
	default:
		return false
	}
}

func AnyOwnershipModification(modifications []models.Modification) bool {
	for _, m := range modifications {
		if IsOwnershipKind(m.Kind) {
			return true
		}
	}
	return false
}
