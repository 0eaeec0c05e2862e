package workflow

import (
	"reflect"
	"testing"

	"bitbucket.org/mmdatafocus/housing_backend/models"
)

func TestMergeHousings_DataYearsUnion(t *testing.T) {
	merged := MergeHousings([]models.Housing{
		{ID: "a", DataYears: []int{2022, 2021}},
		{ID: "b", DataYears: []int{2022, 2023}},
	})
	if got, want := []int(merged.DataYears), []int{2023, 2022, 2021}; !reflect.DeepEqual(got, want) {
		t.Fatalf("data years: got %v want %v", got, want)
	}
}

func TestMergeHousings_IdentityFromFirst(t *testing.T) {
	first := newHousing("75056", "123456789012", models.HousingStatusWaiting)
	first.RawAddress = []string{"1 rue A"}
	second := newHousing("75056", "123456789012-2", models.HousingStatusCompleted)
	second.RawAddress = []string{"1 rue A bis"}
	second.BuildingId = strPtr("B2")
	second.DataYears = []int{2023}

	merged := MergeHousings([]models.Housing{first, second})

	if merged.ID != first.ID || merged.LocalId != first.LocalId || merged.Invariant != first.Invariant {
		t.Fatalf("expected identity fields from the first housing")
	}
	if !reflect.DeepEqual([]string(merged.RawAddress), []string{"1 rue A"}) {
		t.Fatalf("expected the first address, got %v", merged.RawAddress)
	}
	if merged.BuildingId == nil || *merged.BuildingId != "B2" {
		t.Fatalf("expected the first defined building id")
	}
	if merged.Status != models.HousingStatusCompleted {
		t.Fatalf("expected the youngest status, got %s", merged.Status)
	}
}

func TestMergeHousings_YoungestWins(t *testing.T) {
	cases := []struct {
		name     string
		years    [][]int
		wantKind string
	}{
		{"highest year wins", [][]int{{2021}, {2023, 2020}, {2022}}, "k1"},
		{"tie keeps the earlier", [][]int{{2023}, {2023}}, "k0"},
		{"empty loses to any year", [][]int{{}, {2019}}, "k1"},
		{"empty loses ties", [][]int{{}, {}}, "k0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var housings []models.Housing
			for i, years := range tc.years {
				housings = append(housings, models.Housing{
					ID:          string(rune('a' + i)),
					HousingKind: "k" + string(rune('0'+i)),
					DataYears:   years,
				})
			}
			merged := MergeHousings(housings)
			if merged.HousingKind != tc.wantKind {
				t.Fatalf("housing kind: got %s want %s", merged.HousingKind, tc.wantKind)
			}
		})
	}
}

func TestMergeHousings_DoesNotShareState(t *testing.T) {
	first := newHousing("75056", "123456789012", models.HousingStatusWaiting)
	first.Precisions = []string{"p1"}
	first.DataYears = []int{2024}

	merged := MergeHousings([]models.Housing{first})
	merged.Precisions[0] = "changed"

	if first.Precisions[0] != "p1" {
		t.Fatalf("expected the input untouched")
	}
}

func TestMergeHousings_Empty(t *testing.T) {
	if merged := MergeHousings(nil); merged.ID != "" {
		t.Fatalf("expected a zero housing")
	}
}
