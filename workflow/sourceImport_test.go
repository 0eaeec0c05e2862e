package workflow

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/housing_backend/models"
	"bitbucket.org/mmdatafocus/housing_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSnapshot = `{"geo_code":"75056","local_id":"000000000001","invariant":"inv-1","housing_kind":"APPART","rooms_count":3,"living_area":"54.50","data_years":[2023],"owner":{"idpersonne":"P1","full_name":"Jane Doe"}}
{"geo_code":"75056","local_id":"000000000002","invariant":"inv-2","housing_kind":"MAISON","energy_consumption":"D","co_owners":[{"idpersonne":"P2","full_name":"John Doe"}]}

{"data_file_year":"lovac-2024","geo_code":"75056","local_id":"000000000003","invariant":"inv-3","housing_kind":"MAISON"}
`

func TestSourceImporter_Import(t *testing.T) {
	db := newTestDB(t)
	importer := NewSourceImporter(db, newTestLogger(), "lovac-2024")
	importer.BatchSize = 2

	report, err := importer.Import(context.Background(), strings.NewReader(validSnapshot))
	require.NoError(t, err)
	assert.EqualValues(t, 4, report.Lines)
	assert.EqualValues(t, 3, report.Imported)

	count, err := models.CountSourceHousings(context.Background(), db, "lovac-2024")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	first, err := models.FindSourceHousing(context.Background(), db, "lovac-2024", models.NaturalKey{GeoCode: "75056", LocalId: "000000000001"})
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "Jane Doe", first.Owner.Data().FullName)
	require.NotNil(t, first.LivingArea)
	assert.Equal(t, "54.5", first.LivingArea.String())

	// Importing the same file twice replaces the staged lines.
	_, err = importer.Import(context.Background(), strings.NewReader(validSnapshot))
	require.NoError(t, err)
	count, err = models.CountSourceHousings(context.Background(), db, "lovac-2024")
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestSourceImporter_RejectsInvalidLines(t *testing.T) {
	cases := map[string]string{
		"malformed json":     `{"geo_code":`,
		"missing invariant":  `{"geo_code":"75056","local_id":"1","housing_kind":"APPART"}`,
		"bad geo code":       `{"geo_code":"750","local_id":"1","invariant":"i","housing_kind":"APPART"}`,
		"bad energy class":   `{"geo_code":"75056","local_id":"1","invariant":"i","housing_kind":"APPART","energy_consumption":"Z"}`,
		"owner without name": `{"geo_code":"75056","local_id":"1","invariant":"i","housing_kind":"APPART","owner":{"idpersonne":"P1"}}`,
		"other data file":    `{"data_file_year":"lovac-2023","geo_code":"75056","local_id":"1","invariant":"i","housing_kind":"APPART"}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			db := newTestDB(t)
			importer := NewSourceImporter(db, newTestLogger(), "lovac-2024")

			_, err := importer.Import(context.Background(), strings.NewReader(line+"\n"))
			require.Error(t, err)
			assert.True(t, IsKind(err, ErrorKindSource), "got %v", err)
			assert.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestSourceImporter_ImportLocation(t *testing.T) {
	db := newTestDB(t)
	path := filepath.Join(t.TempDir(), "lovac-2024.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(validSnapshot), 0o644))
	importer := NewSourceImporter(db, newTestLogger(), "lovac-2024")

	report, err := importer.ImportLocation(context.Background(), path)
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.Imported)

	_, err = importer.ImportLocation(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.True(t, IsKind(err, ErrorKindSource))
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}
