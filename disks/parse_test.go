package disks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = "name|slug|first_year_available|form_factor|is_removable|bits_per_address_unit|address_units_per_sector|sectors_per_track|total_data_tracks|hidden_tracks|heads|notes\n"

func TestParseGeometries(t *testing.T) {
	geometries, err := parseGeometries(testHeader + "Test disk|test|2000|3.5in|1|8|512|9|80|1|2|a, b\n")
	require.NoError(t, err)
	require.Len(t, geometries, 1)

	assert.Equal(
		t,
		DiskGeometry{
			Name:                  "Test disk",
			Slug:                  "test",
			FirstYearAvailable:    2000,
			FormFactor:            "3.5in",
			IsRemovable:           1,
			BitsPerAddressUnit:    8,
			AddressUnitsPerSector: 512,
			SectorsPerTrack:       9,
			TotalDataTracks:       80,
			HiddenTracks:          1,
			Heads:                 2,
			Notes:                 "a, b",
		},
		geometries["test"],
	)
}

func TestParseGeometries__Duplicate(t *testing.T) {
	row := "Test disk|test|2000|3.5in|1|8|512|9|80|0|2|\n"
	_, err := parseGeometries(testHeader + row + row)
	assert.ErrorContains(t, err, "duplicate definition")
}

func TestParseGeometries__BadNumber(t *testing.T) {
	_, err := parseGeometries(testHeader + "Test disk|test|soon|3.5in|1|8|512|9|80|0|2|\n")
	assert.Error(t, err)
}
