package disks_test

import (
	"testing"

	"github.com/rzos/fat12fs/disks"
	"github.com/rzos/fat12fs/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPredefinedDiskGeometry__Floppy(t *testing.T) {
	geometry, err := disks.GetPredefinedDiskGeometry("ibm-1440")
	require.NoError(t, err)

	assert.EqualValues(t, 2880, geometry.TotalSectors())
	assert.EqualValues(t, 1474560, geometry.TotalSizeBytes())

	sectors, err := geometry.FAT12Sectors()
	require.NoError(t, err)
	assert.EqualValues(t, 2880, sectors)
}

func TestGetPredefinedDiskGeometry__Missing(t *testing.T) {
	_, err := disks.GetPredefinedDiskGeometry("zip-100")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDiskGeometry__FAT12SectorsWrongSectorSize(t *testing.T) {
	geometry, err := disks.GetPredefinedDiskGeometry("dec-rx01")
	require.NoError(t, err)

	_, err = geometry.FAT12Sectors()
	assert.ErrorIs(t, err, errors.ErrNotSupported)
}

func TestDiskGeometry__FAT12SectorsTooBig(t *testing.T) {
	geometry := disks.DiskGeometry{
		Slug:                  "huge",
		BitsPerAddressUnit:    8,
		AddressUnitsPerSector: 512,
		SectorsPerTrack:       63,
		TotalDataTracks:       1024,
		Heads:                 16,
	}
	_, err := geometry.FAT12Sectors()
	assert.ErrorIs(t, err, errors.ErrNotSupported)
}

func TestGeometries__Sorted(t *testing.T) {
	geometries := disks.Geometries()
	require.NotEmpty(t, geometries)

	for i := 1; i < len(geometries); i++ {
		assert.Less(t, geometries[i-1].Slug, geometries[i].Slug)
	}
}

func TestGeometries__AllDecoded(t *testing.T) {
	for _, geometry := range disks.Geometries() {
		assert.NotEmptyf(t, geometry.Name, "%s has no name", geometry.Slug)
		assert.NotZerof(t, geometry.TotalSectors(), "%s has no sectors", geometry.Slug)
		assert.NotZerof(t, geometry.FirstYearAvailable, "%s has no year", geometry.Slug)
	}
}
