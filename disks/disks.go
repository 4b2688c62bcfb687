package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rzos/fat12fs"
	"github.com/rzos/fat12fs/errors"
)

////////////////////////////////////////////////////////////////////////////////
// Geometry

type DiskGeometry struct {
	Name               string `csv:"name"`
	Slug               string `csv:"slug"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	FormFactor         string `csv:"form_factor"`
	IsRemovable        uint   `csv:"is_removable"`

	// BitsPerAddressUnit gives the number of bits in the device's smallest
	// addressible unit of memory. For every disk FAT12 can live on this is a
	// byte (8).
	BitsPerAddressUnit uint `csv:"bits_per_address_unit"`

	// AddressUnitsPerSector gives the number of address units in a sector, or
	// "record".
	AddressUnitsPerSector uint `csv:"address_units_per_sector"`
	SectorsPerTrack       uint `csv:"sectors_per_track"`

	// TotalDataTracks gives the number of data tracks per head.
	TotalDataTracks uint `csv:"total_data_tracks"`
	HiddenTracks    uint `csv:"hidden_tracks"`
	// Heads gives the number of heads in the device.
	Heads uint   `csv:"heads"`
	Notes string `csv:"notes"`
}

// TotalSectors gives the number of data sectors on the device.
func (g *DiskGeometry) TotalSectors() uint {
	return g.SectorsPerTrack * g.TotalDataTracks * g.Heads
}

// TotalSizeBytes gives the size of the storage device, rounded up to the nearest
// byte. This gives the minimum size of the image file.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	bits := int64(
		g.BitsPerAddressUnit * g.AddressUnitsPerSector * g.SectorsPerTrack *
			g.TotalDataTracks * g.Heads)
	if bits%8 == 0 {
		return bits / 8
	}
	return (bits / 8) + 1
}

// FAT12Sectors gives the sector count to format the disk with. It fails with
// [errors.ErrNotSupported] if the disk doesn't have 512-byte sectors or has
// more sectors than a FAT12 boot sector can describe.
func (g *DiskGeometry) FAT12Sectors() (uint16, error) {
	if g.BitsPerAddressUnit != 8 || g.AddressUnitsPerSector != fat12fs.SectorSize {
		return 0, errors.ErrNotSupported.WithMessage(
			fmt.Sprintf(
				"%s: sectors are %d %d-bit units, need %d bytes",
				g.Slug,
				g.AddressUnitsPerSector,
				g.BitsPerAddressUnit,
				fat12fs.SectorSize,
			),
		)
	}

	total := g.TotalSectors()
	if total > math.MaxUint16 {
		return 0, errors.ErrNotSupported.WithMessage(
			fmt.Sprintf("%s: %d sectors is too many for FAT12", g.Slug, total),
		)
	}
	return uint16(total), nil
}

////////////////////////////////////////////////////////////////////////////////

// https://en.wikipedia.org/wiki/List_of_floppy_disk_formats
//
//go:embed disk-geometries.csv
var diskGeometriesRawCSV string
var diskGeometries map[string]DiskGeometry

// GetPredefinedDiskGeometry looks up a disk geometry by its slug, e.g.
// "ibm-1440". It fails with [errors.ErrNotFound] if there's no such disk.
func GetPredefinedDiskGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}

	return DiskGeometry{}, errors.ErrNotFound.WithMessage(
		fmt.Sprintf("no predefined disk geometry exists with slug %q", slug),
	)
}

// Geometries returns every predefined disk geometry, sorted by slug.
func Geometries() []DiskGeometry {
	geometries := make([]DiskGeometry, 0, len(diskGeometries))
	for _, geometry := range diskGeometries {
		geometries = append(geometries, geometry)
	}
	sort.Slice(geometries, func(i, j int) bool {
		return geometries[i].Slug < geometries[j].Slug
	})
	return geometries
}

func parseGeometries(rawCSV string) (map[string]DiskGeometry, error) {
	csvReader := csv.NewReader(strings.NewReader(rawCSV))
	csvReader.Comma = '|'

	var rows []DiskGeometry
	err := gocsv.UnmarshalCSV(csvReader, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to decode disk geometries: %w", err)
	}

	geometries := make(map[string]DiskGeometry, len(rows))
	for i, row := range rows {
		_, exists := geometries[row.Slug]
		if exists {
			return nil, fmt.Errorf(
				"duplicate definition for disk %q found on row %d", row.Slug, i+1,
			)
		}
		geometries[row.Slug] = row
	}
	return geometries, nil
}

func init() {
	var err error
	diskGeometries, err = parseGeometries(diskGeometriesRawCSV)
	if err != nil {
		panic(err)
	}
}
