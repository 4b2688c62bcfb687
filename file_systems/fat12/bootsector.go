package fat12

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"
	"github.com/rzos/fat12fs"
	"github.com/rzos/fat12fs/errors"
)

const (
	bpbOffset       = 11
	bpbEnd          = 24
	mediaByteOffset = 21
	signatureOffset = 510
)

// BootSignature is the two-byte marker that ends a valid boot sector.
var BootSignature = [2]byte{0x55, 0xAA}

// rawBPB is the on-disk layout of bytes 11 through 23 of the boot sector.
type rawBPB struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors      uint16
	Media             uint8
	SectorsPerFAT     uint16
}

// BootSector holds the volume parameters stored in sector 0, along with the
// start addresses of the three regions that follow it.
//
// Only the fields below are read and written; everything else in the sector
// (jump instruction, OEM name, media byte, boot code) is left alone.
type BootSector struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	MaxRootDirEntries uint16
	TotalSectors      uint16
	SectorsPerFAT     uint16

	FATStartLBA     uint64
	RootDirStartLBA uint64
	DataStartLBA    uint64
}

// ParseBootSector decodes a boot sector. `buf` must be at least 512 bytes long
// and end in the boot signature.
func ParseBootSector(buf []byte) (BootSector, error) {
	if len(buf) < fat12fs.SectorSize {
		return BootSector{}, errors.ErrInvalidLength.WithMessage(
			fmt.Sprintf("need %d bytes, got %d", fat12fs.SectorSize, len(buf)),
		)
	}
	if buf[signatureOffset] != BootSignature[0] || buf[signatureOffset+1] != BootSignature[1] {
		return BootSector{}, errors.ErrInvalidSignature.WithMessage(
			fmt.Sprintf("got %02x %02x", buf[signatureOffset], buf[signatureOffset+1]),
		)
	}

	raw := rawBPB{}
	err := binary.Read(bytes.NewReader(buf[bpbOffset:bpbEnd]), binary.LittleEndian, &raw)
	if err != nil {
		return BootSector{}, errors.ErrIOFailed.Wrap(err)
	}

	bs := BootSector{
		BytesPerSector:    raw.BytesPerSector,
		SectorsPerCluster: raw.SectorsPerCluster,
		ReservedSectors:   raw.ReservedSectors,
		NumFATs:           raw.NumFATs,
		MaxRootDirEntries: raw.RootEntryCount,
		TotalSectors:      raw.TotalSectors,
		SectorsPerFAT:     raw.SectorsPerFAT,
	}
	bs.computeRegions()
	return bs, nil
}

func (bs *BootSector) computeRegions() {
	bs.FATStartLBA = uint64(bs.ReservedSectors)
	bs.RootDirStartLBA = bs.FATStartLBA + uint64(bs.NumFATs)*uint64(bs.SectorsPerFAT)
	bs.DataStartLBA = bs.RootDirStartLBA + bs.RootDirSectors()
}

// Serialize writes the volume parameters and boot signature into `buf`, which
// must be at least 512 bytes long.
func (bs BootSector) Serialize(buf []byte) error {
	if len(buf) < fat12fs.SectorSize {
		return errors.ErrInvalidLength.WithMessage(
			fmt.Sprintf("need %d bytes, got %d", fat12fs.SectorSize, len(buf)),
		)
	}

	raw := rawBPB{
		BytesPerSector:    bs.BytesPerSector,
		SectorsPerCluster: bs.SectorsPerCluster,
		ReservedSectors:   bs.ReservedSectors,
		NumFATs:           bs.NumFATs,
		RootEntryCount:    bs.MaxRootDirEntries,
		TotalSectors:      bs.TotalSectors,
		Media:             buf[mediaByteOffset],
		SectorsPerFAT:     bs.SectorsPerFAT,
	}

	writer := bytewriter.New(buf[bpbOffset:bpbEnd])
	err := binary.Write(writer, binary.LittleEndian, &raw)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}

	copy(buf[signatureOffset:], BootSignature[:])
	return nil
}

// RootDirSectors gives the number of sectors occupied by the root directory,
// rounded up.
func (bs BootSector) RootDirSectors() uint64 {
	if bs.BytesPerSector == 0 {
		return 0
	}
	rootBytes := uint64(bs.MaxRootDirEntries) * DirentSize
	return (rootBytes + uint64(bs.BytesPerSector) - 1) / uint64(bs.BytesPerSector)
}

// BytesPerCluster gives the size of one allocation unit, in bytes.
func (bs BootSector) BytesPerCluster() uint {
	return uint(bs.BytesPerSector) * uint(bs.SectorsPerCluster)
}

// FATCapacity gives the number of 12-bit entries a single FAT copy can hold.
func (bs BootSector) FATCapacity() uint {
	return uint(bs.SectorsPerFAT) * uint(bs.BytesPerSector) * 2 / 3
}

// ClusterLimit gives one past the highest cluster ID that can be allocated.
// It's bounded both by the size of the FAT and by the number of data clusters
// that actually fit in TotalSectors.
func (bs BootSector) ClusterLimit() uint {
	limit := bs.FATCapacity()
	if bs.SectorsPerCluster == 0 || uint64(bs.TotalSectors) <= bs.DataStartLBA {
		return minUint(limit, FirstDataCluster)
	}

	dataClusters := (uint64(bs.TotalSectors) - bs.DataStartLBA) / uint64(bs.SectorsPerCluster)
	return minUint(limit, uint(dataClusters)+FirstDataCluster)
}

// ClusterToLBA gives the address of the first sector of a data cluster.
func (bs BootSector) ClusterToLBA(cluster uint16) uint64 {
	return bs.DataStartLBA + uint64(cluster-FirstDataCluster)*uint64(bs.SectorsPerCluster)
}

func minUint(a, b uint) uint {
	if a < b {
		return a
	}
	return b
}
