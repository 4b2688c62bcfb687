package fat12

import (
	"encoding/binary"
	"fmt"

	"github.com/rzos/fat12fs"
	"github.com/rzos/fat12fs/errors"
	c "github.com/rzos/fat12fs/file_systems/common"
	"github.com/rzos/fat12fs/file_systems/common/blockcache"
)

// FatTable is a view over the file allocation table. Entries are 12 bits wide
// and packed two to every three bytes, so an entry can straddle two sectors.
//
// One FAT sector at a time is kept in a write-back cache. Changes are not
// written to the device until [FatTable.Flush] is called or the sector is
// evicted by an access to another one, so callers must flush before dropping
// the table or handing the device to another view.
type FatTable struct {
	device        fat12fs.BlockDevice
	startLBA      uint64
	sectorsPerFAT uint
	numCopies     uint
	capacity      uint
	limit         uint
	cache         *blockcache.SectorCache
}

// NewFatTable creates a view over a single FAT of `sectorsPerFAT` 512-byte
// sectors starting at `startLBA`.
func NewFatTable(device fat12fs.BlockDevice, startLBA uint64, sectorsPerFAT uint16) *FatTable {
	fat := &FatTable{
		device:        device,
		startLBA:      startLBA,
		sectorsPerFAT: uint(sectorsPerFAT),
		numCopies:     1,
		capacity:      uint(sectorsPerFAT) * fat12fs.SectorSize * 2 / 3,
	}
	fat.limit = minUint(fat.capacity, MaxClusterLimit)
	fat.cache = blockcache.New(1, fat12fs.SectorSize, fat.sectorsPerFAT, fat.fetchSector, fat.writeSector)
	return fat
}

// OpenFatTable creates a view over the FAT described by a boot sector. All
// FAT copies are kept identical, and allocation is limited to clusters that
// exist in the data region.
func OpenFatTable(device fat12fs.BlockDevice, bs BootSector) *FatTable {
	fat := NewFatTable(device, bs.FATStartLBA, bs.SectorsPerFAT)
	fat.SetCopies(uint(bs.NumFATs))
	fat.LimitClusters(bs.ClusterLimit())
	return fat
}

// SetCopies sets the number of consecutive FAT copies every write goes to.
// Reads always use the first copy.
func (fat *FatTable) SetCopies(copies uint) {
	if copies == 0 {
		copies = 1
	}
	fat.numCopies = copies
}

// LimitClusters restricts allocation and chain walks to cluster IDs below
// `limit`. It can only lower the limit, never raise it past the FAT capacity.
func (fat *FatTable) LimitClusters(limit uint) {
	fat.limit = minUint(fat.limit, limit)
}

// Capacity gives the number of entries that fit in the table,
// `sectorsPerFAT * 512 * 2 / 3`.
func (fat *FatTable) Capacity() uint {
	return fat.capacity
}

// ClusterLimit gives one past the highest cluster ID that can be allocated.
func (fat *FatTable) ClusterLimit() uint {
	return fat.limit
}

// Dirty returns true if the cached sector has changes not yet on the device.
func (fat *FatTable) Dirty() bool {
	return fat.cache.HasDirtyBlocks()
}

func (fat *FatTable) fetchSector(block c.LogicalBlock, buffer []byte) error {
	return fat.device.ReadSector(fat.startLBA+uint64(block), buffer)
}

// writeSector writes one FAT sector to every copy of the table.
func (fat *FatTable) writeSector(block c.LogicalBlock, data []byte) error {
	for copyIndex := uint(0); copyIndex < fat.numCopies; copyIndex++ {
		lba := fat.startLBA + uint64(copyIndex*fat.sectorsPerFAT) + uint64(block)
		err := fat.device.WriteSector(lba, data)
		if err != nil {
			return err
		}
	}
	return nil
}

func entryLocation(cluster uint16) (c.LogicalBlock, uint) {
	idx := uint(cluster) * 3 / 2
	return c.LogicalBlock(idx / fat12fs.SectorSize), idx % fat12fs.SectorSize
}

func (fat *FatTable) checkBlock(block c.LogicalBlock) error {
	if uint(block) >= fat.sectorsPerFAT {
		return errors.ErrFileSystemCorrupted.WithMessage(
			fmt.Sprintf("FAT sector %d not in range [0, %d)", block, fat.sectorsPerFAT),
		)
	}
	return nil
}

func (fat *FatTable) checkCluster(cluster uint16) error {
	if uint(cluster) >= fat.capacity {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("cluster %d not in range [0, %d)", cluster, fat.capacity),
		)
	}
	return nil
}

// neighbourByte reads the first byte of a FAT sector without disturbing the
// cached one, unless that sector is the cached one.
func (fat *FatTable) neighbourByte(block c.LogicalBlock) (byte, error) {
	err := fat.checkBlock(block)
	if err != nil {
		return 0, err
	}
	if fat.cache.Contains(block) {
		data, err := fat.cache.Get(block)
		if err != nil {
			return 0, err
		}
		return data[0], nil
	}

	buffer := make([]byte, fat12fs.SectorSize)
	err = fat.fetchSector(block, buffer)
	if err != nil {
		return 0, err
	}
	return buffer[0], nil
}

// setNeighbourByte overwrites the first byte of a FAT sector. If the sector
// isn't cached, it's read and written back directly instead of replacing the
// cached sector.
func (fat *FatTable) setNeighbourByte(block c.LogicalBlock, value byte) error {
	err := fat.checkBlock(block)
	if err != nil {
		return err
	}
	if fat.cache.Contains(block) {
		data, err := fat.cache.Get(block)
		if err != nil {
			return err
		}
		data[0] = value
		return fat.cache.MarkDirty(block)
	}

	buffer := make([]byte, fat12fs.SectorSize)
	err = fat.fetchSector(block, buffer)
	if err != nil {
		return err
	}
	buffer[0] = value
	return fat.writeSector(block, buffer)
}

// ReadEntry returns the 12-bit FAT entry for `cluster`.
func (fat *FatTable) ReadEntry(cluster uint16) (uint16, error) {
	err := fat.checkCluster(cluster)
	if err != nil {
		return 0, err
	}

	sector, offset := entryLocation(cluster)
	data, err := fat.cache.Get(sector)
	if err != nil {
		return 0, err
	}

	var word uint16
	if offset+1 < fat12fs.SectorSize {
		word = binary.LittleEndian.Uint16(data[offset:])
	} else {
		low := data[offset]
		high, err := fat.neighbourByte(sector + 1)
		if err != nil {
			return 0, err
		}
		word = uint16(low) | uint16(high)<<8
	}

	if cluster&1 == 0 {
		return word & entryMask, nil
	}
	return word >> 4, nil
}

// WriteEntry sets the FAT entry for `cluster` to the low 12 bits of `value`,
// preserving the neighbouring entry that shares its bytes.
func (fat *FatTable) WriteEntry(cluster uint16, value uint16) error {
	err := fat.checkCluster(cluster)
	if err != nil {
		return err
	}

	value &= entryMask
	sector, offset := entryLocation(cluster)
	data, err := fat.cache.Get(sector)
	if err != nil {
		return err
	}

	straddles := offset+1 >= fat12fs.SectorSize

	var word uint16
	if straddles {
		high, err := fat.neighbourByte(sector + 1)
		if err != nil {
			return err
		}
		// Reading the neighbour can't evict `sector`, so `data` is still valid.
		word = uint16(data[offset]) | uint16(high)<<8
	} else {
		word = binary.LittleEndian.Uint16(data[offset:])
	}

	if cluster&1 == 0 {
		word = (word & 0xF000) | value
	} else {
		word = (word & 0x000F) | (value << 4)
	}

	data[offset] = byte(word)
	if !straddles {
		data[offset+1] = byte(word >> 8)
	}

	err = fat.cache.MarkDirty(sector)
	if err != nil {
		return err
	}

	if straddles {
		return fat.setNeighbourByte(sector+1, byte(word>>8))
	}
	return nil
}

// Flush writes the cached FAT sector to the device if it was modified.
func (fat *FatTable) Flush() error {
	return fat.cache.Flush()
}

// AllocCluster finds the lowest free cluster, marks it as end of chain and
// returns its ID.
func (fat *FatTable) AllocCluster() (uint16, error) {
	for cluster := uint(FirstDataCluster); cluster < fat.limit; cluster++ {
		entry, err := fat.ReadEntry(uint16(cluster))
		if err != nil {
			return 0, err
		}
		if entry != ClusterFree {
			continue
		}

		err = fat.WriteEntry(uint16(cluster), ClusterEndOfChain)
		if err != nil {
			return 0, err
		}
		return uint16(cluster), nil
	}

	return 0, errors.ErrNoSpace.WithMessage(
		fmt.Sprintf("all clusters in [%d, %d) are allocated", FirstDataCluster, fat.limit),
	)
}

// walkChain calls `visit` with each cluster of the chain starting at `start`
// and the FAT entry read for it, ending with the end-of-chain cluster.
//
// A chain that links to a cluster outside the data region, or that is longer
// than the number of clusters in the table, fails with
// [errors.ErrFileSystemCorrupted].
func (fat *FatTable) walkChain(start uint16, visit func(cluster, entry uint16) error) error {
	cluster := start
	for steps := uint(0); ; steps++ {
		if !isChainLink(cluster, fat.limit) {
			return errors.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf("chain from cluster %d links to invalid cluster %#03x", start, cluster),
			)
		}
		if steps >= fat.limit {
			return errors.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf("chain from cluster %d has a cycle", start),
			)
		}

		entry, err := fat.ReadEntry(cluster)
		if err != nil {
			return err
		}
		err = visit(cluster, entry)
		if err != nil {
			return err
		}

		if IsEndOfChain(entry) {
			return nil
		}
		cluster = entry
	}
}

// FreeCluster releases every cluster in the chain beginning at `start`.
func (fat *FatTable) FreeCluster(start uint16) error {
	return fat.walkChain(
		start,
		func(cluster, entry uint16) error {
			return fat.WriteEntry(cluster, ClusterFree)
		},
	)
}

// GetChain returns the IDs of every cluster in the chain beginning at
// `start`, in order, including the last one.
func (fat *FatTable) GetChain(start uint16) ([]uint16, error) {
	chain := []uint16{}
	err := fat.walkChain(
		start,
		func(cluster, entry uint16) error {
			chain = append(chain, cluster)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// CountFree gives the number of unallocated clusters below the cluster limit.
func (fat *FatTable) CountFree() (uint, error) {
	free := uint(0)
	for cluster := uint(FirstDataCluster); cluster < fat.limit; cluster++ {
		entry, err := fat.ReadEntry(uint16(cluster))
		if err != nil {
			return 0, err
		}
		if entry == ClusterFree {
			free++
		}
	}
	return free, nil
}
