// Package fat12 implements a minimal FAT12 file system: a single FAT, a single
// flat root directory and 8.3 file names, on top of a 512-byte sector
// [fat12fs.BlockDevice].
//
// A [FileSystem] owns its device. Each operation builds short-lived [FatTable]
// and [Directory] views over that device, flushes them and drops them before
// returning, so nothing is cached between calls.
package fat12

const (
	// FirstDataCluster is the lowest cluster ID that maps to the data region.
	// Entries 0 and 1 of the FAT are reserved.
	FirstDataCluster = 2

	// MaxClusterLimit is one past the highest cluster ID a FAT12 chain can
	// point to. Values from here on are reserved, bad-cluster or end-of-chain
	// markers.
	MaxClusterLimit = 0xFF0

	// ClusterFree marks an unallocated cluster.
	ClusterFree = 0x000

	// ClusterEndOfChainMin is the lowest value treated as end of chain when
	// reading.
	ClusterEndOfChainMin = 0xFF8

	// ClusterEndOfChain is the end-of-chain marker written by this package.
	ClusterEndOfChain = 0xFFF

	entryMask = 0x0FFF
)

// Format policy.
const (
	DefaultBytesPerSector    = 512
	DefaultSectorsPerCluster = 1
	DefaultReservedSectors   = 1
	DefaultNumFATs           = 1
	DefaultRootDirEntries    = 224
	DefaultSectorsPerFAT     = 9
)

// IsEndOfChain returns true if a FAT entry terminates a cluster chain.
func IsEndOfChain(entry uint16) bool {
	return entry >= ClusterEndOfChainMin
}

// isChainLink returns true if a FAT entry is a valid pointer to another data
// cluster below `limit`.
func isChainLink(entry uint16, limit uint) bool {
	return entry >= FirstDataCluster && uint(entry) < limit
}
