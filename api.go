//go:generate mockgen -destination=testing/mock_blockdevice.go -package=testing github.com/rzos/fat12fs BlockDevice

package fat12fs

import (
	"os"
)

// SectorSize is the size of a single device sector in bytes. Every read and
// write issued against a [BlockDevice] transfers exactly this many bytes.
const SectorSize = 512

// BlockDevice is the sector-addressed storage a file system is mounted on.
//
// Implementations need not be safe for concurrent use; the file system owns the
// device exclusively for the duration of each operation.
type BlockDevice interface {
	// ReadSector fills `buffer`, which must be exactly SectorSize bytes, with
	// the contents of sector `lba`.
	ReadSector(lba uint64, buffer []byte) error
	// WriteSector writes `data`, which must be exactly SectorSize bytes, to
	// sector `lba`.
	WriteSector(lba uint64, data []byte) error
	// SectorCount gives the total number of sectors on the device.
	SectorCount() uint64
}

// ReadingDriver is the interface for drivers supporting read operations.
type ReadingDriver interface {
	// ReadDir returns the entries of the root directory in on-disk order.
	ReadDir() ([]os.FileInfo, error)
	// ReadFile return the contents of the file with the given name.
	ReadFile(name string) ([]byte, error)
}

// WritingDriver is the interface for drivers supporting write operations.
type WritingDriver interface {
	// WriteFile creates a new file. It fails if the file already exists.
	WriteFile(name string, data []byte) error
	// Delete removes a file and releases its storage.
	Delete(name string) error
}

// Driver is the interface for drivers implementing all driver capabilities.
type Driver interface {
	ReadingDriver
	WritingDriver
}
