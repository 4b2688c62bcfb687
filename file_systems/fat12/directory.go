package fat12

import (
	"fmt"

	"github.com/rzos/fat12fs"
	"github.com/rzos/fat12fs/errors"
)

const direntsPerSector = fat12fs.SectorSize / DirentSize

// Directory is a view over a fixed-size table of directory entries stored in
// consecutive sectors. Slots are never compacted: deleting an entry only marks
// its slot as reusable.
//
// Directory doesn't cache anything. Every modification is written to the
// device before the method returns.
type Directory struct {
	device     fat12fs.BlockDevice
	startLBA   uint64
	numEntries uint
}

// NewDirectory creates a view over `numEntries` slots starting at `startLBA`.
func NewDirectory(device fat12fs.BlockDevice, startLBA uint64, numEntries uint16) *Directory {
	return &Directory{
		device:     device,
		startLBA:   startLBA,
		numEntries: uint(numEntries),
	}
}

// OpenRootDirectory creates a view over the root directory described by a
// boot sector.
func OpenRootDirectory(device fat12fs.BlockDevice, bs BootSector) *Directory {
	return NewDirectory(device, bs.RootDirStartLBA, bs.MaxRootDirEntries)
}

// NumEntries gives the total number of slots in the directory.
func (dir *Directory) NumEntries() uint {
	return dir.numEntries
}

type scanAction int

const (
	scanContinue scanAction = iota
	scanStop
	// scanStopAndWrite stops the scan and writes the current sector back to
	// the device.
	scanStopAndWrite
)

// slotVisitor is called for each slot in order. `slot` is the slot's 32 bytes
// inside the sector buffer and may be modified if scanStopAndWrite is returned.
type slotVisitor func(index uint, slot []byte) (scanAction, error)

// scanSlots visits every slot in ascending order, one sector at a time, until
// the visitor stops or the directory ends.
func (dir *Directory) scanSlots(visit slotVisitor) error {
	sector := make([]byte, fat12fs.SectorSize)

	for index := uint(0); index < dir.numEntries; index += direntsPerSector {
		lba := dir.startLBA + uint64(index/direntsPerSector)
		err := dir.device.ReadSector(lba, sector)
		if err != nil {
			return err
		}

		for i := uint(0); i < direntsPerSector && index+i < dir.numEntries; i++ {
			slot := sector[i*DirentSize : (i+1)*DirentSize]
			action, err := visit(index+i, slot)
			if err != nil {
				return err
			}

			switch action {
			case scanStop:
				return nil
			case scanStopAndWrite:
				return dir.device.WriteSector(lba, sector)
			}
		}
	}
	return nil
}

// scanLive visits every live entry in order. The scan ends at the first slot
// marked with [DirentEndMarker]; deleted slots are skipped.
func (dir *Directory) scanLive(visit slotVisitor) error {
	return dir.scanSlots(
		func(index uint, slot []byte) (scanAction, error) {
			switch slot[0] {
			case DirentEndMarker:
				return scanStop, nil
			case DirentDeletedMarker:
				return scanContinue, nil
			}
			return visit(index, slot)
		},
	)
}

// List returns all live entries in on-disk order.
func (dir *Directory) List() ([]DirectoryEntry, error) {
	entries := []DirectoryEntry{}
	err := dir.scanLive(
		func(index uint, slot []byte) (scanAction, error) {
			entry, err := parseDirent(slot)
			if err != nil {
				return scanStop, err
			}
			entries = append(entries, entry)
			return scanContinue, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Find returns the first live entry whose 11-byte name field matches `name`,
// ignoring trailing spaces on both. It fails with [errors.ErrNotFound] if
// there's no match.
func (dir *Directory) Find(name string) (DirectoryEntry, error) {
	var found *DirectoryEntry
	err := dir.scanLive(
		func(index uint, slot []byte) (scanAction, error) {
			entry, err := parseDirent(slot)
			if err != nil {
				return scanStop, err
			}
			if entry.matchesShortName(name) {
				found = &entry
				return scanStop, nil
			}
			return scanContinue, nil
		},
	)
	if err != nil {
		return DirectoryEntry{}, err
	}
	if found == nil {
		return DirectoryEntry{}, errors.ErrNotFound.WithMessage(fmt.Sprintf("%q", name))
	}
	return *found, nil
}

func isFreeSlot(slot []byte) bool {
	return slot[0] == DirentEndMarker || slot[0] == DirentDeletedMarker
}

// Create stores a new entry in the first free or deleted slot. The name is
// truncated to 11 bytes. It fails with [errors.ErrDirectoryFull] if every slot
// is in use.
func (dir *Directory) Create(name string, startCluster uint16, size uint32) error {
	entry := NewDirectoryEntry(name, startCluster, size)
	created := false

	err := dir.scanSlots(
		func(index uint, slot []byte) (scanAction, error) {
			if !isFreeSlot(slot) {
				return scanContinue, nil
			}
			err := entry.serialize(slot)
			if err != nil {
				return scanStop, err
			}
			created = true
			return scanStopAndWrite, nil
		},
	)
	if err != nil {
		return err
	}
	if !created {
		return errors.ErrDirectoryFull.WithMessage(
			fmt.Sprintf("all %d entries are in use", dir.numEntries),
		)
	}
	return nil
}

// Delete marks the first live entry matching `name` as deleted. The clusters
// it points to are not freed. It fails with [errors.ErrNotFound] if there's no
// match.
func (dir *Directory) Delete(name string) error {
	deleted := false
	err := dir.scanLive(
		func(index uint, slot []byte) (scanAction, error) {
			entry, err := parseDirent(slot)
			if err != nil {
				return scanStop, err
			}
			if !entry.matchesShortName(name) {
				return scanContinue, nil
			}
			slot[0] = DirentDeletedMarker
			deleted = true
			return scanStopAndWrite, nil
		},
	)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.ErrNotFound.WithMessage(fmt.Sprintf("%q", name))
	}
	return nil
}

// FreeSlots gives the number of slots that Create could use.
func (dir *Directory) FreeSlots() (uint, error) {
	free := uint(0)
	err := dir.scanSlots(
		func(index uint, slot []byte) (scanAction, error) {
			if isFreeSlot(slot) {
				free++
			}
			return scanContinue, nil
		},
	)
	return free, err
}
