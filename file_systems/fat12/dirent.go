package fat12

import (
	"bytes"
	"encoding/binary"
	"os"
	"strings"
	"time"

	"github.com/noxer/bytewriter"
	"github.com/rzos/fat12fs/errors"
)

// DirentSize is the size of a single directory entry on disk, in bytes.
const DirentSize = 32

const (
	// DirentEndMarker in the first byte of a slot marks the end of the
	// directory. It and all slots after it are free.
	DirentEndMarker = 0x00

	// DirentDeletedMarker in the first byte of a slot marks a deleted entry.
	// The slot can be reused.
	DirentDeletedMarker = 0xE5
)

const (
	// AttrReadOnly is an attribute flag marking a directory entry as read-only.
	AttrReadOnly = 1
	// AttrHidden marks an entry that shouldn't show up in normal listings.
	AttrHidden = 2
	// AttrSystem marks an entry as essential to the operating system.
	AttrSystem = 4
	// AttrVolumeLabel marks the entry holding the volume label.
	AttrVolumeLabel = 8
	// AttrDirectory marks a directory. Subdirectories aren't supported.
	AttrDirectory = 16
	// AttrArchived is set by some systems whenever an entry is modified.
	AttrArchived = 32
)

// DirectoryEntry is the on-disk representation of a directory entry.
//
// It implements [os.FileInfo]; Name() gives the human-readable form of the
// name, e.g. "HELLO.TXT".
type DirectoryEntry struct {
	BaseName     [8]byte
	Extension    [3]byte
	Attributes   uint8
	Reserved     [14]byte
	StartCluster uint16
	FileSize     uint32
}

// NewDirectoryEntry creates an entry for a file. `shortName` is the 11-byte
// name and extension field; longer names are truncated and shorter ones padded
// with spaces.
func NewDirectoryEntry(shortName string, startCluster uint16, size uint32) DirectoryEntry {
	field := padShortName(shortName)

	entry := DirectoryEntry{
		StartCluster: startCluster,
		FileSize:     size,
	}
	copy(entry.BaseName[:], field[:8])
	copy(entry.Extension[:], field[8:])
	return entry
}

// parseDirent decodes a 32-byte directory slot.
func parseDirent(slot []byte) (DirectoryEntry, error) {
	entry := DirectoryEntry{}
	err := binary.Read(bytes.NewReader(slot[:DirentSize]), binary.LittleEndian, &entry)
	if err != nil {
		return DirectoryEntry{}, errors.ErrIOFailed.Wrap(err)
	}
	return entry, nil
}

// serialize encodes the entry into a 32-byte directory slot.
func (entry *DirectoryEntry) serialize(slot []byte) error {
	writer := bytewriter.New(slot[:DirentSize])
	err := binary.Write(writer, binary.LittleEndian, entry)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

// ShortName returns the 11-byte name and extension field as stored on disk,
// e.g. "HELLO   TXT".
func (entry DirectoryEntry) ShortName() string {
	return string(entry.BaseName[:]) + string(entry.Extension[:])
}

// Name returns the base name and extension without padding, joined with a dot
// if there is an extension.
func (entry DirectoryEntry) Name() string {
	return DisplayName(entry.ShortName())
}

// Size returns the length of the file in bytes.
func (entry DirectoryEntry) Size() int64 {
	return int64(entry.FileSize)
}

// Mode returns 0o444 for read-only files and 0o644 for everything else.
func (entry DirectoryEntry) Mode() os.FileMode {
	if entry.Attributes&AttrReadOnly != 0 {
		return 0o444
	}
	return 0o644
}

// ModTime always returns the zero time; timestamps aren't maintained.
func (entry DirectoryEntry) ModTime() time.Time {
	return time.Time{}
}

// IsDir always returns false.
func (entry DirectoryEntry) IsDir() bool {
	return false
}

// Sys returns a copy of the entry.
func (entry DirectoryEntry) Sys() interface{} {
	return entry
}

// matchesShortName compares the entry's 11-byte name field with `name`, both
// with trailing spaces removed.
func (entry DirectoryEntry) matchesShortName(name string) bool {
	return strings.TrimRight(entry.ShortName(), " ") == strings.TrimRight(name, " ")
}
