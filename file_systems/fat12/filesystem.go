package fat12

import (
	goerrors "errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/rzos/fat12fs"
	"github.com/rzos/fat12fs/errors"
	"github.com/sirupsen/logrus"
)

// FileSystem is a mounted FAT12 volume. It exclusively owns its device; no
// other FileSystem or view may use the same storage while it's alive.
//
// A FileSystem is not safe for concurrent use.
type FileSystem struct {
	device     fat12fs.BlockDevice
	bootSector BootSector
	log        *logrus.Entry
}

var _ fat12fs.Driver = (*FileSystem)(nil)

// Option configures Mount and Format.
type Option func(*options)

type options struct {
	log *logrus.Entry
}

// WithLogger sets the logger used for diagnostics. By default nothing is
// logged.
func WithLogger(log *logrus.Entry) Option {
	return func(opts *options) {
		opts.log = log
	}
}

func buildOptions(opts []Option) options {
	built := options{}
	for _, opt := range opts {
		opt(&built)
	}
	if built.log == nil {
		logger := logrus.New()
		logger.SetOutput(io.Discard)
		built.log = logrus.NewEntry(logger)
	}
	built.log = built.log.WithField("component", "fat12")
	return built
}

// Mount reads the boot sector from sector 0 of `device`. Failures to read or
// parse it are wrapped in [errors.ErrBootSector]. Nothing else on the volume is
// validated.
func Mount(device fat12fs.BlockDevice, opts ...Option) (*FileSystem, error) {
	built := buildOptions(opts)

	buffer := make([]byte, fat12fs.SectorSize)
	err := device.ReadSector(0, buffer)
	if err != nil {
		built.log.WithError(err).Warn("failed to read boot sector")
		return nil, errors.ErrBootSector.Wrap(err)
	}

	bootSector, err := ParseBootSector(buffer)
	if err != nil {
		built.log.WithError(err).Warn("mount failed")
		return nil, errors.ErrBootSector.Wrap(err)
	}

	built.log.WithFields(logrus.Fields{
		"total_sectors": bootSector.TotalSectors,
		"fat_lba":       bootSector.FATStartLBA,
		"root_lba":      bootSector.RootDirStartLBA,
		"data_lba":      bootSector.DataStartLBA,
	}).Debug("mounted")

	return &FileSystem{
		device:     device,
		bootSector: bootSector,
		log:        built.log,
	}, nil
}

// DefaultBootSector returns the parameters Format writes for a volume of
// `totalSectors` sectors.
func DefaultBootSector(totalSectors uint16) BootSector {
	bs := BootSector{
		BytesPerSector:    DefaultBytesPerSector,
		SectorsPerCluster: DefaultSectorsPerCluster,
		ReservedSectors:   DefaultReservedSectors,
		NumFATs:           DefaultNumFATs,
		MaxRootDirEntries: DefaultRootDirEntries,
		TotalSectors:      totalSectors,
		SectorsPerFAT:     DefaultSectorsPerFAT,
	}
	bs.computeRegions()
	return bs
}

func zeroSectors(device fat12fs.BlockDevice, start, end uint64) error {
	zeroes := make([]byte, fat12fs.SectorSize)
	for lba := start; lba < end; lba++ {
		err := device.WriteSector(lba, zeroes)
		if err != nil {
			return err
		}
	}
	return nil
}

// Format creates an empty file system on `device`. Every sector of the device
// is zeroed, then a boot sector describing `totalSectors` sectors is written
// using the default layout.
func Format(device fat12fs.BlockDevice, totalSectors uint16, opts ...Option) error {
	built := buildOptions(opts)
	bs := DefaultBootSector(totalSectors)

	built.log.WithFields(logrus.Fields{
		"total_sectors":  totalSectors,
		"device_sectors": device.SectorCount(),
	}).Debug("formatting")

	err := zeroSectors(device, 0, device.SectorCount())
	if err != nil {
		return err
	}

	buffer := make([]byte, fat12fs.SectorSize)
	err = bs.Serialize(buffer)
	if err != nil {
		return err
	}
	err = device.WriteSector(0, buffer)
	if err != nil {
		return err
	}

	// The whole device was just zeroed, but the FAT and root directory must
	// be empty no matter what.
	return zeroSectors(device, bs.FATStartLBA, bs.DataStartLBA)
}

// BootSector returns the volume parameters read at mount time.
func (fs *FileSystem) BootSector() BootSector {
	return fs.bootSector
}

func (fs *FileSystem) rootDirectory() *Directory {
	return OpenRootDirectory(fs.device, fs.bootSector)
}

func (fs *FileSystem) fatTable() *FatTable {
	return OpenFatTable(fs.device, fs.bootSector)
}

// ListRoot returns the live entries of the root directory in on-disk order.
func (fs *FileSystem) ListRoot() ([]DirectoryEntry, error) {
	return fs.rootDirectory().List()
}

// ReadDir implements [fat12fs.ReadingDriver].
func (fs *FileSystem) ReadDir() ([]os.FileInfo, error) {
	entries, err := fs.ListRoot()
	if err != nil {
		return nil, err
	}

	infos := make([]os.FileInfo, len(entries))
	for i, entry := range entries {
		infos[i] = entry
	}
	return infos, nil
}

// findEntry looks `name` up in `dir`. The normalized 8.3 form of the name is
// tried first, then the name exactly as given, so entries whose on-disk name
// isn't valid 8.3 can still be reached. A name that matches neither fails with
// [errors.ErrFileNotFound], even if it can't be normalized.
func findEntry(dir *Directory, name string) (DirectoryEntry, error) {
	shortName, err := FormatShortName(name)
	if err == nil {
		entry, err := dir.Find(shortName)
		if err == nil || !isNotFound(err) || shortName == name {
			return entry, err
		}
	}

	if name == "" {
		return DirectoryEntry{}, errors.ErrFileNotFound.WithMessage("empty file name")
	}
	return dir.Find(name)
}

// Stat returns the directory entry for `name`.
func (fs *FileSystem) Stat(name string) (DirectoryEntry, error) {
	return findEntry(fs.rootDirectory(), name)
}

// readCluster appends the contents of one data cluster to `output`.
func (fs *FileSystem) readCluster(cluster uint16, output []byte) ([]byte, error) {
	buffer := make([]byte, fat12fs.SectorSize)
	lba := fs.bootSector.ClusterToLBA(cluster)

	for i := uint64(0); i < uint64(fs.bootSector.SectorsPerCluster); i++ {
		err := fs.device.ReadSector(lba+i, buffer)
		if err != nil {
			return output, err
		}
		output = append(output, buffer...)
	}
	return output, nil
}

// ReadFile returns the contents of the file `name`. It fails with
// [errors.ErrFileNotFound] if there's no such file.
func (fs *FileSystem) ReadFile(name string) ([]byte, error) {
	entry, err := fs.Stat(name)
	if err != nil {
		return nil, err
	}
	if entry.StartCluster == 0 {
		return []byte{}, nil
	}

	chain, err := fs.fatTable().GetChain(entry.StartCluster)
	if err != nil {
		fs.log.WithError(err).WithField("file", entry.Name()).Warn("broken cluster chain")
		return nil, err
	}

	data := make([]byte, 0, uint(len(chain))*fs.bootSector.BytesPerCluster())
	for _, cluster := range chain {
		data, err = fs.readCluster(cluster, data)
		if err != nil {
			return nil, err
		}
	}

	if uint64(len(data)) > uint64(entry.FileSize) {
		data = data[:entry.FileSize]
	}
	return data, nil
}

// writeCluster writes up to one cluster's worth of `data` into a data cluster,
// zero-padding the last sector. Sectors past the end of `data` aren't written.
// It returns the number of bytes consumed.
func (fs *FileSystem) writeCluster(cluster uint16, data []byte) (int, error) {
	buffer := make([]byte, fat12fs.SectorSize)
	lba := fs.bootSector.ClusterToLBA(cluster)
	written := 0

	for i := uint64(0); i < uint64(fs.bootSector.SectorsPerCluster) && written < len(data); i++ {
		n := copy(buffer, data[written:])
		for j := n; j < len(buffer); j++ {
			buffer[j] = 0
		}

		err := fs.device.WriteSector(lba+i, buffer)
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// WriteFile creates a new file containing `data`.
//
// Only text files can be created: the name must end in ".txt" (in any case) or
// be an 11-character short name with the extension "TXT", otherwise this fails
// with [errors.ErrInvalidName]. It fails with [errors.ErrFileAlreadyExists] if
// the file exists, [errors.ErrDirectoryFull] if the root directory has no free
// slot and [errors.ErrNoSpace] if the data doesn't fit.
//
// On [errors.ErrNoSpace] the clusters allocated so far stay allocated and no
// directory entry refers to them. [FileSystem.Check] finds and reclaims them.
//
// Empty files don't occupy a cluster and have a start cluster of 0.
func (fs *FileSystem) WriteFile(name string, data []byte) error {
	if !HasTextExtension(name) {
		return errors.ErrInvalidName.WithMessage(
			fmt.Sprintf("%q: only .txt files can be created", name),
		)
	}
	shortName, err := FormatShortName(name)
	if err != nil {
		return err
	}
	if uint64(len(data)) > math.MaxUint32 {
		return errors.ErrFileTooLarge
	}

	dir := fs.rootDirectory()
	_, err = dir.Find(shortName)
	if err == nil {
		return errors.ErrFileAlreadyExists.WithMessage(fmt.Sprintf("%q", name))
	} else if !isNotFound(err) {
		return err
	}

	freeSlots, err := dir.FreeSlots()
	if err != nil {
		return err
	}
	if freeSlots == 0 {
		return errors.ErrDirectoryFull
	}

	startCluster, err := fs.writeChain(data)
	if err != nil {
		return err
	}

	err = dir.Create(shortName, startCluster, uint32(len(data)))
	if err != nil {
		fs.releaseChain(startCluster, err)
		return err
	}

	fs.log.WithFields(logrus.Fields{
		"file":          shortName,
		"size":          len(data),
		"start_cluster": startCluster,
	}).Debug("wrote file")
	return nil
}

// writeChain allocates clusters for `data` one at a time, linking each to the
// previous one, and writes the data into them. The FAT is flushed before
// returning. It returns the first cluster, or 0 if `data` is empty.
//
// If the data region fills up, the partial chain is terminated and left in the
// FAT. If any other error occurs, the clusters allocated so far are freed.
func (fs *FileSystem) writeChain(data []byte) (uint16, error) {
	if len(data) == 0 {
		return 0, nil
	}

	fat := fs.fatTable()
	first := uint16(0)
	previous := uint16(0)
	remaining := data

	for len(remaining) > 0 {
		cluster, err := fat.AllocCluster()
		if goerrors.Is(err, errors.ErrNoSpace) {
			fs.abandonChain(fat, first, err)
			return 0, err
		}
		if err == nil && previous != 0 {
			err = fat.WriteEntry(previous, cluster)
		}
		if err != nil {
			fs.rollBack(fat, first, cluster, err)
			return 0, err
		}

		if first == 0 {
			first = cluster
		}
		previous = cluster

		written, err := fs.writeCluster(cluster, remaining)
		if err != nil {
			fs.rollBack(fat, first, 0, err)
			return 0, err
		}
		remaining = remaining[written:]
	}

	err := fat.WriteEntry(previous, ClusterEndOfChain)
	if err != nil {
		fs.rollBack(fat, first, 0, err)
		return 0, err
	}
	return first, fat.Flush()
}

// abandonChain flushes a partial chain that ran out of space. Its last cluster
// is already marked as end of chain.
func (fs *FileSystem) abandonChain(fat *FatTable, first uint16, cause error) {
	log := fs.log.WithError(cause).WithField("start_cluster", first)
	log.Warn("out of space, leaving partially written clusters allocated")

	err := fat.Flush()
	if err != nil {
		log.WithField("flush_error", err).Warn("failed to flush FAT")
	}
}

// rollBack frees the partial chain starting at `first`, plus `orphan` if it
// was allocated but not yet linked into the chain, and flushes the FAT.
func (fs *FileSystem) rollBack(fat *FatTable, first, orphan uint16, cause error) {
	log := fs.log.WithError(cause).WithField("start_cluster", first)
	log.Info("write failed, releasing allocated clusters")

	if first != 0 {
		err := fat.FreeCluster(first)
		if err != nil {
			log.WithField("release_error", err).Warn("failed to release clusters")
		}
	}
	if orphan != 0 && orphan != first {
		err := fat.WriteEntry(orphan, ClusterFree)
		if err != nil {
			log.WithFields(logrus.Fields{
				"cluster":       orphan,
				"release_error": err,
			}).Warn("failed to release unlinked cluster")
		}
	}

	err := fat.Flush()
	if err != nil {
		log.WithField("flush_error", err).Warn("failed to flush FAT after rollback")
	}
}

// releaseChain frees a complete chain after a failed directory update.
func (fs *FileSystem) releaseChain(start uint16, cause error) {
	if start == 0 {
		return
	}
	fs.rollBack(fs.fatTable(), start, 0, cause)
}

func isNotFound(err error) bool {
	return goerrors.Is(err, errors.ErrNotFound)
}

// Delete removes the file `name` and frees its clusters. It fails with
// [errors.ErrFileNotFound] if there's no such file.
//
// The clusters are freed before the directory entry is removed. If this is
// interrupted in between, the entry points to free clusters.
func (fs *FileSystem) Delete(name string) error {
	dir := fs.rootDirectory()
	entry, err := findEntry(dir, name)
	if err != nil {
		return err
	}
	shortName := entry.ShortName()

	if entry.StartCluster != 0 {
		fat := fs.fatTable()
		err = fat.FreeCluster(entry.StartCluster)
		if err != nil {
			return err
		}
		err = fat.Flush()
		if err != nil {
			return err
		}
	}

	err = dir.Delete(shortName)
	if err != nil {
		return err
	}

	fs.log.WithField("file", shortName).Debug("deleted file")
	return nil
}
