package fat12

import (
	goerrors "errors"

	"github.com/boljen/go-bitmap"
	"github.com/rzos/fat12fs/errors"
	"github.com/sirupsen/logrus"
)

// FSStat describes the space on a volume.
type FSStat struct {
	BytesPerCluster uint
	TotalClusters   uint
	FreeClusters    uint
	Files           uint
	FreeDirents     uint
}

// UsedClusters gives the number of allocated clusters, including lost ones.
func (stat FSStat) UsedClusters() uint {
	return stat.TotalClusters - stat.FreeClusters
}

// StatFS returns usage information for the volume.
func (fs *FileSystem) StatFS() (FSStat, error) {
	fat := fs.fatTable()
	free, err := fat.CountFree()
	if err != nil {
		return FSStat{}, err
	}

	dir := fs.rootDirectory()
	entries, err := dir.List()
	if err != nil {
		return FSStat{}, err
	}
	freeDirents, err := dir.FreeSlots()
	if err != nil {
		return FSStat{}, err
	}

	total := uint(0)
	if fat.ClusterLimit() > FirstDataCluster {
		total = fat.ClusterLimit() - FirstDataCluster
	}

	return FSStat{
		BytesPerCluster: fs.bootSector.BytesPerCluster(),
		TotalClusters:   total,
		FreeClusters:    free,
		Files:           uint(len(entries)),
		FreeDirents:     freeDirents,
	}, nil
}

// CheckReport lists the inconsistencies found by [FileSystem.Check].
type CheckReport struct {
	// BrokenChains holds the names of files whose cluster chain is corrupt:
	// it links outside the data region or loops.
	BrokenChains []string
	// CrossLinked holds clusters claimed by more than one file.
	CrossLinked []uint16
	// SizeMismatches holds the names of files whose size doesn't fit the
	// number of clusters in their chain.
	SizeMismatches []string
	// LostClusters holds clusters marked as in use that no file refers to.
	LostClusters []uint16
	// Reclaimed is the number of lost clusters freed by a repair.
	Reclaimed uint
}

// Clean returns true if no inconsistencies were found.
func (report CheckReport) Clean() bool {
	return len(report.BrokenChains) == 0 &&
		len(report.CrossLinked) == 0 &&
		len(report.SizeMismatches) == 0 &&
		len(report.LostClusters) == 0
}

// Check walks the cluster chain of every file and compares the clusters in use
// with those allocated in the FAT. If `repair` is true, lost clusters are
// freed. Nothing else is changed.
//
// Lost clusters are left behind when a write runs out of space, or when a write
// or delete is interrupted between updating the FAT and updating the directory.
func (fs *FileSystem) Check(repair bool) (CheckReport, error) {
	report := CheckReport{}
	fat := fs.fatTable()
	limit := fat.ClusterLimit()
	inUse := bitmap.New(int(limit))

	entries, err := fs.rootDirectory().List()
	if err != nil {
		return report, err
	}

	bytesPerCluster := uint64(fs.bootSector.BytesPerCluster())
	for _, entry := range entries {
		if entry.StartCluster == 0 {
			if entry.FileSize != 0 {
				report.SizeMismatches = append(report.SizeMismatches, entry.Name())
			}
			continue
		}

		chain, err := fat.GetChain(entry.StartCluster)
		if goerrors.Is(err, errors.ErrFileSystemCorrupted) {
			report.BrokenChains = append(report.BrokenChains, entry.Name())
			continue
		} else if err != nil {
			return report, err
		}

		for _, cluster := range chain {
			if inUse.Get(int(cluster)) {
				report.CrossLinked = append(report.CrossLinked, cluster)
			}
			inUse.Set(int(cluster), true)
		}

		chainBytes := uint64(len(chain)) * bytesPerCluster
		if uint64(entry.FileSize) > chainBytes || uint64(entry.FileSize) <= chainBytes-bytesPerCluster {
			report.SizeMismatches = append(report.SizeMismatches, entry.Name())
		}
	}

	for cluster := uint(FirstDataCluster); cluster < limit; cluster++ {
		entry, err := fat.ReadEntry(uint16(cluster))
		if err != nil {
			return report, err
		}
		if entry != ClusterFree && !inUse.Get(int(cluster)) {
			report.LostClusters = append(report.LostClusters, uint16(cluster))
		}
	}

	// A broken chain may own clusters that look lost; freeing them could
	// destroy data that's still recoverable.
	if !repair || len(report.LostClusters) == 0 || len(report.BrokenChains) > 0 {
		return report, nil
	}

	for _, cluster := range report.LostClusters {
		err = fat.WriteEntry(cluster, ClusterFree)
		if err != nil {
			return report, err
		}
		report.Reclaimed++
	}
	err = fat.Flush()
	if err != nil {
		return report, err
	}

	fs.log.WithFields(logrus.Fields{
		"reclaimed": report.Reclaimed,
	}).Info("freed lost clusters")
	return report, nil
}
