package testing

import (
	"bytes"
	"io"
	"testing"

	"github.com/rzos/fat12fs"
	"github.com/rzos/fat12fs/file_systems/common"
	"github.com/rzos/fat12fs/file_systems/fat12"
	"github.com/rzos/fat12fs/utilities/compression"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// LoadDiskImage takes a compressed disk image and returns a stream to access the
// uncompressed data.
//
//   - Writes to the stream do not affect `compressedImageBytes`.
//   - While the stream can be written to, its size is fixed to `sectorSize * totalSectors`.
//     Attempting to write past the end of this buffer will trigger an error.
func LoadDiskImage(
	t *testing.T, compressedImageBytes []byte, sectorSize, totalSectors uint,
) io.ReadWriteSeeker {
	compressedBuf := bytes.NewBuffer(compressedImageBytes)
	require.Greater(t, len(compressedImageBytes), 0, "compressed image is empty")

	imageBytes, err := compression.DecompressImageToBytes(compressedBuf)
	require.NoError(t, err)

	require.Equal(
		t,
		totalSectors*sectorSize,
		uint(len(imageBytes)),
		"uncompressed image is wrong size",
	)
	return bytesextra.NewReadWriteSeeker(imageBytes)
}

// LoadDiskDevice is like [LoadDiskImage] but returns a block device.
func LoadDiskDevice(t *testing.T, compressedImageBytes []byte, totalSectors uint) *common.StreamDevice {
	stream := LoadDiskImage(t, compressedImageBytes, fat12fs.SectorSize, totalSectors)
	return common.NewStreamDevice(stream, uint64(totalSectors))
}

// NewTestLogger returns a logger that discards its output and a hook recording
// every entry logged through it.
func NewTestLogger() (*logrus.Entry, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

// CreateFormattedDevice creates an in-memory device of `deviceSectors`
// sectors and formats it for a volume of `totalSectors` sectors. The backing
// bytes are returned too, so tests can inspect the raw image.
func CreateFormattedDevice(
	t *testing.T, totalSectors uint16, deviceSectors uint64,
) (*common.StreamDevice, []byte) {
	image := make([]byte, deviceSectors*fat12fs.SectorSize)
	device := common.NewMemoryDeviceFromBytes(image)

	log, _ := NewTestLogger()
	err := fat12.Format(device, totalSectors, fat12.WithLogger(log))
	require.NoError(t, err, "failed to format %d-sector device", deviceSectors)
	return device, image
}

// MountFormattedFloppy formats a 1.44 MiB in-memory floppy and mounts it.
func MountFormattedFloppy(t *testing.T) (*fat12.FileSystem, []byte) {
	device, image := CreateFormattedDevice(t, common.FloppySectors, common.FloppySectors)

	log, _ := NewTestLogger()
	fs, err := fat12.Mount(device, fat12.WithLogger(log))
	require.NoError(t, err, "failed to mount freshly formatted floppy")
	return fs, image
}
