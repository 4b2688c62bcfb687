package common_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/rzos/fat12fs/errors"
	"github.com/rzos/fat12fs/file_systems/common"
	diskotest "github.com/rzos/fat12fs/testing"
	"github.com/rzos/fat12fs/utilities/compression"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

func TestStreamDevice__ReadWrite(t *testing.T) {
	image := diskotest.CreateRandomImage(512, 8, t)
	device := common.NewMemoryDeviceFromBytes(image)
	assert.EqualValues(t, 8, device.SectorCount())

	buffer := make([]byte, 512)
	require.NoError(t, device.ReadSector(3, buffer))
	assert.Equal(t, image[3*512:4*512], buffer)

	data := bytes.Repeat([]byte{0x5A}, 512)
	require.NoError(t, device.WriteSector(7, data))
	assert.Equal(t, data, image[7*512:])
}

func TestStreamDevice__OutOfBounds(t *testing.T) {
	device := common.NewMemoryDevice(4)
	buffer := make([]byte, 512)

	assert.ErrorIs(t, device.ReadSector(4, buffer), errors.ErrIOFailed)
	assert.ErrorIs(t, device.WriteSector(100, buffer), errors.ErrIOFailed)
}

func TestStreamDevice__WrongBufferSize(t *testing.T) {
	device := common.NewMemoryDevice(4)

	assert.ErrorIs(t, device.ReadSector(0, make([]byte, 511)), errors.ErrInvalidArgument)
	assert.ErrorIs(t, device.WriteSector(0, make([]byte, 1024)), errors.ErrInvalidArgument)
}

// Trailing bytes that don't fill a sector aren't addressable.
func TestNewMemoryDeviceFromBytes__PartialSector(t *testing.T) {
	device := common.NewMemoryDeviceFromBytes(make([]byte, 2*512+100))
	assert.EqualValues(t, 2, device.SectorCount())
}

func TestStreamDevice__Offset(t *testing.T) {
	image := make([]byte, 1024+4*512)
	stream := bytesextra.NewReadWriteSeeker(image)
	device := common.NewStreamDeviceWithOffset(stream, 4, 1024)

	data := bytes.Repeat([]byte{0xC3}, 512)
	require.NoError(t, device.WriteSector(0, data))
	assert.Equal(t, make([]byte, 1024), image[:1024], "wrote before start offset")
	assert.Equal(t, data, image[1024:1536])
}

func TestNewFloppyDevice(t *testing.T) {
	device := common.NewFloppyDevice()
	assert.EqualValues(t, 2880, device.SectorCount())
}

func TestCreateStreamDevice(t *testing.T) {
	fs := afero.NewMemMapFs()
	file, err := fs.Create("/disk.img")
	require.NoError(t, err)
	defer file.Close()

	device, err := common.CreateStreamDevice(file, 16)
	require.NoError(t, err)
	assert.EqualValues(t, 16, device.SectorCount())

	info, err := file.Stat()
	require.NoError(t, err)
	assert.EqualValues(t, 16*512, info.Size())

	require.NoError(t, device.WriteSector(15, make([]byte, 512)))
}

func TestCreateStreamDevice__NotResizable(t *testing.T) {
	// Hide any methods besides Read, Write and Seek.
	stream := struct{ io.ReadWriteSeeker }{bytesextra.NewReadWriteSeeker(make([]byte, 512))}

	_, err := common.CreateStreamDevice(stream, 16)
	assert.ErrorIs(t, err, errors.ErrNotSupported)
}

func TestLoadDiskDevice(t *testing.T) {
	original := diskotest.CreateRandomImage(512, 6, t)
	packed, err := compression.CompressImageToBytes(bytes.NewReader(original))
	require.NoError(t, err)

	device := diskotest.LoadDiskDevice(t, packed, 6)
	buffer := make([]byte, 512)
	for lba := uint64(0); lba < 6; lba++ {
		require.NoError(t, device.ReadSector(lba, buffer))
		assert.Equal(t, original[lba*512:(lba+1)*512], buffer)
	}
}
