package common

import (
	"fmt"
	"io"

	"github.com/rzos/fat12fs"
	"github.com/rzos/fat12fs/errors"
	"github.com/xaionaro-go/bytesextra"
)

// FloppySectors is the number of sectors on a 3.5" 1.44 MiB floppy disk.
const FloppySectors = 2880

// StreamDevice is an abstraction layer around a stream to make it look like a
// block device, i.e. something that can only be read from or written to one
// sector at a time.
//
// The exposed fields are for informational purposes only and should never be
// changed.
type StreamDevice struct {
	// TotalSectors is the total number of sectors in this stream.
	TotalSectors uint64
	// StartOffset is an offset from the beginning of the stream, in bytes, that
	// will be considered the beginning of sector 0 for the device. This is
	// useful for skipping over MBRs or other volumes stored on the same image.
	StartOffset int64
	stream      io.ReadWriteSeeker
}

var _ fat12fs.BlockDevice = (*StreamDevice)(nil)

// NewStreamDevice creates a [StreamDevice] of `totalSectors` sectors starting at
// the beginning of `stream`.
func NewStreamDevice(stream io.ReadWriteSeeker, totalSectors uint64) *StreamDevice {
	return &StreamDevice{
		TotalSectors: totalSectors,
		stream:       stream,
	}
}

// NewStreamDeviceWithOffset is like [NewStreamDevice] but sector 0 begins
// `startOffset` bytes into the stream.
func NewStreamDeviceWithOffset(
	stream io.ReadWriteSeeker, totalSectors uint64, startOffset int64,
) *StreamDevice {
	return &StreamDevice{
		TotalSectors: totalSectors,
		StartOffset:  startOffset,
		stream:       stream,
	}
}

// CreateStreamDevice resizes `stream` to hold exactly `totalSectors` sectors
// and wraps it. `stream` must implement [Truncator].
func CreateStreamDevice(stream io.ReadWriteSeeker, totalSectors uint64) (*StreamDevice, error) {
	truncator, ok := stream.(Truncator)
	if !ok {
		return nil, errors.ErrNotSupported.WithMessage("stream can't be resized")
	}

	err := truncator.Truncate(int64(totalSectors) * fat12fs.SectorSize)
	if err != nil {
		return nil, errors.ErrIOFailed.Wrap(err)
	}
	return NewStreamDevice(stream, totalSectors), nil
}

// NewMemoryDevice creates a zeroed in-memory device of `totalSectors` sectors.
func NewMemoryDevice(totalSectors uint64) *StreamDevice {
	return NewMemoryDeviceFromBytes(make([]byte, totalSectors*fat12fs.SectorSize))
}

// NewMemoryDeviceFromBytes creates a device backed directly by `data`; writes
// to the device modify the slice. Trailing bytes that don't make up a whole
// sector are ignored.
func NewMemoryDeviceFromBytes(data []byte) *StreamDevice {
	return NewStreamDevice(
		bytesextra.NewReadWriteSeeker(data),
		uint64(len(data))/fat12fs.SectorSize,
	)
}

// NewFloppyDevice creates a zeroed in-memory device the size of a 1.44 MiB
// floppy disk.
func NewFloppyDevice() *StreamDevice {
	return NewMemoryDevice(FloppySectors)
}

// SectorCount implements [fat12fs.BlockDevice].
func (device *StreamDevice) SectorCount() uint64 {
	return device.TotalSectors
}

func (device *StreamDevice) checkIOBounds(lba uint64, dataLength int) error {
	if lba >= device.TotalSectors {
		return errors.ErrIOFailed.WithMessage(
			fmt.Sprintf("invalid sector %d: not in range [0, %d)", lba, device.TotalSectors),
		)
	}
	if dataLength != fat12fs.SectorSize {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"buffer must be exactly %d bytes, got %d", fat12fs.SectorSize, dataLength,
			),
		)
	}
	return nil
}

func (device *StreamDevice) seekToSector(lba uint64) error {
	offset := device.StartOffset + int64(lba)*fat12fs.SectorSize
	_, err := device.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

// ReadSector implements [fat12fs.BlockDevice].
func (device *StreamDevice) ReadSector(lba uint64, buffer []byte) error {
	err := device.checkIOBounds(lba, len(buffer))
	if err != nil {
		return err
	}

	err = device.seekToSector(lba)
	if err != nil {
		return err
	}

	_, err = io.ReadFull(device.stream, buffer)
	if err != nil {
		return errors.ErrIOFailed.Wrap(fmt.Errorf("reading sector %d: %w", lba, err))
	}
	return nil
}

// WriteSector implements [fat12fs.BlockDevice].
func (device *StreamDevice) WriteSector(lba uint64, data []byte) error {
	err := device.checkIOBounds(lba, len(data))
	if err != nil {
		return err
	}

	err = device.seekToSector(lba)
	if err != nil {
		return err
	}

	_, err = device.stream.Write(data)
	if err != nil {
		return errors.ErrIOFailed.Wrap(fmt.Errorf("writing sector %d: %w", lba, err))
	}
	return nil
}
