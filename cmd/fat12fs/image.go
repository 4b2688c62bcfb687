package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/rzos/fat12fs"
	"github.com/rzos/fat12fs/errors"
	"github.com/rzos/fat12fs/file_systems/common"
	"github.com/rzos/fat12fs/file_systems/fat12"
	"github.com/rzos/fat12fs/utilities/compression"
	"github.com/spf13/afero"
)

// image is a disk image opened as a block device. Uncompressed images are
// accessed in place; compressed ones are unpacked into memory and packed again
// on Close.
type image struct {
	env      *environment
	path     string
	device   *common.StreamDevice
	file     afero.File
	data     []byte
	writable bool
}

func (env *environment) imagePath() (string, error) {
	if env.cfg.Image == "" {
		return "", errors.ErrInvalidArgument.WithMessage(
			"no image given; use --image or set it in the config file",
		)
	}
	return env.cfg.Image, nil
}

// openImage opens an existing image.
func (env *environment) openImage(writable bool) (*image, error) {
	path, err := env.imagePath()
	if err != nil {
		return nil, err
	}

	flags := os.O_RDONLY
	if writable && !env.cfg.Compressed {
		flags = os.O_RDWR
	}
	file, err := env.fs.OpenFile(path, flags, 0)
	if err != nil {
		return nil, errors.ErrIOFailed.Wrap(err)
	}

	img := &image{env: env, path: path, writable: writable}
	if env.cfg.Compressed {
		defer file.Close()
		img.data, err = compression.DecompressImageToBytes(file)
		if err != nil {
			return nil, errors.ErrIOFailed.Wrap(fmt.Errorf("unpacking %s: %w", path, err))
		}
		img.device = common.NewMemoryDeviceFromBytes(img.data)
	} else {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, errors.ErrIOFailed.Wrap(err)
		}
		img.file = file
		img.device = common.NewStreamDevice(file, uint64(info.Size())/fat12fs.SectorSize)
	}

	env.log.WithField("image", path).
		WithField("sectors", img.device.SectorCount()).
		Debug("opened image")
	return img, nil
}

// createImage creates or overwrites an image of `sectors` zeroed sectors.
func (env *environment) createImage(sectors uint16) (*image, error) {
	path, err := env.imagePath()
	if err != nil {
		return nil, err
	}

	img := &image{env: env, path: path, writable: true}
	if env.cfg.Compressed {
		img.data = make([]byte, uint64(sectors)*fat12fs.SectorSize)
		img.device = common.NewMemoryDeviceFromBytes(img.data)
		return img, nil
	}

	file, err := env.fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.ErrIOFailed.Wrap(err)
	}
	img.device, err = common.CreateStreamDevice(file, uint64(sectors))
	if err != nil {
		file.Close()
		return nil, err
	}
	img.file = file
	return img, nil
}

// mount mounts the file system on the image.
func (img *image) mount() (*fat12.FileSystem, error) {
	return fat12.Mount(img.device, fat12.WithLogger(img.env.log))
}

// Close releases the image. A writable compressed image is packed and written
// back first.
func (img *image) Close() error {
	if img.file != nil {
		err := img.file.Close()
		if err != nil {
			return errors.ErrIOFailed.Wrap(err)
		}
		return nil
	}
	if !img.writable {
		return nil
	}

	packed, err := compression.CompressImageToBytes(bytes.NewReader(img.data))
	if err != nil {
		return err
	}
	err = afero.WriteFile(img.env.fs, img.path, packed, 0o644)
	if err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}

	img.env.log.WithField("image", img.path).
		WithField("packed_bytes", len(packed)).
		Debug("packed image")
	return nil
}
