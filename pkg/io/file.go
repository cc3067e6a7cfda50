package io

import (
	"fmt"
	"os"

	. "github.com/weberc2/blockfs/pkg/types"
)

type FileVolume struct {
	file *os.File
}

func NewFileVolume(file *os.File) *FileVolume {
	return &FileVolume{file: file}
}

// CreateFileVolume creates (or truncates) the image at `path` and sizes it to
// `size` bytes. The extension reads back as zeros.
func CreateFileVolume(path string, size Byte) (*FileVolume, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("creating file volume `%s`: %w", path, err)
	}
	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, fmt.Errorf(
			"creating file volume `%s`: sizing to `%d` bytes: %w",
			path,
			size,
			err,
		)
	}
	return &FileVolume{file: file}, nil
}

func OpenFileVolume(path string) (*FileVolume, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening file volume `%s`: %w", path, err)
	}
	return &FileVolume{file: file}, nil
}

func (volume *FileVolume) ReadAt(offset Byte, p []byte) error {
	if _, err := volume.file.ReadAt(p, int64(offset)); err != nil {
		return fmt.Errorf(
			"reading file `%s` at offset `%d`: %w",
			volume.file.Name(),
			offset,
			err,
		)
	}
	return nil
}

func (volume *FileVolume) WriteAt(offset Byte, p []byte) error {
	if _, err := volume.file.WriteAt(p, int64(offset)); err != nil {
		return fmt.Errorf(
			"writing file `%s` at offset `%d`: %w",
			volume.file.Name(),
			offset,
			err,
		)
	}
	return nil
}

func (volume *FileVolume) Sync() error { return volume.file.Sync() }

func (volume *FileVolume) Close() error { return volume.file.Close() }
