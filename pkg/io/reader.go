package io

import (
	"fmt"
	"io"

	"github.com/weberc2/blockfs/pkg/math"
	. "github.com/weberc2/blockfs/pkg/types"
)

// VolumeReader streams the first `size` bytes of a Volume through the
// standard io.ReadSeeker interface.
type VolumeReader struct {
	volume ReadAt
	offset Byte
	size   Byte
}

func NewVolumeReader(volume ReadAt, size Byte) *VolumeReader {
	return &VolumeReader{volume: volume, size: size}
}

func (r *VolumeReader) Read(p []byte) (int, error) {
	if r.offset >= r.size {
		return 0, io.EOF
	}
	n := math.Min(Byte(len(p)), r.size-r.offset)
	if err := r.volume.ReadAt(r.offset, p[:n]); err != nil {
		return 0, err
	}
	r.offset += n
	return int(n), nil
}

func (r *VolumeReader) Seek(offset int64, whence int) (int64, error) {
	var base Byte
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = r.offset
	case io.SeekEnd:
		base = r.size
	default:
		return 0, fmt.Errorf("seeking volume: whence `%d`: %w", whence, InvalidArgumentErr)
	}
	target := base + Byte(offset)
	if target < 0 {
		return 0, fmt.Errorf("seeking volume to `%d`: %w", target, InvalidArgumentErr)
	}
	r.offset = target
	return int64(target), nil
}

// CopyIn writes everything from `r` into `volume` starting at offset 0 and
// returns the number of bytes written.
func CopyIn(volume WriteAt, r io.Reader) (Byte, error) {
	buf := make([]byte, BlockSize)
	var offset Byte
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if err := volume.WriteAt(offset, buf[:n]); err != nil {
				return offset, fmt.Errorf(
					"copying into volume at offset `%d`: %w",
					offset,
					err,
				)
			}
			offset += Byte(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf(
				"copying into volume at offset `%d`: %w",
				offset,
				err,
			)
		}
	}
}
