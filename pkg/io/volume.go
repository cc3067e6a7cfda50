package io

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

type ReadAt interface {
	ReadAt(offset Byte, b []byte) error
}

type WriteAt interface {
	WriteAt(offset Byte, p []byte) error
}

type Volume interface {
	ReadAt
	WriteAt
}

// VolumeCloser is a Volume backed by an operating system resource.
type VolumeCloser interface {
	Volume
	Close() error
}
