package main

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/filesystem"
	"github.com/weberc2/blockfs/pkg/io"
	"github.com/weberc2/blockfs/pkg/objectstore"
	"github.com/weberc2/blockfs/pkg/snapshot"
	. "github.com/weberc2/blockfs/pkg/types"
)

// createVolume opens a fresh volume for `blocks` blocks. File images are
// truncated; bolt volumes are reused and overwritten by the formatter.
func (c *Config) createVolume(blocks Block) (io.VolumeCloser, error) {
	if c.Backend == BackendBolt {
		return io.OpenBoltVolume(c.ImagePath())
	}
	return io.CreateFileVolume(c.ImagePath(), Byte(blocks)*BlockSize)
}

func (c *Config) openVolume() (io.VolumeCloser, error) {
	if c.Backend == BackendBolt {
		return io.OpenBoltVolume(c.ImagePath())
	}
	return io.OpenFileVolume(c.ImagePath())
}

func (c *Config) filesystemOptions() filesystem.Options {
	return filesystem.Options{
		CacheCapacity: c.CacheCapacity,
		Label:         c.Label,
	}
}

// openFileSystem opens the configured volume and loads the filesystem on
// it. The caller closes the returned volume.
func (c *Config) openFileSystem() (*filesystem.FileSystem, io.VolumeCloser, error) {
	volume, err := c.openVolume()
	if err != nil {
		return nil, nil, err
	}
	fs, err := filesystem.Open(volume, c.filesystemOptions())
	if err != nil {
		volume.Close()
		return nil, nil, fmt.Errorf("loading `%s`: %w", c.ImagePath(), err)
	}
	return fs, volume, nil
}

func (c *Config) snapshotter() (*snapshot.Snapshotter, error) {
	if err := c.ValidateSnapshots(); err != nil {
		return nil, err
	}
	s3, err := objectstore.NewS3ObjectStore(c.AWSRegion)
	if err != nil {
		return nil, err
	}
	return &snapshot.Snapshotter{
		Store:  &objectstore.GzipObjectStore{ObjectStore: s3},
		Bucket: c.SnapshotBucket,
		Prefix: c.SnapshotPrefix,
	}, nil
}

type snapshotSession struct {
	*snapshot.Snapshotter
}
