// Package mkfs lays out a fresh volume.
package mkfs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/encode"
	"github.com/weberc2/blockfs/pkg/filesystem"
	"github.com/weberc2/blockfs/pkg/io"
	. "github.com/weberc2/blockfs/pkg/types"
)

// MinBlocks is the smallest volume that still has room for a superblock, one
// inode block and a data block for the root directory.
const MinBlocks Block = 3

type Options struct {
	Label string
	// VolumeID identifies the volume. A zero value generates a random one.
	VolumeID      uuid.UUID
	CacheCapacity int
	Logger        log.FieldLogger
	TimeFunc      func() time.Time
}

// Format overwrites the first `blocks` blocks of `volume` with an empty
// filesystem: zeroed blocks, the superblock, an unallocated inode table, the
// free list across every data block and finally the root directory.
func Format(volume io.Volume, blocks Block, opts Options) (*filesystem.FileSystem, error) {
	if blocks < MinBlocks {
		return nil, fmt.Errorf(
			"formatting `%d` blocks: need at least `%d`: %w",
			blocks,
			MinBlocks,
			InvalidArgumentErr,
		)
	}
	if Byte(len(opts.Label)) >= LabelSize {
		return nil, fmt.Errorf(
			"formatting `%d` blocks: label `%s` longer than `%d` bytes: %w",
			blocks,
			opts.Label,
			LabelSize-1,
			NameTooLongErr,
		)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	sb := filesystem.NewSuperblock(blocks, opts.Label)
	sb.VolumeID = opts.VolumeID
	if sb.VolumeID == uuid.Nil {
		sb.VolumeID = uuid.New()
	}

	// block 0 is rewritten whole by WriteSuperblock
	bs := blockstore.New(volume, sb.BlockCount, sb.InodeBlocks)
	var zero [BlockSize]byte
	for b := Block(1); b < blocks; b++ {
		if err := bs.WriteBlock(b, &zero); err != nil {
			return nil, fmt.Errorf("formatting: zeroing: %w", err)
		}
	}
	if err := bs.WriteSuperblock(&sb); err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}
	if err := writeInodeTable(bs, &sb); err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}

	fs, err := filesystem.Create(volume, &sb, filesystem.Options{
		CacheCapacity: opts.CacheCapacity,
		Logger:        logger,
		TimeFunc:      opts.TimeFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}
	if err := fs.Setup(); err != nil {
		return nil, fmt.Errorf("formatting: %w", err)
	}

	logger.WithFields(log.Fields{
		"volumeID":   sb.VolumeID,
		"label":      sb.Label,
		"blocks":     sb.BlockCount,
		"inodes":     sb.InodeCount,
		"freeBlocks": sb.FreeBlocks,
	}).Info("formatted volume")
	return fs, nil
}

func writeInodeTable(bs *blockstore.Store, sb *Superblock) error {
	var p [BlockSize]byte
	for block := Block(1); block <= sb.InodeBlocks; block++ {
		for i := Ino(0); i < InodesPerBlock; i++ {
			start := Byte(i) * InodeSize
			encode.EncodeInode(
				&Inode{},
				(*[InodeSize]byte)(p[start:start+InodeSize]),
			)
		}
		if err := bs.WriteInodeBlock(block, &p); err != nil {
			return fmt.Errorf("writing unallocated inode table: %w", err)
		}
	}
	return nil
}
