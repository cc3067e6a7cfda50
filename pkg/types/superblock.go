package types

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	SuperblockMagic uint64 = 0x7366_6b63_6f6c_62 // ascii "blockfs"
	LabelSize       Byte   = 64
)

type Superblock struct {
	InodeCount Ino
	// FirstFreeIno is the lowest inode number whose allocation status is not
	// known to be taken. It equals InodeCount when the table is full.
	FirstFreeIno   Ino
	FreeListHead   Block
	InodeSize      Byte
	InodesPerBlock Ino

	Magic       uint64
	BlockCount  Block
	InodeBlocks Block
	FreeBlocks  Block
	FreeInodes  Ino
	VolumeID    uuid.UUID
	Label       string
}

func (sb *Superblock) FirstDataBlock() Block { return FirstDataBlock(sb.InodeBlocks) }

// DataBlocks is the number of blocks available for file data and free list
// bookkeeping.
func (sb *Superblock) DataBlocks() Block {
	return sb.BlockCount - sb.FirstDataBlock()
}

func (sb *Superblock) Validate() error {
	if sb.Magic != SuperblockMagic {
		return &BadMagicErr{Found: sb.Magic}
	}
	if sb.InodeSize != InodeSize || sb.InodesPerBlock != InodesPerBlock {
		return fmt.Errorf(
			"validating superblock: inode size `%d` (per block `%d`): %w",
			sb.InodeSize,
			sb.InodesPerBlock,
			IncompatibleLayoutErr,
		)
	}
	if sb.InodeBlocks < 1 || sb.FirstDataBlock() >= sb.BlockCount {
		return fmt.Errorf(
			"validating superblock: `%d` inode blocks in `%d` blocks: %w",
			sb.InodeBlocks,
			sb.BlockCount,
			IncompatibleLayoutErr,
		)
	}
	if sb.InodeCount != Ino(sb.InodeBlocks)*sb.InodesPerBlock {
		return fmt.Errorf(
			"validating superblock: inode count `%d`: %w",
			sb.InodeCount,
			IncompatibleLayoutErr,
		)
	}
	return nil
}

type BadMagicErr struct {
	Found uint64
}

func (err *BadMagicErr) Error() string {
	return fmt.Sprintf(
		"bad magic number: wanted `%x`; found `%x`",
		SuperblockMagic,
		err.Found,
	)
}
