package types

type Block uint64

type Byte int64

const (
	BlockSize        Byte = 4096
	BlockPointerSize Byte = 8

	// PointersPerBlock is the fan-out of a single indirection block.
	PointersPerBlock Block = Block(BlockSize / BlockPointerSize)

	BlockNil        Block = 0
	BlockSuperblock Block = 0

	// InodeBlocksPercent is the share of the volume reserved for the inode
	// table.
	InodeBlocksPercent = 10
)

// InodeBlockCount returns the number of inode table blocks reserved on a
// volume with `blocks` blocks. At least one block is always reserved.
func InodeBlockCount(blocks Block) Block {
	if n := blocks * InodeBlocksPercent / 100; n > 0 {
		return n
	}
	return 1
}

// FirstDataBlock is the lowest block number that may hold file data.
func FirstDataBlock(inodeBlocks Block) Block {
	return inodeBlocks + 1
}
