package alloc

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/encode"
	. "github.com/weberc2/blockfs/pkg/types"
)

// BlockAllocator hands out and takes back data blocks.
type BlockAllocator interface {
	Alloc() (Block, error)
	Free(block Block) error
}

// FreeList tracks unused data blocks as a chain of free list blocks. Slot 0
// of each free list block links the next block in the chain; slots 1 and up
// hold free block numbers directly.
type FreeList struct {
	Store      *blockstore.Store
	Superblock *Superblock
}

var _ BlockAllocator = (*FreeList)(nil)

// Alloc takes the first nonzero slot of the head block. When the head block
// has no slots left, the head block itself is handed out and the chain
// advances to the block linked from its slot 0. The returned block is
// zero-filled.
func (fl *FreeList) Alloc() (Block, error) {
	head := fl.Superblock.FreeListHead
	if head == BlockNil {
		return BlockNil, fmt.Errorf("allocating data block: %w", OutOfBlocksErr)
	}

	var p [BlockSize]byte
	if err := fl.Store.ReadDataBlock(head, &p); err != nil {
		return BlockNil, fmt.Errorf(
			"allocating data block: reading free list head `%d`: %w",
			head,
			err,
		)
	}

	for i := Block(1); i < PointersPerBlock; i++ {
		block := encode.GetPointer(&p, i)
		if block == BlockNil {
			continue
		}
		if err := fl.checkRange(block); err != nil {
			return BlockNil, fmt.Errorf(
				"allocating data block: free list block `%d` slot `%d`: %w",
				head,
				i,
				err,
			)
		}
		encode.PutPointer(&p, i, BlockNil)
		if err := fl.Store.WriteDataBlock(head, &p); err != nil {
			return BlockNil, fmt.Errorf(
				"allocating data block: rewriting free list head `%d`: %w",
				head,
				err,
			)
		}
		fl.Superblock.FreeBlocks--
		if err := fl.Store.WriteSuperblock(fl.Superblock); err != nil {
			return BlockNil, fmt.Errorf("allocating data block: %w", err)
		}
		return block, nil
	}

	next := encode.GetPointer(&p, 0)
	if next != BlockNil {
		if err := fl.checkRange(next); err != nil {
			return BlockNil, fmt.Errorf(
				"allocating data block: free list block `%d` link: %w",
				head,
				err,
			)
		}
	}

	// every other slot is already zero, so clearing the link leaves the
	// handed-out block zero-filled
	if err := fl.Store.ZeroDataBlock(head); err != nil {
		return BlockNil, fmt.Errorf(
			"allocating data block: clearing free list head `%d`: %w",
			head,
			err,
		)
	}
	fl.Superblock.FreeListHead = next
	fl.Superblock.FreeBlocks--
	if err := fl.Store.WriteSuperblock(fl.Superblock); err != nil {
		return BlockNil, fmt.Errorf("allocating data block: %w", err)
	}
	return head, nil
}

// Free zero-fills `block` and returns it to the free list, either into an
// empty slot of the head block or, when the head block is full, as the new
// head linked to the old one.
func (fl *FreeList) Free(block Block) error {
	if err := fl.checkRange(block); err != nil {
		return fmt.Errorf("freeing data block: %w", err)
	}

	if err := fl.Store.ZeroDataBlock(block); err != nil {
		return fmt.Errorf("freeing data block `%d`: %w", block, err)
	}

	head := fl.Superblock.FreeListHead
	if head == BlockNil {
		return fl.pushHead(block, head)
	}

	var p [BlockSize]byte
	if err := fl.Store.ReadDataBlock(head, &p); err != nil {
		return fmt.Errorf(
			"freeing data block `%d`: reading free list head `%d`: %w",
			block,
			head,
			err,
		)
	}

	for i := Block(1); i < PointersPerBlock; i++ {
		if encode.GetPointer(&p, i) != BlockNil {
			continue
		}
		encode.PutPointer(&p, i, block)
		if err := fl.Store.WriteDataBlock(head, &p); err != nil {
			return fmt.Errorf(
				"freeing data block `%d`: rewriting free list head `%d`: %w",
				block,
				head,
				err,
			)
		}
		fl.Superblock.FreeBlocks++
		if err := fl.Store.WriteSuperblock(fl.Superblock); err != nil {
			return fmt.Errorf("freeing data block `%d`: %w", block, err)
		}
		return nil
	}

	return fl.pushHead(block, head)
}

func (fl *FreeList) pushHead(block Block, next Block) error {
	if next != BlockNil {
		var p [BlockSize]byte
		encode.PutPointer(&p, 0, next)
		if err := fl.Store.WriteDataBlock(block, &p); err != nil {
			return fmt.Errorf(
				"freeing data block `%d`: linking to old head `%d`: %w",
				block,
				next,
				err,
			)
		}
	}
	fl.Superblock.FreeListHead = block
	fl.Superblock.FreeBlocks++
	if err := fl.Store.WriteSuperblock(fl.Superblock); err != nil {
		return fmt.Errorf("freeing data block `%d`: %w", block, err)
	}
	return nil
}

// Build lays out a fresh chain over the blocks in [first, end). Blocks are
// grouped by `PointersPerBlock`: the first block of each group is a free list
// block whose slots hold the rest of its group and whose slot 0 links the
// next group.
func (fl *FreeList) Build(first Block, end Block) error {
	var p [BlockSize]byte
	for group := first; group < end; group += PointersPerBlock {
		p = [BlockSize]byte{}
		if next := group + PointersPerBlock; next < end {
			encode.PutPointer(&p, 0, next)
		}
		for i := Block(1); i < PointersPerBlock && group+i < end; i++ {
			encode.PutPointer(&p, i, group+i)
		}
		if err := fl.Store.WriteDataBlock(group, &p); err != nil {
			return fmt.Errorf(
				"building free list over [`%d`, `%d`): %w",
				first,
				end,
				err,
			)
		}
	}

	fl.Superblock.FreeListHead = BlockNil
	fl.Superblock.FreeBlocks = 0
	if first < end {
		fl.Superblock.FreeListHead = first
		fl.Superblock.FreeBlocks = end - first
	}
	if err := fl.Store.WriteSuperblock(fl.Superblock); err != nil {
		return fmt.Errorf(
			"building free list over [`%d`, `%d`): %w",
			first,
			end,
			err,
		)
	}
	return nil
}

// Walk calls `f` for every block reachable from the head, chain links and
// slot entries alike, in allocation order.
func (fl *FreeList) Walk(f func(Block) error) error {
	var (
		p       [BlockSize]byte
		visited Block
		limit   = fl.Superblock.BlockCount
	)
	for head := fl.Superblock.FreeListHead; head != BlockNil; {
		if err := fl.Store.ReadDataBlock(head, &p); err != nil {
			return fmt.Errorf("walking free list: %w", err)
		}
		for i := Block(1); i < PointersPerBlock; i++ {
			if block := encode.GetPointer(&p, i); block != BlockNil {
				if err := f(block); err != nil {
					return err
				}
				visited++
			}
		}
		if err := f(head); err != nil {
			return err
		}
		visited++
		if visited > limit {
			return fmt.Errorf(
				"walking free list: visited more than `%d` blocks: %w",
				limit,
				InvalidArgumentErr,
			)
		}
		head = encode.GetPointer(&p, 0)
	}
	return nil
}

func (fl *FreeList) checkRange(block Block) error {
	if block < fl.Superblock.FirstDataBlock() ||
		block >= fl.Superblock.BlockCount {
		return fmt.Errorf(
			"data block `%d` outside [`%d`, `%d`): %w",
			block,
			fl.Superblock.FirstDataBlock(),
			fl.Superblock.BlockCount,
			BlockOutOfRangeErr,
		)
	}
	return nil
}
