package physical

import (
	"fmt"
	"strings"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/inode/data/block/indirect"
	. "github.com/weberc2/blockfs/pkg/types"
)

// Translator maps an inode's logical blocks to physical blocks across the
// direct and indirect tiers. Methods mutate the inode in memory only; callers
// persist it.
type Translator struct {
	Indirect  indirect.ReadWriter
	Allocator alloc.BlockAllocator
	Store     *blockstore.Store
}

func NewTranslator(
	store *blockstore.Store,
	allocator alloc.BlockAllocator,
) *Translator {
	return &Translator{
		Indirect:  indirect.NewReadWriter(store),
		Allocator: allocator,
		Store:     store,
	}
}

// Translate returns the physical block holding logical block `inodeBlock`.
func (t *Translator) Translate(inode *Inode, inodeBlock Block) (Block, error) {
	if inodeBlock >= inode.Blocks {
		return BlockNil, fmt.Errorf(
			"translating inode `%d` block `%d`: only `%d` blocks attached: %w",
			inode.Ino,
			inodeBlock,
			inode.Blocks,
			BlockOutOfRangeErr,
		)
	}

	var ind indirection
	if err := ind.fromInodeBlock(inode, inodeBlock); err != nil {
		return BlockNil, fmt.Errorf(
			"translating inode `%d` block `%d`: %w",
			inode.Ino,
			inodeBlock,
			err,
		)
	}

	chain, err := t.walk(&ind)
	if err != nil {
		return BlockNil, fmt.Errorf(
			"translating inode `%d` block `%d`: %w",
			inode.Ino,
			inodeBlock,
			err,
		)
	}
	return chain.leaf, nil
}

// Append attaches `block` at logical index `inode.Blocks`, allocating any
// missing indirection blocks on the way. Pointers are written leaf first so
// nothing reachable from the inode ever points at an unwritten block; on
// failure the inode is left untouched and fresh indirection blocks are
// returned to the allocator.
func (t *Translator) Append(inode *Inode, block Block) error {
	if err := t.append(inode, block); err != nil {
		return fmt.Errorf(
			"appending block `%d` to inode `%d` at `%d`: %w",
			block,
			inode.Ino,
			inode.Blocks,
			err,
		)
	}
	return nil
}

func (t *Translator) append(inode *Inode, block Block) error {
	var (
		clone = *inode
		ind   indirection
	)
	if err := ind.fromInodeBlock(&clone, clone.Blocks); err != nil {
		return err
	}

	if ind.level == levelDirect {
		*ind.ptr = block
		clone.Blocks++
		*inode = clone
		return nil
	}

	indices := ind.indices()
	var (
		blocks [levelOutOfRange]Block
		fresh  [levelOutOfRange]bool
		cur    = *ind.ptr
	)
	for depth, index := range indices {
		if cur == BlockNil {
			b, err := t.allocIndirect()
			if err != nil {
				t.release(blocks[:depth], fresh[:depth])
				return fmt.Errorf(
					"allocating %s block at depth `%d`: %w",
					ind.level,
					depth,
					err,
				)
			}
			cur, fresh[depth] = b, true
		}
		blocks[depth] = cur

		if depth == len(indices)-1 {
			break
		}
		if fresh[depth] {
			cur = BlockNil
			continue
		}
		next, err := t.Indirect.ReadIndirect(cur, index)
		if err != nil {
			t.release(blocks[:depth+1], fresh[:depth+1])
			return err
		}
		cur = next
	}

	// leaf first, then link each fresh block into its parent
	last := len(indices) - 1
	if err := t.Indirect.WriteIndirect(blocks[last], indices[last], block); err != nil {
		t.release(blocks[:last+1], fresh[:last+1])
		return err
	}
	for depth := last - 1; depth >= 0; depth-- {
		if !fresh[depth+1] {
			continue
		}
		if err := t.Indirect.WriteIndirect(
			blocks[depth],
			indices[depth],
			blocks[depth+1],
		); err != nil {
			t.release(blocks[:last+1], fresh[:last+1])
			return err
		}
	}
	if fresh[0] {
		*ind.ptr = blocks[0]
	}

	clone.Blocks++
	*inode = clone
	return nil
}

// Overwrite replaces the existing mapping of logical block `inodeBlock`.
func (t *Translator) Overwrite(inode *Inode, inodeBlock Block, block Block) error {
	if inodeBlock >= inode.Blocks {
		return fmt.Errorf(
			"overwriting inode `%d` block `%d`: only `%d` blocks attached: %w",
			inode.Ino,
			inodeBlock,
			inode.Blocks,
			BlockOutOfRangeErr,
		)
	}

	clone := *inode
	var ind indirection
	if err := ind.fromInodeBlock(&clone, inodeBlock); err != nil {
		return fmt.Errorf(
			"overwriting inode `%d` block `%d`: %w",
			inode.Ino,
			inodeBlock,
			err,
		)
	}

	if ind.level == levelDirect {
		*ind.ptr = block
		*inode = clone
		return nil
	}

	chain, err := t.walk(&ind)
	if err != nil {
		return fmt.Errorf(
			"overwriting inode `%d` block `%d`: %w",
			inode.Ino,
			inodeBlock,
			err,
		)
	}
	last := len(chain.indices) - 1
	if err := t.Indirect.WriteIndirect(
		chain.blocks[last],
		chain.indices[last],
		block,
	); err != nil {
		return fmt.Errorf(
			"overwriting inode `%d` block `%d`: %w",
			inode.Ino,
			inodeBlock,
			err,
		)
	}
	return nil
}

// Truncate detaches and frees logical blocks from the end until only
// `blocks` remain. Indirection blocks are freed as soon as they hold nothing.
func (t *Translator) Truncate(inode *Inode, blocks Block) error {
	for inode.Blocks > blocks {
		if err := t.removeLast(inode); err != nil {
			return fmt.Errorf(
				"truncating inode `%d` to `%d` blocks: %w",
				inode.Ino,
				blocks,
				err,
			)
		}
	}
	return nil
}

func (t *Translator) removeLast(inode *Inode) error {
	var ind indirection
	if err := ind.fromInodeBlock(inode, inode.Blocks-1); err != nil {
		return err
	}

	chain, err := t.walk(&ind)
	if err != nil {
		return err
	}
	if err := t.Allocator.Free(chain.leaf); err != nil {
		return err
	}

	if ind.level == levelDirect {
		*ind.ptr = BlockNil
		inode.Blocks--
		return nil
	}

	// the blocks map is dense, so an indirection block whose slot 0 was just
	// vacated holds nothing else
	done := false
	for depth := len(chain.indices) - 1; depth >= 0; depth-- {
		if chain.indices[depth] != 0 {
			if err := t.Indirect.WriteIndirect(
				chain.blocks[depth],
				chain.indices[depth],
				BlockNil,
			); err != nil {
				return err
			}
			done = true
			break
		}
		if err := t.Allocator.Free(chain.blocks[depth]); err != nil {
			return err
		}
	}
	if !done {
		*ind.ptr = BlockNil
	}
	inode.Blocks--
	return nil
}

// Release frees every block reachable from the inode, leaf data blocks before
// the indirection blocks that point at them, and clears the block map. It
// does not rely on `inode.Blocks`.
func (t *Translator) Release(inode *Inode) error {
	for i, block := range inode.DirectBlocks {
		if block == BlockNil {
			continue
		}
		if err := t.Allocator.Free(block); err != nil {
			return fmt.Errorf(
				"releasing inode `%d` direct block `%d`: %w",
				inode.Ino,
				i,
				err,
			)
		}
		inode.DirectBlocks[i] = BlockNil
	}

	for level := levelSingly; level < levelOutOfRange; level++ {
		root := level.root(inode)
		if err := t.releaseTree(*root, level); err != nil {
			return fmt.Errorf(
				"releasing inode `%d` %s tree: %w",
				inode.Ino,
				level,
				err,
			)
		}
		*root = BlockNil
	}
	inode.Blocks = 0
	return nil
}

func (t *Translator) releaseTree(block Block, level level) error {
	if block == BlockNil {
		return nil
	}

	var children [PointersPerBlock]Block
	if err := t.Indirect.ReadAll(block, &children); err != nil {
		return err
	}
	for _, child := range children {
		if child == BlockNil {
			continue
		}
		if level == levelSingly {
			if err := t.Allocator.Free(child); err != nil {
				return err
			}
			continue
		}
		if err := t.releaseTree(child, level-1); err != nil {
			return err
		}
	}
	return t.Allocator.Free(block)
}

func (t *Translator) allocIndirect() (Block, error) {
	block, err := t.Allocator.Alloc()
	if err != nil {
		return BlockNil, err
	}
	if err := t.Store.ZeroDataBlock(block); err != nil {
		t.Allocator.Free(block)
		return BlockNil, err
	}
	return block, nil
}

// release returns freshly allocated indirection blocks after a failed
// append. Errors are ignored; at worst the blocks leak.
func (t *Translator) release(blocks []Block, fresh []bool) {
	for i := range blocks {
		if fresh[i] {
			t.Allocator.Free(blocks[i])
		}
	}
}

type chain struct {
	indices []indirect.Index
	blocks  [levelOutOfRange]Block
	leaf    Block
}

// walk follows the indirection chain of `ind` and records each indirection
// block visited.
func (t *Translator) walk(ind *indirection) (chain, error) {
	c := chain{indices: ind.indices()}
	block := *ind.ptr
	for depth, index := range c.indices {
		if block == BlockNil {
			return c, fmt.Errorf(
				"%s: depth `%d`: %w",
				ind.level,
				depth,
				MissingIndirectErr,
			)
		}
		c.blocks[depth] = block
		next, err := t.Indirect.ReadIndirect(block, index)
		if err != nil {
			return c, fmt.Errorf("%s: %w", describe(ind, &c, depth), err)
		}
		block = next
	}
	if block == BlockNil {
		return c, fmt.Errorf("%s: data block: %w", ind.level, MissingIndirectErr)
	}
	c.leaf = block
	return c, nil
}

func describe(ind *indirection, c *chain, depth int) string {
	var sb strings.Builder
	sb.WriteString(ind.level.String())
	for i := 0; i <= depth; i++ {
		fmt.Fprintf(&sb, ": reading block `%d`, index `%d`", c.blocks[i], c.indices[i])
	}
	return sb.String()
}
