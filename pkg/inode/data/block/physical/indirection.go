package physical

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/inode/data/block/indirect"
	. "github.com/weberc2/blockfs/pkg/types"
)

// level is the addressing tier of a logical block. The value of an indirect
// level is the number of indirection blocks below the inode's tier pointer,
// so a walk from a level's root pointer reads `level+1` indirection blocks.
type level int

const (
	levelDirect level = iota - 1
	levelSingly
	levelDoubly
	levelTriply
	levelOutOfRange
)

func (level level) String() string {
	switch level {
	case levelDirect:
		return "direct"
	case levelSingly:
		return "singly indirect"
	case levelDoubly:
		return "doubly indirect"
	case levelTriply:
		return "triply indirect"
	case levelOutOfRange:
		return "out of range"
	default:
		panic(fmt.Sprintf("invalid level: %d", level))
	}
}

// root returns the inode field holding the level's top pointer.
func (level level) root(inode *Inode) *Block {
	switch level {
	case levelSingly:
		return &inode.SinglyIndirectBlock
	case levelDoubly:
		return &inode.DoublyIndirectBlock
	case levelTriply:
		return &inode.TriplyIndirectBlock
	default:
		panic(fmt.Sprintf("level `%s` has no root pointer", level))
	}
}

type indirection struct {
	level level
	// path holds the slot to follow in each indirection block, outermost
	// first.
	path [levelOutOfRange]indirect.Index
	ptr  *Block
}

func (ind *indirection) fromInodeBlock(inode *Inode, block Block) error {
	if block < DirectBlocksCount {
		*ind = indirection{level: levelDirect, ptr: &inode.DirectBlocks[block]}
		return nil
	}

	start, capacity := DirectBlocksCount, PointersPerBlock
	for level := levelSingly; level < levelOutOfRange; level++ {
		if block-start < capacity {
			*ind = indirection{level: level, ptr: level.root(inode)}
			offset := block - start
			for i := int(level); i >= 0; i-- {
				ind.path[i] = indirect.Index(offset % PointersPerBlock)
				offset /= PointersPerBlock
			}
			return nil
		}
		start += capacity
		capacity *= PointersPerBlock
	}

	*ind = indirection{level: levelOutOfRange}
	return fmt.Errorf(
		"logical block `%d` exceeds the `%d` addressable blocks: %w",
		block,
		MaxBlocks,
		FileTooLargeErr,
	)
}

func (ind *indirection) indices() []indirect.Index {
	return ind.path[:ind.level+1]
}

func (ind *indirection) singly() indirect.Index {
	return ind.path[ind.level-levelSingly]
}

func (ind *indirection) doubly() indirect.Index {
	return ind.path[ind.level-levelDoubly]
}

func (ind *indirection) triply() indirect.Index {
	return ind.path[ind.level-levelTriply]
}

// singly
// |____
// | | |

// doubly
// |______________
// |____  |____  |____
// | | |  | | |  | | |

// triply
// |____________________________________________
// |______________       |______________       |______________
// |____  |____  |____   |____  |____  |____   |____  |____  |____
// | | |  | | |  | | |   | | |  | | |  | | |   | | |  | | |  | | |)
const (
	pointersPerBlock    = PointersPerBlock
	directMax           = DirectBlocksCount - 1
	singlyIndirectCount = pointersPerBlock
	singlyIndirectMax   = singlyIndirectCount + directMax
	doublyIndirectCount = singlyIndirectCount * pointersPerBlock
	doublyIndirectMax   = doublyIndirectCount + singlyIndirectMax
	triplyIndirectCount = doublyIndirectCount * pointersPerBlock
	triplyIndirectMax   = triplyIndirectCount + doublyIndirectMax

	// MaxBlocks is the number of logical blocks a single inode can address.
	MaxBlocks = triplyIndirectMax + 1
)
