package encode

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

// PutPointer stores `target` in slot `index` of an indirection or free list
// block.
func PutPointer(p *[BlockSize]byte, index Block, target Block) {
	putBlock(p[:], Byte(index)*BlockPointerSize, target)
}

func GetPointer(p *[BlockSize]byte, index Block) Block {
	return getBlock(p[:], Byte(index)*BlockPointerSize)
}
