package indirect

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

// Index is a slot within an indirection block.
type Index uint16

func (index Index) Valid() bool { return Block(index) < PointersPerBlock }
