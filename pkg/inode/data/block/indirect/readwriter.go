package indirect

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/encode"
	. "github.com/weberc2/blockfs/pkg/types"
)

// ReadWriter reads and writes single pointers inside indirection blocks.
type ReadWriter struct {
	store *blockstore.Store
}

func NewReadWriter(store *blockstore.Store) ReadWriter {
	return ReadWriter{store}
}

func (rw ReadWriter) ReadIndirect(indirect Block, index Index) (Block, error) {
	var p [BlockSize]byte
	if err := rw.read(indirect, index, &p); err != nil {
		return BlockNil, err
	}
	return encode.GetPointer(&p, Block(index)), nil
}

func (rw ReadWriter) WriteIndirect(
	indirect Block,
	index Index,
	target Block,
) error {
	var p [BlockSize]byte
	if err := rw.read(indirect, index, &p); err != nil {
		return fmt.Errorf("writing target block `%d`: %w", target, err)
	}
	encode.PutPointer(&p, Block(index), target)
	if err := rw.store.WriteDataBlock(indirect, &p); err != nil {
		return fmt.Errorf(
			"writing target block `%d` indirect block `%d` at index `%d`: %w",
			target,
			indirect,
			index,
			err,
		)
	}
	return nil
}

// ReadAll reads every pointer held by an indirection block.
func (rw ReadWriter) ReadAll(indirect Block, out *[PointersPerBlock]Block) error {
	var p [BlockSize]byte
	if err := rw.store.ReadDataBlock(indirect, &p); err != nil {
		return fmt.Errorf("reading indirect block `%d`: %w", indirect, err)
	}
	for i := range out {
		out[i] = encode.GetPointer(&p, Block(i))
	}
	return nil
}

func (rw ReadWriter) read(indirect Block, index Index, p *[BlockSize]byte) error {
	if !index.Valid() {
		return fmt.Errorf(
			"indirect block `%d` index `%d`: %w",
			indirect,
			index,
			InvalidArgumentErr,
		)
	}
	if err := rw.store.ReadDataBlock(indirect, p); err != nil {
		return fmt.Errorf(
			"reading indirect block `%d` at index `%d`: %w",
			indirect,
			index,
			err,
		)
	}
	return nil
}
