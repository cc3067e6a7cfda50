package data

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/inode/data/block/physical"
	"github.com/weberc2/blockfs/pkg/math"
	. "github.com/weberc2/blockfs/pkg/types"
)

// MaxFileSize is the largest byte size an inode can address.
const MaxFileSize = Byte(physical.MaxBlocks) * BlockSize

// ReadWriter moves bytes between callers and an inode's data blocks. Writes
// and truncations persist the inode through the InodeStore whenever its
// block map or size changes.
type ReadWriter struct {
	Store      *blockstore.Store
	Translator *physical.Translator
	Allocator  alloc.BlockAllocator
	InodeStore InodeStore
	Logger     log.FieldLogger
}

func (rw *ReadWriter) Read(inode *Inode, offset Byte, b []byte) (Byte, error) {
	if offset < 0 {
		return 0, fmt.Errorf(
			"reading inode `%d` at offset `%d`: %w",
			inode.Ino,
			offset,
			InvalidArgumentErr,
		)
	}
	if offset >= inode.Size {
		return 0, nil
	}

	maxLength := math.Min(Byte(len(b)), inode.Size-offset)
	var (
		chunkBegin Byte
		buf        [BlockSize]byte
	)

	for chunkBegin < maxLength {
		chunkBlock := Block((offset + chunkBegin) / BlockSize)
		chunkOffset := (offset + chunkBegin) % BlockSize
		chunkLength := math.Min(maxLength-chunkBegin, BlockSize-chunkOffset)

		physicalBlock, err := rw.Translator.Translate(inode, chunkBlock)
		if err != nil {
			return chunkBegin, fmt.Errorf(
				"reading up to `%d` bytes from inode `%d` at offset `%d`: %w",
				len(b),
				inode.Ino,
				offset,
				err,
			)
		}
		if err := rw.Store.ReadDataBlock(physicalBlock, &buf); err != nil {
			return chunkBegin, fmt.Errorf(
				"reading up to `%d` bytes from inode `%d` at offset `%d`: %w",
				len(b),
				inode.Ino,
				offset,
				err,
			)
		}
		copy(
			b[chunkBegin:chunkBegin+chunkLength],
			buf[chunkOffset:chunkOffset+chunkLength],
		)
		chunkBegin += chunkLength
	}

	return chunkBegin, nil
}

// Write stores `b` at `offset`, first attaching zero-filled blocks to cover
// any gap between the current end of the file and `offset`.
func (rw *ReadWriter) Write(inode *Inode, offset Byte, b []byte) (Byte, error) {
	if offset < 0 || offset > MaxFileSize || Byte(len(b)) > MaxFileSize-offset {
		return 0, fmt.Errorf(
			"writing `%d` bytes to inode `%d` at offset `%d`: %w",
			len(b),
			inode.Ino,
			offset,
			FileTooLargeErr,
		)
	}

	end := offset + Byte(len(b))
	if err := rw.grow(inode, Block(math.DivRoundUp(end, BlockSize))); err != nil {
		return 0, fmt.Errorf(
			"writing `%d` bytes to inode `%d` at offset `%d`: %w",
			len(b),
			inode.Ino,
			offset,
			err,
		)
	}

	var (
		chunkBegin Byte
		buf        [BlockSize]byte
	)
	for chunkBegin < Byte(len(b)) {
		chunkBlock := Block((offset + chunkBegin) / BlockSize)
		chunkOffset := (offset + chunkBegin) % BlockSize
		chunkLength := math.Min(Byte(len(b))-chunkBegin, BlockSize-chunkOffset)

		if err := rw.writeChunk(
			inode,
			chunkBlock,
			chunkOffset,
			b[chunkBegin:chunkBegin+chunkLength],
			&buf,
		); err != nil {
			return chunkBegin, fmt.Errorf(
				"writing up to `%d` bytes to inode `%d` at offset `%d`: %w",
				len(b),
				inode.Ino,
				offset,
				err,
			)
		}
		chunkBegin += chunkLength
	}

	if inode.Size < end {
		clone := *inode
		clone.Size = end
		if err := rw.InodeStore.Put(&clone); err != nil {
			return chunkBegin, fmt.Errorf(
				"writing up to `%d` bytes to inode `%d` at offset `%d`: "+
					"updating inode size: %w",
				len(b),
				inode.Ino,
				offset,
				err,
			)
		}
		*inode = clone
	}

	return chunkBegin, nil
}

func (rw *ReadWriter) writeChunk(
	inode *Inode,
	inodeBlock Block,
	offset Byte,
	chunk []byte,
	buf *[BlockSize]byte,
) error {
	physicalBlock, err := rw.Translator.Translate(inode, inodeBlock)
	if err != nil {
		return err
	}
	if Byte(len(chunk)) < BlockSize {
		if err := rw.Store.ReadDataBlock(physicalBlock, buf); err != nil {
			return err
		}
	}
	copy(buf[offset:], chunk)
	return rw.Store.WriteDataBlock(physicalBlock, buf)
}

// Truncate sets the inode's size, freeing blocks past the new end or
// attaching zero-filled blocks up to it.
func (rw *ReadWriter) Truncate(inode *Inode, size Byte) error {
	if size < 0 || size > MaxFileSize {
		return fmt.Errorf(
			"truncating inode `%d` to `%d` bytes: %w",
			inode.Ino,
			size,
			FileTooLargeErr,
		)
	}

	blocks := Block(math.DivRoundUp(size, BlockSize))
	clone := *inode
	if blocks < clone.Blocks {
		if err := rw.Translator.Truncate(&clone, blocks); err != nil {
			if putErr := rw.InodeStore.Put(&clone); putErr != nil {
				rw.logger().WithField("ino", clone.Ino).
					WithError(putErr).
					Warn("persisting partially truncated inode")
			}
			*inode = clone
			return fmt.Errorf(
				"truncating inode `%d` to `%d` bytes: %w",
				inode.Ino,
				size,
				err,
			)
		}
	}

	// bytes past the new end of a partial last block must read back as
	// zeros if the file later grows again
	if tail := size % BlockSize; tail != 0 && size < clone.Size {
		if err := rw.zeroTail(&clone, blocks-1, tail); err != nil {
			return fmt.Errorf(
				"truncating inode `%d` to `%d` bytes: %w",
				inode.Ino,
				size,
				err,
			)
		}
	}

	if err := rw.grow(&clone, blocks); err != nil {
		*inode = clone
		return fmt.Errorf(
			"truncating inode `%d` to `%d` bytes: %w",
			inode.Ino,
			size,
			err,
		)
	}

	clone.Size = size
	if err := rw.InodeStore.Put(&clone); err != nil {
		return fmt.Errorf(
			"truncating inode `%d` to `%d` bytes: %w",
			inode.Ino,
			size,
			err,
		)
	}
	*inode = clone
	return nil
}

func (rw *ReadWriter) zeroTail(inode *Inode, inodeBlock Block, from Byte) error {
	physicalBlock, err := rw.Translator.Translate(inode, inodeBlock)
	if err != nil {
		return err
	}
	var buf [BlockSize]byte
	if err := rw.Store.ReadDataBlock(physicalBlock, &buf); err != nil {
		return err
	}
	for i := from; i < BlockSize; i++ {
		buf[i] = 0
	}
	return rw.Store.WriteDataBlock(physicalBlock, &buf)
}

// grow attaches freshly allocated, zero-filled blocks until the inode has at
// least `blocks` of them. The inode is persisted if anything was attached.
func (rw *ReadWriter) grow(inode *Inode, blocks Block) error {
	if inode.Blocks >= blocks {
		return nil
	}

	var growErr error
	for inode.Blocks < blocks {
		block, err := rw.Allocator.Alloc()
		if err != nil {
			growErr = err
			break
		}
		if err := rw.Translator.Append(inode, block); err != nil {
			if freeErr := rw.Allocator.Free(block); freeErr != nil {
				rw.logger().WithFields(log.Fields{
					"ino":   inode.Ino,
					"block": block,
				}).WithError(freeErr).Warn("leaked unattached data block")
			}
			growErr = err
			break
		}
	}

	if err := rw.InodeStore.Put(inode); err != nil && growErr == nil {
		growErr = err
	}
	if growErr != nil {
		return fmt.Errorf(
			"growing inode `%d` to `%d` blocks: %w",
			inode.Ino,
			blocks,
			growErr,
		)
	}
	return nil
}

func (rw *ReadWriter) logger() log.FieldLogger {
	if rw.Logger != nil {
		return rw.Logger
	}
	return log.StandardLogger()
}
