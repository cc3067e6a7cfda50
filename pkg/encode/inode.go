package encode

import (
	"fmt"

	. "github.com/weberc2/blockfs/pkg/types"
)

func EncodeInode(inode *Inode, b *[InodeSize]byte) {
	p := b[:]
	for i := range p {
		p[i] = 0
	}

	putU32(p, inodeModeStart, uint32(inode.Mode))
	putU32(p, inodeUIDStart, inode.UID)
	putU32(p, inodeGIDStart, inode.GID)
	putI64(p, inodeATimeStart, inode.ATime)
	putI64(p, inodeCTimeStart, inode.CTime)
	putI64(p, inodeMTimeStart, inode.MTime)
	putI64(p, inodeDTimeStart, inode.DTime)
	putU16(p, inodeLinksCountStart, inode.LinksCount)
	putBytePointer(p, inodeSizeStart, inode.Size)
	putBlock(p, inodeBlocksStart, inode.Blocks)
	putU32(p, inodeChildrenStart, inode.Children)
	if inode.Allocated {
		putU8(p, inodeAllocatedStart, 1)
	}

	for i := Byte(0); i < Byte(DirectBlocksCount); i++ {
		putBlock(p, inodeDirectBlocksStart+i*BlockPointerSize, inode.DirectBlocks[i])
	}
	putBlock(p, inodeSinglyIndStart, inode.SinglyIndirectBlock)
	putBlock(p, inodeDoublyIndStart, inode.DoublyIndirectBlock)
	putBlock(p, inodeTriplyIndStart, inode.TriplyIndirectBlock)
}

// DecodeInode decodes the record into `inode`. `inode.Ino` is left untouched
// since the number is a function of the record's position, not its content.
func DecodeInode(inode *Inode, b *[InodeSize]byte) error {
	p := b[:]

	// store this in a temporary until we've validated it; we strongly prefer
	// to avoid mutating the `inode` pointee until we're sure that no errors
	// will be returned.
	allocated := getU8(p, inodeAllocatedStart)
	mode := Mode(getU32(p, inodeModeStart))
	if allocated > 1 {
		return fmt.Errorf(
			"decoding inode: allocated flag `%d`: %w",
			allocated,
			InvalidArgumentErr,
		)
	}
	// a freshly allocated record has no type until its first write
	if allocated == 1 && mode&ModeTypeMask != 0 {
		if err := mode.FileType().Validate(); err != nil {
			return fmt.Errorf("decoding inode: %w", err)
		}
	}

	inode.Mode = mode
	inode.UID = getU32(p, inodeUIDStart)
	inode.GID = getU32(p, inodeGIDStart)
	inode.ATime = getI64(p, inodeATimeStart)
	inode.CTime = getI64(p, inodeCTimeStart)
	inode.MTime = getI64(p, inodeMTimeStart)
	inode.DTime = getI64(p, inodeDTimeStart)
	inode.LinksCount = getU16(p, inodeLinksCountStart)
	inode.Size = getBytePointer(p, inodeSizeStart)
	inode.Blocks = getBlock(p, inodeBlocksStart)
	inode.Children = getU32(p, inodeChildrenStart)
	inode.Allocated = allocated == 1

	for i := Byte(0); i < Byte(DirectBlocksCount); i++ {
		inode.DirectBlocks[i] = getBlock(
			p,
			inodeDirectBlocksStart+i*BlockPointerSize,
		)
	}
	inode.SinglyIndirectBlock = getBlock(p, inodeSinglyIndStart)
	inode.DoublyIndirectBlock = getBlock(p, inodeDoublyIndStart)
	inode.TriplyIndirectBlock = getBlock(p, inodeTriplyIndStart)
	return nil
}

const (
	inodeModeStart = 0
	inodeModeSize  = 4
	inodeModeEnd   = inodeModeStart + inodeModeSize

	inodeUIDStart = inodeModeEnd
	inodeUIDSize  = 4
	inodeUIDEnd   = inodeUIDStart + inodeUIDSize

	inodeGIDStart = inodeUIDEnd
	inodeGIDSize  = 4
	inodeGIDEnd   = inodeGIDStart + inodeGIDSize

	inodeATimeStart = inodeGIDEnd
	inodeATimeSize  = 8
	inodeATimeEnd   = inodeATimeStart + inodeATimeSize

	inodeCTimeStart = inodeATimeEnd
	inodeCTimeSize  = 8
	inodeCTimeEnd   = inodeCTimeStart + inodeCTimeSize

	inodeMTimeStart = inodeCTimeEnd
	inodeMTimeSize  = 8
	inodeMTimeEnd   = inodeMTimeStart + inodeMTimeSize

	inodeDTimeStart = inodeMTimeEnd
	inodeDTimeSize  = 8
	inodeDTimeEnd   = inodeDTimeStart + inodeDTimeSize

	inodeLinksCountStart = inodeDTimeEnd
	inodeLinksCountSize  = 2
	inodeLinksCountEnd   = inodeLinksCountStart + inodeLinksCountSize

	inodeSizeStart = inodeLinksCountEnd
	inodeSizeSize  = 8
	inodeSizeEnd   = inodeSizeStart + inodeSizeSize

	inodeBlocksStart = inodeSizeEnd
	inodeBlocksSize  = BlockPointerSize
	inodeBlocksEnd   = inodeBlocksStart + inodeBlocksSize

	inodeChildrenStart = inodeBlocksEnd
	inodeChildrenSize  = 4
	inodeChildrenEnd   = inodeChildrenStart + inodeChildrenSize

	inodeAllocatedStart = inodeChildrenEnd
	inodeAllocatedSize  = 1
	inodeAllocatedEnd   = inodeAllocatedStart + inodeAllocatedSize

	inodeDirectBlocksStart = inodeAllocatedEnd
	inodeDirectBlocksSize  = Byte(DirectBlocksCount) * BlockPointerSize
	inodeDirectBlocksEnd   = inodeDirectBlocksStart + inodeDirectBlocksSize

	inodeSinglyIndStart = inodeDirectBlocksEnd
	inodeSinglyIndSize  = BlockPointerSize
	inodeSinglyIndEnd   = inodeSinglyIndStart + inodeSinglyIndSize

	inodeDoublyIndStart = inodeSinglyIndEnd
	inodeDoublyIndSize  = BlockPointerSize
	inodeDoublyIndEnd   = inodeDoublyIndStart + inodeDoublyIndSize

	inodeTriplyIndStart = inodeDoublyIndEnd
	inodeTriplyIndSize  = BlockPointerSize
	inodeTriplyIndEnd   = inodeTriplyIndStart + inodeTriplyIndSize

	// InodeRecordSize is the number of meaningful bytes in a record; the
	// remainder up to InodeSize is reserved.
	InodeRecordSize = inodeTriplyIndEnd
)

// compile-time check that the record fits in its slot
var _ [InodeSize - InodeRecordSize]struct{}
