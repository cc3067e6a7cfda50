package encode

import (
	"bytes"

	. "github.com/weberc2/blockfs/pkg/types"
)

func EncodeSuperblock(sb *Superblock, b *[BlockSize]byte) {
	p := b[:]
	for i := range p {
		p[i] = 0
	}

	putU64(p, sbInodeCountStart, uint64(sb.InodeCount))
	putU64(p, sbFirstFreeInoStart, uint64(sb.FirstFreeIno))
	putBlock(p, sbFreeListHeadStart, sb.FreeListHead)
	putBytePointer(p, sbInodeSizeStart, sb.InodeSize)
	putU64(p, sbInodesPerBlockStart, uint64(sb.InodesPerBlock))
	putU64(p, sbMagicStart, sb.Magic)
	putBlock(p, sbBlockCountStart, sb.BlockCount)
	putBlock(p, sbInodeBlocksStart, sb.InodeBlocks)
	putBlock(p, sbFreeBlocksStart, sb.FreeBlocks)
	putU64(p, sbFreeInodesStart, uint64(sb.FreeInodes))
	copy(p[sbVolumeIDStart:sbVolumeIDEnd], sb.VolumeID[:])
	copy(p[sbLabelStart:sbLabelEnd-1], sb.Label)
}

func DecodeSuperblock(sb *Superblock, b *[BlockSize]byte) error {
	p := b[:]
	if magic := getU64(p, sbMagicStart); magic != SuperblockMagic {
		return &BadMagicErr{Found: magic}
	}

	sb.InodeCount = Ino(getU64(p, sbInodeCountStart))
	sb.FirstFreeIno = Ino(getU64(p, sbFirstFreeInoStart))
	sb.FreeListHead = getBlock(p, sbFreeListHeadStart)
	sb.InodeSize = getBytePointer(p, sbInodeSizeStart)
	sb.InodesPerBlock = Ino(getU64(p, sbInodesPerBlockStart))
	sb.Magic = getU64(p, sbMagicStart)
	sb.BlockCount = getBlock(p, sbBlockCountStart)
	sb.InodeBlocks = getBlock(p, sbInodeBlocksStart)
	sb.FreeBlocks = getBlock(p, sbFreeBlocksStart)
	sb.FreeInodes = Ino(getU64(p, sbFreeInodesStart))
	copy(sb.VolumeID[:], p[sbVolumeIDStart:sbVolumeIDEnd])

	label := p[sbLabelStart:sbLabelEnd]
	if i := bytes.IndexByte(label, 0); i >= 0 {
		label = label[:i]
	}
	sb.Label = string(label)
	return nil
}

const (
	sbInodeCountStart = 0
	sbInodeCountSize  = 8
	sbInodeCountEnd   = sbInodeCountStart + sbInodeCountSize

	sbFirstFreeInoStart = sbInodeCountEnd
	sbFirstFreeInoSize  = 8
	sbFirstFreeInoEnd   = sbFirstFreeInoStart + sbFirstFreeInoSize

	sbFreeListHeadStart = sbFirstFreeInoEnd
	sbFreeListHeadSize  = BlockPointerSize
	sbFreeListHeadEnd   = sbFreeListHeadStart + sbFreeListHeadSize

	sbInodeSizeStart = sbFreeListHeadEnd
	sbInodeSizeSize  = 8
	sbInodeSizeEnd   = sbInodeSizeStart + sbInodeSizeSize

	sbInodesPerBlockStart = sbInodeSizeEnd
	sbInodesPerBlockSize  = 8
	sbInodesPerBlockEnd   = sbInodesPerBlockStart + sbInodesPerBlockSize

	sbMagicStart = sbInodesPerBlockEnd
	sbMagicSize  = 8
	sbMagicEnd   = sbMagicStart + sbMagicSize

	sbBlockCountStart = sbMagicEnd
	sbBlockCountSize  = BlockPointerSize
	sbBlockCountEnd   = sbBlockCountStart + sbBlockCountSize

	sbInodeBlocksStart = sbBlockCountEnd
	sbInodeBlocksSize  = BlockPointerSize
	sbInodeBlocksEnd   = sbInodeBlocksStart + sbInodeBlocksSize

	sbFreeBlocksStart = sbInodeBlocksEnd
	sbFreeBlocksSize  = BlockPointerSize
	sbFreeBlocksEnd   = sbFreeBlocksStart + sbFreeBlocksSize

	sbFreeInodesStart = sbFreeBlocksEnd
	sbFreeInodesSize  = 8
	sbFreeInodesEnd   = sbFreeInodesStart + sbFreeInodesSize

	sbVolumeIDStart = sbFreeInodesEnd
	sbVolumeIDSize  = 16
	sbVolumeIDEnd   = sbVolumeIDStart + sbVolumeIDSize

	sbLabelStart = sbVolumeIDEnd
	sbLabelSize  = LabelSize
	sbLabelEnd   = sbLabelStart + sbLabelSize
)
