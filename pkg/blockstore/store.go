// Package blockstore reads and writes whole blocks of a volume, enforcing the
// access window of each region of the layout: block 0 holds the superblock,
// blocks 1 through the inode block count hold the inode table, and the
// remainder hold file data and free list bookkeeping.
package blockstore

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/encode"
	"github.com/weberc2/blockfs/pkg/io"
	. "github.com/weberc2/blockfs/pkg/types"
)

type Store struct {
	Volume      io.Volume
	BlockCount  Block
	InodeBlocks Block
}

func New(volume io.Volume, blockCount Block, inodeBlocks Block) *Store {
	return &Store{
		Volume:      volume,
		BlockCount:  blockCount,
		InodeBlocks: inodeBlocks,
	}
}

// ReadBlock reads any block outside the superblock.
func (s *Store) ReadBlock(block Block, p *[BlockSize]byte) error {
	if err := s.checkRange(block, 1); err != nil {
		return fmt.Errorf("reading block: %w", err)
	}
	return s.read(block, p)
}

func (s *Store) WriteBlock(block Block, p *[BlockSize]byte) error {
	if err := s.checkRange(block, 1); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	return s.write(block, p)
}

// ReadDataBlock reads a block past the inode table.
func (s *Store) ReadDataBlock(block Block, p *[BlockSize]byte) error {
	if err := s.checkRange(block, FirstDataBlock(s.InodeBlocks)); err != nil {
		return fmt.Errorf("reading data block: %w", err)
	}
	return s.read(block, p)
}

func (s *Store) WriteDataBlock(block Block, p *[BlockSize]byte) error {
	if err := s.checkRange(block, FirstDataBlock(s.InodeBlocks)); err != nil {
		return fmt.Errorf("writing data block: %w", err)
	}
	return s.write(block, p)
}

func (s *Store) ZeroDataBlock(block Block) error {
	return s.WriteDataBlock(block, new([BlockSize]byte))
}

// ReadInodeBlock reads a block from the inode table.
func (s *Store) ReadInodeBlock(block Block, p *[BlockSize]byte) error {
	if err := s.checkInodeRange(block); err != nil {
		return fmt.Errorf("reading inode block: %w", err)
	}
	return s.read(block, p)
}

func (s *Store) WriteInodeBlock(block Block, p *[BlockSize]byte) error {
	if err := s.checkInodeRange(block); err != nil {
		return fmt.Errorf("writing inode block: %w", err)
	}
	return s.write(block, p)
}

func (s *Store) ReadSuperblock(sb *Superblock) error {
	var p [BlockSize]byte
	if err := s.read(BlockSuperblock, &p); err != nil {
		return fmt.Errorf("reading superblock: %w", err)
	}
	if err := encode.DecodeSuperblock(sb, &p); err != nil {
		return fmt.Errorf("reading superblock: %w", err)
	}
	return nil
}

// WriteSuperblock rewrites block 0 whole.
func (s *Store) WriteSuperblock(sb *Superblock) error {
	var p [BlockSize]byte
	encode.EncodeSuperblock(sb, &p)
	if err := s.write(BlockSuperblock, &p); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return nil
}

func (s *Store) checkRange(block Block, low Block) error {
	if block < low || block >= s.BlockCount {
		return fmt.Errorf(
			"block `%d` outside [`%d`, `%d`): %w",
			block,
			low,
			s.BlockCount,
			BlockOutOfRangeErr,
		)
	}
	return nil
}

func (s *Store) checkInodeRange(block Block) error {
	if block < 1 || block > s.InodeBlocks {
		return fmt.Errorf(
			"block `%d` outside inode table [`1`, `%d`]: %w",
			block,
			s.InodeBlocks,
			BlockOutOfRangeErr,
		)
	}
	return nil
}

func (s *Store) read(block Block, p *[BlockSize]byte) error {
	if err := s.Volume.ReadAt(Byte(block)*BlockSize, p[:]); err != nil {
		return fmt.Errorf("reading block `%d`: %w", block, err)
	}
	return nil
}

func (s *Store) write(block Block, p *[BlockSize]byte) error {
	if err := s.Volume.WriteAt(Byte(block)*BlockSize, p[:]); err != nil {
		return fmt.Errorf("writing block `%d`: %w", block, err)
	}
	return nil
}
