package store

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/encode"
	"github.com/weberc2/blockfs/pkg/inode/data/block/physical"
	. "github.com/weberc2/blockfs/pkg/types"
)

// Table manages the fixed-size inode records packed into blocks 1 through
// the superblock's inode block count.
type Table struct {
	Store      *blockstore.Store
	Superblock *Superblock
	Translator *physical.Translator
	TimeFunc   func() time.Time
	Logger     log.FieldLogger
}

// Position returns the inode table block holding `ino` and the record's
// index within it.
func Position(ino Ino) (Block, Ino) {
	return 1 + Block(ino/InodesPerBlock), ino % InodesPerBlock
}

// Alloc marks the inode at the first-free hint allocated and advances the
// hint to the next unallocated record. The returned record is otherwise
// zero; callers fill it in with Put.
func (t *Table) Alloc() (Ino, error) {
	ino := t.Superblock.FirstFreeIno
	if ino >= t.Superblock.InodeCount {
		return 0, fmt.Errorf(
			"allocating inode: hint `%d` of `%d`: %w",
			ino,
			t.Superblock.InodeCount,
			OutOfInodesErr,
		)
	}

	block, index := Position(ino)
	var p [BlockSize]byte
	if err := t.Store.ReadInodeBlock(block, &p); err != nil {
		return 0, fmt.Errorf("allocating inode `%d`: %w", ino, err)
	}

	var inode Inode
	if err := decodeAt(&p, index, &inode); err != nil {
		return 0, fmt.Errorf("allocating inode `%d`: %w", ino, err)
	}
	if inode.Allocated {
		return 0, fmt.Errorf("allocating inode `%d`: %w", ino, CorruptInodeHint)
	}

	encodeAt(&p, index, &Inode{Ino: ino, Allocated: true})
	if err := t.Store.WriteInodeBlock(block, &p); err != nil {
		return 0, fmt.Errorf("allocating inode `%d`: %w", ino, err)
	}

	next, err := t.nextFree(ino+1, block, &p)
	if err != nil {
		return 0, fmt.Errorf("allocating inode `%d`: %w", ino, err)
	}
	t.Superblock.FirstFreeIno = next
	t.Superblock.FreeInodes--
	if err := t.Store.WriteSuperblock(t.Superblock); err != nil {
		return 0, fmt.Errorf("allocating inode `%d`: %w", ino, err)
	}
	return ino, nil
}

// nextFree scans forward from `start` for an unallocated record, crossing
// into later inode blocks as needed. `p` holds the contents of `loaded`.
func (t *Table) nextFree(start Ino, loaded Block, p *[BlockSize]byte) (Ino, error) {
	var inode Inode
	for ino := start; ino < t.Superblock.InodeCount; ino++ {
		block, index := Position(ino)
		if block != loaded {
			if err := t.Store.ReadInodeBlock(block, p); err != nil {
				return 0, fmt.Errorf("scanning for free inode: %w", err)
			}
			loaded = block
		}
		if err := decodeAt(p, index, &inode); err != nil {
			return 0, fmt.Errorf("scanning for free inode `%d`: %w", ino, err)
		}
		if !inode.Allocated {
			return ino, nil
		}
	}
	return t.Superblock.InodeCount, nil
}

func (t *Table) Get(ino Ino, out *Inode) error {
	if err := t.checkRange(ino); err != nil {
		return fmt.Errorf("getting inode: %w", err)
	}
	block, index := Position(ino)
	var p [BlockSize]byte
	if err := t.Store.ReadInodeBlock(block, &p); err != nil {
		return fmt.Errorf("getting inode `%d`: %w", ino, err)
	}
	if err := decodeAt(&p, index, out); err != nil {
		return fmt.Errorf("getting inode `%d`: %w", ino, err)
	}
	out.Ino = ino
	return nil
}

func (t *Table) Put(inode *Inode) error {
	if err := t.checkRange(inode.Ino); err != nil {
		return fmt.Errorf("putting inode: %w", err)
	}
	block, index := Position(inode.Ino)
	var p [BlockSize]byte
	if err := t.Store.ReadInodeBlock(block, &p); err != nil {
		return fmt.Errorf("putting inode `%d`: %w", inode.Ino, err)
	}
	encodeAt(&p, index, inode)
	if err := t.Store.WriteInodeBlock(block, &p); err != nil {
		return fmt.Errorf("putting inode `%d`: %w", inode.Ino, err)
	}
	return nil
}

// Free releases every block reachable from the inode, clears its record, and
// lowers the first-free hint to `ino` if it is smaller.
func (t *Table) Free(ino Ino) error {
	var inode Inode
	if err := t.Get(ino, &inode); err != nil {
		return fmt.Errorf("freeing inode: %w", err)
	}
	if !inode.Allocated {
		return fmt.Errorf("freeing inode `%d`: %w", ino, NotAllocatedErr)
	}

	if err := t.Translator.Release(&inode); err != nil {
		// persist whatever was released so nothing points at freed blocks
		if putErr := t.Put(&inode); putErr != nil {
			t.logger().WithField("ino", ino).
				WithError(putErr).
				Error("persisting partially released inode")
		}
		return fmt.Errorf("freeing inode `%d`: %w", ino, err)
	}

	if err := t.Put(&Inode{Ino: ino, DTime: t.now().Unix()}); err != nil {
		return fmt.Errorf("freeing inode `%d`: %w", ino, err)
	}

	if ino < t.Superblock.FirstFreeIno {
		t.Superblock.FirstFreeIno = ino
	}
	t.Superblock.FreeInodes++
	if err := t.Store.WriteSuperblock(t.Superblock); err != nil {
		return fmt.Errorf("freeing inode `%d`: %w", ino, err)
	}
	return nil
}

func (t *Table) checkRange(ino Ino) error {
	if ino >= t.Superblock.InodeCount {
		return fmt.Errorf(
			"inode `%d` outside [`0`, `%d`): %w",
			ino,
			t.Superblock.InodeCount,
			InoOutOfRangeErr,
		)
	}
	return nil
}

func (t *Table) logger() log.FieldLogger {
	if t.Logger != nil {
		return t.Logger
	}
	return log.StandardLogger()
}

func (t *Table) now() time.Time {
	if t.TimeFunc != nil {
		return t.TimeFunc()
	}
	return time.Now()
}

func encodeAt(p *[BlockSize]byte, index Ino, inode *Inode) {
	start := Byte(index) * InodeSize
	encode.EncodeInode(inode, (*[InodeSize]byte)(p[start:start+InodeSize]))
}

func decodeAt(p *[BlockSize]byte, index Ino, inode *Inode) error {
	start := Byte(index) * InodeSize
	return encode.DecodeInode(inode, (*[InodeSize]byte)(p[start:start+InodeSize]))
}
