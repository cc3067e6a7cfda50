// Package directory packs and unpacks directory entry records inside a
// directory inode's data blocks. Records are laid out back to back from the
// start of each block; a record length of zero marks the unused tail.
package directory

import (
	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/encode"
	"github.com/weberc2/blockfs/pkg/inode/data/block/physical"
	. "github.com/weberc2/blockfs/pkg/types"
)

type Directory struct {
	Store      *blockstore.Store
	Translator *physical.Translator
	Allocator  alloc.BlockAllocator
	InodeStore InodeStore
	Logger     log.FieldLogger
}

func (d *Directory) logger() log.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.StandardLogger()
}

func (d *Directory) free(dir *Inode, block Block) {
	if err := d.Allocator.Free(block); err != nil {
		d.logger().WithFields(log.Fields{
			"dir":   dir.Ino,
			"block": block,
		}).WithError(err).Warn("leaked unattached directory block")
	}
}

// Position locates a record: the logical and physical block holding it, a
// copy of that block, and the record's byte offset inside it.
type Position struct {
	LogicalBlock  Block
	PhysicalBlock Block
	Data          [BlockSize]byte
	Offset        Byte
}

// RecLen returns the length of the record at the position.
func (pos *Position) RecLen() Byte {
	return Byte(encode.DecodeDirEntryRecLen(pos.Data[pos.Offset:]))
}

// Ino returns the inode number stored in the record at the position.
func (pos *Position) Ino() Ino {
	return encode.GetDirEntryIno(pos.Data[pos.Offset:])
}

// minRecord is the smallest possible record: a one-byte name plus its NUL.
var minRecord = encode.DirEntrySize(1)

// scan visits every record in block `p` in order. It stops early when `f`
// returns false, reporting the offset it stopped at, or at the tail marker
// (reporting the tail offset). A record that would run past the end of the
// block is reported as corrupt.
func scan(p *[BlockSize]byte, f func(offset Byte, recLen Byte) bool) (Byte, error) {
	var offset Byte
	for offset+minRecord <= BlockSize {
		recLen := Byte(encode.DecodeDirEntryRecLen(p[offset:]))
		if recLen == 0 {
			return offset, nil
		}
		if recLen < minRecord || offset+recLen > BlockSize {
			return offset, CorruptDirEntryErr
		}
		if !f(offset, recLen) {
			return offset, nil
		}
		offset += recLen
	}
	return offset, nil
}

func validName(name string) error {
	if name == "" {
		return EmptyNameErr
	}
	if len(name) > MaxNameLen {
		return NameTooLongErr
	}
	return nil
}
