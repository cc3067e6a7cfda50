package directory

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/encode"
	. "github.com/weberc2/blockfs/pkg/types"
)

// AddEntry writes a record for `ino` named `name` into the first block of
// `dir` whose tail can hold it, appending a fresh block if none can. The
// directory's child count is incremented and the inode persisted. Callers
// are responsible for rejecting duplicate names.
func (d *Directory) AddEntry(dir *Inode, ino Ino, name string) error {
	if !dir.IsDir() {
		return fmt.Errorf(
			"adding entry `%s` for inode `%d` to inode `%d`: %w",
			name,
			ino,
			dir.Ino,
			NotDirErr,
		)
	}
	if err := validName(name); err != nil {
		return fmt.Errorf(
			"adding entry `%s` for inode `%d` to dir `%d`: %w",
			name,
			ino,
			dir.Ino,
			err,
		)
	}

	var (
		p    [BlockSize]byte
		need = encode.DirEntrySize(len(name))
	)
	for l := Block(0); l < dir.Blocks; l++ {
		physicalBlock, err := d.Translator.Translate(dir, l)
		if err != nil {
			return fmt.Errorf(
				"adding entry `%s` for inode `%d` to dir `%d`: %w",
				name,
				ino,
				dir.Ino,
				err,
			)
		}
		if err := d.Store.ReadDataBlock(physicalBlock, &p); err != nil {
			return fmt.Errorf(
				"adding entry `%s` for inode `%d` to dir `%d`: %w",
				name,
				ino,
				dir.Ino,
				err,
			)
		}

		tail, err := scan(&p, func(Byte, Byte) bool { return true })
		if err != nil {
			return fmt.Errorf(
				"adding entry `%s` for inode `%d` to dir `%d`: block `%d`: %w",
				name,
				ino,
				dir.Ino,
				physicalBlock,
				err,
			)
		}
		if BlockSize-tail < need {
			continue
		}

		encode.EncodeDirEntry(&DirEntry{Ino: ino, Name: name}, p[tail:])
		if err := d.Store.WriteDataBlock(physicalBlock, &p); err != nil {
			return fmt.Errorf(
				"adding entry `%s` for inode `%d` to dir `%d`: %w",
				name,
				ino,
				dir.Ino,
				err,
			)
		}
		return d.countChild(dir, 1)
	}

	if err := d.appendBlock(dir, &DirEntry{Ino: ino, Name: name}); err != nil {
		return fmt.Errorf(
			"adding entry `%s` for inode `%d` to dir `%d`: %w",
			name,
			ino,
			dir.Ino,
			err,
		)
	}
	return d.countChild(dir, 1)
}

// appendBlock allocates a new block holding only `entry` and attaches it to
// the end of `dir`.
func (d *Directory) appendBlock(dir *Inode, entry *DirEntry) error {
	block, err := d.Allocator.Alloc()
	if err != nil {
		return err
	}

	var p [BlockSize]byte
	encode.EncodeDirEntry(entry, p[:])
	if err := d.Store.WriteDataBlock(block, &p); err != nil {
		d.free(dir, block)
		return err
	}
	if err := d.Translator.Append(dir, block); err != nil {
		d.free(dir, block)
		return err
	}
	dir.Size = Byte(dir.Blocks) * BlockSize
	return nil
}

func (d *Directory) countChild(dir *Inode, delta int) error {
	dir.Children = uint32(int(dir.Children) + delta)
	if err := d.InodeStore.Put(dir); err != nil {
		return fmt.Errorf("updating child count of dir `%d`: %w", dir.Ino, err)
	}
	return nil
}

// Init seeds an empty directory with its `.` and `..` entries.
func (d *Directory) Init(dir *Inode, parent Ino) error {
	if err := d.AddEntry(dir, dir.Ino, NameDot); err != nil {
		return fmt.Errorf("initializing dir `%d`: %w", dir.Ino, err)
	}
	if err := d.AddEntry(dir, parent, NameDotDot); err != nil {
		return fmt.Errorf("initializing dir `%d`: %w", dir.Ino, err)
	}
	return nil
}
