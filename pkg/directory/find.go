package directory

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/encode"
	. "github.com/weberc2/blockfs/pkg/types"
)

// FindEntry scans `dir` for a record whose name matches `name` exactly and
// fills `out` with its position. A missing name yields NotFoundErr.
func (d *Directory) FindEntry(dir *Inode, name string, out *Position) error {
	if !dir.IsDir() {
		return fmt.Errorf(
			"finding entry `%s` in inode `%d`: %w",
			name,
			dir.Ino,
			NotDirErr,
		)
	}
	if err := validName(name); err != nil {
		return fmt.Errorf("finding entry `%s` in dir `%d`: %w", name, dir.Ino, err)
	}

	for l := Block(0); l < dir.Blocks; l++ {
		physicalBlock, err := d.Translator.Translate(dir, l)
		if err != nil {
			return fmt.Errorf(
				"finding entry `%s` in dir `%d`: %w",
				name,
				dir.Ino,
				err,
			)
		}
		if err := d.Store.ReadDataBlock(physicalBlock, &out.Data); err != nil {
			return fmt.Errorf(
				"finding entry `%s` in dir `%d`: %w",
				name,
				dir.Ino,
				err,
			)
		}

		found := false
		offset, err := scan(&out.Data, func(offset Byte, recLen Byte) bool {
			found = encode.DirEntryNameEqual(out.Data[offset:], name)
			return !found
		})
		if err != nil {
			return fmt.Errorf(
				"finding entry `%s` in dir `%d`: block `%d`: %w",
				name,
				dir.Ino,
				physicalBlock,
				err,
			)
		}
		if found {
			out.LogicalBlock = l
			out.PhysicalBlock = physicalBlock
			out.Offset = offset
			return nil
		}
	}

	return fmt.Errorf("finding entry `%s` in dir `%d`: %w", name, dir.Ino, NotFoundErr)
}

// Lookup returns the inode number recorded under `name` in `dir`.
func (d *Directory) Lookup(dir *Inode, name string) (Ino, error) {
	var pos Position
	if err := d.FindEntry(dir, name, &pos); err != nil {
		return 0, err
	}
	return pos.Ino(), nil
}

// SetEntryIno repoints the record named `name` at `ino`.
func (d *Directory) SetEntryIno(dir *Inode, name string, ino Ino) error {
	var pos Position
	if err := d.FindEntry(dir, name, &pos); err != nil {
		return fmt.Errorf("repointing entry `%s` at `%d`: %w", name, ino, err)
	}
	encode.PutDirEntryIno(pos.Data[pos.Offset:], ino)
	if err := d.Store.WriteDataBlock(pos.PhysicalBlock, &pos.Data); err != nil {
		return fmt.Errorf(
			"repointing entry `%s` in dir `%d` at `%d`: %w",
			name,
			dir.Ino,
			ino,
			err,
		)
	}
	return nil
}
