package directory

import (
	"fmt"

	"github.com/weberc2/blockfs/pkg/encode"
	. "github.com/weberc2/blockfs/pkg/types"
)

// ReadEntries returns every record in `dir` in on-disk order.
func (d *Directory) ReadEntries(dir *Inode) ([]DirEntry, error) {
	if !dir.IsDir() {
		return nil, fmt.Errorf("reading entries of inode `%d`: %w", dir.Ino, NotDirErr)
	}

	var (
		p       [BlockSize]byte
		entries = make([]DirEntry, 0, dir.Children)
	)
	for l := Block(0); l < dir.Blocks; l++ {
		physicalBlock, err := d.Translator.Translate(dir, l)
		if err != nil {
			return entries, fmt.Errorf("reading entries of dir `%d`: %w", dir.Ino, err)
		}
		if err := d.Store.ReadDataBlock(physicalBlock, &p); err != nil {
			return entries, fmt.Errorf("reading entries of dir `%d`: %w", dir.Ino, err)
		}
		if _, err := scan(&p, func(offset Byte, _ Byte) bool {
			var entry DirEntry
			encode.DecodeDirEntry(&entry, p[offset:])
			entries = append(entries, entry)
			return true
		}); err != nil {
			return entries, fmt.Errorf(
				"reading entries of dir `%d`: block `%d`: %w",
				dir.Ino,
				physicalBlock,
				err,
			)
		}
	}
	return entries, nil
}
