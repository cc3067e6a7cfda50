package directory

import (
	"fmt"

	. "github.com/weberc2/blockfs/pkg/types"
)

// RemoveEntry deletes the record named `name` from `dir` and slides every
// later record in the same block down over it. It returns the inode number
// the record pointed at.
func (d *Directory) RemoveEntry(dir *Inode, name string) (Ino, error) {
	if name == NameDot || name == NameDotDot {
		return 0, fmt.Errorf(
			"removing entry `%s` from dir `%d`: %w",
			name,
			dir.Ino,
			InvalidArgumentErr,
		)
	}

	var pos Position
	if err := d.FindEntry(dir, name, &pos); err != nil {
		return 0, fmt.Errorf("removing entry: %w", err)
	}
	ino := pos.Ino()
	recLen := pos.RecLen()

	copy(pos.Data[pos.Offset:], pos.Data[pos.Offset+recLen:])
	for i := BlockSize - recLen; i < BlockSize; i++ {
		pos.Data[i] = 0
	}
	if err := d.Store.WriteDataBlock(pos.PhysicalBlock, &pos.Data); err != nil {
		return 0, fmt.Errorf(
			"removing entry `%s` from dir `%d`: %w",
			name,
			dir.Ino,
			err,
		)
	}

	if err := d.countChild(dir, -1); err != nil {
		return 0, fmt.Errorf(
			"removing entry `%s` from dir `%d`: %w",
			name,
			dir.Ino,
			err,
		)
	}
	return ino, nil
}

// IsEmpty reports whether `dir` holds nothing besides `.` and `..`.
func IsEmpty(dir *Inode) bool { return dir.Children <= 2 }
