package types

import (
	"fmt"
)

type Ino uint64

const (
	DirectBlocksCount Block = 12
	InodeSize         Byte  = 256
	InoSize           Byte  = 8
	InodesPerBlock    Ino   = Ino(BlockSize / InodeSize)

	// InoRoot is the first inode handed out on a fresh volume and is
	// reserved for the root directory.
	InoRoot Ino = 0
)

type Inode struct {
	Ino        Ino
	Mode       Mode
	UID        uint32
	GID        uint32
	ATime      int64
	CTime      int64
	MTime      int64
	DTime      int64
	LinksCount uint16
	Size       Byte
	// Blocks is the number of logical blocks currently attached.
	Blocks Block
	// Children is the number of entries in a directory, including `.` and
	// `..`. It is meaningless for other file types.
	Children            uint32
	Allocated           bool
	DirectBlocks        [DirectBlocksCount]Block
	SinglyIndirectBlock Block
	DoublyIndirectBlock Block
	TriplyIndirectBlock Block
}

func (inode *Inode) IsDir() bool { return inode.Mode.FileType() == FileTypeDir }

// Mode holds the file type bits and the permission bits using the same
// layout as POSIX `st_mode`.
type Mode uint32

const (
	ModeTypeMask Mode = 0o170000
	ModePermMask Mode = 0o7777

	ModeSocket   Mode = 0o140000
	ModeSymlink  Mode = 0o120000
	ModeRegular  Mode = 0o100000
	ModeBlockDev Mode = 0o060000
	ModeDir      Mode = 0o040000
	ModeCharDev  Mode = 0o020000
	ModeFifo     Mode = 0o010000
)

func NewMode(ft FileType, perm Mode) Mode {
	return ft.modeBits() | perm&ModePermMask
}

func (m Mode) Perm() Mode { return m & ModePermMask }

func (m Mode) WithPerm(perm Mode) Mode { return m&ModeTypeMask | perm&ModePermMask }

func (m Mode) FileType() FileType {
	switch m & ModeTypeMask {
	case ModeRegular:
		return FileTypeRegular
	case ModeDir:
		return FileTypeDir
	case ModeCharDev:
		return FileTypeCharDev
	case ModeBlockDev:
		return FileTypeBlockDev
	case ModeFifo:
		return FileTypeFifo
	case ModeSocket:
		return FileTypeSocket
	case ModeSymlink:
		return FileTypeSymlink
	default:
		return FileTypeInvalid
	}
}

type FileType uint8

const (
	FileTypeInvalid FileType = iota
	FileTypeRegular
	FileTypeDir
	FileTypeCharDev
	FileTypeBlockDev
	FileTypeFifo
	FileTypeSocket
	FileTypeSymlink
)

func (ft FileType) modeBits() Mode {
	switch ft {
	case FileTypeRegular:
		return ModeRegular
	case FileTypeDir:
		return ModeDir
	case FileTypeCharDev:
		return ModeCharDev
	case FileTypeBlockDev:
		return ModeBlockDev
	case FileTypeFifo:
		return ModeFifo
	case FileTypeSocket:
		return ModeSocket
	case FileTypeSymlink:
		return ModeSymlink
	default:
		return 0
	}
}

func (ft FileType) String() string {
	switch ft {
	case FileTypeInvalid:
		return "Invalid"
	case FileTypeRegular:
		return "Regular"
	case FileTypeDir:
		return "Dir"
	case FileTypeCharDev:
		return "CharDev"
	case FileTypeBlockDev:
		return "BlockDev"
	case FileTypeFifo:
		return "Fifo"
	case FileTypeSocket:
		return "Socket"
	case FileTypeSymlink:
		return "Symlink"
	default:
		panic(fmt.Sprintf("invalid file type: `%d`", ft))
	}
}

func (ft FileType) MarshalJSON() ([]byte, error) {
	s := ft.String()
	out := make([]byte, len(s)+2)
	out[0] = '"'
	out[len(out)-1] = '"'
	copy(out[1:], s)
	return out, nil
}

func (ft FileType) Validate() error {
	if ft <= FileTypeInvalid || ft > FileTypeSymlink {
		return fmt.Errorf(
			"validating file type `%d`: %w",
			ft,
			InvalidFileTypeErr,
		)
	}
	return nil
}
