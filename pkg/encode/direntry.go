package encode

import (
	. "github.com/weberc2/blockfs/pkg/types"
)

// DirEntrySize returns the on-disk size of a record holding a name of
// `nameLen` bytes: the fixed header, the name, and its NUL terminator.
func DirEntrySize(nameLen int) Byte {
	return DirEntryHeaderSize + Byte(nameLen) + 1
}

func EncodeDirEntry(entry *DirEntry, p []byte) {
	putU16(p, dirEntryRecLenStart, uint16(DirEntrySize(len(entry.Name))))
	putIno(p, dirEntryInoStart, entry.Ino)
	copy(p[dirEntryNameStart:], entry.Name)
	p[dirEntryNameStart+Byte(len(entry.Name))] = 0
}

// DecodeDirEntryRecLen reads the record length at the start of `p`. A length
// of zero marks the unused tail of a block.
func DecodeDirEntryRecLen(p []byte) uint16 {
	return getU16(p, dirEntryRecLenStart)
}

// DecodeDirEntry decodes the record at the start of `p`, which must hold at
// least the full record. It returns the record length.
func DecodeDirEntry(entry *DirEntry, p []byte) uint16 {
	recLen := getU16(p, dirEntryRecLenStart)
	entry.Ino = getIno(p, dirEntryInoStart)
	entry.Name = string(p[dirEntryNameStart : Byte(recLen)-1])
	return recLen
}

// DirEntryNameEqual compares the record's name against `name` without
// allocating.
func DirEntryNameEqual(p []byte, name string) bool {
	recLen := Byte(getU16(p, dirEntryRecLenStart))
	if recLen != DirEntrySize(len(name)) {
		return false
	}
	return string(p[dirEntryNameStart:recLen-1]) == name
}

func PutDirEntryIno(p []byte, ino Ino) {
	putIno(p, dirEntryInoStart, ino)
}

func GetDirEntryIno(p []byte) Ino {
	return getIno(p, dirEntryInoStart)
}

const (
	dirEntryRecLenStart = 0
	dirEntryRecLenSize  = 2
	dirEntryRecLenEnd   = dirEntryRecLenStart + dirEntryRecLenSize

	dirEntryInoStart = dirEntryRecLenEnd
	dirEntryInoSize  = InoSize
	dirEntryInoEnd   = dirEntryInoStart + dirEntryInoSize

	dirEntryNameStart = dirEntryInoEnd

	DirEntryHeaderSize = dirEntryInoEnd
)
