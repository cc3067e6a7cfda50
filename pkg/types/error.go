package types

import (
	"errors"
)

type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	InvalidFileTypeErr    ConstError = "invalid file type"
	IncompatibleLayoutErr ConstError = "incompatible on-disk layout"
	CorruptDirEntryErr    ConstError = "corrupt directory entry"

	// invalid argument
	BlockOutOfRangeErr ConstError = "block out of range"
	InoOutOfRangeErr   ConstError = "inode number out of range"
	NameTooLongErr     ConstError = "name too long"
	EmptyNameErr       ConstError = "empty name"
	EmptyKeyErr        ConstError = "empty cache key"
	NotAbsolutePathErr ConstError = "not an absolute path"
	InvalidArgumentErr ConstError = "invalid argument"
	FileTooLargeErr    ConstError = "file too large"
	CorruptInodeHint   ConstError = "first free inode hint points at an allocated inode"
	NotAllocatedErr    ConstError = "inode not allocated"

	// not found
	NotFoundErr        ConstError = "no such file or directory"
	MissingIndirectErr ConstError = "indirect block not allocated"

	// exhausted
	OutOfBlocksErr ConstError = "out of free blocks"
	OutOfInodesErr ConstError = "out of free inodes"

	// type mismatch
	NotDirErr ConstError = "not a directory"
	IsDirErr  ConstError = "is a directory"

	ExistsErr      ConstError = "file exists"
	DirNotEmptyErr ConstError = "directory not empty"
	BusyErr        ConstError = "resource busy"
)

type ErrorKind int

const (
	KindIO ErrorKind = iota
	KindInvalidArgument
	KindNotFound
	KindExhausted
	KindTypeMismatch
	KindExists
	KindNotEmpty
)

func (kind ErrorKind) String() string {
	switch kind {
	case KindInvalidArgument:
		return "invalid-argument"
	case KindNotFound:
		return "not-found"
	case KindExhausted:
		return "exhausted"
	case KindTypeMismatch:
		return "type-mismatch"
	case KindExists:
		return "exists"
	case KindNotEmpty:
		return "not-empty"
	default:
		return "io"
	}
}

var kinds = map[ConstError]ErrorKind{
	BlockOutOfRangeErr: KindInvalidArgument,
	InoOutOfRangeErr:   KindInvalidArgument,
	NameTooLongErr:     KindInvalidArgument,
	EmptyNameErr:       KindInvalidArgument,
	EmptyKeyErr:        KindInvalidArgument,
	NotAbsolutePathErr: KindInvalidArgument,
	InvalidArgumentErr: KindInvalidArgument,
	FileTooLargeErr:    KindInvalidArgument,
	CorruptInodeHint:   KindInvalidArgument,
	NotAllocatedErr:    KindInvalidArgument,
	NotFoundErr:        KindNotFound,
	MissingIndirectErr: KindNotFound,
	OutOfBlocksErr:     KindExhausted,
	OutOfInodesErr:     KindExhausted,
	NotDirErr:          KindTypeMismatch,
	IsDirErr:           KindTypeMismatch,
	ExistsErr:          KindExists,
	DirNotEmptyErr:     KindNotEmpty,
	BusyErr:            KindInvalidArgument,
}

// Kind classifies `err` by the first ConstError in its chain.
func Kind(err error) ErrorKind {
	var c ConstError
	if errors.As(err, &c) {
		if kind, ok := kinds[c]; ok {
			return kind
		}
	}
	return KindIO
}
