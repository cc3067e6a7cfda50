package mount

import (
	"errors"
	"syscall"

	. "github.com/weberc2/blockfs/pkg/types"
)

var errnos = map[ConstError]syscall.Errno{
	NotFoundErr:        syscall.ENOENT,
	NotDirErr:          syscall.ENOTDIR,
	IsDirErr:           syscall.EISDIR,
	NameTooLongErr:     syscall.ENAMETOOLONG,
	OutOfBlocksErr:     syscall.ENOSPC,
	OutOfInodesErr:     syscall.ENOSPC,
	ExistsErr:          syscall.EEXIST,
	DirNotEmptyErr:     syscall.ENOTEMPTY,
	FileTooLargeErr:    syscall.EFBIG,
	BusyErr:            syscall.EBUSY,
	NotAbsolutePathErr: syscall.EINVAL,
	EmptyNameErr:       syscall.EINVAL,
}

// Errno maps an engine error onto the closest POSIX error number. Errors the
// table does not name fall back on their kind; anything unclassified is EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var c ConstError
	if errors.As(err, &c) {
		if errno, ok := errnos[c]; ok {
			return errno
		}
	}

	switch Kind(err) {
	case KindInvalidArgument:
		return syscall.EINVAL
	case KindNotFound:
		return syscall.ENOENT
	case KindExhausted:
		return syscall.ENOSPC
	case KindTypeMismatch:
		return syscall.ENOTDIR
	case KindExists:
		return syscall.EEXIST
	case KindNotEmpty:
		return syscall.ENOTEMPTY
	default:
		return syscall.EIO
	}
}

// Code returns the negative errno for `err`, or zero on success.
func Code(err error) int {
	return -int(Errno(err))
}
