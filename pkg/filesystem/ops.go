package filesystem

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/directory"
	. "github.com/weberc2/blockfs/pkg/types"
)

// GetAttr returns a copy of the inode at `p`.
func (fs *FileSystem) GetAttr(p string) (Inode, error) {
	var inode Inode
	ino, err := fs.NameI(p)
	if err != nil {
		return inode, fmt.Errorf("getting attributes of `%s`: %w", p, err)
	}
	if err := fs.Table.Get(ino, &inode); err != nil {
		return inode, fmt.Errorf("getting attributes of `%s`: %w", p, err)
	}
	return inode, nil
}

// Access reports whether `p` exists. Mode bits are stored but not enforced.
func (fs *FileSystem) Access(p string) error {
	if _, err := fs.NameI(p); err != nil {
		return fmt.Errorf("checking access to `%s`: %w", p, err)
	}
	return nil
}

// Mkdir creates an empty directory at `p`.
func (fs *FileSystem) Mkdir(p string, perm Mode) (Inode, error) {
	inode, err := fs.create(p, NewMode(FileTypeDir, perm))
	if err != nil {
		return inode, fmt.Errorf("making directory: %w", err)
	}
	return inode, nil
}

// Mknod creates a non-directory file at `p`. A mode without file type bits
// makes a regular file.
func (fs *FileSystem) Mknod(p string, mode Mode) (Inode, error) {
	if mode&ModeTypeMask == 0 {
		mode |= ModeRegular
	}
	ft := mode.FileType()
	if ft == FileTypeInvalid || ft == FileTypeDir {
		return Inode{}, fmt.Errorf(
			"making node `%s` with mode `%o`: %w",
			p,
			mode,
			InvalidArgumentErr,
		)
	}
	inode, err := fs.create(p, mode)
	if err != nil {
		return inode, fmt.Errorf("making node: %w", err)
	}
	return inode, nil
}

func (fs *FileSystem) create(p string, mode Mode) (Inode, error) {
	var parent Inode
	clean, name, err := fs.resolveParent(p, &parent)
	if err != nil {
		return Inode{}, fmt.Errorf("creating `%s`: %w", p, err)
	}

	var pos directory.Position
	if err := fs.Directory.FindEntry(&parent, name, &pos); err == nil {
		return Inode{}, fmt.Errorf("creating `%s`: %w", clean, ExistsErr)
	} else if Kind(err) != KindNotFound {
		return Inode{}, fmt.Errorf("creating `%s`: %w", clean, err)
	}

	ino, err := fs.Table.Alloc()
	if err != nil {
		return Inode{}, fmt.Errorf("creating `%s`: %w", clean, err)
	}

	now := fs.now().Unix()
	inode := Inode{
		Ino:        ino,
		Mode:       mode,
		ATime:      now,
		CTime:      now,
		MTime:      now,
		LinksCount: 1,
		Allocated:  true,
	}
	if inode.IsDir() {
		inode.LinksCount = 2
		err = fs.Directory.Init(&inode, parent.Ino)
	} else {
		err = fs.Table.Put(&inode)
	}
	if err != nil {
		fs.release(ino)
		return Inode{}, fmt.Errorf("creating `%s`: %w", clean, err)
	}

	if err := fs.Directory.AddEntry(&parent, ino, name); err != nil {
		fs.release(ino)
		return Inode{}, fmt.Errorf("creating `%s`: %w", clean, err)
	}
	parent.MTime, parent.CTime = now, now
	if inode.IsDir() {
		parent.LinksCount++
	}
	if err := fs.Table.Put(&parent); err != nil {
		return Inode{}, fmt.Errorf("creating `%s`: %w", clean, err)
	}

	if err := fs.Cache.Set(clean, ino); err != nil {
		return Inode{}, fmt.Errorf("creating `%s`: %w", clean, err)
	}
	fs.Logger.WithFields(log.Fields{
		"path": clean,
		"ino":  ino,
		"type": inode.Mode.FileType(),
	}).Debug("created file")
	return inode, nil
}

// ReadDir lists the entries of the directory at `p`, including `.` and `..`.
func (fs *FileSystem) ReadDir(p string) ([]DirEntry, error) {
	var dir Inode
	ino, err := fs.NameI(p)
	if err != nil {
		return nil, fmt.Errorf("reading directory `%s`: %w", p, err)
	}
	if err := fs.Table.Get(ino, &dir); err != nil {
		return nil, fmt.Errorf("reading directory `%s`: %w", p, err)
	}
	entries, err := fs.Directory.ReadEntries(&dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory `%s`: %w", p, err)
	}
	return entries, nil
}

// Open resolves `p` for reading and writing. Directories cannot be opened
// this way.
func (fs *FileSystem) Open(p string) (Ino, error) {
	inode, err := fs.GetAttr(p)
	if err != nil {
		return 0, fmt.Errorf("opening: %w", err)
	}
	if inode.IsDir() {
		return 0, fmt.Errorf("opening `%s`: %w", p, IsDirErr)
	}
	return inode.Ino, nil
}

// Close releases a handle returned by Open. Handles carry no state, so this
// only checks that the inode is still allocated.
func (fs *FileSystem) Close(ino Ino) error {
	var inode Inode
	if err := fs.Table.Get(ino, &inode); err != nil {
		return fmt.Errorf("closing inode `%d`: %w", ino, err)
	}
	if !inode.Allocated {
		return fmt.Errorf("closing inode `%d`: %w", ino, NotAllocatedErr)
	}
	return nil
}

// Read copies up to len(b) bytes from the file at `p` starting at `offset`.
func (fs *FileSystem) Read(p string, offset Byte, b []byte) (Byte, error) {
	inode, err := fs.regular(p)
	if err != nil {
		return 0, fmt.Errorf("reading: %w", err)
	}
	n, err := fs.ReadInode(&inode, offset, b)
	if err != nil {
		return n, fmt.Errorf("reading `%s`: %w", p, err)
	}
	return n, nil
}

// ReadInode reads from an already-loaded inode and records the access time.
func (fs *FileSystem) ReadInode(inode *Inode, offset Byte, b []byte) (Byte, error) {
	n, err := fs.Data.Read(inode, offset, b)
	if err != nil {
		return n, err
	}
	inode.ATime = fs.now().Unix()
	if err := fs.Table.Put(inode); err != nil {
		return n, err
	}
	return n, nil
}

// Write stores `b` into the file at `p` starting at `offset`, growing it as
// needed.
func (fs *FileSystem) Write(p string, offset Byte, b []byte) (Byte, error) {
	inode, err := fs.regular(p)
	if err != nil {
		return 0, fmt.Errorf("writing: %w", err)
	}
	n, err := fs.WriteInode(&inode, offset, b)
	if err != nil {
		return n, fmt.Errorf("writing `%s`: %w", p, err)
	}
	return n, nil
}

func (fs *FileSystem) WriteInode(inode *Inode, offset Byte, b []byte) (Byte, error) {
	n, err := fs.Data.Write(inode, offset, b)
	if err != nil {
		return n, err
	}
	now := fs.now().Unix()
	inode.MTime, inode.CTime = now, now
	if err := fs.Table.Put(inode); err != nil {
		return n, err
	}
	return n, nil
}

// Truncate sets the size of the file at `p`.
func (fs *FileSystem) Truncate(p string, size Byte) error {
	inode, err := fs.regular(p)
	if err != nil {
		return fmt.Errorf("truncating: %w", err)
	}
	if err := fs.TruncateInode(&inode, size); err != nil {
		return fmt.Errorf("truncating `%s`: %w", p, err)
	}
	return nil
}

func (fs *FileSystem) TruncateInode(inode *Inode, size Byte) error {
	if inode.IsDir() {
		return IsDirErr
	}
	if err := fs.Data.Truncate(inode, size); err != nil {
		return err
	}
	now := fs.now().Unix()
	inode.MTime, inode.CTime = now, now
	return fs.Table.Put(inode)
}

// Chmod replaces the permission bits of `p`, keeping its file type.
func (fs *FileSystem) Chmod(p string, perm Mode) error {
	inode, err := fs.GetAttr(p)
	if err != nil {
		return fmt.Errorf("changing mode: %w", err)
	}
	inode.Mode = inode.Mode.WithPerm(perm)
	inode.CTime = fs.now().Unix()
	if err := fs.Table.Put(&inode); err != nil {
		return fmt.Errorf("changing mode of `%s`: %w", p, err)
	}
	return nil
}

// Unlink removes the entry at `p`. A directory is removed only when empty.
// The inode and every block it owns are freed once no entry refers to it.
func (fs *FileSystem) Unlink(p string) error {
	if err := fs.remove(p, false); err != nil {
		return fmt.Errorf("unlinking: %w", err)
	}
	return nil
}

// Rmdir removes the empty directory at `p`.
func (fs *FileSystem) Rmdir(p string) error {
	if err := fs.remove(p, true); err != nil {
		return fmt.Errorf("removing directory: %w", err)
	}
	return nil
}

func (fs *FileSystem) remove(p string, dirOnly bool) error {
	var parent Inode
	clean, name, err := fs.resolveParent(p, &parent)
	if err != nil {
		return fmt.Errorf("removing `%s`: %w", p, err)
	}
	if name == NameDot || name == NameDotDot {
		return fmt.Errorf("removing `%s`: %w", clean, InvalidArgumentErr)
	}

	var child Inode
	ino, err := fs.Directory.Lookup(&parent, name)
	if err != nil {
		return fmt.Errorf("removing `%s`: %w", clean, err)
	}
	if err := fs.Table.Get(ino, &child); err != nil {
		return fmt.Errorf("removing `%s`: %w", clean, err)
	}
	if dirOnly && !child.IsDir() {
		return fmt.Errorf("removing `%s`: %w", clean, NotDirErr)
	}
	if child.IsDir() && !directory.IsEmpty(&child) {
		return fmt.Errorf("removing `%s`: %w", clean, DirNotEmptyErr)
	}

	if err := fs.unlinkChild(&parent, name, &child); err != nil {
		return fmt.Errorf("removing `%s`: %w", clean, err)
	}
	fs.Cache.RemovePrefix(clean)
	fs.Logger.WithFields(log.Fields{"path": clean, "ino": ino}).Debug("removed file")
	return nil
}

// unlinkChild drops the entry `name` from `parent` and releases `child` once
// its link count falls to zero.
func (fs *FileSystem) unlinkChild(parent *Inode, name string, child *Inode) error {
	if _, err := fs.Directory.RemoveEntry(parent, name); err != nil {
		return err
	}
	now := fs.now().Unix()
	parent.MTime, parent.CTime = now, now
	if child.IsDir() {
		parent.LinksCount--
		child.LinksCount = 0
	} else if child.LinksCount > 0 {
		child.LinksCount--
	}
	if err := fs.Table.Put(parent); err != nil {
		return err
	}

	if child.LinksCount > 0 {
		child.CTime = now
		return fs.Table.Put(child)
	}
	return fs.Table.Free(child.Ino)
}

func (fs *FileSystem) regular(p string) (Inode, error) {
	inode, err := fs.GetAttr(p)
	if err != nil {
		return inode, err
	}
	if inode.IsDir() {
		return inode, fmt.Errorf("`%s`: %w", p, IsDirErr)
	}
	return inode, nil
}

// release frees an inode whose creation failed partway.
func (fs *FileSystem) release(ino Ino) {
	if err := fs.Table.Free(ino); err != nil {
		fs.Logger.WithField("ino", ino).
			WithError(err).
			Warn("leaked inode after failed create")
	}
}
