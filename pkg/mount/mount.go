// Package mount exposes a filesystem session to the kernel through FUSE.
// Every callback takes one session-wide lock, since the engine underneath
// expects strictly serialized access.
package mount

import (
	"context"
	"fmt"
	"path"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/filesystem"
	. "github.com/weberc2/blockfs/pkg/types"
)

type Options struct {
	FsName string
	Debug  bool
	Logger log.FieldLogger
}

type session struct {
	sync.Mutex
	fs     *filesystem.FileSystem
	logger log.FieldLogger
}

// Mount serves `filesystem` at `mountpoint` until the returned server is
// unmounted.
func Mount(
	mountpoint string,
	filesystem *filesystem.FileSystem,
	opts Options,
) (*fuse.Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	name := opts.FsName
	if name == "" {
		name = "blockfs"
	}

	root := &node{session: &session{fs: filesystem, logger: logger}}
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			FsName: name,
			Name:   "blockfs",
			Debug:  opts.Debug,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting at `%s`: %w", mountpoint, err)
	}
	logger.WithFields(log.Fields{
		"mountpoint": mountpoint,
		"volumeID":   filesystem.Superblock.VolumeID,
	}).Info("mounted filesystem")
	return server, nil
}

type node struct {
	fs.Inode
	session *session
}

var (
	_ fs.NodeGetattrer = (*node)(nil)
	_ fs.NodeAccesser  = (*node)(nil)
	_ fs.NodeLookuper  = (*node)(nil)
	_ fs.NodeReaddirer = (*node)(nil)
	_ fs.NodeMkdirer   = (*node)(nil)
	_ fs.NodeMknoder   = (*node)(nil)
	_ fs.NodeCreater   = (*node)(nil)
	_ fs.NodeOpener    = (*node)(nil)
	_ fs.NodeReader    = (*node)(nil)
	_ fs.NodeWriter    = (*node)(nil)
	_ fs.NodeSetattrer = (*node)(nil)
	_ fs.NodeUnlinker  = (*node)(nil)
	_ fs.NodeRmdirer   = (*node)(nil)
	_ fs.NodeRenamer   = (*node)(nil)
)

func (n *node) path() string { return "/" + n.Path(nil) }

func (n *node) child(name string) string { return path.Join(n.path(), name) }

// errno logs failures other than a missing entry, which lookups produce
// constantly.
func (n *node) errno(op string, p string, err error) syscall.Errno {
	errno := Errno(err)
	if errno != 0 && errno != syscall.ENOENT {
		n.session.logger.WithFields(log.Fields{
			"op":    op,
			"path":  p,
			"errno": errno,
		}).WithError(err).Debug("operation failed")
	}
	return errno
}

func (n *node) newChild(ctx context.Context, inode *Inode, out *fuse.EntryOut) *fs.Inode {
	fillAttr(&out.Attr, inode)
	return n.NewInode(
		ctx,
		&node{session: n.session},
		fs.StableAttr{Mode: uint32(inode.Mode & ModeTypeMask), Ino: fuseIno(inode.Ino)},
	)
}

// fuseIno shifts inode numbers by one; FUSE reserves zero.
func fuseIno(ino Ino) uint64 { return uint64(ino) + 1 }

func fillAttr(out *fuse.Attr, inode *Inode) {
	out.Ino = fuseIno(inode.Ino)
	out.Mode = uint32(inode.Mode)
	out.Size = uint64(inode.Size)
	out.Blocks = uint64(inode.Blocks) * uint64(BlockSize/512)
	out.Blksize = uint32(BlockSize)
	out.Nlink = uint32(inode.LinksCount)
	out.Uid = inode.UID
	out.Gid = inode.GID
	out.Atime = uint64(inode.ATime)
	out.Mtime = uint64(inode.MTime)
	out.Ctime = uint64(inode.CTime)
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.path()
	inode, err := n.session.fs.GetAttr(p)
	if err != nil {
		return n.errno("getattr", p, err)
	}
	fillAttr(&out.Attr, &inode)
	return 0
}

func (n *node) Access(ctx context.Context, mask uint32) syscall.Errno {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.path()
	return n.errno("access", p, n.session.fs.Access(p))
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.child(name)
	inode, err := n.session.fs.GetAttr(p)
	if err != nil {
		return nil, n.errno("lookup", p, err)
	}
	return n.newChild(ctx, &inode, out), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.path()
	entries, err := n.session.fs.ReadDir(p)
	if err != nil {
		return nil, n.errno("readdir", p, err)
	}

	list := make([]fuse.DirEntry, 0, len(entries))
	var inode Inode
	for _, entry := range entries {
		if entry.Name == NameDot || entry.Name == NameDotDot {
			continue
		}
		if err := n.session.fs.Table.Get(entry.Ino, &inode); err != nil {
			return nil, n.errno("readdir", p, err)
		}
		list = append(list, fuse.DirEntry{
			Name: entry.Name,
			Ino:  fuseIno(entry.Ino),
			Mode: uint32(inode.Mode & ModeTypeMask),
		})
	}
	return fs.NewListDirStream(list), 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.child(name)
	inode, err := n.session.fs.Mkdir(p, Mode(mode))
	if err != nil {
		return nil, n.errno("mkdir", p, err)
	}
	return n.newChild(ctx, &inode, out), 0
}

func (n *node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.child(name)
	inode, err := n.session.fs.Mknod(p, Mode(mode))
	if err != nil {
		return nil, n.errno("mknod", p, err)
	}
	return n.newChild(ctx, &inode, out), 0
}

func (n *node) Create(
	ctx context.Context,
	name string,
	flags uint32,
	mode uint32,
	out *fuse.EntryOut,
) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.child(name)
	inode, err := n.session.fs.Mknod(p, Mode(mode))
	if err != nil {
		return nil, nil, 0, n.errno("create", p, err)
	}
	return n.newChild(ctx, &inode, out), nil, 0, 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.path()
	ino, err := n.session.fs.Open(p)
	if err != nil {
		return nil, 0, n.errno("open", p, err)
	}
	if flags&syscall.O_TRUNC != 0 {
		if err := n.session.fs.Truncate(p, 0); err != nil {
			return nil, 0, n.errno("open", p, err)
		}
	}
	n.session.logger.WithFields(log.Fields{"path": p, "ino": ino}).Debug("opened file")
	return nil, 0, 0
}

func (n *node) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.path()
	read, err := n.session.fs.Read(p, Byte(off), dest)
	if err != nil {
		return nil, n.errno("read", p, err)
	}
	return fuse.ReadResultData(dest[:read]), 0
}

func (n *node) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.path()
	written, err := n.session.fs.Write(p, Byte(off), data)
	if err != nil {
		return uint32(written), n.errno("write", p, err)
	}
	return uint32(written), 0
}

func (n *node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.path()
	if mode, ok := in.GetMode(); ok {
		if err := n.session.fs.Chmod(p, Mode(mode)); err != nil {
			return n.errno("chmod", p, err)
		}
	}
	if size, ok := in.GetSize(); ok {
		if err := n.session.fs.Truncate(p, Byte(size)); err != nil {
			return n.errno("truncate", p, err)
		}
	}

	inode, err := n.session.fs.GetAttr(p)
	if err != nil {
		return n.errno("setattr", p, err)
	}
	fillAttr(&out.Attr, &inode)
	return 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.child(name)
	return n.errno("unlink", p, n.session.fs.Unlink(p))
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	n.session.Lock()
	defer n.session.Unlock()

	p := n.child(name)
	return n.errno("rmdir", p, n.session.fs.Rmdir(p))
}

func (n *node) Rename(
	ctx context.Context,
	name string,
	newParent fs.InodeEmbedder,
	newName string,
	flags uint32,
) syscall.Errno {
	n.session.Lock()
	defer n.session.Unlock()

	from := n.child(name)
	to := path.Join("/"+newParent.EmbeddedInode().Path(nil), newName)
	return n.errno("rename", from, n.session.fs.Rename(from, to))
}
