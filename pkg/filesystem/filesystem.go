// Package filesystem ties the storage engine's components into a single
// session over one volume and exposes path-based file operations on top of
// it. A FileSystem is not safe for concurrent use; callers serialize access.
package filesystem

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/directory"
	"github.com/weberc2/blockfs/pkg/inode/data"
	"github.com/weberc2/blockfs/pkg/inode/data/block/physical"
	"github.com/weberc2/blockfs/pkg/inode/store"
	"github.com/weberc2/blockfs/pkg/io"
	"github.com/weberc2/blockfs/pkg/pathcache"
	. "github.com/weberc2/blockfs/pkg/types"
)

const DefaultCacheCapacity = 1024

type FileSystem struct {
	Store      *blockstore.Store
	Superblock *Superblock
	FreeList   *alloc.FreeList
	Translator *physical.Translator
	Table      *store.Table
	Data       *data.ReadWriter
	Directory  *directory.Directory
	Cache      *pathcache.Cache
	Logger     log.FieldLogger
	TimeFunc   func() time.Time
}

type Options struct {
	// CacheCapacity bounds the path cache. Zero selects
	// DefaultCacheCapacity.
	CacheCapacity int

	// Blocks, when nonzero, lets Open lay out a fresh superblock and free
	// list on a volume that does not carry one yet.
	Blocks Block
	Label  string

	Logger   log.FieldLogger
	TimeFunc func() time.Time
}

// New wires a session around an already-loaded superblock. Every component
// shares the same superblock value, so counters and hints stay consistent.
func New(volume io.Volume, sb *Superblock, opts Options) *FileSystem {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	bs := blockstore.New(volume, sb.BlockCount, sb.InodeBlocks)
	freeList := &alloc.FreeList{Store: bs, Superblock: sb}
	translator := physical.NewTranslator(bs, freeList)
	table := &store.Table{
		Store:      bs,
		Superblock: sb,
		Translator: translator,
		TimeFunc:   opts.TimeFunc,
		Logger:     logger,
	}

	capacity := opts.CacheCapacity
	if capacity == 0 {
		capacity = DefaultCacheCapacity
	}

	return &FileSystem{
		Store:      bs,
		Superblock: sb,
		FreeList:   freeList,
		Translator: translator,
		Table:      table,
		Data: &data.ReadWriter{
			Store:      bs,
			Translator: translator,
			Allocator:  freeList,
			InodeStore: table,
			Logger:     logger,
		},
		Directory: &directory.Directory{
			Store:      bs,
			Translator: translator,
			Allocator:  freeList,
			InodeStore: table,
			Logger:     logger,
		},
		Cache:    pathcache.New(capacity),
		Logger:   logger,
		TimeFunc: opts.TimeFunc,
	}
}

// NewSuperblock computes the layout of a volume of `blocks` blocks. The
// free list fields are left empty.
func NewSuperblock(blocks Block, label string) Superblock {
	inodeBlocks := InodeBlockCount(blocks)
	inodes := Ino(inodeBlocks) * InodesPerBlock
	return Superblock{
		InodeCount:     inodes,
		FirstFreeIno:   0,
		InodeSize:      InodeSize,
		InodesPerBlock: InodesPerBlock,
		Magic:          SuperblockMagic,
		BlockCount:     blocks,
		InodeBlocks:    inodeBlocks,
		FreeInodes:     inodes,
		Label:          label,
	}
}

// Create writes `sb` to block 0 and lays the free list across every data
// block. The inode table must already read as unallocated records.
func Create(volume io.Volume, sb *Superblock, opts Options) (*FileSystem, error) {
	if err := sb.Validate(); err != nil {
		return nil, fmt.Errorf("creating filesystem: %w", err)
	}
	fs := New(volume, sb, opts)
	if err := fs.FreeList.Build(sb.FirstDataBlock(), sb.BlockCount); err != nil {
		return nil, fmt.Errorf("creating filesystem: %w", err)
	}
	fs.Logger.WithFields(log.Fields{
		"blocks":      sb.BlockCount,
		"inodeBlocks": sb.InodeBlocks,
		"inodes":      sb.InodeCount,
		"freeBlocks":  sb.FreeBlocks,
	}).Info("laid out filesystem")
	return fs, nil
}

// Open loads the superblock from `volume` and runs Setup. A volume without a
// valid magic number is laid out from scratch when `opts.Blocks` is set.
func Open(volume io.Volume, opts Options) (*FileSystem, error) {
	var sb Superblock
	if err := blockstore.New(volume, 1, 0).ReadSuperblock(&sb); err != nil {
		var badMagic *BadMagicErr
		if !errors.As(err, &badMagic) || opts.Blocks == 0 {
			return nil, fmt.Errorf("opening filesystem: %w", err)
		}
		sb = NewSuperblock(opts.Blocks, opts.Label)
		fs, err := Create(volume, &sb, opts)
		if err != nil {
			return nil, fmt.Errorf("opening filesystem: %w", err)
		}
		if err := fs.Setup(); err != nil {
			return nil, fmt.Errorf("opening filesystem: %w", err)
		}
		return fs, nil
	}

	if err := sb.Validate(); err != nil {
		return nil, fmt.Errorf("opening filesystem: %w", err)
	}
	fs := New(volume, &sb, opts)
	if err := fs.Setup(); err != nil {
		return nil, fmt.Errorf("opening filesystem: %w", err)
	}
	return fs, nil
}

// Setup makes sure the root inode is an allocated directory holding at least
// `.` and `..`, (re)initializing it otherwise.
func (fs *FileSystem) Setup() error {
	var root Inode
	if err := fs.Table.Get(InoRoot, &root); err != nil {
		return fmt.Errorf("setting up filesystem: %w", err)
	}
	if root.Allocated && root.IsDir() && root.Children >= 2 {
		return nil
	}

	if root.Allocated {
		fs.Logger.WithFields(log.Fields{
			"mode":     fmt.Sprintf("%o", root.Mode),
			"children": root.Children,
		}).Warn("root inode is incomplete; reinitializing")
		if err := fs.Table.Free(InoRoot); err != nil {
			return fmt.Errorf("setting up filesystem: resetting root: %w", err)
		}
	}

	if fs.Superblock.FirstFreeIno != InoRoot {
		return fmt.Errorf(
			"setting up filesystem: first free inode `%d`: %w",
			fs.Superblock.FirstFreeIno,
			CorruptInodeHint,
		)
	}
	ino, err := fs.Table.Alloc()
	if err != nil {
		return fmt.Errorf("setting up filesystem: allocating root: %w", err)
	}

	now := fs.now().Unix()
	root = Inode{
		Ino:        ino,
		Mode:       NewMode(FileTypeDir, 0o755),
		ATime:      now,
		CTime:      now,
		MTime:      now,
		LinksCount: 2,
		Allocated:  true,
	}
	if err := fs.Directory.Init(&root, InoRoot); err != nil {
		return fmt.Errorf("setting up filesystem: %w", err)
	}
	fs.Logger.WithField("volumeID", fs.Superblock.VolumeID).Info("initialized root directory")
	return nil
}

func (fs *FileSystem) now() time.Time {
	if fs.TimeFunc != nil {
		return fs.TimeFunc()
	}
	return time.Now()
}
