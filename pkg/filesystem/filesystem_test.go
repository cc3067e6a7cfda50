package filesystem

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/io"
	. "github.com/weberc2/blockfs/pkg/types"
)

func newFileSystem(t *testing.T, blocks Block) *FileSystem {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	fs, err := Open(
		io.NewBuffer(make([]byte, Byte(blocks)*BlockSize)),
		Options{
			Blocks:        blocks,
			Label:         "test",
			CacheCapacity: 16,
			Logger:        logger,
			TimeFunc:      func() time.Time { return time.Unix(1_600_000_000, 0) },
		},
	)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	return fs
}

func freeBlocks(t *testing.T, fs *FileSystem) map[Block]struct{} {
	free := map[Block]struct{}{}
	if err := fs.FreeList.Walk(func(b Block) error {
		if _, dup := free[b]; dup {
			return fmt.Errorf("block `%d` listed twice", b)
		}
		free[b] = struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("FreeList.Walk(): unexpected err: %v", err)
	}
	return free
}

func TestSplitPath(t *testing.T) {
	for _, testCase := range []struct {
		input        string
		wantedParent string
		wantedName   string
	}{
		{"/a", "/", "a"},
		{"/a/b.txt", "/a/", "b.txt"},
		{"/a/b/", "/a/", "b"},
		{"/a//b", "/a//", "b"},
	} {
		parent, name := SplitPath(testCase.input)
		if parent != testCase.wantedParent || name != testCase.wantedName {
			t.Fatalf(
				"SplitPath(`%s`): wanted `%s`, `%s`; found `%s`, `%s`",
				testCase.input,
				testCase.wantedParent,
				testCase.wantedName,
				parent,
				name,
			)
		}
	}
}

func TestOpen_SetsUpRoot(t *testing.T) {
	fs := newFileSystem(t, 100)

	root, err := fs.GetAttr("/")
	if err != nil {
		t.Fatalf("FileSystem.GetAttr(`/`): unexpected err: %v", err)
	}
	if !root.Allocated || !root.IsDir() || root.Children != 2 {
		t.Fatalf(
			"FileSystem.GetAttr(`/`): wanted allocated dir with `2` children; "+
				"found allocated `%t`, type `%s`, children `%d`",
			root.Allocated,
			root.Mode.FileType(),
			root.Children,
		)
	}

	entries, err := fs.ReadDir("/")
	if err != nil {
		t.Fatalf("FileSystem.ReadDir(`/`): unexpected err: %v", err)
	}
	wanted := []DirEntry{{Ino: InoRoot, Name: NameDot}, {Ino: InoRoot, Name: NameDotDot}}
	if fmt.Sprint(entries) != fmt.Sprint(wanted) {
		t.Fatalf("FileSystem.ReadDir(`/`): wanted `%v`; found `%v`", wanted, entries)
	}
}

func TestOpen_Reload(t *testing.T) {
	volume := io.NewBuffer(make([]byte, 100*BlockSize))
	fs, err := Open(volume, Options{Blocks: 100, Logger: log.New()})
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if _, err := fs.Mknod("/keep", 0o644); err != nil {
		t.Fatalf("FileSystem.Mknod(): unexpected err: %v", err)
	}

	reopened, err := Open(volume, Options{Logger: log.New()})
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if reopened.Superblock.FreeBlocks != fs.Superblock.FreeBlocks {
		t.Fatalf(
			"Superblock.FreeBlocks: wanted `%d`; found `%d`",
			fs.Superblock.FreeBlocks,
			reopened.Superblock.FreeBlocks,
		)
	}
	if err := reopened.Access("/keep"); err != nil {
		t.Fatalf("FileSystem.Access(): unexpected err: %v", err)
	}
}

func TestOpen_BadMagic(t *testing.T) {
	_, err := Open(io.NewBuffer(make([]byte, 10*BlockSize)), Options{Logger: log.New()})
	var badMagic *BadMagicErr
	if !errors.As(err, &badMagic) {
		t.Fatalf("Open(): wanted `*BadMagicErr`; found `%v`", err)
	}
}

func TestEndToEnd(t *testing.T) {
	fs := newFileSystem(t, 200)
	initialFree := freeBlocks(t, fs)

	if _, err := fs.Mkdir("/a", 0o755); err != nil {
		t.Fatalf("FileSystem.Mkdir(): unexpected err: %v", err)
	}
	if _, err := fs.Mknod("/a/b.txt", 0o644); err != nil {
		t.Fatalf("FileSystem.Mknod(): unexpected err: %v", err)
	}
	afterCreate := freeBlocks(t, fs)

	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	n, err := fs.Write("/a/b.txt", 0, data)
	if err != nil {
		t.Fatalf("FileSystem.Write(): unexpected err: %v", err)
	}
	if n != 5000 {
		t.Fatalf("FileSystem.Write(): wanted `5000`; found `%d`", n)
	}

	buf := make([]byte, 5000)
	if n, err = fs.Read("/a/b.txt", 0, buf); err != nil {
		t.Fatalf("FileSystem.Read(): unexpected err: %v", err)
	}
	if n != 5000 || !bytes.Equal(buf, data) {
		t.Fatalf("FileSystem.Read(): read `%d` bytes that differ from written bytes", n)
	}

	attr, err := fs.GetAttr("/a/b.txt")
	if err != nil {
		t.Fatalf("FileSystem.GetAttr(): unexpected err: %v", err)
	}
	if attr.Size != 5000 || attr.Blocks != 2 {
		t.Fatalf(
			"FileSystem.GetAttr(): wanted size `5000` and blocks `2`; found `%d` and `%d`",
			attr.Size,
			attr.Blocks,
		)
	}

	if err := fs.Unlink("/a/b.txt"); err != nil {
		t.Fatalf("FileSystem.Unlink(): unexpected err: %v", err)
	}
	if _, err := fs.NameI("/a/b.txt"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("FileSystem.NameI(): wanted `%v`; found `%v`", NotFoundErr, err)
	}

	afterUnlink := freeBlocks(t, fs)
	if len(afterUnlink) != len(afterCreate) {
		t.Fatalf(
			"free blocks after unlink: wanted `%d`; found `%d`",
			len(afterCreate),
			len(afterUnlink),
		)
	}
	for b := range afterCreate {
		if _, ok := afterUnlink[b]; !ok {
			t.Fatalf("block `%d` missing from free list after unlink", b)
		}
	}

	// removing the directory hands its block back as well
	if err := fs.Rmdir("/a"); err != nil {
		t.Fatalf("FileSystem.Rmdir(): unexpected err: %v", err)
	}
	if final := freeBlocks(t, fs); len(final) != len(initialFree) {
		t.Fatalf("free blocks after rmdir: wanted `%d`; found `%d`", len(initialFree), len(final))
	}
}

func TestNameI_UsesCache(t *testing.T) {
	fs := newFileSystem(t, 100)
	dir, err := fs.Mkdir("/d", 0o755)
	if err != nil {
		t.Fatalf("FileSystem.Mkdir(): unexpected err: %v", err)
	}
	file, err := fs.Mknod("/d/f", 0o644)
	if err != nil {
		t.Fatalf("FileSystem.Mknod(): unexpected err: %v", err)
	}

	fs.Cache.Remove("/d")
	fs.Cache.Remove("/d/f")
	fs.Cache.ResetStats()

	ino, err := fs.NameI("/d/f/")
	if err != nil {
		t.Fatalf("FileSystem.NameI(): unexpected err: %v", err)
	}
	if ino != file.Ino {
		t.Fatalf("FileSystem.NameI(): wanted `%d`; found `%d`", file.Ino, ino)
	}
	if cached, found := fs.Cache.Get("/d"); !found || cached != dir.Ino {
		t.Fatalf("Cache.Get(`/d`): wanted `%d`, `true`; found `%d`, `%t`", dir.Ino, cached, found)
	}

	hits := fs.Cache.Stats().Hits
	if _, err := fs.NameI("/d/f"); err != nil {
		t.Fatalf("FileSystem.NameI(): unexpected err: %v", err)
	}
	if fs.Cache.Stats().Hits != hits+1 {
		t.Fatalf("Cache.Stats().Hits: wanted `%d`; found `%d`", hits+1, fs.Cache.Stats().Hits)
	}
}

func TestNameI_Errors(t *testing.T) {
	fs := newFileSystem(t, 100)
	if _, err := fs.Mknod("/file", 0o644); err != nil {
		t.Fatalf("FileSystem.Mknod(): unexpected err: %v", err)
	}

	for _, testCase := range []struct {
		path        string
		wantedError error
	}{
		{"relative", NotAbsolutePathErr},
		{"/missing", NotFoundErr},
		{"/file/child", NotDirErr},
		{"/" + string(bytes.Repeat([]byte("n"), MaxNameLen+1)), NameTooLongErr},
	} {
		if _, err := fs.NameI(testCase.path); !errors.Is(err, testCase.wantedError) {
			t.Fatalf(
				"FileSystem.NameI(`%.20s`): wanted `%v`; found `%v`",
				testCase.path,
				testCase.wantedError,
				err,
			)
		}
	}
}

func TestCreate_Errors(t *testing.T) {
	fs := newFileSystem(t, 100)
	if _, err := fs.Mkdir("/d", 0o755); err != nil {
		t.Fatalf("FileSystem.Mkdir(): unexpected err: %v", err)
	}
	if _, err := fs.Mkdir("/d", 0o755); !errors.Is(err, ExistsErr) {
		t.Fatalf("FileSystem.Mkdir(): wanted `%v`; found `%v`", ExistsErr, err)
	}
	if _, err := fs.Mknod("/nope/f", 0o644); !errors.Is(err, NotFoundErr) {
		t.Fatalf("FileSystem.Mknod(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
	if _, err := fs.Mknod("/d/x", ModeDir|0o755); !errors.Is(err, InvalidArgumentErr) {
		t.Fatalf("FileSystem.Mknod(): wanted `%v`; found `%v`", InvalidArgumentErr, err)
	}
	if _, err := fs.Open("/d"); !errors.Is(err, IsDirErr) {
		t.Fatalf("FileSystem.Open(): wanted `%v`; found `%v`", IsDirErr, err)
	}

	fifo, err := fs.Mknod("/d/fifo", ModeFifo|0o600)
	if err != nil {
		t.Fatalf("FileSystem.Mknod(): unexpected err: %v", err)
	}
	if fifo.Mode.FileType() != FileTypeFifo {
		t.Fatalf("Inode.Mode.FileType(): wanted `%s`; found `%s`", FileTypeFifo, fifo.Mode.FileType())
	}
}

func TestCreate_OutOfInodes(t *testing.T) {
	// 20 blocks leave 2 inode blocks, so 32 inodes including the root
	fs := newFileSystem(t, 20)
	var err error
	for i := 0; i < 32 && err == nil; i++ {
		_, err = fs.Mknod(fmt.Sprintf("/f%d", i), 0o644)
	}
	if !errors.Is(err, OutOfInodesErr) {
		t.Fatalf("FileSystem.Mknod(): wanted `%v`; found `%v`", OutOfInodesErr, err)
	}
}

func TestRmdir(t *testing.T) {
	fs := newFileSystem(t, 100)
	if _, err := fs.Mkdir("/d", 0o755); err != nil {
		t.Fatalf("FileSystem.Mkdir(): unexpected err: %v", err)
	}
	if _, err := fs.Mknod("/d/f", 0o644); err != nil {
		t.Fatalf("FileSystem.Mknod(): unexpected err: %v", err)
	}

	if err := fs.Rmdir("/d"); !errors.Is(err, DirNotEmptyErr) {
		t.Fatalf("FileSystem.Rmdir(): wanted `%v`; found `%v`", DirNotEmptyErr, err)
	}
	if err := fs.Rmdir("/d/f"); !errors.Is(err, NotDirErr) {
		t.Fatalf("FileSystem.Rmdir(): wanted `%v`; found `%v`", NotDirErr, err)
	}
	if err := fs.Rmdir("/"); !errors.Is(err, InvalidArgumentErr) {
		t.Fatalf("FileSystem.Rmdir(): wanted `%v`; found `%v`", InvalidArgumentErr, err)
	}

	if err := fs.Unlink("/d/f"); err != nil {
		t.Fatalf("FileSystem.Unlink(): unexpected err: %v", err)
	}
	if err := fs.Rmdir("/d"); err != nil {
		t.Fatalf("FileSystem.Rmdir(): unexpected err: %v", err)
	}

	root, err := fs.GetAttr("/")
	if err != nil {
		t.Fatalf("FileSystem.GetAttr(): unexpected err: %v", err)
	}
	if root.Children != 2 || root.LinksCount != 2 {
		t.Fatalf(
			"root: wanted children `2` and links `2`; found `%d` and `%d`",
			root.Children,
			root.LinksCount,
		)
	}
	if fs.Superblock.FirstFreeIno != 1 {
		t.Fatalf("Superblock.FirstFreeIno: wanted `1`; found `%d`", fs.Superblock.FirstFreeIno)
	}
}

func TestRename(t *testing.T) {
	fs := newFileSystem(t, 100)
	for _, dir := range []string{"/src", "/dst", "/src/sub"} {
		if _, err := fs.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("FileSystem.Mkdir(`%s`): unexpected err: %v", dir, err)
		}
	}
	if _, err := fs.Mknod("/src/sub/f", 0o644); err != nil {
		t.Fatalf("FileSystem.Mknod(): unexpected err: %v", err)
	}
	if _, err := fs.Write("/src/sub/f", 0, []byte("payload")); err != nil {
		t.Fatalf("FileSystem.Write(): unexpected err: %v", err)
	}

	if err := fs.Rename("/src/sub", "/dst/moved"); err != nil {
		t.Fatalf("FileSystem.Rename(): unexpected err: %v", err)
	}

	if _, err := fs.NameI("/src/sub/f"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("FileSystem.NameI(`/src/sub/f`): wanted `%v`; found `%v`", NotFoundErr, err)
	}
	buf := make([]byte, 7)
	if _, err := fs.Read("/dst/moved/f", 0, buf); err != nil {
		t.Fatalf("FileSystem.Read(): unexpected err: %v", err)
	}
	if string(buf) != "payload" {
		t.Fatalf("FileSystem.Read(): wanted `payload`; found `%s`", buf)
	}

	dst, err := fs.GetAttr("/dst")
	if err != nil {
		t.Fatalf("FileSystem.GetAttr(): unexpected err: %v", err)
	}
	entries, err := fs.ReadDir("/dst/moved")
	if err != nil {
		t.Fatalf("FileSystem.ReadDir(): unexpected err: %v", err)
	}
	if entries[1].Name != NameDotDot || entries[1].Ino != dst.Ino {
		t.Fatalf("`..` of moved dir: wanted `%d`; found `%v`", dst.Ino, entries[1])
	}
	if dst.LinksCount != 3 {
		t.Fatalf("dst links: wanted `3`; found `%d`", dst.LinksCount)
	}
	src, err := fs.GetAttr("/src")
	if err != nil {
		t.Fatalf("FileSystem.GetAttr(): unexpected err: %v", err)
	}
	if src.LinksCount != 2 || src.Children != 2 {
		t.Fatalf(
			"src: wanted links `2` and children `2`; found `%d` and `%d`",
			src.LinksCount,
			src.Children,
		)
	}

	if err := fs.Rename("/dst", "/dst/moved/inner"); !errors.Is(err, InvalidArgumentErr) {
		t.Fatalf("FileSystem.Rename(): wanted `%v`; found `%v`", InvalidArgumentErr, err)
	}
}

func TestRename_ReplacesFile(t *testing.T) {
	fs := newFileSystem(t, 100)
	for _, name := range []string{"/a", "/b"} {
		if _, err := fs.Mknod(name, 0o644); err != nil {
			t.Fatalf("FileSystem.Mknod(`%s`): unexpected err: %v", name, err)
		}
		if _, err := fs.Write(name, 0, []byte(name)); err != nil {
			t.Fatalf("FileSystem.Write(`%s`): unexpected err: %v", name, err)
		}
	}
	if _, err := fs.Mkdir("/d", 0o755); err != nil {
		t.Fatalf("FileSystem.Mkdir(): unexpected err: %v", err)
	}
	free := fs.Superblock.FreeBlocks

	if err := fs.Rename("/a", "/b"); err != nil {
		t.Fatalf("FileSystem.Rename(): unexpected err: %v", err)
	}
	if fs.Superblock.FreeBlocks != free+1 {
		t.Fatalf("Superblock.FreeBlocks: wanted `%d`; found `%d`", free+1, fs.Superblock.FreeBlocks)
	}
	buf := make([]byte, 2)
	if _, err := fs.Read("/b", 0, buf); err != nil {
		t.Fatalf("FileSystem.Read(): unexpected err: %v", err)
	}
	if string(buf) != "/a" {
		t.Fatalf("FileSystem.Read(): wanted `/a`; found `%s`", buf)
	}
	if err := fs.Access("/a"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("FileSystem.Access(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
	if err := fs.Rename("/b", "/d"); !errors.Is(err, IsDirErr) {
		t.Fatalf("FileSystem.Rename(): wanted `%v`; found `%v`", IsDirErr, err)
	}
	if err := fs.Rename("/d", "/b"); !errors.Is(err, NotDirErr) {
		t.Fatalf("FileSystem.Rename(): wanted `%v`; found `%v`", NotDirErr, err)
	}
}

func TestChmodTruncate(t *testing.T) {
	fs := newFileSystem(t, 100)
	if _, err := fs.Mknod("/f", 0o644); err != nil {
		t.Fatalf("FileSystem.Mknod(): unexpected err: %v", err)
	}
	if err := fs.Chmod("/f", 0o600); err != nil {
		t.Fatalf("FileSystem.Chmod(): unexpected err: %v", err)
	}
	if err := fs.Truncate("/f", 2*BlockSize+1); err != nil {
		t.Fatalf("FileSystem.Truncate(): unexpected err: %v", err)
	}

	attr, err := fs.GetAttr("/f")
	if err != nil {
		t.Fatalf("FileSystem.GetAttr(): unexpected err: %v", err)
	}
	if attr.Mode != ModeRegular|0o600 {
		t.Fatalf("Inode.Mode: wanted `%o`; found `%o`", ModeRegular|0o600, attr.Mode)
	}
	if attr.Size != 2*BlockSize+1 || attr.Blocks != 3 {
		t.Fatalf(
			"Inode: wanted size `%d` and blocks `3`; found `%d` and `%d`",
			2*BlockSize+1,
			attr.Size,
			attr.Blocks,
		)
	}
	if err := fs.Truncate("/", 0); !errors.Is(err, IsDirErr) {
		t.Fatalf("FileSystem.Truncate(): wanted `%v`; found `%v`", IsDirErr, err)
	}
}
