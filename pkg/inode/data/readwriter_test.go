package data

import (
	"bytes"
	"errors"
	stdmath "math"
	"testing"

	"github.com/weberc2/blockfs/pkg/alloc"
	"github.com/weberc2/blockfs/pkg/blockstore"
	"github.com/weberc2/blockfs/pkg/inode/data/block/physical"
	"github.com/weberc2/blockfs/pkg/inode/store"
	"github.com/weberc2/blockfs/pkg/io"
	. "github.com/weberc2/blockfs/pkg/types"
)

func newReadWriter(t *testing.T, blocks Block) (*ReadWriter, *Inode) {
	inodeBlocks := InodeBlockCount(blocks)
	bs := blockstore.New(
		io.NewBuffer(make([]byte, Byte(blocks)*BlockSize)),
		blocks,
		inodeBlocks,
	)
	sb := &Superblock{
		Magic:          SuperblockMagic,
		BlockCount:     blocks,
		InodeBlocks:    inodeBlocks,
		InodeCount:     Ino(inodeBlocks) * InodesPerBlock,
		InodeSize:      InodeSize,
		InodesPerBlock: InodesPerBlock,
		FreeInodes:     Ino(inodeBlocks) * InodesPerBlock,
	}
	freeList := &alloc.FreeList{Store: bs, Superblock: sb}
	if err := freeList.Build(sb.FirstDataBlock(), blocks); err != nil {
		t.Fatalf("FreeList.Build(): unexpected err: %v", err)
	}
	translator := physical.NewTranslator(bs, freeList)
	table := &store.Table{Store: bs, Superblock: sb, Translator: translator}

	ino, err := table.Alloc()
	if err != nil {
		t.Fatalf("Table.Alloc(): unexpected err: %v", err)
	}
	inode := &Inode{Ino: ino, Allocated: true, Mode: NewMode(FileTypeRegular, 0644)}
	if err := table.Put(inode); err != nil {
		t.Fatalf("Table.Put(): unexpected err: %v", err)
	}

	return &ReadWriter{
		Store:      bs,
		Translator: translator,
		Allocator:  freeList,
		InodeStore: table,
	}, inode
}

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func TestReadWriter_WriteRead(t *testing.T) {
	for _, testCase := range []struct {
		name   string
		offset Byte
		size   int
	}{
		{name: "empty", offset: 0, size: 0},
		{name: "within-first-block", offset: 10, size: 100},
		{name: "exactly-one-block", offset: 0, size: int(BlockSize)},
		{name: "spans-blocks", offset: 4000, size: 5000},
		{name: "into-singly-indirect", offset: 11 * BlockSize, size: 3 * int(BlockSize)},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			rw, inode := newReadWriter(t, 200)
			data := pattern(testCase.size)

			n, err := rw.Write(inode, testCase.offset, data)
			if err != nil {
				t.Fatalf("ReadWriter.Write(): unexpected err: %v", err)
			}
			if n != Byte(testCase.size) {
				t.Fatalf("ReadWriter.Write(): wanted `%d`; found `%d`", testCase.size, n)
			}

			wantedSize := Byte(0)
			if testCase.size > 0 {
				wantedSize = testCase.offset + Byte(testCase.size)
			}
			if inode.Size != wantedSize {
				t.Fatalf("Inode.Size: wanted `%d`; found `%d`", wantedSize, inode.Size)
			}

			var persisted Inode
			if err := rw.InodeStore.Get(inode.Ino, &persisted); err != nil {
				t.Fatalf("InodeStore.Get(): unexpected err: %v", err)
			}
			if persisted.Size != inode.Size || persisted.Blocks != inode.Blocks {
				t.Fatalf(
					"InodeStore.Get(): wanted size `%d` and blocks `%d`; "+
						"found `%d` and `%d`",
					inode.Size,
					inode.Blocks,
					persisted.Size,
					persisted.Blocks,
				)
			}

			buf := make([]byte, testCase.size)
			n, err = rw.Read(inode, testCase.offset, buf)
			if err != nil {
				t.Fatalf("ReadWriter.Read(): unexpected err: %v", err)
			}
			if n != Byte(testCase.size) {
				t.Fatalf("ReadWriter.Read(): wanted `%d`; found `%d`", testCase.size, n)
			}
			if !bytes.Equal(buf, data) {
				t.Fatal("ReadWriter.Read(): read bytes differ from written bytes")
			}
		})
	}
}

func TestReadWriter_GapReadsZero(t *testing.T) {
	rw, inode := newReadWriter(t, 200)
	if _, err := rw.Write(inode, 3*BlockSize+7, []byte("tail")); err != nil {
		t.Fatalf("ReadWriter.Write(): unexpected err: %v", err)
	}
	if inode.Blocks != 4 {
		t.Fatalf("Inode.Blocks: wanted `4`; found `%d`", inode.Blocks)
	}

	buf := make([]byte, 3*BlockSize+7)
	for i := range buf {
		buf[i] = 0xff
	}
	if _, err := rw.Read(inode, 0, buf); err != nil {
		t.Fatalf("ReadWriter.Read(): unexpected err: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("ReadWriter.Read(): byte `%d`: wanted `0`; found `%d`", i, b)
		}
	}
}

func TestReadWriter_ReadPastEnd(t *testing.T) {
	rw, inode := newReadWriter(t, 200)
	if _, err := rw.Write(inode, 0, []byte("hello")); err != nil {
		t.Fatalf("ReadWriter.Write(): unexpected err: %v", err)
	}

	buf := make([]byte, 10)
	n, err := rw.Read(inode, 3, buf)
	if err != nil {
		t.Fatalf("ReadWriter.Read(): unexpected err: %v", err)
	}
	if string(buf[:n]) != "lo" {
		t.Fatalf("ReadWriter.Read(): wanted `lo`; found `%s`", buf[:n])
	}

	if n, err = rw.Read(inode, 5, buf); err != nil || n != 0 {
		t.Fatalf("ReadWriter.Read(): wanted `0`, `<nil>`; found `%d`, `%v`", n, err)
	}
}

func TestReadWriter_Overwrite(t *testing.T) {
	rw, inode := newReadWriter(t, 200)
	if _, err := rw.Write(inode, 0, []byte("hello world")); err != nil {
		t.Fatalf("ReadWriter.Write(): unexpected err: %v", err)
	}
	blocks := inode.Blocks
	if _, err := rw.Write(inode, 6, []byte("there")); err != nil {
		t.Fatalf("ReadWriter.Write(): unexpected err: %v", err)
	}
	if inode.Blocks != blocks {
		t.Fatalf("Inode.Blocks: wanted `%d`; found `%d`", blocks, inode.Blocks)
	}

	buf := make([]byte, inode.Size)
	if _, err := rw.Read(inode, 0, buf); err != nil {
		t.Fatalf("ReadWriter.Read(): unexpected err: %v", err)
	}
	if string(buf) != "hello there" {
		t.Fatalf("ReadWriter.Read(): wanted `hello there`; found `%s`", buf)
	}
}

func TestReadWriter_Truncate(t *testing.T) {
	rw, inode := newReadWriter(t, 200)
	free := rw.Allocator.(*alloc.FreeList).Superblock.FreeBlocks
	if _, err := rw.Write(inode, 0, pattern(3*int(BlockSize))); err != nil {
		t.Fatalf("ReadWriter.Write(): unexpected err: %v", err)
	}

	if err := rw.Truncate(inode, 10); err != nil {
		t.Fatalf("ReadWriter.Truncate(): unexpected err: %v", err)
	}
	if inode.Size != 10 || inode.Blocks != 1 {
		t.Fatalf(
			"ReadWriter.Truncate(): wanted size `10` and blocks `1`; "+
				"found `%d` and `%d`",
			inode.Size,
			inode.Blocks,
		)
	}
	if found := rw.Allocator.(*alloc.FreeList).Superblock.FreeBlocks; found != free-1 {
		t.Fatalf("Superblock.FreeBlocks: wanted `%d`; found `%d`", free-1, found)
	}

	// growing again must expose zeros, not the bytes written earlier
	if err := rw.Truncate(inode, 2*BlockSize); err != nil {
		t.Fatalf("ReadWriter.Truncate(): unexpected err: %v", err)
	}
	buf := make([]byte, 2*BlockSize)
	if _, err := rw.Read(inode, 0, buf); err != nil {
		t.Fatalf("ReadWriter.Read(): unexpected err: %v", err)
	}
	if !bytes.Equal(buf[:10], pattern(10)) {
		t.Fatal("ReadWriter.Read(): first 10 bytes differ from written bytes")
	}
	for i := 10; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("ReadWriter.Read(): byte `%d`: wanted `0`; found `%d`", i, buf[i])
		}
	}
}

func TestReadWriter_TooLarge(t *testing.T) {
	rw, inode := newReadWriter(t, 200)
	if _, err := rw.Write(inode, MaxFileSize, []byte{1}); !errors.Is(err, FileTooLargeErr) {
		t.Fatalf("ReadWriter.Write(): wanted `%v`; found `%v`", FileTooLargeErr, err)
	}
	if err := rw.Truncate(inode, MaxFileSize+1); !errors.Is(err, FileTooLargeErr) {
		t.Fatalf("ReadWriter.Truncate(): wanted `%v`; found `%v`", FileTooLargeErr, err)
	}
}

func TestReadWriter_OffsetOverflowDoesNotMutate(t *testing.T) {
	rw, inode := newReadWriter(t, 200)
	sb := rw.Allocator.(*alloc.FreeList).Superblock
	freeBlocks := sb.FreeBlocks

	for _, offset := range []Byte{
		stdmath.MaxInt64 - 5,
		MaxFileSize - 5,
		MaxFileSize,
	} {
		if _, err := rw.Write(inode, offset, make([]byte, 10)); !errors.Is(err, FileTooLargeErr) {
			t.Fatalf(
				"ReadWriter.Write(offset=`%d`): wanted `%v`; found `%v`",
				offset,
				FileTooLargeErr,
				err,
			)
		}
	}

	if inode.Blocks != 0 {
		t.Fatalf("Inode.Blocks: wanted `0`; found `%d`", inode.Blocks)
	}
	var stored Inode
	if err := rw.InodeStore.Get(inode.Ino, &stored); err != nil {
		t.Fatalf("InodeStore.Get(): unexpected err: %v", err)
	}
	if stored.Blocks != 0 || stored.Size != 0 {
		t.Fatalf(
			"stored inode: wanted `0` blocks and `0` bytes; found `%d` and `%d`",
			stored.Blocks,
			stored.Size,
		)
	}
	if sb.FreeBlocks != freeBlocks {
		t.Fatalf("Superblock.FreeBlocks: wanted `%d`; found `%d`", freeBlocks, sb.FreeBlocks)
	}
}

func TestReadWriter_OutOfBlocks(t *testing.T) {
	rw, inode := newReadWriter(t, 20)
	_, err := rw.Write(inode, 0, pattern(40*int(BlockSize)))
	if !errors.Is(err, OutOfBlocksErr) {
		t.Fatalf("ReadWriter.Write(): wanted `%v`; found `%v`", OutOfBlocksErr, err)
	}
	if inode.Size != 0 {
		t.Fatalf("Inode.Size: wanted `0`; found `%d`", inode.Size)
	}
}
