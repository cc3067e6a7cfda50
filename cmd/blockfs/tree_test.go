package main

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/io"
	"github.com/weberc2/blockfs/pkg/mkfs"
	. "github.com/weberc2/blockfs/pkg/types"
)

func TestCountTree(t *testing.T) {
	const blocks = 200
	fs, err := mkfs.Format(
		io.NewBuffer(make([]byte, blocks*BlockSize)),
		blocks,
		mkfs.Options{Logger: log.New()},
	)
	if err != nil {
		t.Fatalf("mkfs.Format(): unexpected err: %v", err)
	}
	for _, dir := range []string{"/a", "/a/b"} {
		if _, err := fs.Mkdir(dir, 0755); err != nil {
			t.Fatalf("FileSystem.Mkdir(`%s`): unexpected err: %v", dir, err)
		}
	}
	for _, file := range []string{"/x", "/a/y", "/a/b/z"} {
		if _, err := fs.Mknod(file, NewMode(FileTypeRegular, 0644)); err != nil {
			t.Fatalf("FileSystem.Mknod(`%s`): unexpected err: %v", file, err)
		}
	}
	if _, err := fs.Write("/a/y", 0, make([]byte, 5000)); err != nil {
		t.Fatalf("FileSystem.Write(): unexpected err: %v", err)
	}

	fs.Cache.ResetStats()
	counts, err := countTree(fs, "/")
	if err != nil {
		t.Fatalf("countTree(): unexpected err: %v", err)
	}
	wanted := treeCounts{Dirs: 3, Files: 3, Bytes: 5000}
	if counts != wanted {
		t.Fatalf("countTree(): wanted `%+v`; found `%+v`", wanted, counts)
	}
	if stats := fs.Cache.Stats(); stats.Hits == 0 {
		t.Fatalf("Cache.Stats().Hits: wanted nonzero; found `%s`", stats)
	}
}
