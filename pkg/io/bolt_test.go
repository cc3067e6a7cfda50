package io

import (
	"bytes"
	"path/filepath"
	"testing"

	. "github.com/weberc2/blockfs/pkg/types"
)

func TestBoltVolume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.db")
	volume, err := OpenBoltVolume(path)
	if err != nil {
		t.Fatalf("OpenBoltVolume(): unexpected err: %v", err)
	}

	// never-written blocks read back as zeros
	p := make([]byte, 16)
	for i := range p {
		p[i] = 0xff
	}
	if err := volume.ReadAt(3*BlockSize, p); err != nil {
		t.Fatalf("BoltVolume.ReadAt(): unexpected err: %v", err)
	}
	if !bytes.Equal(p, make([]byte, 16)) {
		t.Fatalf("BoltVolume.ReadAt(): wanted zeros; found `%v`", p)
	}

	// a write that straddles a block boundary
	data := bytes.Repeat([]byte("straddle"), 64)
	offset := 2*BlockSize - 100
	if err := volume.WriteAt(offset, data); err != nil {
		t.Fatalf("BoltVolume.WriteAt(): unexpected err: %v", err)
	}
	if err := volume.Close(); err != nil {
		t.Fatalf("BoltVolume.Close(): unexpected err: %v", err)
	}

	// reopen to make sure the data was persisted
	volume, err = OpenBoltVolume(path)
	if err != nil {
		t.Fatalf("OpenBoltVolume(): reopening: unexpected err: %v", err)
	}
	defer volume.Close()

	found := make([]byte, len(data))
	if err := volume.ReadAt(offset, found); err != nil {
		t.Fatalf("BoltVolume.ReadAt(): unexpected err: %v", err)
	}
	if !bytes.Equal(found, data) {
		t.Fatalf("BoltVolume.ReadAt(): wanted `%s`; found `%s`", data, found)
	}

	// bytes around the write are untouched
	var before [1]byte
	if err := volume.ReadAt(offset-1, before[:]); err != nil {
		t.Fatalf("BoltVolume.ReadAt(): unexpected err: %v", err)
	}
	if before[0] != 0 {
		t.Fatalf("byte before write: wanted `0`; found `%d`", before[0])
	}
}
