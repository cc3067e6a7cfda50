package io

import (
	"encoding/binary"
	"fmt"

	"github.com/weberc2/blockfs/pkg/math"
	. "github.com/weberc2/blockfs/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("blocks")

// BoltVolume stores the backing region in a bbolt database, one value per
// block keyed by the big-endian block number. Blocks that were never written
// read back as zeros, so a fresh database behaves like a zero-filled region.
type BoltVolume struct {
	db *bolt.DB
}

func OpenBoltVolume(path string) (*BoltVolume, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt volume `%s`: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf(
			"opening bolt volume `%s`: creating bucket: %w",
			path,
			err,
		)
	}
	return &BoltVolume{db: db}, nil
}

func (volume *BoltVolume) ReadAt(offset Byte, p []byte) error {
	if err := volume.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		return eachBlockChunk(offset, p, func(block Block, start Byte, chunk []byte) {
			if value := bucket.Get(boltKey(block)); value != nil {
				copy(chunk, value[start:])
				return
			}
			for i := range chunk {
				chunk[i] = 0
			}
		})
	}); err != nil {
		return fmt.Errorf(
			"reading `%d` bytes from bolt volume at offset `%d`: %w",
			len(p),
			offset,
			err,
		)
	}
	return nil
}

func (volume *BoltVolume) WriteAt(offset Byte, p []byte) error {
	if err := volume.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		var putErr error
		if err := eachBlockChunk(offset, p, func(block Block, start Byte, chunk []byte) {
			if putErr != nil {
				return
			}
			key := boltKey(block)
			value := make([]byte, BlockSize)
			// values returned by bolt are only valid for the life of the
			// transaction, so copy before modifying
			if existing := bucket.Get(key); existing != nil {
				copy(value, existing)
			}
			copy(value[start:], chunk)
			putErr = bucket.Put(key, value)
		}); err != nil {
			return err
		}
		return putErr
	}); err != nil {
		return fmt.Errorf(
			"writing `%d` bytes to bolt volume at offset `%d`: %w",
			len(p),
			offset,
			err,
		)
	}
	return nil
}

func (volume *BoltVolume) Close() error { return volume.db.Close() }

func eachBlockChunk(
	offset Byte,
	p []byte,
	f func(block Block, start Byte, chunk []byte),
) error {
	if offset < 0 {
		return fmt.Errorf("negative offset `%d`: %w", offset, InvalidArgumentErr)
	}
	var done Byte
	for done < Byte(len(p)) {
		block := Block((offset + done) / BlockSize)
		start := (offset + done) % BlockSize
		size := math.Min(Byte(len(p))-done, BlockSize-start)
		f(block, start, p[done:done+size])
		done += size
	}
	return nil
}

func boltKey(block Block) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(block))
	return key[:]
}
