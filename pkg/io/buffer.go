package io

import (
	"fmt"
	"io"

	. "github.com/weberc2/blockfs/pkg/types"
)

// Buffer is an in-memory Volume. Its size is fixed at construction time.
type Buffer struct {
	data []byte
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) ReadAt(offset Byte, p []byte) error {
	if offset >= 0 && offset+Byte(len(p)) <= Byte(len(b.data)) {
		copy(p, b.data[offset:])
		return nil
	}
	return fmt.Errorf(
		"reading up to `%d` bytes from buffer at offset `%d`: %w",
		len(p),
		offset,
		io.EOF,
	)
}

func (b *Buffer) WriteAt(offset Byte, p []byte) error {
	if offset >= 0 && offset+Byte(len(p)) <= Byte(len(b.data)) {
		copy(b.data[offset:], p)
		return nil
	}

	return fmt.Errorf(
		"writing up to `%d` bytes to buffer at offset `%d`: %w",
		len(p),
		offset,
		io.EOF,
	)
}

func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Close() error { return nil }
