package main

import (
	"path"

	"github.com/weberc2/blockfs/pkg/filesystem"
	. "github.com/weberc2/blockfs/pkg/types"
)

type treeCounts struct {
	Dirs  int
	Files int
	Bytes Byte
}

// countTree resolves every path below `root`, so the path cache statistics
// gathered along the way reflect a full traversal.
func countTree(fs *filesystem.FileSystem, root string) (treeCounts, error) {
	var counts treeCounts
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		counts.Dirs++

		entries, err := fs.ReadDir(dir)
		if err != nil {
			return counts, err
		}
		for _, entry := range entries {
			if entry.Name == NameDot || entry.Name == NameDotDot {
				continue
			}
			p := path.Join(dir, entry.Name)
			inode, err := fs.GetAttr(p)
			if err != nil {
				return counts, err
			}
			if inode.IsDir() {
				stack = append(stack, p)
				continue
			}
			counts.Files++
			counts.Bytes += inode.Size
		}
	}
	return counts, nil
}
