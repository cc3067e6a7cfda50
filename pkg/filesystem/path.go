package filesystem

import (
	"fmt"
	"path"
	"strings"

	log "github.com/sirupsen/logrus"

	. "github.com/weberc2/blockfs/pkg/types"
)

// SplitPath partitions `p` at the rightmost slash that is not its final
// character. The parent keeps that slash; the name loses any trailing slash.
// SplitPath("/a/b/") returns "/a/" and "b".
func SplitPath(p string) (parent string, name string) {
	trimmed := strings.TrimRight(p, "/")
	i := strings.LastIndexByte(trimmed, '/')
	if i < 0 {
		return "", trimmed
	}
	return p[:i+1], trimmed[i+1:]
}

// Clean normalizes an absolute path, rejecting relative ones.
func Clean(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("cleaning path `%s`: %w", p, NotAbsolutePathErr)
	}
	return path.Clean(p), nil
}

// parentKey returns the cleaned parent of a cleaned, non-root path.
func parentKey(p string) (string, string) {
	parent, name := SplitPath(p)
	if parent != "/" {
		parent = strings.TrimSuffix(parent, "/")
	}
	return parent, name
}

// NameI resolves `p` to an inode number. The path cache is consulted for the
// full path and then for each ancestor in turn; the uncached suffix is walked
// down from the nearest cached ancestor (or the root), and every resolved
// prefix is cached along the way.
func (fs *FileSystem) NameI(p string) (Ino, error) {
	clean, err := Clean(p)
	if err != nil {
		return 0, fmt.Errorf("resolving path: %w", err)
	}
	if clean == "/" {
		return InoRoot, nil
	}
	if ino, found := fs.Cache.Get(clean); found {
		return ino, nil
	}

	var (
		pending []string
		current = clean
		ino     = InoRoot
	)
	for current != "/" {
		parent, name := parentKey(current)
		if len(name) > MaxNameLen {
			return 0, fmt.Errorf(
				"resolving path `%s`: component `%s`: %w",
				clean,
				name,
				NameTooLongErr,
			)
		}
		pending = append(pending, name)
		current = parent
		if current == "/" {
			break
		}
		if cached, found := fs.Cache.Get(current); found {
			ino = cached
			break
		}
	}

	fs.Logger.WithFields(log.Fields{
		"path":     clean,
		"from":     current,
		"segments": len(pending),
	}).Debug("path cache miss")

	var dir Inode
	for i := len(pending) - 1; i >= 0; i-- {
		if err := fs.Table.Get(ino, &dir); err != nil {
			return 0, fmt.Errorf("resolving path `%s`: %w", clean, err)
		}
		child, err := fs.Directory.Lookup(&dir, pending[i])
		if err != nil {
			return 0, fmt.Errorf("resolving path `%s`: %w", clean, err)
		}
		ino = child
		current = path.Join(current, pending[i])
		if err := fs.Cache.Set(current, ino); err != nil {
			return 0, fmt.Errorf("resolving path `%s`: %w", clean, err)
		}
	}
	return ino, nil
}

// resolveParent resolves the parent of `p` and returns the cleaned path, the
// parent's inode and the final component.
func (fs *FileSystem) resolveParent(p string, parent *Inode) (string, string, error) {
	clean, err := Clean(p)
	if err != nil {
		return "", "", err
	}
	if clean == "/" {
		return "", "", fmt.Errorf("resolving parent of `/`: %w", InvalidArgumentErr)
	}
	parentPath, name := parentKey(clean)
	if len(name) > MaxNameLen {
		return "", "", fmt.Errorf("resolving parent of `%s`: %w", clean, NameTooLongErr)
	}
	ino, err := fs.NameI(parentPath)
	if err != nil {
		return "", "", err
	}
	if err := fs.Table.Get(ino, parent); err != nil {
		return "", "", err
	}
	if !parent.IsDir() {
		return "", "", fmt.Errorf("resolving parent of `%s`: %w", clean, NotDirErr)
	}
	return clean, name, nil
}
