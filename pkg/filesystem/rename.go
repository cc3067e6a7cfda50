package filesystem

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/weberc2/blockfs/pkg/directory"
	. "github.com/weberc2/blockfs/pkg/types"
)

// Rename moves the entry at `from` to `to`. An existing file at `to` is
// replaced, as is an empty directory when the source is a directory too.
// Moving a directory updates its `..` entry and both parents' link counts.
func (fs *FileSystem) Rename(from string, to string) error {
	if err := fs.rename(from, to); err != nil {
		return fmt.Errorf("renaming `%s` to `%s`: %w", from, to, err)
	}
	return nil
}

func (fs *FileSystem) rename(from string, to string) error {
	var oldParent, newParent Inode
	oldPath, oldName, err := fs.resolveParent(from, &oldParent)
	if err != nil {
		return err
	}
	newPath, newName, err := fs.resolveParent(to, &newParent)
	if err != nil {
		return err
	}
	for _, name := range []string{oldName, newName} {
		if name == NameDot || name == NameDotDot {
			return InvalidArgumentErr
		}
	}
	if oldPath == newPath {
		return nil
	}
	if strings.HasPrefix(newPath, oldPath+"/") {
		// a directory cannot become its own descendant
		return InvalidArgumentErr
	}

	var source Inode
	sourceIno, err := fs.Directory.Lookup(&oldParent, oldName)
	if err != nil {
		return err
	}
	if err := fs.Table.Get(sourceIno, &source); err != nil {
		return err
	}

	// the parents may be a single directory; keep one copy in that case so
	// neither write clobbers the other
	sameParent := oldParent.Ino == newParent.Ino
	target := &newParent
	if sameParent {
		target = &oldParent
	}

	if err := fs.replaceTarget(target, newName, &source); err != nil {
		return err
	}

	if _, err := fs.Directory.RemoveEntry(&oldParent, oldName); err != nil {
		return err
	}
	if err := fs.Directory.AddEntry(target, sourceIno, newName); err != nil {
		return err
	}

	now := fs.now().Unix()
	if source.IsDir() && !sameParent {
		if err := fs.Directory.SetEntryIno(&source, NameDotDot, newParent.Ino); err != nil {
			return err
		}
		oldParent.LinksCount--
		newParent.LinksCount++
	}
	oldParent.MTime, oldParent.CTime = now, now
	if err := fs.Table.Put(&oldParent); err != nil {
		return err
	}
	if !sameParent {
		newParent.MTime, newParent.CTime = now, now
		if err := fs.Table.Put(&newParent); err != nil {
			return err
		}
	}
	source.CTime = now
	if err := fs.Table.Put(&source); err != nil {
		return err
	}

	fs.Cache.RemovePrefix(oldPath)
	fs.Cache.RemovePrefix(newPath)
	fs.Logger.WithFields(log.Fields{
		"from": oldPath,
		"to":   newPath,
		"ino":  sourceIno,
	}).Debug("renamed file")
	return nil
}

// replaceTarget removes whatever `parent` currently holds under `name` so
// `source` can take its place. Nothing happens if the name is free.
func (fs *FileSystem) replaceTarget(parent *Inode, name string, source *Inode) error {
	targetIno, err := fs.Directory.Lookup(parent, name)
	if err != nil {
		if Kind(err) == KindNotFound {
			return nil
		}
		return err
	}
	if targetIno == source.Ino {
		return fmt.Errorf("target `%s` is the source: %w", name, InvalidArgumentErr)
	}

	var target Inode
	if err := fs.Table.Get(targetIno, &target); err != nil {
		return err
	}
	switch {
	case target.IsDir() && !source.IsDir():
		return IsDirErr
	case !target.IsDir() && source.IsDir():
		return NotDirErr
	case target.IsDir() && !directory.IsEmpty(&target):
		return DirNotEmptyErr
	}
	return fs.unlinkChild(parent, name, &target)
}
