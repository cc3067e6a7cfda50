package types

const (
	MaxNameLen = 255

	NameDot    = "."
	NameDotDot = ".."
)

// DirEntry is one packed record in a directory data block.
type DirEntry struct {
	Ino  Ino
	Name string
}
