package lfs

import "fmt"

// GeometryError reports an image whose length is not a whole number of
// erase blocks. It is checked before any parsing: a wrong block size
// silently desynchronizes every later offset calculation, so failing
// here is the only reliable place to catch it.
type GeometryError struct {
	ImageSize int64
	BlockSize uint32
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("image size %d is not a multiple of block size %d (wrong -b value?)", e.ImageSize, e.BlockSize)
}

// NoSuperblockError reports that neither block 0 nor block 1 carries the
// littlefs magic.
type NoSuperblockError struct{}

func (e *NoSuperblockError) Error() string {
	return "no littlefs superblock in block 0 or 1 (not a littlefs image, or wrong block size)"
}

// MalformedSuperblockError reports a block that carries the magic but
// whose following record is not a valid superblock struct.
type MalformedSuperblockError struct {
	Block  uint32
	Reason string
}

func (e *MalformedSuperblockError) Error() string {
	return fmt.Sprintf("malformed superblock in block %d: %s", e.Block, e.Reason)
}

// CyclicDirectoryError reports a directory chain that revisits an
// already-visited metadata pair. Only a malformed or adversarial image
// produces one.
type CyclicDirectoryError struct {
	Pair [2]uint32
}

func (e *CyclicDirectoryError) Error() string {
	return fmt.Sprintf("directory chain revisits metadata pair {%d,%d}", e.Pair[0], e.Pair[1])
}

// TruncatedFileError reports file content that cannot be fully resolved:
// a list pointer outside the image, or fewer bytes than the recorded
// size. It is scoped to the one file; sibling reads are unaffected.
type TruncatedFileError struct {
	Name string
	Want uint32
	Got  uint32
}

func (e *TruncatedFileError) Error() string {
	return fmt.Sprintf("%s: truncated content: want %d bytes, got %d", e.Name, e.Want, e.Got)
}
