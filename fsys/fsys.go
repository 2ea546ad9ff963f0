// Package fsys provides a read-only filesystem interface for flash and disk images.
package fsys

import (
	"fmt"
	"io"
	"io/fs"
	"sort"
)

// Extent represents a mapping from logical file offset to physical image offset
type Extent struct {
	Logical  int64 // Offset within the file
	Physical int64 // Offset within the image
	Length   int64 // Length of this extent
}

// FS represents a read-only filesystem that can be opened from an image.
// It embeds io/fs.FS and adds image-specific functionality.
type FS interface {
	fs.FS
	fs.ReadDirFS
	fs.StatFS

	// Type returns the filesystem type name (e.g., "littlefs")
	Type() string

	// Close releases any resources held by the filesystem
	Close() error
}

// Params describes the geometry and limits reported by a filesystem's
// root descriptor.
type Params struct {
	Version    string // Format version, "major.minor"
	BlockSize  uint32 // Erase block size in bytes
	BlockCount uint32 // Number of erase blocks
	NameMax    uint32 // Maximum file name length
	FileMax    uint32 // Maximum file size
	AttrMax    uint32 // Maximum attribute size
}

// Describer is an optional interface for filesystems that can report
// their root descriptor parameters
type Describer interface {
	Params() Params
}

// RecoveredFragment holds bytes carved out of the raw image for a file
// that is no longer (or never was) reachable through the live tree.
//
// The data is best-effort: carving relies on heuristics about erased
// flash state and is not structurally verified. Callers must validate
// the bytes out-of-band before trusting them. Block and Offset record
// where the owning name record was found in the image.
type RecoveredFragment struct {
	Name   string // Candidate file name the fragment was matched against
	Block  int64  // Block index holding the name record
	Offset int64  // Byte offset of the name record within the block
	Data   []byte // Carved payload bytes
}

// Recoverer is an optional interface for filesystems that can carve
// deleted or unfinalized file data out of the raw image, independent of
// the live directory tree.
type Recoverer interface {
	// Recover scans the raw image for the given file name and carves its
	// trailing bytes. It returns nil, nil if the name was not found
	// anywhere in the image; not-found is a normal outcome, not an error.
	Recover(name string) (*RecoveredFragment, error)
}

// ExtentMapper is an optional interface for filesystems that can report
// the physical location of file data within the image
type ExtentMapper interface {
	// FileExtents returns the list of extents that map a file's logical
	// offsets to physical offsets in the image. Returns error if path
	// doesn't exist or is a directory.
	FileExtents(path string) ([]Extent, error)
}

// ExtentReaderAt wraps an io.ReaderAt and a list of extents to provide
// a view of a file's data without loading it entirely into memory
type ExtentReaderAt struct {
	r       io.ReaderAt
	extents []Extent
	size    int64
}

// NewExtentReaderAt creates a new ExtentReaderAt from a base reader and extents.
func NewExtentReaderAt(r io.ReaderAt, extents []Extent, size int64) *ExtentReaderAt {
	// Sort extents by logical offset
	sorted := make([]Extent, len(extents))
	copy(sorted, extents)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Logical < sorted[j].Logical
	})

	return &ExtentReaderAt{r: r, extents: sorted, size: size}
}

// Size returns the logical size of the file
func (e *ExtentReaderAt) Size() int64 {
	return e.size
}

// Extents returns the extent list sorted by logical offset
func (e *ExtentReaderAt) Extents() []Extent {
	return e.extents
}

// ReadAt implements io.ReaderAt
func (e *ExtentReaderAt) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset")
	}
	if off >= e.size {
		return 0, io.EOF
	}

	// Limit read to file size
	if off+int64(len(p)) > e.size {
		p = p[:e.size-off]
	}

	totalRead := 0
	remaining := len(p)

	for remaining > 0 && off < e.size {
		// Find the extent containing this offset
		ext, found := e.findExtent(off)
		if !found {
			// Gap in extents (sparse file) - fill with zeros
			gapEnd := e.nextExtentStart(off)
			if gapEnd > e.size {
				gapEnd = e.size
			}
			zeroLen := int(gapEnd - off)
			if zeroLen > remaining {
				zeroLen = remaining
			}
			for i := 0; i < zeroLen; i++ {
				p[totalRead+i] = 0
			}
			totalRead += zeroLen
			remaining -= zeroLen
			off += int64(zeroLen)
			continue
		}

		// Calculate how much we can read from this extent
		extentOffset := off - ext.Logical
		extentRemaining := ext.Length - extentOffset
		toRead := int(extentRemaining)
		if toRead > remaining {
			toRead = remaining
		}

		// Read from the physical location
		physOffset := ext.Physical + extentOffset
		nr, err := e.r.ReadAt(p[totalRead:totalRead+toRead], physOffset)
		totalRead += nr
		remaining -= nr
		off += int64(nr)

		if err != nil && err != io.EOF {
			return totalRead, err
		}
		if nr < toRead {
			return totalRead, io.EOF
		}
	}

	if totalRead == 0 && off >= e.size {
		return 0, io.EOF
	}

	return totalRead, nil
}

// findExtent finds the extent containing the given logical offset
func (e *ExtentReaderAt) findExtent(off int64) (Extent, bool) {
	for _, ext := range e.extents {
		if off >= ext.Logical && off < ext.Logical+ext.Length {
			return ext, true
		}
	}
	return Extent{}, false
}

// nextExtentStart returns the start of the next extent after the given offset
func (e *ExtentReaderAt) nextExtentStart(off int64) int64 {
	for _, ext := range e.extents {
		if ext.Logical > off {
			return ext.Logical
		}
	}
	return e.size
}

// ReadOnlyError is returned for any write operation
type ReadOnlyError struct{}

func (e ReadOnlyError) Error() string {
	return "filesystem is read-only"
}

// FileInfo provides extended file information
type FileInfo interface {
	fs.FileInfo

	// ObjectID returns the filesystem's internal object identifier for
	// the entry (0 for filesystems without per-object ids)
	ObjectID() uint64
}
