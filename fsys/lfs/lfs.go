// Package lfs implements read-only littlefs v2 support: superblock
// location, metadata log replay, directory tree reconstruction, file
// content reads, and raw-scan recovery of deleted file data.
package lfs

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lfscat/lfscat/fsys"
)

// DefaultBlockSize is the erase block size assumed when the caller has
// no better information.
const DefaultBlockSize = 512

// FS implements a read-only littlefs filesystem over an in-memory image
type FS struct {
	store *blockStore
	sb    Superblock
}

// Open reads the whole image into memory and mounts it read-only. The
// block size must match the image's geometry; the on-image superblock
// is cross-checked against it after parsing.
func Open(r io.ReaderAt, size int64, blockSize uint32) (*FS, error) {
	image := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, size), image); err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return OpenImage(image, blockSize)
}

// OpenImage mounts an image already held in memory. The buffer is
// retained and must not be mutated by the caller.
func OpenImage(image []byte, blockSize uint32) (*FS, error) {
	store, err := newBlockStore(image, blockSize)
	if err != nil {
		return nil, err
	}

	sb, err := locateSuperblock(store)
	if err != nil {
		return nil, err
	}

	if sb.BlockSize != blockSize {
		return nil, fmt.Errorf("image was formatted with block size %d, opened with %d (wrong -b value?)",
			sb.BlockSize, blockSize)
	}
	if sb.BlockCount != store.blockCount() {
		logrus.WithFields(logrus.Fields{
			"superblock": sb.BlockCount,
			"image":      store.blockCount(),
		}).Warn("block count recorded in superblock disagrees with image length")
	}

	return &FS{store: store, sb: sb}, nil
}

func (f *FS) Type() string { return "littlefs" }
func (f *FS) Close() error { return nil }

// BaseReader exposes the raw image for extent-based streaming
func (f *FS) BaseReader() io.ReaderAt { return bytes.NewReader(f.store.image) }

// Superblock returns the parsed root descriptor
func (f *FS) Superblock() Superblock { return f.sb }

// Params implements fsys.Describer
func (f *FS) Params() fsys.Params {
	return fsys.Params{
		Version:    f.sb.Version(),
		BlockSize:  f.sb.BlockSize,
		BlockCount: f.sb.BlockCount,
		NameMax:    f.sb.NameMax,
		FileMax:    f.sb.FileMax,
		AttrMax:    f.sb.AttrMax,
	}
}

// BlockCount returns the number of erase blocks in the image
func (f *FS) BlockCount() uint32 { return f.store.blockCount() }

// IsSuperblock reports whether block i carries the littlefs magic
func (f *FS) IsSuperblock(i uint32) bool { return hasMagic(f.store, i) }

// BlockRecords decodes block i's record stream. Corrupt or erased
// blocks simply yield few or no records.
func (f *FS) BlockRecords(i uint32) ([]Record, error) {
	if i >= f.store.blockCount() {
		return nil, fmt.Errorf("block %d out of range (image has %d blocks)", i, f.store.blockCount())
	}
	return decodeBlock(f.store.block(i), i), nil
}

// lookup resolves a slash-separated path to its entry, walking the
// metadata logs from the root pair. The logs are replayed on each call;
// metadata blocks are small and full replay is cheap.
func (f *FS) lookup(name string) (*dirEntry, error) {
	parts := strings.Split(name, "/")
	p := rootPair

	for i, part := range parts {
		entries, err := f.liveEntries(p)
		if err != nil {
			return nil, err
		}

		var found *dirEntry
		for _, e := range entries {
			if e.name == part {
				found = e
				break
			}
		}
		if found == nil {
			return nil, fs.ErrNotExist
		}

		if i == len(parts)-1 {
			return found, nil
		}
		// A directory without a struct record has no metadata pair yet;
		// its zero-valued pair would alias the root.
		if !found.isDir() || !found.hasStruct {
			return nil, fs.ErrNotExist
		}
		p = found.dirPair
	}
	return nil, fs.ErrNotExist
}

// FileExtents implements fsys.ExtentMapper for CTZ files. Inline files
// live inside the metadata log and have no extents.
func (f *FS) FileExtents(name string) ([]fsys.Extent, error) {
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if name == "." || name == "" {
		return nil, fmt.Errorf("cannot get extents for root directory")
	}
	e, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	if e.isDir() {
		return nil, fmt.Errorf("cannot get extents for directory")
	}
	return f.entryExtents(e)
}

// fs.FS implementation

func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if name == "." {
		return &lfsDir{fs: f, p: rootPair, name: "."}, nil
	}

	e, err := f.lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if e.isDir() {
		d := &lfsDir{fs: f, p: e.dirPair, entry: e, name: path.Base(name)}
		if !e.hasStruct {
			// Named but not yet linked to a metadata pair: reads as
			// empty, like a file without a struct record
			d.entries = []fs.DirEntry{}
		}
		return d, nil
	}
	return &lfsFile{fs: f, entry: e, name: path.Base(name)}, nil
}

func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dir, ok := file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return dir.ReadDir(-1)
}

func (f *FS) Stat(name string) (fs.FileInfo, error) {
	file, err := f.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return file.Stat()
}

// lfsFile implements fs.File for regular files
type lfsFile struct {
	fs     *FS
	entry  *dirEntry
	name   string
	data   []byte
	offset int64
	loaded bool
}

func (f *lfsFile) Stat() (fs.FileInfo, error) {
	return &lfsFileInfo{entry: f.entry, name: f.name}, nil
}

func (f *lfsFile) Read(b []byte) (int, error) {
	if !f.loaded {
		var err error
		f.data, err = f.fs.readEntryContent(f.entry)
		if err != nil {
			return 0, err
		}
		f.loaded = true
	}

	if f.offset >= int64(len(f.data)) {
		return 0, io.EOF
	}

	n := copy(b, f.data[f.offset:])
	f.offset += int64(n)
	return n, nil
}

func (f *lfsFile) Close() error {
	f.data = nil
	return nil
}

// lfsDir implements fs.File and fs.ReadDirFile for directories
type lfsDir struct {
	fs      *FS
	p       pair
	entry   *dirEntry // nil for the root
	name    string
	entries []fs.DirEntry
	offset  int
}

func (d *lfsDir) Stat() (fs.FileInfo, error) {
	return &lfsFileInfo{entry: d.entry, name: d.name, dir: true}, nil
}

func (d *lfsDir) Read(b []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *lfsDir) Close() error {
	d.entries = nil
	return nil
}

func (d *lfsDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		raw, err := d.fs.liveEntries(d.p)
		if err != nil {
			return nil, err
		}
		d.entries = make([]fs.DirEntry, 0, len(raw))
		for _, e := range raw {
			d.entries = append(d.entries, &lfsDirEntry{entry: e})
		}
	}

	if n <= 0 {
		entries := d.entries[d.offset:]
		d.offset = len(d.entries)
		return entries, nil
	}

	if d.offset >= len(d.entries) {
		return nil, io.EOF
	}

	end := d.offset + n
	if end > len(d.entries) {
		end = len(d.entries)
	}
	entries := d.entries[d.offset:end]
	d.offset = end
	return entries, nil
}

// lfsDirEntry implements fs.DirEntry
type lfsDirEntry struct {
	entry *dirEntry
}

func (e *lfsDirEntry) Name() string { return e.entry.name }
func (e *lfsDirEntry) IsDir() bool  { return e.entry.isDir() }

func (e *lfsDirEntry) Type() fs.FileMode {
	if e.IsDir() {
		return fs.ModeDir
	}
	return 0
}

func (e *lfsDirEntry) Info() (fs.FileInfo, error) {
	return &lfsFileInfo{entry: e.entry, name: e.entry.name, dir: e.entry.isDir()}, nil
}

// lfsFileInfo implements fs.FileInfo and fsys.FileInfo. littlefs keeps
// no timestamps or permission bits; modes are synthesized.
type lfsFileInfo struct {
	entry *dirEntry // nil for the root
	name  string
	dir   bool
}

func (i *lfsFileInfo) Name() string       { return i.name }
func (i *lfsFileInfo) ModTime() time.Time { return time.Time{} }
func (i *lfsFileInfo) Sys() any           { return nil }

func (i *lfsFileInfo) Size() int64 {
	if i.entry == nil {
		return 0
	}
	return i.entry.size()
}

func (i *lfsFileInfo) IsDir() bool {
	return i.dir || (i.entry != nil && i.entry.isDir())
}

func (i *lfsFileInfo) Mode() fs.FileMode {
	if i.IsDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (i *lfsFileInfo) ObjectID() uint64 {
	if i.entry == nil {
		return 0
	}
	return uint64(i.entry.id)
}
