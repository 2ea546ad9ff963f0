package lfs

import (
	"encoding/binary"
	"math/bits"

	"github.com/lfscat/lfscat/fsys"
)

// ctzWords returns the number of back-pointer words stored at the start
// of the list block with the given index. Every block whose index is
// divisible by 2^k points 2^k blocks back, so block i carries ctz(i)+1
// pointers; block 0 carries none.
func ctzWords(idx uint32) uint32 {
	if idx == 0 {
		return 0
	}
	return uint32(bits.TrailingZeros32(idx)) + 1
}

// ctzCapacity returns the data bytes block idx of a CTZ list can hold
func (f *FS) ctzCapacity(idx uint32) int64 {
	return int64(f.store.blockSize) - 4*int64(ctzWords(idx))
}

// ctzBlocks resolves a CTZ skip-list into the ordered block addresses
// holding the file's data. The struct record's head points at the last
// block of the list; pointer 0 of each block walks back to its
// predecessor, down to list index 0.
func (f *FS) ctzBlocks(name string, head, size uint32) ([]uint32, error) {
	if size == 0 {
		return nil, nil
	}

	// Count list blocks: data capacity shrinks as indices accumulate
	// pointer words.
	var n uint32
	var total int64
	for total < int64(size) {
		avail := f.ctzCapacity(n)
		if avail <= 0 {
			return nil, &TruncatedFileError{Name: name, Want: size, Got: uint32(total)}
		}
		total += avail
		n++
	}

	addrs := make([]uint32, n)
	cur := head
	for idx := n - 1; ; idx-- {
		if cur >= f.store.blockCount() {
			return nil, &TruncatedFileError{Name: name, Want: size, Got: 0}
		}
		addrs[idx] = cur
		if idx == 0 {
			break
		}
		cur = binary.LittleEndian.Uint32(f.store.block(cur)[0:4])
	}
	return addrs, nil
}

// readCTZ accumulates exactly size bytes from a CTZ list
func (f *FS) readCTZ(name string, head, size uint32) ([]byte, error) {
	addrs, err := f.ctzBlocks(name, head, size)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, size)
	remaining := int64(size)
	for idx, addr := range addrs {
		blk := f.store.block(addr)
		start := int64(4 * ctzWords(uint32(idx)))
		take := f.ctzCapacity(uint32(idx))
		if take > remaining {
			take = remaining
		}
		data = append(data, blk[start:start+take]...)
		remaining -= take
	}
	if remaining > 0 {
		return nil, &TruncatedFileError{Name: name, Want: size, Got: uint32(int64(size) - remaining)}
	}
	return data, nil
}

// readEntryContent resolves a file entry's structure record into its
// byte content. A file with no structure record yet (created but never
// finalized) reads as empty.
func (f *FS) readEntryContent(e *dirEntry) ([]byte, error) {
	if !e.hasStruct {
		return nil, nil
	}
	switch e.structChunk {
	case ChunkInlineStruct:
		data := make([]byte, len(e.inline))
		copy(data, e.inline)
		return data, nil
	case ChunkCTZStruct:
		return f.readCTZ(e.name, e.ctzHead, e.ctzSize)
	default:
		return nil, nil
	}
}

// entryExtents maps a file entry's content to physical image offsets.
// Inline files live inside their metadata log, so only CTZ files map
// to extents.
func (f *FS) entryExtents(e *dirEntry) ([]fsys.Extent, error) {
	if !e.hasStruct || e.structChunk != ChunkCTZStruct {
		return nil, nil
	}
	addrs, err := f.ctzBlocks(e.name, e.ctzHead, e.ctzSize)
	if err != nil {
		return nil, err
	}

	var extents []fsys.Extent
	var logical int64
	remaining := int64(e.ctzSize)
	for idx, addr := range addrs {
		words := int64(4 * ctzWords(uint32(idx)))
		take := f.ctzCapacity(uint32(idx))
		if take > remaining {
			take = remaining
		}
		extents = append(extents, fsys.Extent{
			Logical:  logical,
			Physical: int64(addr)*int64(f.store.blockSize) + words,
			Length:   take,
		})
		logical += take
		remaining -= take
	}
	return extents, nil
}
