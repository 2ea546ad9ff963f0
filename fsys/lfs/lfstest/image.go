// Package lfstest builds littlefs images in memory for tests and for
// the testdata generator. It is the write side the decoder never has:
// tag words are XOR-chained exactly as the decoder expects, commits are
// closed with CRC records, and untouched bytes stay 0xFF like erased
// flash. It deliberately imports nothing from the decoder so white-box
// tests can use it freely.
package lfstest

import (
	"encoding/binary"
	"hash/crc32"
)

// Record kinds and chunk sub-kinds, mirroring the on-disk format
const (
	TypeName   = 0
	TypeStruct = 2
	TypeDelete = 4
	TypeCRC    = 5
	TypeTail   = 6

	ChunkFile       = 0x01
	ChunkDir        = 0x02
	ChunkSuperblock = 0xFF

	ChunkDirStruct    = 0x00
	ChunkInlineStruct = 0x01
	ChunkCTZStruct    = 0x02
)

const tagSeed = 0xFFFFFFFF

// Image is a flash image under construction, initialized to erased
// state (all 0xFF).
type Image struct {
	BlockSize uint32
	buf       []byte
}

// New allocates an erased image of blockCount blocks
func New(blockSize, blockCount uint32) *Image {
	buf := make([]byte, int(blockSize)*int(blockCount))
	for i := range buf {
		buf[i] = 0xFF
	}
	return &Image{BlockSize: blockSize, buf: buf}
}

// Bytes returns the image buffer
func (im *Image) Bytes() []byte { return im.buf }

// BlockBytes returns the byte range of block i, for direct tampering
func (im *Image) BlockBytes(i uint32) []byte {
	off := int(i) * int(im.BlockSize)
	return im.buf[off : off+int(im.BlockSize)]
}

// WriteBlock copies a finished metadata block into the image. A record
// declared past the block boundary leaves the cursor beyond the buffer;
// only the bytes that physically fit in the block are copied.
func (im *Image) WriteBlock(i uint32, b *Block) {
	end := b.pos
	if end > uint32(len(b.buf)) {
		end = uint32(len(b.buf))
	}
	copy(im.BlockBytes(i), b.buf[:end])
}

// Block is one metadata block under construction
type Block struct {
	buf    []byte
	pos    uint32
	xor    uint32
	commit uint32 // start of the current commit, for the CRC record
}

// NewBlock starts a metadata block with the given revision counter
func (im *Image) NewBlock(rev uint32) *Block {
	b := &Block{buf: make([]byte, im.BlockSize), xor: tagSeed}
	for i := range b.buf {
		b.buf[i] = 0xFF
	}
	binary.LittleEndian.PutUint32(b.buf[0:4], rev)
	b.pos = 4
	return b
}

// makeTag packs tag fields into the true (pre-XOR) tag value
func makeTag(typ, chunk uint8, id uint16, length uint32) uint32 {
	return uint32(typ&0x7)<<28 | uint32(chunk)<<20 | uint32(id&0x3FF)<<10 | length&0x3FF
}

// Record appends a tagged record: the XOR-chained tag word, the
// payload, and padding up to the next 4-byte boundary.
func (b *Block) Record(typ, chunk uint8, id uint16, payload []byte) {
	tag := makeTag(typ, chunk, id, uint32(len(payload)))
	binary.BigEndian.PutUint32(b.buf[b.pos:], tag^b.xor)
	b.xor = tag
	copy(b.buf[b.pos+4:], payload)
	// Padding bytes are zeroed, not left erased: a 0xFF pad would stop
	// the recovery carve mid-record.
	for i := b.pos + 4 + uint32(len(payload)); i < b.pos+4+align4(uint32(len(payload))); i++ {
		b.buf[i] = 0
	}
	b.pos += 4 + align4(uint32(len(payload)))
}

// Name appends a name record
func (b *Block) Name(id uint16, chunk uint8, name string) {
	b.Record(TypeName, chunk, id, []byte(name))
}

// Inline appends an inline-content struct record
func (b *Block) Inline(id uint16, data []byte) {
	b.Record(TypeStruct, ChunkInlineStruct, id, data)
}

// CTZ appends a CTZ-list struct record pointing at the list's last block
func (b *Block) CTZ(id uint16, head, size uint32) {
	var payload [8]byte
	binary.LittleEndian.PutUint32(payload[0:4], head)
	binary.LittleEndian.PutUint32(payload[4:8], size)
	b.Record(TypeStruct, ChunkCTZStruct, id, payload[:])
}

// DirStruct appends a directory struct record naming the child pair
func (b *Block) DirStruct(id uint16, p [2]uint32) {
	var payload [8]byte
	binary.LittleEndian.PutUint32(payload[0:4], p[0])
	binary.LittleEndian.PutUint32(payload[4:8], p[1])
	b.Record(TypeStruct, ChunkDirStruct, id, payload[:])
}

// Delete appends a tombstone for id
func (b *Block) Delete(id uint16) {
	b.Record(TypeDelete, 0, id, nil)
}

// Tail appends a tail record linking the next metadata pair
func (b *Block) Tail(p [2]uint32) {
	var payload [8]byte
	binary.LittleEndian.PutUint32(payload[0:4], p[0])
	binary.LittleEndian.PutUint32(payload[4:8], p[1])
	b.Record(TypeTail, 0, 0, payload[:])
}

// Superblock appends the root descriptor preamble: the magic name
// record and the six-field inline struct.
func (b *Block) Superblock(major, minor uint16, blockSize, blockCount, nameMax, fileMax, attrMax uint32) {
	b.Name(0, ChunkSuperblock, "littlefs")
	var fields [24]byte
	binary.LittleEndian.PutUint32(fields[0:4], uint32(major)<<16|uint32(minor))
	binary.LittleEndian.PutUint32(fields[4:8], blockSize)
	binary.LittleEndian.PutUint32(fields[8:12], blockCount)
	binary.LittleEndian.PutUint32(fields[12:16], nameMax)
	binary.LittleEndian.PutUint32(fields[16:20], fileMax)
	binary.LittleEndian.PutUint32(fields[20:24], attrMax)
	b.Record(TypeStruct, ChunkInlineStruct, 0, fields[:])
}

// Commit closes the current commit with a CRC record. The checksum is
// CRC-32/IEEE over the raw stored bytes from the commit start through
// the CRC tag word.
func (b *Block) Commit() {
	tag := makeTag(TypeCRC, 0, 0x3FF, 4)
	binary.BigEndian.PutUint32(b.buf[b.pos:], tag^b.xor)
	b.xor = tag
	sum := crc32.ChecksumIEEE(b.buf[b.commit : b.pos+4])
	binary.LittleEndian.PutUint32(b.buf[b.pos+4:], sum)
	b.pos += 8
	b.commit = b.pos
}

// Raw appends untagged bytes at the cursor, as a power-loss mid-write
// would leave them. The XOR chain is not advanced; the decoder will
// stop at these bytes unless they happen to form a valid tag.
func (b *Block) Raw(data []byte) {
	copy(b.buf[b.pos:], data)
	b.pos += uint32(len(data))
}

// Pos returns the cursor offset within the block
func (b *Block) Pos() uint32 { return b.pos }

// FillCTZ lays a file's content across the given blocks as a CTZ
// skip-list and returns the head (the last block's address). Block i of
// the list starts with ctz(i)+1 back-pointers, one per power of two
// that divides i; data fills the remainder.
func (im *Image) FillCTZ(addrs []uint32, data []byte) (head uint32) {
	off := 0
	for idx, addr := range addrs {
		blk := im.BlockBytes(addr)
		words := ctzWords(uint32(idx))
		for k := uint32(0); k < words; k++ {
			binary.LittleEndian.PutUint32(blk[4*k:], addrs[uint32(idx)-1<<k])
		}
		avail := int(im.BlockSize) - 4*int(words)
		n := copy(blk[4*words:], data[off:min(off+avail, len(data))])
		off += n
	}
	return addrs[len(addrs)-1]
}

func ctzWords(idx uint32) uint32 {
	if idx == 0 {
		return 0
	}
	w := uint32(1)
	for idx&1 == 0 {
		w++
		idx >>= 1
	}
	return w
}

func align4(n uint32) uint32 { return (n + 3) &^ 3 }
