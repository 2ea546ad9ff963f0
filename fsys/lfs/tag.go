package lfs

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/sirupsen/logrus"
)

// Tag is the decoded 32-bit descriptor in front of every record in a
// metadata block's commit log.
//
// Bit layout, MSB first:
//
//	[31]    invalid  - set on the first word past the end of the log
//	[30:28] type     - record kind
//	[27:20] chunk    - sub-kind (file/dir for names, inline/ctz for structs)
//	[19:10] id       - object id, scoped to the containing metadata block
//	[9:0]   length   - payload length in bytes
//
// The stored word is not the tag's value: each tag is XORed with the
// previous decoded tag in the same block, seeded with 0xFFFFFFFF. Erased
// flash (all 0xFF) therefore decodes with the invalid bit set, which is
// what terminates the stream.
type Tag uint32

// Record kinds (the type field)
const (
	TypeName   = 0
	TypeStruct = 2
	TypeDelete = 4
	TypeCRC    = 5
	TypeTail   = 6
)

// Chunk sub-kinds for name records
const (
	ChunkFile       = 0x01
	ChunkDir        = 0x02
	ChunkSuperblock = 0xFF
)

// Chunk sub-kinds for struct records
const (
	ChunkDirStruct    = 0x00
	ChunkInlineStruct = 0x01
	ChunkCTZStruct    = 0x02
)

// tagSeed is the XOR chain state at the start of every block's record
// region (immediately after the 4-byte revision counter).
const tagSeed = 0xFFFFFFFF

func (t Tag) Invalid() bool  { return t>>31&1 != 0 }
func (t Tag) Type() uint8    { return uint8(t >> 28 & 0x7) }
func (t Tag) Chunk() uint8   { return uint8(t >> 20 & 0xFF) }
func (t Tag) ID() uint16     { return uint16(t >> 10 & 0x3FF) }
func (t Tag) Length() uint32 { return uint32(t & 0x3FF) }

// TypeName returns a short name for the record kind
func (t Tag) TypeName() string {
	switch t.Type() {
	case TypeName:
		return "NAME"
	case TypeStruct:
		return "STRUCT"
	case TypeDelete:
		return "DELETE"
	case TypeCRC:
		return "CRC"
	case TypeTail:
		return "TAIL"
	default:
		return "?"
	}
}

// Record is a decoded tag plus its payload bytes. Off is the offset of
// the tag word within its block. Payload aliases the image buffer.
type Record struct {
	Tag     Tag
	Off     uint32
	Payload []byte
}

// alignUp4 rounds a payload length up to the next 4-byte tag boundary
func alignUp4(n uint32) uint32 {
	return (n + 3) &^ 3
}

// streamDecoder walks one block's record stream. It is cheap to build
// and holds no state beyond the cursor and the XOR accumulator, so
// restarting means constructing a new one.
type streamDecoder struct {
	block     []byte
	blockIdx  uint32
	pos       uint32
	xor       uint32
	commit    uint32 // start of the current commit, for CRC checks
	truncated bool
	badCRC    int
}

func newStreamDecoder(block []byte, blockIdx uint32) *streamDecoder {
	return &streamDecoder{
		block:    block,
		blockIdx: blockIdx,
		pos:      4, // skip the revision counter
		xor:      tagSeed,
	}
}

// next decodes the next record. It returns false on a clean end of
// stream (invalid bit set) and on truncation; truncation additionally
// sets d.truncated and logs a warning, because records decoded so far
// are still usable downstream.
func (d *streamDecoder) next() (Record, bool) {
	if int(d.pos)+4 > len(d.block) {
		d.markTruncated()
		return Record{}, false
	}

	stored := binary.BigEndian.Uint32(d.block[d.pos:])
	t := Tag(stored ^ d.xor)
	if t.Invalid() {
		return Record{}, false
	}

	length := t.Length()
	if int(d.pos)+4+int(length) > len(d.block) {
		d.markTruncated()
		return Record{}, false
	}

	rec := Record{
		Tag:     t,
		Off:     d.pos,
		Payload: d.block[d.pos+4 : d.pos+4+length],
	}

	d.xor = uint32(t)
	d.pos += 4 + alignUp4(length)

	if t.Type() == TypeCRC {
		d.checkCRC(rec)
	}
	return rec, true
}

// checkCRC validates a commit against its CRC record. The checksum is
// CRC-32/IEEE over the raw stored bytes from the commit start through
// the CRC tag word. A mismatch is a confidence signal, not an error:
// forensic reads must tolerate corrupted images.
func (d *streamDecoder) checkCRC(rec Record) {
	commitEnd := rec.Off + 4
	if len(rec.Payload) >= 4 && int(commitEnd) <= len(d.block) {
		want := binary.LittleEndian.Uint32(rec.Payload)
		got := crc32.ChecksumIEEE(d.block[d.commit:commitEnd])
		if want != got {
			d.badCRC++
			logrus.WithFields(logrus.Fields{
				"block":  d.blockIdx,
				"offset": rec.Off,
			}).Warn("commit checksum mismatch")
		}
	}
	// Next commit starts after the CRC record's padded payload
	d.commit = rec.Off + 4 + alignUp4(rec.Tag.Length())
}

func (d *streamDecoder) markTruncated() {
	if !d.truncated {
		d.truncated = true
		logrus.WithFields(logrus.Fields{
			"block":  d.blockIdx,
			"offset": d.pos,
		}).Warn("tag stream truncated at block boundary")
	}
}

// decodeBlock decodes a whole block's record stream
func decodeBlock(block []byte, blockIdx uint32) []Record {
	d := newStreamDecoder(block, blockIdx)
	var recs []Record
	for {
		rec, ok := d.next()
		if !ok {
			return recs
		}
		recs = append(recs, rec)
	}
}
