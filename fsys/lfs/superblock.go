package lfs

import (
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	magicOffset = 8
	magic       = "littlefs"

	// Six little-endian u32 fields: version, block size, block count,
	// name max, file max, attr max
	superblockFieldsLen = 24
)

// Superblock is the filesystem's root descriptor, parsed from the first
// inline struct record after the magic. Metadata blocks are mirrored in
// pairs for power-loss safety; Block records which mirror won.
type Superblock struct {
	VersionMajor uint16
	VersionMinor uint16
	BlockSize    uint32
	BlockCount   uint32
	NameMax      uint32
	FileMax      uint32
	AttrMax      uint32
	Block        uint32 // mirror the fields were read from (0 or 1)
	Revision     uint32 // that mirror's revision counter
}

// Version returns the format version as "major.minor"
func (sb Superblock) Version() string {
	return fmt.Sprintf("%d.%d", sb.VersionMajor, sb.VersionMinor)
}

// hasMagic reports whether block i carries the littlefs magic at the
// fixed offset (the payload of the superblock's own name record).
func hasMagic(store *blockStore, i uint32) bool {
	if i >= store.blockCount() {
		return false
	}
	blk := store.block(i)
	if len(blk) < magicOffset+len(magic) {
		// Geometry admits any divisor of the image length, including
		// blocks too small to hold the magic
		return false
	}
	return string(blk[magicOffset:magicOffset+uint32(len(magic))]) == magic
}

// locateSuperblock probes blocks 0 and 1 for the magic and parses the
// root descriptor out of the winning mirror. When both mirrors are
// valid the numerically greater revision counter is authoritative (the
// most recently committed copy); a tie is ambiguous but non-fatal and
// resolves to block 0.
func locateSuperblock(store *blockStore) (Superblock, error) {
	var candidates []uint32
	for _, i := range []uint32{0, 1} {
		if hasMagic(store, i) {
			candidates = append(candidates, i)
		}
	}

	switch len(candidates) {
	case 0:
		return Superblock{}, &NoSuperblockError{}
	case 2:
		r0, r1 := store.revision(0), store.revision(1)
		if r1 > r0 {
			candidates = []uint32{1}
		} else {
			if r0 == r1 {
				logrus.WithField("revision", r0).
					Warn("superblock mirrors have equal revisions, preferring block 0")
			}
			candidates = []uint32{0}
		}
	}

	blk := candidates[0]
	sb, err := parseSuperblock(store, blk)
	if err != nil {
		return Superblock{}, err
	}
	return sb, nil
}

// parseSuperblock decodes block i's record stream and extracts the six
// descriptor fields from the first inline struct record following the
// magic name record.
func parseSuperblock(store *blockStore, i uint32) (Superblock, error) {
	d := newStreamDecoder(store.block(i), i)
	for {
		rec, ok := d.next()
		if !ok {
			return Superblock{}, &MalformedSuperblockError{Block: i, Reason: "no struct record follows the magic"}
		}
		if rec.Tag.Type() == TypeName {
			// The superblock's own name record ("littlefs")
			continue
		}
		if rec.Tag.Type() != TypeStruct || rec.Tag.Chunk() != ChunkInlineStruct {
			return Superblock{}, &MalformedSuperblockError{
				Block:  i,
				Reason: fmt.Sprintf("unexpected %s record where superblock struct belongs", rec.Tag.TypeName()),
			}
		}
		if len(rec.Payload) < superblockFieldsLen {
			return Superblock{}, &MalformedSuperblockError{
				Block:  i,
				Reason: fmt.Sprintf("superblock struct too short: %d bytes", len(rec.Payload)),
			}
		}

		version := binary.LittleEndian.Uint32(rec.Payload[0:4])
		return Superblock{
			VersionMajor: uint16(version >> 16),
			VersionMinor: uint16(version & 0xFFFF),
			BlockSize:    binary.LittleEndian.Uint32(rec.Payload[4:8]),
			BlockCount:   binary.LittleEndian.Uint32(rec.Payload[8:12]),
			NameMax:      binary.LittleEndian.Uint32(rec.Payload[12:16]),
			FileMax:      binary.LittleEndian.Uint32(rec.Payload[16:20]),
			AttrMax:      binary.LittleEndian.Uint32(rec.Payload[20:24]),
			Block:        i,
			Revision:     store.revision(i),
		}, nil
	}
}
