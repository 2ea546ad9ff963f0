// Package detect identifies filesystem types from raw images.
//
// lfscat only mounts littlefs, but recognizing other common on-disk
// formats turns "no superblock found" into a useful diagnostic when
// someone points the tool at the wrong image.
package detect

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Type represents a filesystem type
type Type int

const (
	Unknown Type = iota
	LittleFS
	FAT
	NTFS
	Ext
	MBR // Master Boot Record partition table
	GPT // GUID Partition Table
)

func (t Type) String() string {
	switch t {
	case LittleFS:
		return "littlefs"
	case FAT:
		return "FAT"
	case NTFS:
		return "NTFS"
	case Ext:
		return "ext2/3/4"
	case MBR:
		return "MBR"
	case GPT:
		return "GPT"
	default:
		return "unknown"
	}
}

// littlefs places the "littlefs" magic 8 bytes into the superblock's
// metadata block, which is block 0 or its mirror block 1.
const lfsMagicOffset = 8

var lfsMagic = []byte("littlefs")

// Detect identifies the filesystem type from a reader. blockSize is the
// assumed erase block size, needed to probe littlefs's mirror block.
func Detect(r io.ReaderAt, blockSize uint32) (Type, error) {
	// 4KB covers every magic offset probed below except the mirror
	header := make([]byte, 4096)
	n, err := r.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return Unknown, fmt.Errorf("reading header: %w", err)
	}
	if n < 16 {
		return Unknown, fmt.Errorf("image too small: %d bytes", n)
	}
	header = header[:n]

	if isLittleFS(header, 0) {
		return LittleFS, nil
	}
	// Mirror block: the active superblock may live in block 1 only
	if blockSize > 0 {
		mirror := make([]byte, lfsMagicOffset+len(lfsMagic))
		if _, err := r.ReadAt(mirror, int64(blockSize)); err == nil {
			if isLittleFS(mirror, 0) {
				return LittleFS, nil
			}
		}
	}

	// Foreign formats, for diagnostics only

	// GPT: "EFI PART" at LBA 1 (offset 512)
	if len(header) >= 520 && bytes.Equal(header[512:520], []byte("EFI PART")) {
		return GPT, nil
	}

	// NTFS: "NTFS    " at offset 3
	if len(header) >= 11 && bytes.Equal(header[3:11], []byte("NTFS    ")) {
		return NTFS, nil
	}

	// ext2/3/4: magic 0xEF53 at offset 0x438 (superblock at 1024)
	if len(header) >= 0x43A && binary.LittleEndian.Uint16(header[0x438:0x43A]) == 0xEF53 {
		return Ext, nil
	}

	// Boot sector signature: MBR partition table or a FAT volume
	if len(header) >= 512 && header[510] == 0x55 && header[511] == 0xAA {
		if hasPartitionEntry(header) {
			return MBR, nil
		}
		return FAT, nil
	}

	return Unknown, nil
}

func isLittleFS(b []byte, off int) bool {
	return len(b) >= off+lfsMagicOffset+len(lfsMagic) &&
		bytes.Equal(b[off+lfsMagicOffset:off+lfsMagicOffset+len(lfsMagic)], lfsMagic)
}

// hasPartitionEntry reports whether the boot sector holds at least one
// plausible MBR partition entry (446 + four 16-byte slots).
func hasPartitionEntry(header []byte) bool {
	for i := 0; i < 4; i++ {
		entry := header[446+i*16 : 446+(i+1)*16]
		if entry[0] != 0x00 && entry[0] != 0x80 {
			continue
		}
		if entry[4] == 0x00 {
			continue
		}
		lbaStart := binary.LittleEndian.Uint32(entry[8:12])
		lbaSize := binary.LittleEndian.Uint32(entry[12:16])
		if lbaStart > 0 && lbaSize > 0 {
			return true
		}
	}
	return false
}
