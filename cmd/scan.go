package cmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/lfscat/lfscat/fsys/lfs"
)

// Scan dumps every block's decoded record stream: one line per record
// with its offset, kind, id, length and chunk, plus a decoded payload
// line for names and structs. This is the raw view the recovery path
// sees, live or not.
func Scan(filesystem *lfs.FS, out io.Writer) error {
	for i := uint32(0); i < filesystem.BlockCount(); i++ {
		if filesystem.IsSuperblock(i) {
			fmt.Fprintf(out, "\n=== BLOCK %d (super-block) ===\n", i)
		}

		recs, err := filesystem.BlockRecords(i)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Fprintf(out, "[blk %3d] +%04X: %-6s id=%3d len=%3d chk=0x%02X\n",
				i, rec.Off, rec.Tag.TypeName(), rec.Tag.ID(), rec.Tag.Length(), rec.Tag.Chunk())

			switch {
			case rec.Tag.Type() == lfs.TypeName:
				name := strings.TrimRight(string(rec.Payload), "\x00")
				fmt.Fprintf(out, "           └─ %q\n", name)
			case rec.Tag.Type() == lfs.TypeStruct && len(rec.Payload) >= 8:
				head := binary.LittleEndian.Uint32(rec.Payload[0:4])
				size := binary.LittleEndian.Uint32(rec.Payload[4:8])
				fmt.Fprintf(out, "           └─ %s head=0x%08X size=%d\n",
					structKind(rec.Tag.Chunk()), head, size)
			}
		}
	}
	return nil
}

func structKind(chunk uint8) string {
	switch chunk {
	case lfs.ChunkInlineStruct:
		return "inline"
	case lfs.ChunkCTZStruct:
		return "ctz"
	case lfs.ChunkDirStruct:
		return "dir"
	default:
		return "?"
	}
}
