package lfs

import (
	"bytes"

	"github.com/sirupsen/logrus"

	"github.com/lfscat/lfscat/fsys"
)

// erasedByte is the value NOR flash holds after an erase. Deleting a
// file only appends a tombstone record; the file's old bytes survive
// until their block is actually erased, which is what makes carving
// possible at all.
const erasedByte = 0xFF

// Recover implements fsys.Recoverer over the mounted image
func (f *FS) Recover(name string) (*fsys.RecoveredFragment, error) {
	return recoverScan(f.store, name)
}

// RawScanner carves without a mount. Recovery needs no superblock, so
// an image whose superblock is gone or mangled can still be scanned;
// only the geometry check stands between the caller and the raw bytes.
type RawScanner struct {
	store *blockStore
}

// NewRawScanner wraps an image for recovery scanning
func NewRawScanner(image []byte, blockSize uint32) (*RawScanner, error) {
	store, err := newBlockStore(image, blockSize)
	if err != nil {
		return nil, err
	}
	return &RawScanner{store: store}, nil
}

// Recover implements fsys.Recoverer
func (s *RawScanner) Recover(name string) (*fsys.RecoveredFragment, error) {
	return recoverScan(s.store, name)
}

// recoverScan walks every block's raw record stream for a name record
// matching the target, ignoring whether the owning id is still live in
// the reconstructed tree, and carves the bytes that follow it. The
// carve starts right after the name record's padded payload and runs to
// the first erased (0xFF) byte or the end of the image, crossing block
// boundaries.
//
// This is a heuristic, not a structural decode: it assumes the file's
// inline data landed immediately after its name record and that erased
// flash state past the delete still holds the stale bytes. On images
// whose erased regions are not uniformly 0xFF, or where another record
// intervenes, it will under- or over-carve. The result is best-effort
// and callers must validate it out-of-band.
//
// The first block-order hit wins. A nil, nil return means the name was
// not found anywhere; that is a normal outcome, not an error.
func recoverScan(store *blockStore, name string) (*fsys.RecoveredFragment, error) {
	target := []byte(name)

	for i := uint32(0); i < store.blockCount(); i++ {
		for _, rec := range decodeBlock(store.block(i), i) {
			if rec.Tag.Type() != TypeName {
				continue
			}
			if !bytes.Equal(bytes.TrimRight(rec.Payload, "\x00"), target) {
				continue
			}

			// Skip the name record itself, padding included
			start := int64(i)*int64(store.blockSize) + int64(rec.Off) + 4 + int64(alignUp4(rec.Tag.Length()))
			end := start
			for end < int64(len(store.image)) && store.image[end] != erasedByte {
				end++
			}

			data := make([]byte, end-start)
			copy(data, store.image[start:end])

			logrus.WithFields(logrus.Fields{
				"block":  i,
				"offset": rec.Off,
				"bytes":  len(data),
			}).Debug("carved orphaned name record")

			return &fsys.RecoveredFragment{
				Name:   name,
				Block:  int64(i),
				Offset: int64(rec.Off),
				Data:   data,
			}, nil
		}
	}
	return nil, nil
}
