package lfs

import "encoding/binary"

// blockStore is a read-only view over the raw image sliced into
// fixed-size erase blocks. The whole image sits in memory: littlefs
// geometries are embedded-flash sized, and recovery needs raw byte
// access across block boundaries anyway.
type blockStore struct {
	image     []byte
	blockSize uint32
}

// newBlockStore validates the image geometry and wraps the buffer.
// The geometry check runs before any parsing; see GeometryError.
func newBlockStore(image []byte, blockSize uint32) (*blockStore, error) {
	if blockSize == 0 || int64(len(image))%int64(blockSize) != 0 {
		return nil, &GeometryError{ImageSize: int64(len(image)), BlockSize: blockSize}
	}
	return &blockStore{image: image, blockSize: blockSize}, nil
}

// blockCount returns the number of erase blocks in the image
func (s *blockStore) blockCount() uint32 {
	return uint32(int64(len(s.image)) / int64(s.blockSize))
}

// block returns the byte range of block i. The slice aliases the image;
// callers must not mutate it.
func (s *blockStore) block(i uint32) []byte {
	off := int64(i) * int64(s.blockSize)
	return s.image[off : off+int64(s.blockSize)]
}

// revision returns block i's revision counter, the little-endian u32 at
// the start of every metadata block.
func (s *blockStore) revision(i uint32) uint32 {
	return binary.LittleEndian.Uint32(s.block(i))
}
