package lfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lfscat/lfscat/fsys/lfs/lfstest"
)

const orphanContent = "This file will be deleted\n"

func TestRecoverOrphanedFile(t *testing.T) {
	f := mountSample(t)

	// The live tree must not know the file...
	_, err := f.Open("temp/to-be-deleted.txt")
	require.ErrorIs(t, err, fs.ErrNotExist)

	// ...but the carve finds its abandoned commit byte-exact
	frag, err := f.Recover("to-be-deleted.txt")
	require.NoError(t, err)
	require.NotNil(t, frag)
	require.Equal(t, []byte(orphanContent), frag.Data)
	require.Equal(t, "to-be-deleted.txt", frag.Name)
	require.Equal(t, int64(6), frag.Block)
	require.Equal(t, int64(4), frag.Offset)
}

func TestRecoverNotFound(t *testing.T) {
	f := mountSample(t)

	frag, err := f.Recover("never-existed.txt")
	require.NoError(t, err)
	require.Nil(t, frag)
}

func TestRecoverLiveFileToo(t *testing.T) {
	// Recovery ignores liveness: a still-live name record is carved the
	// same way. The carve picks up everything to the next erased byte,
	// which here is the file's inline record and the rest of the commit.
	f := mountSample(t)

	frag, err := f.Recover("boot.log")
	require.NoError(t, err)
	require.NotNil(t, frag)
	require.Equal(t, int64(4), frag.Block)
	require.Contains(t, string(frag.Data), "Boot successful")
}

func TestRecoverWithoutSuperblock(t *testing.T) {
	// A wiped superblock must not stop the scan
	im := sampleImage()
	wipe := im.BlockBytes(0)
	for i := range wipe {
		wipe[i] = 0
	}
	wipe = im.BlockBytes(1)
	for i := range wipe {
		wipe[i] = 0
	}

	_, err := OpenImage(im.Bytes(), testBlockSize)
	var noSB *NoSuperblockError
	require.ErrorAs(t, err, &noSB)

	s, err := NewRawScanner(im.Bytes(), testBlockSize)
	require.NoError(t, err)

	frag, err := s.Recover("to-be-deleted.txt")
	require.NoError(t, err)
	require.NotNil(t, frag)
	require.Equal(t, []byte(orphanContent), frag.Data)
}

func TestRawScannerGeometry(t *testing.T) {
	_, err := NewRawScanner(make([]byte, 1000), testBlockSize)
	var geo *GeometryError
	require.ErrorAs(t, err, &geo)
}

func TestRecoverCarveStopsAtErasedFlash(t *testing.T) {
	im := lfstest.New(testBlockSize, 4)
	b := im.NewBlock(1)
	b.Name(1, lfstest.ChunkFile, "orphan.bin")
	b.Raw([]byte("short payload"))
	im.WriteBlock(2, b)

	s, err := NewRawScanner(im.Bytes(), testBlockSize)
	require.NoError(t, err)

	frag, err := s.Recover("orphan.bin")
	require.NoError(t, err)
	require.NotNil(t, frag)
	require.Equal(t, []byte("short payload"), frag.Data)
}

func TestRecoverCarveCrossesBlockBoundary(t *testing.T) {
	im := lfstest.New(testBlockSize, 4)
	b := im.NewBlock(1)
	b.Name(1, lfstest.ChunkFile, "spill.bin")
	im.WriteBlock(2, b)

	// Content runs from right after the name record through the end of
	// block 2 and into block 3.
	blk2 := im.BlockBytes(2)
	start := 4 + 4 + 12 // revision, tag word, padded "spill.bin"
	for i := start; i < len(blk2); i++ {
		blk2[i] = 'A'
	}
	blk3 := im.BlockBytes(3)
	for i := 0; i < 100; i++ {
		blk3[i] = 'B'
	}

	s, err := NewRawScanner(im.Bytes(), testBlockSize)
	require.NoError(t, err)

	frag, err := s.Recover("spill.bin")
	require.NoError(t, err)
	require.NotNil(t, frag)
	require.Len(t, frag.Data, (testBlockSize-start)+100)
	require.Equal(t, byte('A'), frag.Data[0])
	require.Equal(t, byte('B'), frag.Data[len(frag.Data)-1])
}

func TestRecoverFirstHitWins(t *testing.T) {
	im := lfstest.New(testBlockSize, 4)

	early := im.NewBlock(1)
	early.Name(1, lfstest.ChunkFile, "dup.txt")
	early.Raw([]byte("early copy"))
	im.WriteBlock(1, early)

	late := im.NewBlock(1)
	late.Name(1, lfstest.ChunkFile, "dup.txt")
	late.Raw([]byte("late copy"))
	im.WriteBlock(3, late)

	s, err := NewRawScanner(im.Bytes(), testBlockSize)
	require.NoError(t, err)

	frag, err := s.Recover("dup.txt")
	require.NoError(t, err)
	require.NotNil(t, frag)
	require.Equal(t, int64(1), frag.Block)
	require.Equal(t, []byte("early copy"), frag.Data)
}
