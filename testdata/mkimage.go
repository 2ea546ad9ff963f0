//go:build ignore

// mkimage writes testdata/sample.lfs, a small littlefs image with a
// few directories, inline and CTZ files, and an orphaned deleted file
// for exercising the recovery path by hand:
//
//	go run testdata/mkimage.go
//	lfscat tree -c testdata/sample.lfs
//	lfscat recover testdata/sample.lfs to-be-deleted.txt
package main

import (
	"fmt"
	"os"

	"github.com/lfscat/lfscat/fsys/lfs/lfstest"
)

const (
	blockSize  = 512
	blockCount = 256
)

func main() {
	im := lfstest.New(blockSize, blockCount)

	// Root pair {0,1}: block 0 is the live copy, block 1 an older mirror
	root := im.NewBlock(2)
	root.Superblock(2, 0, blockSize, blockCount, 255, 0x7FFFFFFF, 1022)
	root.Name(1, lfstest.ChunkFile, "first-file.txt")
	root.Inline(1, []byte("This is the root file\n"))
	root.Name(2, lfstest.ChunkDir, "config")
	root.DirStruct(2, [2]uint32{2, 3})
	root.Name(3, lfstest.ChunkDir, "logs")
	root.DirStruct(3, [2]uint32{4, 5})
	root.Name(4, lfstest.ChunkDir, "temp")
	root.DirStruct(4, [2]uint32{6, 7})
	root.Commit()
	im.WriteBlock(0, root)

	mirror := im.NewBlock(1)
	mirror.Superblock(2, 0, blockSize, blockCount, 255, 0x7FFFFFFF, 1022)
	mirror.Commit()
	im.WriteBlock(1, mirror)

	// config/
	config := im.NewBlock(1)
	config.Name(1, lfstest.ChunkFile, "system.conf")
	config.Inline(1, []byte("system=true\nversion=2.0\n"))
	config.Name(2, lfstest.ChunkFile, "network.conf")
	config.Inline(2, []byte("ip=192.168.1.1\nmask=255.255.255.0\n"))
	config.Commit()
	im.WriteBlock(2, config)

	// logs/ with an inline file and a CTZ file spanning three blocks
	kernel := make([]byte, 1200)
	for i := range kernel {
		kernel[i] = byte('a' + i%26)
	}
	head := im.FillCTZ([]uint32{8, 9, 10}, kernel)

	logs := im.NewBlock(1)
	logs.Name(1, lfstest.ChunkFile, "boot.log")
	logs.Inline(1, []byte("Boot successful at 12:34PM\n"))
	logs.Name(2, lfstest.ChunkFile, "kernel.log")
	logs.CTZ(2, head, uint32(len(kernel)))
	logs.Commit()
	im.WriteBlock(4, logs)

	// temp/: block 7 is the live (empty, post-delete) copy; block 6 is
	// the abandoned half-written commit whose name record and trailing
	// content the recovery scan carves.
	orphan := im.NewBlock(1)
	orphan.Name(1, lfstest.ChunkFile, "to-be-deleted.txt")
	orphan.Raw([]byte("This file will be deleted\n"))
	im.WriteBlock(6, orphan)

	temp := im.NewBlock(2)
	temp.Commit()
	im.WriteBlock(7, temp)

	if err := os.WriteFile("testdata/sample.lfs", im.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "mkimage: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Created testdata/sample.lfs")
}
