// lfscat - Inspect and recover littlefs flash images
//
// Usage:
//
//	lfscat [-b size] info <image>
//	lfscat [-b size] ls [-l] <image> [path]
//	lfscat [-b size] tree [-c] <image>
//	lfscat [-b size] cat <image> <path>
//	lfscat [-b size] stat <image> <path>
//	lfscat [-b size] scan <image>
//	lfscat [-b size] recover [-o file] <image> <filename>
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/lfscat/lfscat/cmd"
	"github.com/lfscat/lfscat/detect"
	"github.com/lfscat/lfscat/fsys"
	"github.com/lfscat/lfscat/fsys/lfs"
)

func main() {
	app := &cli.App{
		Name:  "lfscat",
		Usage: "inspect and recover littlefs flash images",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:    "block-size",
				Aliases: []string{"b"},
				Value:   lfs.DefaultBlockSize,
				Usage:   "erase block size in bytes",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "print the superblock summary",
				ArgsUsage: "<image>",
				Action:    runInfo,
			},
			{
				Name:      "ls",
				Usage:     "list a directory or file",
				ArgsUsage: "<image> [path]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "l", Usage: "use long listing format"},
				},
				Action: runLs,
			},
			{
				Name:      "tree",
				Usage:     "print the directory tree",
				ArgsUsage: "<image>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "c", Aliases: []string{"contents"}, Usage: "dump file contents as well"},
				},
				Action: runTree,
			},
			{
				Name:      "cat",
				Usage:     "copy a file's contents to stdout",
				ArgsUsage: "<image> <path>",
				Action:    runCat,
			},
			{
				Name:      "stat",
				Usage:     "show detailed file information",
				ArgsUsage: "<image> <path>",
				Action:    runStat,
			},
			{
				Name:      "scan",
				Usage:     "dump every block's decoded record stream",
				ArgsUsage: "<image>",
				Action:    runScan,
			},
			{
				Name:      "recover",
				Usage:     "carve a deleted file's bytes out of the raw image",
				ArgsUsage: "<image> <filename>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "o", Aliases: []string{"output"}, Usage: "output path (default recovered_<name>)"},
				},
				Action: runRecover,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lfscat: %v\n", err)
		os.Exit(1)
	}
}

// readImage loads the image and reports foreign formats by name, so a
// wrong image gets "looks like ext2/3/4" instead of a bare mount error.
func readImage(c *cli.Context) ([]byte, uint32, error) {
	if c.NArg() < 1 {
		return nil, 0, fmt.Errorf("missing image argument")
	}
	blockSize := uint32(c.Uint("block-size"))

	image, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return nil, 0, fmt.Errorf("opening image: %w", err)
	}

	typ, err := detect.Detect(bytes.NewReader(image), blockSize)
	if err != nil {
		return nil, 0, fmt.Errorf("detecting filesystem: %w", err)
	}
	if typ != detect.LittleFS && typ != detect.Unknown {
		return nil, 0, fmt.Errorf("image looks like %s, not littlefs", typ)
	}

	return image, blockSize, nil
}

func openFS(c *cli.Context) (*lfs.FS, error) {
	image, blockSize, err := readImage(c)
	if err != nil {
		return nil, err
	}
	filesystem, err := lfs.OpenImage(image, blockSize)
	if err != nil {
		return nil, fmt.Errorf("opening filesystem: %w", err)
	}
	return filesystem, nil
}

func runInfo(c *cli.Context) error {
	filesystem, err := openFS(c)
	if err != nil {
		return err
	}
	defer filesystem.Close()
	return cmd.Info(filesystem, os.Stdout)
}

func runLs(c *cli.Context) error {
	filesystem, err := openFS(c)
	if err != nil {
		return err
	}
	defer filesystem.Close()

	path := "."
	if c.NArg() > 1 {
		path = c.Args().Get(1)
	}
	return cmd.Ls(filesystem, path, os.Stdout, cmd.LsOptions{Long: c.Bool("l")})
}

func runTree(c *cli.Context) error {
	filesystem, err := openFS(c)
	if err != nil {
		return err
	}
	defer filesystem.Close()
	return cmd.Tree(filesystem, os.Stdout, cmd.TreeOptions{Contents: c.Bool("c")})
}

func runCat(c *cli.Context) error {
	filesystem, err := openFS(c)
	if err != nil {
		return err
	}
	defer filesystem.Close()

	if c.NArg() < 2 {
		return fmt.Errorf("cat requires a path argument")
	}
	return cmd.Cat(filesystem, c.Args().Get(1), os.Stdout)
}

func runStat(c *cli.Context) error {
	filesystem, err := openFS(c)
	if err != nil {
		return err
	}
	defer filesystem.Close()

	if c.NArg() < 2 {
		return fmt.Errorf("stat requires a path argument")
	}
	return cmd.Stat(filesystem, c.Args().Get(1), os.Stdout)
}

func runScan(c *cli.Context) error {
	filesystem, err := openFS(c)
	if err != nil {
		return err
	}
	defer filesystem.Close()
	return cmd.Scan(filesystem, os.Stdout)
}

func runRecover(c *cli.Context) error {
	image, blockSize, err := readImage(c)
	if err != nil {
		return err
	}
	if c.NArg() < 2 {
		return fmt.Errorf("recover requires a filename argument")
	}

	// Recovery needs no superblock: fall back to a raw scan when the
	// image no longer mounts.
	var scanner fsys.Recoverer
	if filesystem, err := lfs.OpenImage(image, blockSize); err == nil {
		defer filesystem.Close()
		scanner = filesystem
	} else {
		var noSB *lfs.NoSuperblockError
		var badSB *lfs.MalformedSuperblockError
		if !errors.As(err, &noSB) && !errors.As(err, &badSB) {
			return fmt.Errorf("opening filesystem: %w", err)
		}
		logrus.WithError(err).Warn("image does not mount, scanning raw")
		scanner, err = lfs.NewRawScanner(image, blockSize)
		if err != nil {
			return err
		}
	}

	return cmd.Recover(scanner, c.Args().Get(1), os.Stdout, cmd.RecoverOptions{Output: c.String("o")})
}
