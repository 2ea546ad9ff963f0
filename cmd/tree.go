package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"unicode/utf8"

	"github.com/lfscat/lfscat/fsys"
	"github.com/lfscat/lfscat/fsys/lfs"
)

// TreeOptions controls tree behavior
type TreeOptions struct {
	Contents bool // Dump each file's contents after the tree (-c)
}

// treeBuilder is implemented by filesystems that can reconstruct their
// full directory tree with cycle protection.
type treeBuilder interface {
	Tree() (*lfs.Node, error)
}

// Tree prints the directory structure, and optionally every file's
// contents, the way a forensic report reads: tree first, then dumps.
func Tree(filesystem fsys.FS, out io.Writer, opts TreeOptions) error {
	tb, ok := filesystem.(treeBuilder)
	if !ok {
		return fmt.Errorf("%s does not support tree reconstruction", filesystem.Type())
	}

	root, err := tb.Tree()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "/")
	printTree(root, "", out)

	if opts.Contents {
		return dumpContents(filesystem, root, ".", out)
	}
	return nil
}

func printTree(n *lfs.Node, indent string, out io.Writer) {
	for i, child := range n.Children {
		branch, childIndent := "├── ", "│   "
		if i == len(n.Children)-1 {
			branch, childIndent = "└── ", "    "
		}
		name := child.Name
		if child.IsDir {
			name += "/"
		}
		fmt.Fprintf(out, "%s%s%s\n", indent, branch, name)
		if child.IsDir {
			printTree(child, indent+childIndent, out)
		}
	}
}

// dumpContents prints every file under n, decoded as UTF-8 when
// possible, with binary files noted rather than spewed.
func dumpContents(filesystem fsys.FS, n *lfs.Node, dir string, out io.Writer) error {
	for _, child := range n.Children {
		full := path.Join(dir, child.Name)
		if child.IsDir {
			if err := dumpContents(filesystem, child, full, out); err != nil {
				return err
			}
			continue
		}

		data, err := fs.ReadFile(filesystem, full)
		if err != nil {
			fmt.Fprintf(out, "\n--- /%s  (unreadable: %v) ---\n", full, err)
			continue
		}

		fmt.Fprintf(out, "\n--- /%s  (%d bytes) ---\n", full, len(data))
		if utf8.Valid(data) {
			out.Write(data)
			if len(data) > 0 && data[len(data)-1] != '\n' {
				fmt.Fprintln(out)
			}
		} else {
			fmt.Fprintln(out, "[binary data omitted]")
		}
	}
	return nil
}
