package cmd

import (
	"fmt"
	"io"

	"github.com/lfscat/lfscat/fsys"
)

// Info prints the filesystem type and, when the filesystem reports
// them, its root descriptor parameters.
func Info(filesystem fsys.FS, out io.Writer) error {
	fmt.Fprintf(out, "Filesystem type: %s\n", filesystem.Type())

	d, ok := filesystem.(fsys.Describer)
	if !ok {
		return nil
	}
	p := d.Params()
	fmt.Fprintf(out, "  Version     : %s\n", p.Version)
	fmt.Fprintf(out, "  Block Size  : %d\n", p.BlockSize)
	fmt.Fprintf(out, "  Block Count : %d\n", p.BlockCount)
	fmt.Fprintf(out, "  Name Max    : %d\n", p.NameMax)
	fmt.Fprintf(out, "  File Max    : %d\n", p.FileMax)
	fmt.Fprintf(out, "  Attr Max    : %d\n", p.AttrMax)
	return nil
}
