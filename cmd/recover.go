package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/lfscat/lfscat/fsys"
)

// RecoverOptions controls recover behavior
type RecoverOptions struct {
	Output string // Output path ("" = recovered_<name> in the cwd)
}

// Recover carves a deleted or unfinalized file's bytes out of the raw
// image and writes them to a local file. The carve is best-effort (see
// fsys.Recoverer); the report says so. A missing name is reported but
// is not an error. The scanner may be a mounted filesystem or a raw
// scanner over an image whose superblock is gone.
func Recover(scanner fsys.Recoverer, name string, out io.Writer, opts RecoverOptions) error {
	frag, err := scanner.Recover(name)
	if err != nil {
		return err
	}
	if frag == nil {
		fmt.Fprintf(out, "Filename %q not found in image\n", name)
		return nil
	}

	fmt.Fprintf(out, "Found name record in block %d, offset 0x%04X\n", frag.Block, frag.Offset)

	outPath := opts.Output
	if outPath == "" {
		outPath = "recovered_" + frag.Name
	}
	if err := os.WriteFile(outPath, frag.Data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	fmt.Fprintf(out, "Recovered %d bytes -> %s\n", len(frag.Data), outPath)
	fmt.Fprintln(out, "Note: carved bytes are best-effort; verify contents before trusting them")
	return nil
}
