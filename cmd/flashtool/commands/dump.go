package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rabidaudio/tonttuflash/flash"
	"github.com/rabidaudio/tonttuflash/vfs"
)

// Range is a byte range of the address space.
type Range struct {
	Offset int64
	Length int64
}

func (r Range) check() error {
	if r.Offset < 0 || r.Length <= 0 {
		return fmt.Errorf("invalid range offset=%d length=%d", r.Offset, r.Length)
	}
	if r.Offset+r.Length > flash.AddressSpace {
		return fmt.Errorf("range 0x%X+0x%X runs past the end of the device", r.Offset, r.Length)
	}
	return nil
}

func (r Range) reader(s *Session) io.Reader {
	return io.NewSectionReader(s.Dev, r.Offset, r.Length)
}

// RunDump copies a range of the device to output, or to w when output is
// empty.
func RunDump(s *Session, rng Range, output string, w io.Writer) error {
	if err := rng.check(); err != nil {
		return err
	}
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	n, err := io.Copy(w, rng.reader(s))
	if err != nil {
		return fmt.Errorf("dump stopped after %d bytes: %w", n, err)
	}
	s.Log.WithField("bytes", n).Debugf("dumped from 0x%08X", rng.Offset)
	return nil
}

// RunExport writes a range of the device into a new FAT32 image at output.
// The dump lands in a directory named after label.
func RunExport(s *Session, rng Range, output, label string) (string, error) {
	if err := rng.check(); err != nil {
		return "", err
	}
	img, err := vfs.Create(output, vfs.ImageSize(rng.Length), label)
	if err != nil {
		return "", fmt.Errorf("failed to create image: %w", err)
	}
	defer img.Close()

	name, n, err := img.AddDump(rng.reader(s))
	if err != nil {
		return name, err
	}
	s.Log.WithField("bytes", n).Infof("exported to %s:%s", output, name)
	return name, nil
}
