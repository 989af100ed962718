package commands

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/rabidaudio/tonttuflash/flash"
)

// RunRead reads count pages starting at page and writes them to w, either
// as a hex dump or raw.
func RunRead(s *Session, page, count uint32, format string, w io.Writer) error {
	if count == 0 {
		return fmt.Errorf("page count must be positive")
	}
	if uint64(page)+uint64(count) > flash.PageCount {
		return fmt.Errorf("pages %d..%d are past the end of the device", page, uint64(page)+uint64(count)-1)
	}

	switch format {
	case "hex":
		d := hex.Dumper(w)
		defer d.Close()
		w = d
	case "raw":
	default:
		return fmt.Errorf("unknown format: %s (supported: hex, raw)", format)
	}

	for p := page; p < page+count; p++ {
		data, err := s.Dev.ReadPage(p)
		if err != nil {
			return fmt.Errorf("failed to read page %d: %w", p, err)
		}
		if _, err := w.Write(data[:]); err != nil {
			return err
		}
	}
	s.Log.WithField("pages", count).Debugf("read from page %d", page)
	return nil
}
