package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rabidaudio/tonttuflash/flash"
)

// WriteOptions controls RunWrite.
type WriteOptions struct {
	Page   uint32
	Verify bool
}

// RunWrite writes everything read from r starting at opts.Page. Every
// sector the data touches is erased first. Pages in those sectors outside
// the data are read before the erase and written back. It returns the
// number of pages programmed.
func RunWrite(ctx context.Context, s *Session, r io.Reader, opts WriteOptions) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read input: %w", err)
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("nothing to write")
	}
	start := int64(flash.PageAddress(opts.Page))
	end := start + int64(len(data))
	if end > flash.AddressSpace {
		return 0, fmt.Errorf("%d bytes at page %d run past the end of the device", len(data), opts.Page)
	}

	first := flash.SectorNumberFromPage(opts.Page)
	last := flash.SectorNumberFromPage(uint32((end - 1) / flash.PageSize))
	programmed := 0
	buf := make([]byte, flash.SectorSize)
	for sector := first; sector <= last; sector++ {
		base := int64(flash.SectorAddress(sector))
		if _, err := s.Dev.ReadAt(buf, base); err != nil {
			return programmed, fmt.Errorf("failed to read sector %d: %w", sector, err)
		}
		lo, hi := max(start, base), min(end, base+flash.SectorSize)
		copy(buf[lo-base:hi-base], data[lo-start:hi-start])

		n, err := writeSector(ctx, s, sector, buf)
		programmed += n
		if err != nil {
			return programmed, err
		}
		if opts.Verify {
			if err := verifySector(s, sector, buf); err != nil {
				return programmed, err
			}
		}
		s.Log.WithField("pages", n).Debugf("wrote sector %d", sector)
	}
	return programmed, nil
}

// writeSector erases sector and programs every page of buf that is not
// blank.
func writeSector(ctx context.Context, s *Session, sector uint32, buf []byte) (int, error) {
	if err := s.Dev.EnableWrite(); err != nil {
		return 0, err
	}
	erased, err := s.Dev.SectorErase(sector)
	if err != nil {
		return 0, err
	}
	if err := s.Dev.WaitReady(ctx, s.Wait); err != nil {
		return 0, fmt.Errorf("erase of sector %d: %w", sector, err)
	}

	blank := flash.Erased()
	n := 0
	for i := uint32(0); i < flash.PagesPerSector; i++ {
		var p flash.Page
		copy(p[:], buf[i*flash.PageSize:])
		if p == blank {
			continue
		}
		page := flash.FirstPageOfSector(sector) + i
		if err := s.Dev.EnableWrite(); err != nil {
			return n, err
		}
		if err := s.Dev.WritePage(erased, page, &p); err != nil {
			return n, err
		}
		if err := s.Dev.WaitReady(ctx, s.Wait); err != nil {
			return n, fmt.Errorf("program of page %d: %w", page, err)
		}
		n++
	}
	return n, nil
}

func verifySector(s *Session, sector uint32, want []byte) error {
	got := make([]byte, flash.SectorSize)
	if _, err := s.Dev.ReadAt(got, int64(flash.SectorAddress(sector))); err != nil {
		return fmt.Errorf("failed to read back sector %d: %w", sector, err)
	}
	if !bytes.Equal(got, want) {
		i := 0
		for got[i] == want[i] {
			i++
		}
		return fmt.Errorf("verify failed at 0x%08X: wrote 0x%02X, read 0x%02X",
			flash.SectorAddress(sector)+uint32(i), want[i], got[i])
	}
	return nil
}
