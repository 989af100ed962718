package flash

import (
	"context"
	"fmt"
	"io"
)

// ErasedSector is proof that a sector was erased by a Device. WritePage
// consumes it to make sure every page is written once per erase. Erasing
// the sector again makes earlier tokens for it stale. The zero value covers
// nothing.
type ErasedSector struct {
	e *erasure
}

type erasure struct {
	dev        *Device
	sector     uint32
	programmed uint16 // one bit per page
}

// Valid reports whether the token came from a successful erase.
func (s ErasedSector) Valid() bool { return s.e != nil }

// Sector returns the erased sector number.
func (s ErasedSector) Sector() uint32 {
	if s.e == nil {
		return 0
	}
	return s.e.sector
}

// Contains reports whether page lies in the erased sector.
func (s ErasedSector) Contains(page uint32) bool {
	return s.e != nil && SectorNumberFromPage(page) == s.e.sector
}

// Programmed reports whether page was written since the erase.
func (s ErasedSector) Programmed(page uint32) bool {
	return s.Contains(page) && s.e.programmed&pageBit(page) != 0
}

func pageBit(page uint32) uint16 {
	return 1 << (page % PagesPerSector)
}

// ErasedRange is the set of sectors erased by EraseUpToPage, starting at
// sector 0.
type ErasedRange struct {
	sectors []ErasedSector
}

// Len returns the number of sectors erased.
func (r ErasedRange) Len() int { return len(r.sectors) }

// Sector returns the token for sector, if it was erased.
func (r ErasedRange) Sector(sector uint32) (ErasedSector, bool) {
	if uint64(sector) >= uint64(len(r.sectors)) {
		return ErasedSector{}, false
	}
	return r.sectors[sector], true
}

// ForPage returns the token covering page, if its sector was erased.
func (r ErasedRange) ForPage(page uint32) (ErasedSector, bool) {
	return r.Sector(SectorNumberFromPage(page))
}

// ReadPage reads one page. Reads are only refused while the part is busy;
// the write enable latch does not matter.
func (d *Device) ReadPage(page uint32) (Page, error) {
	var p Page
	if err := checkPage("read page", page); err != nil {
		return p, err
	}
	err := d.ReadRaw(PageAddress(page), p[:])
	return p, err
}

// WritePage programs page with data. The part must be idle with the write
// enable latch set, and erased must cover page without it having been
// written since. WritePage never erases.
func (d *Device) WritePage(erased ErasedSector, page uint32, data *Page) error {
	if err := checkPage("write page", page); err != nil {
		return err
	}
	switch {
	case erased.e == nil || erased.e.dev != d:
		return fmt.Errorf("%w: page %d has no erase token", ErrNotErased, page)
	case !erased.Contains(page):
		return fmt.Errorf("%w: page %d is not in erased sector %d", ErrNotErased, page, erased.e.sector)
	case d.erased[erased.e.sector] != erased.e:
		return fmt.Errorf("%w: sector %d was erased again after this token", ErrNotErased, erased.e.sector)
	case erased.Programmed(page):
		return fmt.Errorf("%w: page %d already written since erase", ErrNotErased, page)
	}
	if err := d.ProgramPage(PageAddress(page), data); err != nil {
		return err
	}
	erased.e.programmed |= pageBit(page)
	return nil
}

// SectorErase starts erasing sector and returns the token WritePage needs.
// The part must be idle with the write enable latch set. SectorErase does
// not wait for the erase to finish; use WaitReady before the next command.
func (d *Device) SectorErase(sector uint32) (ErasedSector, error) {
	if err := checkSector("erase sector", sector); err != nil {
		return ErasedSector{}, err
	}
	if err := d.EraseSector(SectorAddress(sector)); err != nil {
		return ErasedSector{}, err
	}
	e := &erasure{dev: d, sector: sector}
	d.erased[sector] = e
	return ErasedSector{e: e}, nil
}

// EraseUpToPage erases sectors 0 through the sector holding page, in order.
// The first erase needs the write enable latch already set, like
// SectorErase. Between sectors it waits for the part using wait and sets
// the latch again.
//
// It stops at the first failure. The returned range holds the sectors that
// were erased and the error is an *EraseError naming the sector that was
// not; the erase is not atomic.
func (d *Device) EraseUpToPage(ctx context.Context, page uint32, wait WaitPolicy) (ErasedRange, error) {
	var r ErasedRange
	if err := checkPage("erase up to page", page); err != nil {
		return r, err
	}
	last := SectorNumberFromPage(page)
	for s := uint32(0); s <= last; s++ {
		if s > 0 {
			if err := d.WaitReady(ctx, wait); err != nil {
				return r, &EraseError{Sector: s, Err: err}
			}
			if err := d.EnableWrite(); err != nil {
				return r, &EraseError{Sector: s, Err: err}
			}
		}
		es, err := d.SectorErase(s)
		if err != nil {
			return r, &EraseError{Sector: s, Err: err}
		}
		r.sectors = append(r.sectors, es)
	}
	d.log.WithField("sectors", r.Len()).Debug("flash: erased range")
	return r, nil
}

const readChunk = SectorSize

// ReadAt reads len(p) bytes at off from the address space, a sector at a
// time. It implements io.ReaderAt.
func (d *Device) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, &AddressError{Op: "read at", Value: uint64(off), Reason: "negative offset"}
	}
	for n < len(p) {
		addr := off + int64(n)
		if addr >= AddressSpace {
			return n, io.EOF
		}
		chunk := min(len(p)-n, readChunk)
		if rest := AddressSpace - addr; int64(chunk) > rest {
			chunk = int(rest)
		}
		if err := d.ReadRaw(uint32(addr), p[n:n+chunk]); err != nil {
			return n, err
		}
		n += chunk
	}
	return n, nil
}

var _ io.ReaderAt = (*Device)(nil)
