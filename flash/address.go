package flash

const (
	PageSize       = 256
	SectorSize     = 4096
	PagesPerSector = SectorSize / PageSize

	// AddressSpace is the size of the 4-byte address range.
	AddressSpace = 1 << 32
	PageCount    = AddressSpace / PageSize
	SectorCount  = AddressSpace / SectorSize

	// MaxReadLength is the longest single read transaction.
	MaxReadLength = 0xFFFF
)

// Page is one programmable unit of the address space.
type Page [PageSize]byte

// Erased returns a page in the erased state, every bit set.
func Erased() Page {
	var p Page
	for i := range p {
		p[i] = 0xFF
	}
	return p
}

// PageAddress returns the byte address of the first byte of page.
func PageAddress(page uint32) uint32 {
	return page * PageSize
}

// SectorAddress returns the byte address of the first byte of sector.
func SectorAddress(sector uint32) uint32 {
	return sector * SectorSize
}

// SectorNumberFromPage returns the sector that contains page.
func SectorNumberFromPage(page uint32) uint32 {
	return page / PagesPerSector
}

// FirstPageOfSector returns the lowest page number inside sector.
func FirstPageOfSector(sector uint32) uint32 {
	return sector * PagesPerSector
}

func checkPage(op string, page uint32) error {
	if page >= PageCount {
		return &AddressError{Op: op, Value: uint64(page), Reason: "page out of range"}
	}
	return nil
}

func checkSector(op string, sector uint32) error {
	if sector >= SectorCount {
		return &AddressError{Op: op, Value: uint64(sector), Reason: "sector out of range"}
	}
	return nil
}
