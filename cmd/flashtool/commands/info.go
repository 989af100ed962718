package commands

import (
	"fmt"
	"io"

	"github.com/rabidaudio/tonttuflash/flash"
)

// RunInfo prints the identity and status registers of the part.
func RunInfo(s *Session, w io.Writer) error {
	id, err := s.Dev.ReadDeviceID()
	if err != nil {
		return fmt.Errorf("failed to read device id: %w", err)
	}
	sr1, err := s.Dev.Status()
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	sr2, err := s.Dev.ReadStatusRegister(flash.Status2)
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	sr3, err := s.Dev.ReadStatusRegister(flash.Status3)
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	addressing := "3-byte"
	if sr3&1 != 0 {
		addressing = "4-byte"
	}
	fmt.Fprintf(w, "Device ID:   0x%02X", id)
	if id == flash.DeviceID {
		fmt.Fprintln(w, " (supported)")
	} else {
		fmt.Fprintln(w, " (unknown part)")
	}
	fmt.Fprintf(w, "Settings:    %v\n", s.Dev.Settings())
	fmt.Fprintf(w, "State:       %v\n", sr1.State())
	fmt.Fprintf(w, "Addressing:  %s\n", addressing)
	fmt.Fprintf(w, "Status 1:    %v\n", sr1)
	fmt.Fprintf(w, "Status 2:    %08b\n", sr2)
	fmt.Fprintf(w, "Status 3:    %08b\n", sr3)
	fmt.Fprintf(w, "Geometry:    %d sectors of %d bytes, %d pages of %d bytes\n",
		uint64(flash.SectorCount), flash.SectorSize, uint64(flash.PageCount), flash.PageSize)
	return nil
}
