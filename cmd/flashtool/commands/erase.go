package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rabidaudio/tonttuflash/flash"
)

// RunErase erases one sector and waits for the part to finish.
func RunErase(ctx context.Context, s *Session, sector uint32) error {
	if err := s.Dev.EnableWrite(); err != nil {
		return err
	}
	if _, err := s.Dev.SectorErase(sector); err != nil {
		return err
	}
	if err := s.Dev.WaitReady(ctx, s.Wait); err != nil {
		return fmt.Errorf("erase of sector %d: %w", sector, err)
	}
	s.Log.Infof("erased sector %d", sector)
	return nil
}

// RunEraseTo erases every sector from 0 up to the one holding page and
// returns how many were erased.
func RunEraseTo(ctx context.Context, s *Session, page uint32) (int, error) {
	if err := s.Dev.EnableWrite(); err != nil {
		return 0, err
	}
	erased, err := s.Dev.EraseUpToPage(ctx, page, s.Wait)
	if err != nil {
		var eerr *flash.EraseError
		if errors.As(err, &eerr) {
			s.Log.WithField("erased", erased.Len()).Warnf("erase stopped at sector %d", eerr.Sector)
		}
		return erased.Len(), err
	}
	if err := s.Dev.WaitReady(ctx, s.Wait); err != nil {
		return erased.Len(), err
	}
	s.Log.Infof("erased sectors 0..%d", erased.Len()-1)
	return erased.Len(), nil
}
