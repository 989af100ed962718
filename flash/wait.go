package flash

import (
	"context"
	"fmt"
	"time"
)

// WaitPolicy bounds how long WaitReady polls the busy bit. The driver never
// waits on its own; callers pick the bound that suits the operation, e.g. a
// few milliseconds for a page program, tens of milliseconds for an erase.
type WaitPolicy struct {
	// Attempts is the number of status reads; at least one is made.
	Attempts int
	// Interval is the pause between reads.
	Interval time.Duration
}

// WaitReady polls status register 1 until the part is no longer busy, the
// policy runs out (ErrTimeout) or ctx is done.
func (d *Device) WaitReady(ctx context.Context, p WaitPolicy) error {
	attempts := max(p.Attempts, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for i := 1; ; i++ {
		busy, err := d.Busy()
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		if i >= attempts {
			return fmt.Errorf("%w: still busy after %d polls", ErrTimeout, attempts)
		}
		if timer == nil {
			timer = time.NewTimer(p.Interval)
		} else {
			timer.Reset(p.Interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
