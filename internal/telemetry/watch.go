package telemetry

import (
	"context"
	"time"

	"github.com/rjboer/gohackrf/hackrf"
)

// Source provides engine statistics; *hackrf.Device satisfies it.
type Source interface {
	Stats() hackrf.Stats
}

// Watch polls src and reports a sample per interval while a session is active,
// plus one final sample when it returns to off. interval is consulted before
// every wait so configuration changes apply on the next tick. Watch returns
// when ctx is done.
func Watch(ctx context.Context, src Source, r Reporter, interval func() time.Duration) error {
	last := hackrf.ModeOff
	timer := time.NewTimer(interval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-timer.C:
			st := src.Stats()
			if st.Mode != hackrf.ModeOff || last != hackrf.ModeOff {
				r.Report(SampleFromStats(st, now))
			}
			last = st.Mode
			timer.Reset(interval())
		}
	}
}
