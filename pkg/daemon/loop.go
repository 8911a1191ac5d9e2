package daemon

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/clock"
)

// lateThreshold is how far a tick may slip before it is worth logging.
// Occasional slips are normal under load; a stream of them means the
// host is starving the control loop.
const lateThreshold = 100 * time.Millisecond

// RunLoop drives the control core until ctx is canceled. It is the only
// goroutine that touches the core state; queued commands run between
// steps, on the same goroutine.
func (c *Core) RunLoop(ctx context.Context, src clock.Source) {
	ticker := time.NewTicker(TickMS * time.Millisecond)
	defer ticker.Stop()

	logrus.Debug("control loop starts")

	var lastLate time.Time
	last := src.Now()

	for {
		select {
		case <-ctx.Done():
			logrus.Debug("control loop stopped")
			return
		case fn := <-c.cmds:
			fn(src.Now())
		case <-ticker.C:
			now := src.Now()
			if slip := time.Duration(now-last)*time.Millisecond - TickMS*time.Millisecond; slip > lateThreshold {
				if time.Since(lastLate) > time.Minute {
					logrus.WithField("slipMs", int64(slip/time.Millisecond)).
						Warn("control tick late")
					lastLate = time.Now()
				}
			}
			last = now
			c.Step(now)
		}
	}
}
