// This file implements periodic collection: a self-rescheduling timer that
// sweeps the store at a fixed interval until cancelled.
package gc

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Schedule runs collection passes over the store every interval. The next
// pass is scheduled after the previous one finishes, success or failure, so
// a slow sweep never overlaps itself. The returned cancel function stops
// future passes; it is safe to call more than once.
func Schedule(storeDir string, interval time.Duration, opts Options) (cancel func()) {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	stop := make(chan struct{})
	var once sync.Once

	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		for {
			select {
			case <-stop:
				return
			case <-timer.C:
			}

			if _, err := Run(context.Background(), storeDir, opts); err != nil {
				log.WithError(err).Warn("scheduled garbage collection failed")
			}
			timer.Reset(interval)
		}
	}()

	return func() {
		once.Do(func() { close(stop) })
	}
}
