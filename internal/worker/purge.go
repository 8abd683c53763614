package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Purger removes rows whose retention has lapsed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunPurger calls PurgeExpired once immediately and then every interval
// until ctx is done.
func RunPurger(ctx context.Context, p Purger, interval time.Duration, log logrus.FieldLogger) {
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	purge := func() {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			log.WithError(err).Warn("worker: purge expired rows")
			return
		}
		if n > 0 {
			log.WithField("rows", n).Info("worker: purged expired rows")
		}
	}

	purge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
