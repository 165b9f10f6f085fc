package cache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultPurgeInterval = time.Minute

// RunJanitor purges expired entries from the named TTL maps every interval
// until ctx is done.
func RunJanitor(ctx context.Context, c Client, interval time.Duration, logger *logrus.Logger, names ...string) {
	if interval <= 0 {
		interval = defaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range names {
				ttlMap := c.GetTTLMap(name)
				if ttlMap == nil {
					continue
				}
				if purged := ttlMap.Purge(); purged > 0 {
					logger.WithFields(logrus.Fields{
						"map":    name,
						"purged": purged,
						"size":   ttlMap.Len(),
					}).Debug("expired cache entries purged")
				}
			}
		}
	}
}
