package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/valkyrie/internal/observability"
)

// RunPoolMonitor publishes Redis pool statistics every interval until ctx is cancelled.
func RunPoolMonitor(ctx context.Context, client *redis.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last redis.PoolStats

	for {
		stats := client.PoolStats()

		observability.RedisPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns))
		observability.RedisPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns))
		observability.RedisPoolConnections.WithLabelValues("stale").Set(float64(stats.StaleConns))

		// go-redis counters are cumulative; export deltas.
		if stats.Hits > last.Hits {
			observability.RedisPoolHits.Add(float64(stats.Hits - last.Hits))
		}
		if stats.Misses > last.Misses {
			observability.RedisPoolMisses.Add(float64(stats.Misses - last.Misses))
		}
		if stats.Timeouts > last.Timeouts {
			observability.RedisPoolTimeouts.Add(float64(stats.Timeouts - last.Timeouts))
		}
		last = *stats

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
