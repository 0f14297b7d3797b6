package metrics

import (
	"context"
	"database/sql"
	"time"
)

// ObserveDBStats samples connection pool stats into DatabaseConnectionsOpen
func ObserveDBStats(db *sql.DB) {
	s := db.Stats()
	m := Get()
	m.DatabaseConnectionsOpen.WithLabelValues("in_use").Set(float64(s.InUse))
	m.DatabaseConnectionsOpen.WithLabelValues("idle").Set(float64(s.Idle))
}

// CollectDBStats samples the pool every interval until ctx is done
func CollectDBStats(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ObserveDBStats(db)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
