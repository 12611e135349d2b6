package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type sweep interface {
	Run(ctx context.Context) (Report, error)
}

// RunEvery sweeps once per interval until ctx is cancelled.
func RunEvery(ctx context.Context, interval time.Duration, sweeper sweep, log *zap.Logger) {
	if interval <= 0 {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := sweeper.Run(ctx)
			if err != nil {
				log.Error("reconciliation sweep", zap.Error(err))
			}
			log.Info("reconciliation sweep finished",
				zap.Int("tenants", report.Tenants),
				zap.Int("orphans_removed", report.OrphansRemoved),
				zap.Int("temp_removed", report.TempRemoved),
				zap.Int("missing_blobs", len(report.MissingBlobs)),
				zap.Int("drift", len(report.Drift)),
			)
		}
	}
}
