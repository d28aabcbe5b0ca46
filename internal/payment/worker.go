package payment

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunExpiryWorker expires stale links every interval until ctx is done.
// The returned channel is closed once the loop has exited.
func RunExpiryWorker(ctx context.Context, svc *Service, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := svc.ExpireStale(ctx, svc.now())
				if err != nil {
					if ctx.Err() == nil {
						svc.log.Error("süresi dolan ödeme linkleri kapatılamadı", zap.Error(err))
					}
					continue
				}
				if n > 0 {
					svc.log.Info("süresi dolan ödeme linkleri kapatıldı", zap.Int64("count", n))
				}
			}
		}
	}()

	return done
}
