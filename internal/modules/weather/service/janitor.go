package service

import (
	"context"
	"time"
)

// PurgeExpired removes sessions whose TTL has elapsed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repository.PurgeExpired(ctx, s.now())
}

// RunJanitor purges expired sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("purge expired sessions failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
