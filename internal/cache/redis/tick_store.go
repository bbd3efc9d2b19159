package redis

import (
	"context"
	"time"

	"github.com/open-builders/sponsor-points-backend/internal/common/cache"
	rplatform "github.com/open-builders/sponsor-points-backend/internal/platform/redis"
)

const (
	tickLeaseKey  = "membership:tick:lease"
	tickReportKey = "membership:tick:last"
)

// TickStore holds the cross-instance tick lease and the last tick report.
type TickStore struct {
	client   *rplatform.Client
	reports  *cache.CacheService
	leaseTTL time.Duration
}

func NewTickStore(client *rplatform.Client, leaseTTL time.Duration) *TickStore {
	if leaseTTL <= 0 {
		leaseTTL = 10 * time.Minute
	}
	return &TickStore{client: client, reports: cache.NewCacheService(client), leaseTTL: leaseTTL}
}

// AcquireLease claims the tick for runID. ok is false when another instance holds it.
func (s *TickStore) AcquireLease(ctx context.Context, runID string) (release func(), ok bool, err error) {
	ok, err = s.client.SetNX(ctx, tickLeaseKey, runID, s.leaseTTL).Result()
	if err != nil || !ok {
		return nil, ok, err
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, s.client, []string{tickLeaseKey}, runID).Err()
	}, true, nil
}

// SaveReport stores v as JSON. The report outlives the lease so any instance can serve status.
func (s *TickStore) SaveReport(ctx context.Context, v any) error {
	return s.reports.Set(ctx, tickReportKey, v, 0)
}

// LoadReport decodes the last report into out. found is false when no tick has been recorded yet.
func (s *TickStore) LoadReport(ctx context.Context, out any) (found bool, err error) {
	return s.reports.Lookup(ctx, tickReportKey, out)
}
