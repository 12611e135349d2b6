// Package quota measures tenant usage on the blob store and admits uploads against a fixed limit.
package quota

import (
	"context"
	"fmt"
	"math"

	"github.com/abduss/cryptovault/internal/blob"
)

const megabyte = 1024 * 1024

// sizer is the part of blob.Store the tracker depends on.
type sizer interface {
	FolderSize(ctx context.Context, prefix string) (int64, error)
}

// Snapshot is a point-in-time usage report. It is never cached.
type Snapshot struct {
	UsedBytes       int64   `json:"used_bytes"`
	QuotaBytes      int64   `json:"quota_bytes"`
	RemainingBytes  int64   `json:"remaining_bytes"`
	DeletedBytes    int64   `json:"deleted_bytes"`
	UsagePercentage float64 `json:"usage_percentage"`
}

// Tracker enforces a single per-tenant byte limit.
type Tracker struct {
	store sizer
	limit int64
}

// NewTracker returns a tracker enforcing limit bytes per tenant.
func NewTracker(store sizer, limit int64) *Tracker {
	return &Tracker{store: store, limit: limit}
}

// Limit returns the per-tenant limit in bytes.
func (t *Tracker) Limit() int64 {
	return t.limit
}

// Usage sums the tenant's active blobs. Quarantined blobs are not counted.
func (t *Tracker) Usage(ctx context.Context, tenant string) (int64, error) {
	if err := blob.ValidateTenant(tenant); err != nil {
		return 0, err
	}
	used, err := t.store.FolderSize(ctx, blob.ActivePrefix(tenant))
	if err != nil {
		return 0, fmt.Errorf("measure usage for %s: %w", tenant, err)
	}
	return used, nil
}

// Admit reports whether incoming more bytes fit within the tenant's limit.
func (t *Tracker) Admit(ctx context.Context, tenant string, incoming int64) error {
	if incoming < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, incoming)
	}
	used, err := t.Usage(ctx, tenant)
	if err != nil {
		return err
	}
	return t.check(used, incoming)
}

// Recheck verifies usage already on disk still fits, after a blob has landed.
func (t *Tracker) Recheck(ctx context.Context, tenant string) error {
	used, err := t.Usage(ctx, tenant)
	if err != nil {
		return err
	}
	return t.check(used, 0)
}

func (t *Tracker) check(used, incoming int64) error {
	if incoming > t.limit || used > t.limit-incoming {
		return fmt.Errorf("%w: quota %dMB, current usage %dMB, upload %dMB",
			ErrQuotaExceeded, t.limit/megabyte, used/megabyte, ceilMB(incoming))
	}
	return nil
}

// Snapshot reports current usage for the tenant.
func (t *Tracker) Snapshot(ctx context.Context, tenant string) (Snapshot, error) {
	used, err := t.Usage(ctx, tenant)
	if err != nil {
		return Snapshot{}, err
	}
	deleted, err := t.store.FolderSize(ctx, blob.DeletedPrefix(tenant))
	if err != nil {
		return Snapshot{}, fmt.Errorf("measure quarantine for %s: %w", tenant, err)
	}

	snap := Snapshot{
		UsedBytes:      used,
		QuotaBytes:     t.limit,
		RemainingBytes: max(t.limit-used, 0),
		DeletedBytes:   deleted,
	}
	if t.limit > 0 {
		snap.UsagePercentage = math.Round(float64(used)/float64(t.limit)*10000) / 100
	}
	return snap, nil
}

func ceilMB(n int64) int64 {
	return (n + megabyte - 1) / megabyte
}
