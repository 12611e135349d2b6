// Package maintenance reconciles the blob tree with the file registry.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/abduss/cryptovault/internal/blob"
	"github.com/abduss/cryptovault/internal/file"
	"github.com/abduss/cryptovault/internal/metrics"
	"github.com/abduss/cryptovault/internal/quota"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const defaultGracePeriod = 15 * time.Minute

type locator interface {
	ListStoragePaths(ctx context.Context) ([]file.Located, error)
}

type usageLedger interface {
	ActiveUsage(ctx context.Context) ([]quota.Usage, error)
	RecordSnapshot(ctx context.Context, userID uuid.UUID, snap quota.Snapshot, fileCount int64) error
}

type snapshotter interface {
	Snapshot(ctx context.Context, tenant string) (quota.Snapshot, error)
}

// Options tune a sweep.
type Options struct {
	// GracePeriod protects fresh blobs whose metadata may not be committed yet.
	GracePeriod time.Duration
	DryRun      bool
	Logger      *zap.Logger
}

// Drift is a tenant whose stored bytes disagree with its recorded file sizes.
type Drift struct {
	Tenant        string `json:"tenant"`
	StoredBytes   int64  `json:"stored_bytes"`
	RecordedBytes int64  `json:"recorded_bytes"`
}

// Report summarizes one sweep.
type Report struct {
	Tenants           int      `json:"tenants"`
	OrphansRemoved    int      `json:"orphans_removed"`
	OrphanBytes       int64    `json:"orphan_bytes"`
	TempRemoved       int      `json:"temp_removed"`
	MissingBlobs      []string `json:"missing_blobs,omitempty"`
	Drift             []Drift  `json:"drift,omitempty"`
	SnapshotsRecorded int      `json:"snapshots_recorded"`
	DryRun            bool     `json:"dry_run"`
}

// Sweeper removes orphan and stale blobs and records usage history.
type Sweeper struct {
	store   blob.Store
	files   locator
	usage   usageLedger
	tracker snapshotter
	grace   time.Duration
	dryRun  bool
	log     *zap.Logger
	now     func() time.Time
}

// NewSweeper wires a sweeper over the given store and ledgers.
func NewSweeper(store blob.Store, files locator, usage usageLedger, tracker snapshotter, opts Options) *Sweeper {
	s := &Sweeper{
		store:   store,
		files:   files,
		usage:   usage,
		tracker: tracker,
		grace:   opts.GracePeriod,
		dryRun:  opts.DryRun,
		log:     opts.Logger,
		now:     time.Now,
	}
	if s.grace <= 0 {
		s.grace = defaultGracePeriod
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Run performs one full reconciliation pass. Failures for one tenant do not stop the others;
// they are collected into the returned error alongside a partial report.
func (s *Sweeper) Run(ctx context.Context) (Report, error) {
	report := Report{DryRun: s.dryRun}
	var result *multierror.Error

	located, err := s.files.ListStoragePaths(ctx)
	if err != nil {
		return report, fmt.Errorf("load recorded paths: %w", err)
	}
	recorded := make(map[string]file.Located, len(located))
	for _, l := range located {
		if l.Status == file.StatusActive {
			recorded[l.StoragePath] = l
		}
	}

	tenants, err := s.store.Tenants(ctx)
	if err != nil {
		return report, fmt.Errorf("list tenants: %w", err)
	}
	report.Tenants = len(tenants)

	present := make(map[string]struct{})
	listed := make(map[string]bool, len(tenants))
	cutoff := s.now().Add(-s.grace)

	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		objects, err := s.store.List(ctx, blob.ActivePrefix(tenant))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("list %s: %w", tenant, err))
			continue
		}
		listed[tenant] = true

		for _, obj := range objects {
			present[obj.Path] = struct{}{}
			if _, ok := recorded[obj.Path]; ok || obj.ModTime.After(cutoff) {
				continue
			}
			if err := s.remove(ctx, obj.Path); err != nil {
				result = multierror.Append(result, err)
				continue
			}
			report.OrphansRemoved++
			report.OrphanBytes += obj.Size
			s.log.Info("orphan blob removed", zap.String("path", obj.Path), zap.Int64("size", obj.Size), zap.Bool("dry_run", s.dryRun))
		}

		temps, err := s.store.List(ctx, blob.TempPrefix(tenant))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("list temp area of %s: %w", tenant, err))
			continue
		}
		for _, obj := range temps {
			if obj.ModTime.After(cutoff) {
				continue
			}
			if err := s.remove(ctx, obj.Path); err != nil {
				result = multierror.Append(result, err)
				continue
			}
			report.TempRemoved++
		}
	}
	if !s.dryRun {
		metrics.OrphansRemoved(report.OrphansRemoved)
	}

	for p, l := range recorded {
		tenant, err := blob.Tenant(p)
		if err != nil || !listed[tenant] {
			continue
		}
		if _, ok := present[p]; ok {
			continue
		}
		report.MissingBlobs = append(report.MissingBlobs, p)
		metrics.DataInconsistency("missing_blob")
		s.log.Error("data inconsistency",
			zap.String("kind", "missing_blob"),
			zap.String("file_id", l.ID.String()),
			zap.String("owner_id", l.OwnerID.String()),
			zap.String("path", p),
		)
	}

	if err := s.reconcileUsage(ctx, &report); err != nil {
		result = multierror.Append(result, err)
	}

	return report, result.ErrorOrNil()
}

// reconcileUsage recomputes every tenant's usage, compares it to the recorded sizes
// and stores a snapshot.
func (s *Sweeper) reconcileUsage(ctx context.Context, report *Report) error {
	usages, err := s.usage.ActiveUsage(ctx)
	if err != nil {
		return fmt.Errorf("load recorded usage: %w", err)
	}

	var result *multierror.Error
	for _, u := range usages {
		snap, err := s.tracker.Snapshot(ctx, u.Username)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("measure %s: %w", u.Username, err))
			continue
		}
		if snap.UsedBytes != u.Bytes {
			report.Drift = append(report.Drift, Drift{Tenant: u.Username, StoredBytes: snap.UsedBytes, RecordedBytes: u.Bytes})
			metrics.DataInconsistency("usage_drift")
			s.log.Warn("usage drift",
				zap.String("tenant", u.Username),
				zap.Int64("stored_bytes", snap.UsedBytes),
				zap.Int64("recorded_bytes", u.Bytes),
			)
		}
		if s.dryRun {
			continue
		}
		if err := s.usage.RecordSnapshot(ctx, u.UserID, snap, u.FileCount); err != nil {
			result = multierror.Append(result, fmt.Errorf("record snapshot for %s: %w", u.Username, err))
			continue
		}
		report.SnapshotsRecorded++
	}
	return result.ErrorOrNil()
}

func (s *Sweeper) remove(ctx context.Context, p string) error {
	if s.dryRun {
		return nil
	}
	if err := s.store.Remove(ctx, p); err != nil {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}
