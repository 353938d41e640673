package workers

import (
	"context"
	"log/slog"
	"time"

	application "gridgate/contexts/market-exchange/outgoing-message-service/application"
	"gridgate/contexts/market-exchange/outgoing-message-service/ports"
)

const (
	defaultRetentionWindow = 30 * 24 * time.Hour
	defaultSweepBatchSize  = 500
)

// RetentionSweeper purges bundles dequeued longer ago than the retention
// window, together with their message rows and blob payloads, and reclaims
// orphaned messages whose enqueue never completed its attach (those rows
// belong to no bundle, so the bundle purge cannot reach them). Each batch is
// an independent transaction: a failure mid-sweep keeps earlier batches
// deleted and retries the remainder on the next run.
type RetentionSweeper struct {
	Messages        ports.OutgoingMessageRepository
	Bundles         ports.BundleRepository
	Blobs           ports.BlobStore
	Clock           ports.Clock
	RetentionWindow time.Duration
	BatchSize       int
	Logger          *slog.Logger
}

func (s RetentionSweeper) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(s.Logger)
	window := s.RetentionWindow
	if window <= 0 {
		window = defaultRetentionWindow
	}
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	cutoff := s.Clock.Now().UTC().Add(-window)

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}
		bundles, err := s.Bundles.DequeuedBefore(ctx, cutoff, batchSize)
		if err != nil {
			return totalDeleted, err
		}
		if len(bundles) == 0 {
			break
		}

		bundleIDs := make([]string, 0, len(bundles))
		refs := make([]string, 0, len(bundles))
		for _, bundle := range bundles {
			bundleIDs = append(bundleIDs, bundle.ID)
			if bundle.DocumentRef != "" {
				refs = append(refs, bundle.DocumentRef)
			}
			messages, err := s.Messages.MessagesForBundle(ctx, bundle.ID)
			if err != nil {
				return totalDeleted, err
			}
			for _, message := range messages {
				refs = append(refs, message.PayloadRef)
			}
		}

		// Blobs go first: a blob-store failure aborts the batch and leaves
		// the rows for the next run instead of orphaning payloads.
		if err := s.Blobs.Delete(ctx, refs); err != nil {
			return totalDeleted, err
		}
		deleted, err := s.Bundles.PurgeBundles(ctx, bundleIDs)
		if err != nil {
			return totalDeleted, err
		}
		totalDeleted += deleted

		logger.Info("retention batch purged",
			"event", "retention_batch_purged",
			"module", "market-exchange/outgoing-message-service",
			"layer", "worker",
			"bundle_count", len(bundleIDs),
			"cutoff", cutoff.Format(time.RFC3339),
		)
		if len(bundles) < batchSize {
			break
		}
	}

	reclaimed, err := s.reclaimOrphans(ctx, cutoff, batchSize, logger)
	if err != nil {
		return totalDeleted, err
	}
	return totalDeleted + reclaimed, nil
}

// reclaimOrphans deletes unattached message rows and their payload blobs.
// The retention cutoff doubles as the orphan grace period, so an in-flight
// enqueue is never raced.
func (s RetentionSweeper) reclaimOrphans(
	ctx context.Context,
	cutoff time.Time,
	batchSize int,
	logger *slog.Logger,
) (int, error) {
	totalReclaimed := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalReclaimed, err
		}
		orphans, err := s.Messages.UnassignedBefore(ctx, cutoff, batchSize)
		if err != nil {
			return totalReclaimed, err
		}
		if len(orphans) == 0 {
			return totalReclaimed, nil
		}

		messageIDs := make([]string, 0, len(orphans))
		refs := make([]string, 0, len(orphans))
		for _, message := range orphans {
			messageIDs = append(messageIDs, message.ID)
			refs = append(refs, message.PayloadRef)
		}
		if err := s.Blobs.Delete(ctx, refs); err != nil {
			return totalReclaimed, err
		}
		reclaimed, err := s.Messages.DeleteMessages(ctx, messageIDs)
		if err != nil {
			return totalReclaimed, err
		}
		totalReclaimed += reclaimed

		logger.Info("orphaned messages reclaimed",
			"event", "retention_orphans_reclaimed",
			"module", "market-exchange/outgoing-message-service",
			"layer", "worker",
			"message_count", len(messageIDs),
			"cutoff", cutoff.Format(time.RFC3339),
		)
		if len(orphans) < batchSize {
			return totalReclaimed, nil
		}
	}
}
