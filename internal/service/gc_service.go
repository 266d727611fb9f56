package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tabishimam2/reciepe-app-api/internal/metrics"
	"github.com/tabishimam2/reciepe-app-api/internal/repository"
	"github.com/tabishimam2/reciepe-app-api/internal/storage"
)

// GarbageCollector removes stored recipe images that no recipe references.
// Orphans appear when an upload is stored but its recipe update fails, or
// when deleting a replaced image fails. Runs are started on demand by the
// admin CLI.
type GarbageCollector struct {
	recipes repository.RecipeRepository
	images  storage.Backend
	metrics *metrics.Metrics
	logger  zerolog.Logger
	config  GCConfig
	now     func() time.Time
}

// GCConfig contains garbage collection configuration.
type GCConfig struct {
	// GracePeriod is how long an image must exist before it can be
	// collected. It covers uploads whose recipe row is not yet written.
	GracePeriod time.Duration

	// BatchSize is the maximum number of images to delete per run.
	BatchSize int

	// DryRun logs what would be deleted without actually deleting.
	DryRun bool
}

// DefaultGCConfig returns sensible defaults.
func DefaultGCConfig() GCConfig {
	return GCConfig{
		GracePeriod: 24 * time.Hour,
		BatchSize:   1000,
	}
}

// errBatchFull stops a storage listing once a batch is collected.
var errBatchFull = errors.New("gc batch full")

// NewGarbageCollector creates a new garbage collector. A zero BatchSize
// falls back to DefaultGCConfig. m may be nil.
func NewGarbageCollector(
	recipes repository.RecipeRepository,
	images storage.Backend,
	m *metrics.Metrics,
	config GCConfig,
	logger zerolog.Logger,
) *GarbageCollector {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultGCConfig().BatchSize
	}
	return &GarbageCollector{
		recipes: recipes,
		images:  images,
		metrics: m,
		logger:  logger.With().Str("service", "gc").Logger(),
		config:  config,
		now:     time.Now,
	}
}

// GCResult contains the result of a garbage collection run.
type GCResult struct {
	// Scanned is the number of stored images inspected.
	Scanned int

	// ImagesDeleted is the number of orphans deleted (or that would be,
	// in dry-run mode).
	ImagesDeleted int

	// BytesFreed is the total size of the deleted orphans.
	BytesFreed int64

	// Errors is the number of orphans that could not be deleted.
	Errors int

	// HasMore reports that the batch filled up before the listing ended.
	HasMore bool

	// Duration is how long the run took.
	Duration time.Duration
}

// RunOnce executes a single garbage collection run.
func (gc *GarbageCollector) RunOnce(ctx context.Context) (GCResult, error) {
	start := gc.now()
	result := GCResult{}

	gc.logger.Debug().Msg("Starting garbage collection run")

	orphans, err := gc.findOrphans(ctx, start, &result)
	if err != nil {
		return result, err
	}

	for _, obj := range orphans {
		if gc.config.DryRun {
			gc.logger.Info().
				Str("key", obj.Key).
				Int64("size", obj.Size).
				Msg("[DRY RUN] Would delete orphan image")
			result.ImagesDeleted++
			result.BytesFreed += obj.Size
			continue
		}

		if err := gc.images.Delete(ctx, obj.Key); err != nil {
			gc.logger.Error().Err(err).Str("key", obj.Key).Msg("Failed to delete orphan image")
			result.Errors++
			continue
		}

		gc.logger.Debug().Str("key", obj.Key).Int64("size", obj.Size).Msg("Deleted orphan image")
		result.ImagesDeleted++
		result.BytesFreed += obj.Size
	}

	result.Duration = gc.now().Sub(start)
	if !gc.config.DryRun {
		gc.metrics.RecordGCRun(result.Duration, result.ImagesDeleted, result.BytesFreed)
	}

	gc.logger.Info().
		Int("scanned", result.Scanned).
		Int("images_deleted", result.ImagesDeleted).
		Int64("bytes_freed", result.BytesFreed).
		Int("errors", result.Errors).
		Bool("has_more", result.HasMore).
		Dur("duration", result.Duration).
		Msg("Garbage collection run completed")

	return result, nil
}

// findOrphans lists unreferenced images older than the grace period, up to
// one batch.
func (gc *GarbageCollector) findOrphans(ctx context.Context, start time.Time, result *GCResult) ([]storage.ObjectInfo, error) {
	cutoff := start.Add(-gc.config.GracePeriod)

	var orphans []storage.ObjectInfo
	err := gc.images.List(ctx, storage.RecipeImagePrefix, func(obj storage.ObjectInfo) error {
		result.Scanned++
		if obj.LastModified.After(cutoff) {
			return nil
		}

		inUse, err := gc.recipes.ImageKeyInUse(ctx, obj.Key)
		if err != nil {
			return err
		}
		if inUse {
			return nil
		}

		if len(orphans) == gc.config.BatchSize {
			result.HasMore = true
			return errBatchFull
		}
		orphans = append(orphans, obj)
		return nil
	})
	if err != nil && !errors.Is(err, errBatchFull) {
		return nil, fmt.Errorf("%w: list images: %v", ErrInternalError, err)
	}
	return orphans, nil
}
