package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
	"MangaVote/internal/ratecontrol"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// PipelineDeps wires all driven adapters into the catalog synchronization pipeline.
type PipelineDeps struct {
	API        ports.CatalogAPI
	Repository ports.CatalogRepository
	Listing    ports.ListingQuery
	ChunkSize  int
	RateConfig ratecontrol.Config
	// ChunkBackoff multiplies the delay after a failed statistics chunk.
	ChunkBackoff float64
	Sleep        SleepFunc
	Logger       *slog.Logger
}

// Pipeline implements the two-phase catalog ingestion: paginated listing, then
// chunked rating enrichment, then one idempotent merge. Request failures are retried
// indefinitely with backoff; only context cancellation or a store failure ends a run early.
type Pipeline struct {
	api          ports.CatalogAPI
	repository   ports.CatalogRepository
	listing      ports.ListingQuery
	chunkSize    int
	rateConfig   ratecontrol.Config
	chunkBackoff float64
	sleep        SleepFunc
	logger       *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	listing := deps.Listing
	if listing.Limit <= 0 {
		listing.Limit = 100
	}
	chunkSize := deps.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}
	chunkBackoff := deps.ChunkBackoff
	if chunkBackoff <= 1 {
		chunkBackoff = 1.5
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return &Pipeline{
		api:          deps.API,
		repository:   deps.Repository,
		listing:      listing,
		chunkSize:    chunkSize,
		rateConfig:   deps.RateConfig,
		chunkBackoff: chunkBackoff,
		sleep:        sleep,
		logger:       deps.Logger,
	}
}

// Synchronize runs one full ingestion cycle. Runs must not overlap.
func (p *Pipeline) Synchronize(ctx context.Context) (domain.MergeResult, error) {
	if p.api == nil || p.repository == nil {
		return domain.MergeResult{}, fmt.Errorf("pipeline misconfigured")
	}

	start := time.Now()
	controller := ratecontrol.New(p.rateConfig)

	entries, err := p.fetchListing(ctx, controller)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("fetch listing: %w", err)
	}

	controller.Reset()
	ratings, err := p.fetchRatings(ctx, controller, entries)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("fetch ratings: %w", err)
	}

	for i := range entries {
		entries[i].Score = ratings[entries[i].ID]
	}

	result, err := p.repository.UpsertEntries(ctx, entries)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("merge catalog: %w", err)
	}

	p.info("catalog merge finished",
		"matched", result.Matched,
		"modified", result.Modified,
		"upserted", result.Upserted,
		"inserted", result.Inserted,
		"duration", time.Since(start))
	return result, nil
}

// fetchListing pages through the upstream listing. Failed pages are retried at the same offset.
func (p *Pipeline) fetchListing(ctx context.Context, controller *ratecontrol.Controller) ([]domain.CatalogEntry, error) {
	var (
		collected []domain.CatalogEntry
		seen      = map[string]int{}
		received  int
	)

	for {
		query := p.listing
		query.Offset = received

		p.debug("fetch listing page", "offset", received)
		requestStart := time.Now()
		page, err := p.api.ListEntries(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			controller.OnFailure()
			p.warn("listing page failed", "offset", received, "delay", controller.Delay(), "error", err)
			if err := p.sleep(ctx, controller.Delay()); err != nil {
				return nil, err
			}
			continue
		}

		for _, entry := range page.Entries {
			if idx, ok := seen[entry.ID]; ok {
				collected[idx] = entry
				continue
			}
			seen[entry.ID] = len(collected)
			collected = append(collected, entry)
		}
		received += query.Limit

		p.info("fetched listing page",
			"received", min(received, page.Total),
			"total", page.Total,
			"took", time.Since(requestStart))

		if controller.OnSuccess() {
			p.debug("adjusted request delay", "delay", controller.Delay())
		}

		if received >= page.Total {
			return collected, nil
		}

		if err := p.sleep(ctx, controller.Delay()); err != nil {
			return nil, err
		}
	}
}

// fetchRatings enriches entries chunk by chunk. A failed chunk rewinds and is retried.
func (p *Pipeline) fetchRatings(ctx context.Context, controller *ratecontrol.Controller, entries []domain.CatalogEntry) (map[string]float64, error) {
	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}

	ratings := make(map[string]float64, len(ids))
	for i := 0; i < len(ids); i += p.chunkSize {
		end := min(i+p.chunkSize, len(ids))
		chunk := ids[i:end]

		p.debug("fetch ratings", "from", i+1, "to", end)
		chunkRatings, err := p.api.Ratings(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			controller.Escalate(p.chunkBackoff)
			p.warn("ratings chunk failed", "from", i+1, "to", end, "delay", controller.Delay(), "error", err)
			if err := p.sleep(ctx, controller.Delay()); err != nil {
				return nil, err
			}
			i -= p.chunkSize
			continue
		}

		for _, id := range chunk {
			ratings[id] = chunkRatings[id]
		}
		controller.OnSuccess()

		if end < len(ids) {
			if err := p.sleep(ctx, controller.Delay()); err != nil {
				return nil, err
			}
		}
	}

	return ratings, nil
}

// Sleep blocks for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
