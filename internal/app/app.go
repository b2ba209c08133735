package app

import (
	"context"
	"fmt"
	"log/slog"

	"MangaVote/internal/category"
	"MangaVote/internal/config"
	"MangaVote/internal/domain"
	"MangaVote/internal/infrastructure/guard"
	"MangaVote/internal/infrastructure/mangadex"
	"MangaVote/internal/infrastructure/scheduler"
	"MangaVote/internal/infrastructure/storage"
	"MangaVote/internal/logging"
	"MangaVote/internal/ports"
	"MangaVote/internal/ratecontrol"
	"MangaVote/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  *storage.Store
	valkey *guard.ValkeyGuard

	Pipeline    *usecase.Pipeline
	Engine      *category.Engine
	Voting      *usecase.Voting
	Periods     *usecase.Periods
	Leaderboard *usecase.LeaderboardService
}

// New opens the store, connects optional collaborators and builds every use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	}, baseLogger.With("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a := &Application{cfg: cfg, logger: baseLogger, store: store}

	var submissionGuard ports.SubmissionGuard = guard.Noop{}
	if v := cfg.Guard.Valkey; v.Address != "" {
		a.valkey, err = guard.NewValkeyGuard(ctx, guard.Options{
			Address:  v.Address,
			Password: v.Password,
			TLS:      v.TLS,
			TTL:      v.TTL,
		}, baseLogger.With("component", "guard"))
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect guard: %w", err)
		}
		submissionGuard = a.valkey
	}

	up := cfg.Upstream
	client := mangadex.NewClient(mangadex.Options{
		BaseURL:   up.BaseURL,
		UserAgent: up.UserAgent,
		Timeout:   up.Timeout,
	}, baseLogger.With("component", "mangadex"))

	rc := cfg.RateControl
	a.Pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		API:        mangadex.NewCatalog(client, up.CoverBaseURL),
		Repository: store,
		Listing: ports.ListingQuery{
			Limit:             up.PageSize,
			IncludedTags:      up.IncludedTags,
			IncludedTagsMode:  up.IncludedTagsMode,
			OriginalLanguages: up.OriginalLanguages,
			Includes:          up.Includes,
		},
		ChunkSize: up.StatsChunkSize,
		RateConfig: ratecontrol.Config{
			BaseDelay:        rc.BaseDelay,
			MaxDelay:         rc.MaxDelay,
			Step:             rc.Step,
			SuccessThreshold: rc.SuccessThreshold,
		},
		ChunkBackoff: rc.ChunkBackoffFactor,
		Logger:       baseLogger.With("component", "sync"),
	})

	a.Engine = category.NewEngine(category.Config{
		AdaptationTag:   cfg.Categories.AdaptationTag,
		AwardWinningTag: cfg.Categories.AwardWinningTag,
		TopRankedLimit:  cfg.Categories.TopRankedLimit,
	}, store)

	a.Voting = usecase.NewVoting(usecase.VotingDeps{
		Periods:     store,
		Submissions: store,
		Validator:   a.Engine,
		Guard:       submissionGuard,
		Rules: domain.BallotRules{
			MaxChoices: cfg.Voting.MaxChoices,
			MinAge:     cfg.Voting.MinAge,
			MaxAge:     cfg.Voting.MaxAge,
			Genders:    cfg.Voting.Genders,
		},
		Logger: baseLogger.With("component", "voting"),
	})
	a.Periods = usecase.NewPeriods(store)
	a.Leaderboard = usecase.NewLeaderboardService(store)

	return a, nil
}

// Scheduler builds the monthly trigger bound to the pipeline.
func (a *Application) Scheduler() (*usecase.Scheduler, error) {
	s := a.cfg.Scheduler
	driver, err := scheduler.NewMonthlyScheduler(scheduler.Schedule{
		DayOfMonth: s.DayOfMonth,
		Hour:       s.Hour,
		Minute:     s.Minute,
		Location:   s.Location(),
	})
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	return usecase.NewScheduler(driver, a.Pipeline, a.logger.With("component", "scheduler")), nil
}

// Close releases the store and the guard connection.
func (a *Application) Close() error {
	if a.valkey != nil {
		a.valkey.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
