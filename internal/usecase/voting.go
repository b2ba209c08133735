package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"MangaVote/internal/domain"
	"MangaVote/internal/ports"
)

// IDValidator reports candidates that fail their category predicate.
type IDValidator interface {
	ValidateIDs(ctx context.Context, candidates map[domain.Category][]string) ([]domain.InvalidEntry, error)
}

// VotingDeps wires the voting service.
type VotingDeps struct {
	Periods     ports.PeriodRepository
	Submissions ports.SubmissionRepository
	Validator   IDValidator
	Guard       ports.SubmissionGuard
	Rules       domain.BallotRules
	Now         func() time.Time
	Logger      *slog.Logger
}

// Voting accepts and lists ballots.
type Voting struct {
	periods     ports.PeriodRepository
	submissions ports.SubmissionRepository
	validator   IDValidator
	guard       ports.SubmissionGuard
	rules       domain.BallotRules
	now         func() time.Time
	logger      *slog.Logger
}

// NewVoting applies default ballot rules and the wall clock when unset.
func NewVoting(deps VotingDeps) *Voting {
	rules := deps.Rules
	if rules.MaxChoices == 0 && rules.MaxAge == 0 && len(rules.Genders) == 0 {
		rules = domain.DefaultBallotRules()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Voting{
		periods:     deps.Periods,
		submissions: deps.Submissions,
		validator:   deps.Validator,
		guard:       deps.Guard,
		rules:       rules,
		now:         now,
		logger:      deps.Logger,
	}
}

// SubmitVote stores the ballot under the currently open period. It fails with a
// *domain.BallotError, domain.ErrNoActivePeriod, domain.ErrDuplicateSubmission or a
// *domain.InvalidEntriesError before anything is written.
func (v *Voting) SubmitVote(ctx context.Context, fingerprint, userAgent string, ballot domain.Ballot) (domain.Submission, error) {
	if err := ballot.Validate(v.rules); err != nil {
		return domain.Submission{}, err
	}

	now := v.now()
	period, err := v.periods.OpenPeriod(ctx, now)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("resolve open period: %w", err)
	}
	// Stored bounds carry millisecond precision.
	if !period.OpenAt(now.Truncate(time.Millisecond)) {
		return domain.Submission{}, fmt.Errorf("resolve open period: %s: %w", period.ID, domain.ErrNoActivePeriod)
	}

	if v.guard != nil {
		claimed, err := v.guard.Claim(ctx, period.ID, fingerprint)
		if err != nil {
			return domain.Submission{}, err
		}
		if !claimed {
			return domain.Submission{}, domain.ErrDuplicateSubmission
		}
	}

	stored, err := v.submit(ctx, period, fingerprint, userAgent, ballot, now)
	if err != nil {
		v.release(ctx, period.ID, fingerprint)
		return domain.Submission{}, err
	}

	v.info("vote recorded", "period", period.ID, "submission", stored.ID)
	return stored, nil
}

func (v *Voting) submit(ctx context.Context, period domain.Period, fingerprint, userAgent string, ballot domain.Ballot, now time.Time) (domain.Submission, error) {
	previous, err := v.submissions.ListSubmissions(ctx, fingerprint, period.ID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("check previous submissions: %w", err)
	}
	if len(previous) > 0 {
		return domain.Submission{}, domain.ErrDuplicateSubmission
	}

	choices := ballot.Choices()
	invalid, err := v.validator.ValidateIDs(ctx, choices)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("validate ids: %w", err)
	}
	if len(invalid) > 0 {
		return domain.Submission{}, &domain.InvalidEntriesError{Entries: invalid}
	}

	stored, err := v.submissions.CreateSubmission(ctx, domain.Submission{
		Fingerprint:  fingerprint,
		UserAgent:    userAgent,
		PeriodID:     period.ID,
		Choices:      choices,
		Demographics: ballot.UserInfo,
		CreatedAt:    now,
	})
	if errors.Is(err, domain.ErrDuplicateSubmission) {
		return domain.Submission{}, err
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("store submission: %w", err)
	}
	return stored, nil
}

// ListVotes returns fingerprint's submissions; an empty periodID spans every period.
func (v *Voting) ListVotes(ctx context.Context, fingerprint, periodID string) ([]domain.Submission, error) {
	subs, err := v.submissions.ListSubmissions(ctx, fingerprint, periodID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	if subs == nil {
		subs = []domain.Submission{}
	}
	return subs, nil
}

func (v *Voting) release(ctx context.Context, periodID, fingerprint string) {
	if v.guard == nil {
		return
	}
	if err := v.guard.Release(context.WithoutCancel(ctx), periodID, fingerprint); err != nil && v.logger != nil {
		v.logger.Warn("release submission claim", "period", periodID, "error", err)
	}
}

func (v *Voting) info(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Info(msg, args...)
	}
}
