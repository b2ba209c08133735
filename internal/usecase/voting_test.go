package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MangaVote/internal/domain"
)

type fakePeriods struct {
	open    domain.Period
	openErr error
	created []domain.Period
}

func (f *fakePeriods) ListPeriods(context.Context, bool) ([]domain.Period, error) {
	return nil, nil
}

func (f *fakePeriods) CreatePeriod(_ context.Context, p domain.Period) error {
	f.created = append(f.created, p)
	return nil
}

func (f *fakePeriods) SetPeriodActive(_ context.Context, id string, active bool) (domain.Period, error) {
	return domain.Period{ID: id, Active: active}, nil
}

func (f *fakePeriods) OpenPeriod(context.Context, time.Time) (domain.Period, error) {
	return f.open, f.openErr
}

type fakeSubmissions struct {
	stored []domain.Submission
}

func (f *fakeSubmissions) CreateSubmission(_ context.Context, s domain.Submission) (domain.Submission, error) {
	for _, existing := range f.stored {
		if existing.Fingerprint == s.Fingerprint && existing.PeriodID == s.PeriodID {
			return domain.Submission{}, domain.ErrDuplicateSubmission
		}
	}
	s.ID = "sub-1"
	f.stored = append(f.stored, s)
	return s, nil
}

func (f *fakeSubmissions) ListSubmissions(_ context.Context, fingerprint, periodID string) ([]domain.Submission, error) {
	var out []domain.Submission
	for _, s := range f.stored {
		if s.Fingerprint == fingerprint && (periodID == "" || s.PeriodID == periodID) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeValidator struct {
	invalid []domain.InvalidEntry
	calls   int
}

func (f *fakeValidator) ValidateIDs(context.Context, map[domain.Category][]string) ([]domain.InvalidEntry, error) {
	f.calls++
	return f.invalid, nil
}

type fakeGuard struct {
	claimed  map[string]bool
	released []string
}

func (f *fakeGuard) Claim(_ context.Context, periodID, fingerprint string) (bool, error) {
	key := periodID + "/" + fingerprint
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeGuard) Release(_ context.Context, periodID, fingerprint string) error {
	key := periodID + "/" + fingerprint
	delete(f.claimed, key)
	f.released = append(f.released, key)
	return nil
}

type votingFixture struct {
	voting      *Voting
	periods     *fakePeriods
	submissions *fakeSubmissions
	validator   *fakeValidator
	guard       *fakeGuard
}

func newVotingFixture() votingFixture {
	october := domain.Period{
		ID:      "october",
		Active:  true,
		StartAt: time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, time.October, 31, 23, 59, 59, 0, time.UTC),
	}
	f := votingFixture{
		periods:     &fakePeriods{open: october},
		submissions: &fakeSubmissions{},
		validator:   &fakeValidator{},
		guard:       &fakeGuard{claimed: map[string]bool{}},
	}
	f.voting = NewVoting(VotingDeps{
		Periods:     f.periods,
		Submissions: f.submissions,
		Validator:   f.validator,
		Guard:       f.guard,
		Now:         func() time.Time { return time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC) },
	})
	return f
}

func validBallot() domain.Ballot {
	return domain.Ballot{
		FavoriteAdaptations: []string{"a", "b"},
		UserInfo:            domain.Demographics{Gender: "female", Age: 27},
	}
}

func TestSubmitVoteStoresUnderOpenPeriod(t *testing.T) {
	t.Parallel()

	f := newVotingFixture()
	stored, err := f.voting.SubmitVote(context.Background(), "10.0.0.1", "curl", validBallot())
	if err != nil {
		t.Fatalf("SubmitVote error: %v", err)
	}
	if stored.PeriodID != "october" || stored.UserAgent != "curl" || len(stored.Choices[domain.CategoryAdaptation]) != 2 {
		t.Fatalf("unexpected stored submission: %+v", stored)
	}
	if len(f.guard.released) != 0 {
		t.Fatalf("successful submission keeps its claim, released %v", f.guard.released)
	}
}

func TestSubmitVoteRejectsDuplicate(t *testing.T) {
	t.Parallel()

	f := newVotingFixture()
	ctx := context.Background()
	if _, err := f.voting.SubmitVote(ctx, "10.0.0.1", "", validBallot()); err != nil {
		t.Fatalf("first SubmitVote error: %v", err)
	}

	// claim expired: the store-level check must still reject
	f.guard.claimed = map[string]bool{}
	_, err := f.voting.SubmitVote(ctx, "10.0.0.1", "", validBallot())
	if !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if len(f.submissions.stored) != 1 {
		t.Fatalf("duplicate must not be written, have %d", len(f.submissions.stored))
	}
	if len(f.guard.released) != 1 {
		t.Fatalf("rejected submission must release its claim")
	}

	// claim still held by an in-flight submission
	f.guard.claimed["october/10.0.0.2"] = true
	if _, err := f.voting.SubmitVote(ctx, "10.0.0.2", "", validBallot()); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission from guard, got %v", err)
	}
}

func TestSubmitVoteNoActivePeriod(t *testing.T) {
	t.Parallel()

	f := newVotingFixture()
	f.periods.openErr = domain.ErrNoActivePeriod

	_, err := f.voting.SubmitVote(context.Background(), "10.0.0.1", "", validBallot())
	if !errors.Is(err, domain.ErrNoActivePeriod) {
		t.Fatalf("expected ErrNoActivePeriod, got %v", err)
	}
	if f.validator.calls != 0 || len(f.submissions.stored) != 0 {
		t.Fatalf("nothing may run without an open period")
	}
}

func TestSubmitVoteRejectsPeriodOutsideWindow(t *testing.T) {
	t.Parallel()

	f := newVotingFixture()
	f.periods.open.EndAt = time.Date(2026, time.October, 13, 0, 0, 0, 0, time.UTC)

	_, err := f.voting.SubmitVote(context.Background(), "10.0.0.1", "", validBallot())
	if !errors.Is(err, domain.ErrNoActivePeriod) {
		t.Fatalf("expected ErrNoActivePeriod, got %v", err)
	}
	if len(f.guard.claimed) != 0 || len(f.submissions.stored) != 0 {
		t.Fatalf("a closed period must not claim or store anything")
	}
}

func TestSubmitVoteReportsInvalidEntries(t *testing.T) {
	t.Parallel()

	f := newVotingFixture()
	f.validator.invalid = []domain.InvalidEntry{{Category: domain.CategoryAdaptation, ID: "b"}}

	_, err := f.voting.SubmitVote(context.Background(), "10.0.0.1", "", validBallot())
	var invalid *domain.InvalidEntriesError
	if !errors.As(err, &invalid) || len(invalid.Entries) != 1 || invalid.Entries[0].ID != "b" {
		t.Fatalf("expected InvalidEntriesError for b, got %v", err)
	}
	if len(f.submissions.stored) != 0 {
		t.Fatalf("invalid ballot must not be written")
	}
}

func TestSubmitVoteRejectsMalformedBallot(t *testing.T) {
	t.Parallel()

	f := newVotingFixture()
	ballot := validBallot()
	ballot.UserInfo.Gender = "robot"

	_, err := f.voting.SubmitVote(context.Background(), "10.0.0.1", "", ballot)
	var ballotErr *domain.BallotError
	if !errors.As(err, &ballotErr) {
		t.Fatalf("expected BallotError, got %v", err)
	}
	if len(f.guard.claimed) != 0 {
		t.Fatalf("malformed ballot must not claim a slot")
	}
}

func TestListVotesReturnsEmptySlice(t *testing.T) {
	t.Parallel()

	f := newVotingFixture()
	votes, err := f.voting.ListVotes(context.Background(), "nobody", "")
	if err != nil || votes == nil || len(votes) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v (err %v)", votes, err)
	}
}

func TestCreatePeriodValidates(t *testing.T) {
	t.Parallel()

	repo := &fakePeriods{}
	periods := NewPeriods(repo)
	start := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)

	bad := []domain.Period{
		{Name: "No id", StartAt: start, EndAt: start},
		{ID: "x", StartAt: start, EndAt: start},
		{ID: "x", Name: "Backwards", StartAt: start, EndAt: start.Add(-time.Hour)},
	}
	for _, p := range bad {
		if _, err := periods.Create(context.Background(), p); !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("expected ErrInvalidPeriod for %+v, got %v", p, err)
		}
	}

	if _, err := periods.Create(context.Background(), domain.Period{ID: " oct ", Name: "October", StartAt: start, EndAt: start}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(repo.created) != 1 || repo.created[0].ID != "oct" {
		t.Fatalf("expected trimmed period stored, got %+v", repo.created)
	}
}
