package guard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"
)

func TestKeyScopesByPeriodAndFingerprint(t *testing.T) {
	t.Parallel()

	if got := Key("october", "10.0.0.1"); got != "mangavote:submission:october:10.0.0.1" {
		t.Fatalf("unexpected key %q", got)
	}
	if Key("a", "b") == Key("b", "a") {
		t.Fatalf("period and fingerprint must not be interchangeable")
	}
}

func TestClaimSetsKeyOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	ctx := context.Background()
	key := Key("october", "10.0.0.1")

	gomock.InOrder(
		client.EXPECT().Do(ctx, mock.Match("SET", key, "1", "NX", "EX", "60")).
			Return(mock.Result(mock.ValkeyString("OK"))),
		client.EXPECT().Do(ctx, mock.Match("SET", key, "1", "NX", "EX", "60")).
			Return(mock.Result(mock.ValkeyNil())),
	)

	g := newValkeyGuard(client, time.Minute, nil)

	ok, err := g.Claim(ctx, "october", "10.0.0.1")
	if err != nil || !ok {
		t.Fatalf("first claim: got %v (err %v)", ok, err)
	}
	ok, err = g.Claim(ctx, "october", "10.0.0.1")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatalf("second claim must be refused while the key exists")
	}
}

func TestClaimRoundsSubSecondTTLUp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	ctx := context.Background()

	client.EXPECT().Do(ctx, mock.Match("SET", Key("p", "ip"), "1", "NX", "EX", "1")).
		Return(mock.Result(mock.ValkeyString("OK")))

	g := newValkeyGuard(client, 500*time.Millisecond, nil)
	if ok, err := g.Claim(ctx, "p", "ip"); err != nil || !ok {
		t.Fatalf("claim: got %v (err %v)", ok, err)
	}
}

func TestClaimWrapsServerErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	ctx := context.Background()
	boom := errors.New("connection reset")

	client.EXPECT().Do(ctx, gomock.Any()).Return(mock.ErrorResult(boom))

	g := newValkeyGuard(client, time.Minute, nil)
	ok, err := g.Claim(ctx, "p", "ip")
	if !errors.Is(err, boom) || ok {
		t.Fatalf("expected wrapped error, got %v (claimed %v)", err, ok)
	}
}

func TestReleaseDeletesKey(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	ctx := context.Background()

	client.EXPECT().Do(ctx, mock.Match("DEL", Key("p", "ip"))).
		Return(mock.Result(mock.ValkeyInt64(1)))

	g := newValkeyGuard(client, time.Minute, nil)
	if err := g.Release(ctx, "p", "ip"); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestExpirySeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ttl  time.Duration
		want int64
	}{
		{time.Minute, 60},
		{1500 * time.Millisecond, 2},
		{500 * time.Millisecond, 1},
		{time.Nanosecond, 1},
	}
	for _, tt := range tests {
		if got := expirySeconds(tt.ttl); got != tt.want {
			t.Errorf("expirySeconds(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}

func TestNoopAlwaysClaims(t *testing.T) {
	t.Parallel()

	var g Noop
	ok, err := g.Claim(context.Background(), "p", "ip")
	if err != nil || !ok {
		t.Fatalf("expected claim, got %v (err %v)", ok, err)
	}
	if err := g.Release(context.Background(), "p", "ip"); err != nil {
		t.Fatalf("Release: %v", err)
	}
}
