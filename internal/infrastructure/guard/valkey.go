// Package guard claims (period, fingerprint) slots in Valkey so two concurrent submissions
// from the same submitter cannot both pass the store's existence check.
package guard

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"

	"MangaVote/internal/ports"
)

const keyPrefix = "mangavote:submission"

// Options configures the Valkey connection.
type Options struct {
	Address  string
	Password string
	TLS      bool
	TTL      time.Duration
}

// ValkeyGuard implements ports.SubmissionGuard with SET NX EX.
type ValkeyGuard struct {
	client valkey.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.SubmissionGuard = (*ValkeyGuard)(nil)

// NewValkeyGuard connects and pings the server.
func NewValkeyGuard(ctx context.Context, opts Options, logger *slog.Logger) (*ValkeyGuard, error) {
	clientOpts := valkey.ClientOption{
		InitAddress:      []string{opts.Address},
		Password:         opts.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if opts.TLS {
		clientOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}

	if logger != nil {
		logger.Info("connected to valkey", "address", opts.Address)
	}
	return newValkeyGuard(client, opts.TTL, logger), nil
}

func newValkeyGuard(client valkey.Client, ttl time.Duration, logger *slog.Logger) *ValkeyGuard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ValkeyGuard{client: client, ttl: ttl, logger: logger}
}

// Claim reserves the slot; false means another submission holds it.
func (g *ValkeyGuard) Claim(ctx context.Context, periodID, fingerprint string) (bool, error) {
	cmd := g.client.B().Set().Key(Key(periodID, fingerprint)).Value("1").Nx().ExSeconds(expirySeconds(g.ttl)).Build()
	err := g.client.Do(ctx, cmd).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim submission slot: %w", err)
	}
	return true, nil
}

// Release frees the slot after the submission is stored or rejected.
func (g *ValkeyGuard) Release(ctx context.Context, periodID, fingerprint string) error {
	if err := g.client.Do(ctx, g.client.B().Del().Key(Key(periodID, fingerprint)).Build()).Error(); err != nil {
		return fmt.Errorf("release submission slot: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (g *ValkeyGuard) Close() {
	g.client.Close()
}

// expirySeconds rounds ttl up to whole seconds; EX rejects 0.
func expirySeconds(ttl time.Duration) int64 {
	secs := int64((ttl + time.Second - 1) / time.Second)
	return max(secs, 1)
}

// Key is the Valkey key holding the claim.
func Key(periodID, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, periodID, fingerprint)
}

// Noop admits every claim; the store-level existence check remains the only guard.
type Noop struct{}

var _ ports.SubmissionGuard = Noop{}

func (Noop) Claim(context.Context, string, string) (bool, error) { return true, nil }

func (Noop) Release(context.Context, string, string) error { return nil }
