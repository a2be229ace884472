// Package contractlock serializes financial edits per contract. An
// adjustment is only correct relative to the exact snapshot of posted
// entries it was computed from, so two concurrent edits of the same
// contract must never interleave.
package contractlock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/ledgerloop/revrec/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyContractEdit = "revrec:contract:%s:%s"

// ErrBusy reports that another edit currently holds the contract.
var ErrBusy = errors.New("contract_edit_in_progress")

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Guard hands out per-contract edit locks backed by redis SETNX with
// an owner token, so an expired lock is never released by a stale
// holder. With no redis configured the guard degrades to pass-through
// for single-node development.
type Guard struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
	log    *zap.Logger
}

func NewGuard(cfg config.Config, log *zap.Logger) *Guard {
	guard := &Guard{
		ttl: cfg.ContractLockTTL,
		log: log.Named("contractlock"),
	}
	if guard.ttl <= 0 {
		guard.ttl = 30 * time.Second
	}

	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		guard.log.Warn("redis not configured, contract edits are not serialized across processes")
		return guard
	}

	guard.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})
	guard.script = redis.NewScript(lockReleaseScript)
	return guard
}

func (g *Guard) Enabled() bool {
	return g != nil && g.client != nil
}

// WithLock runs fn while holding the contract's edit lock. A held lock
// fails fast with ErrBusy rather than queueing.
func (g *Guard) WithLock(ctx context.Context, orgID, contractID snowflake.ID, fn func(context.Context) error) error {
	if !g.Enabled() {
		return fn(ctx)
	}

	key := fmt.Sprintf(keyContractEdit, orgID.String(), contractID.String())
	token := uuid.NewString()

	locked, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire contract lock: %w", err)
	}
	if !locked {
		return ErrBusy
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := g.script.Run(releaseCtx, g.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			g.log.Warn("failed to release contract lock",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}()

	return fn(ctx)
}
