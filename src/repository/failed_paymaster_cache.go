package repository

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// raiseBalanceScript stores ARGV[2] under field ARGV[1] unless a larger
// balance is already recorded
var raiseBalanceScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], ARGV[1])
if current then
	local a = string.rep("0", 80 - #current) .. current
	local b = string.rep("0", 80 - #ARGV[2]) .. ARGV[2]
	if a >= b then
		return 0
	end
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// FailedPaymasterCache shares paymaster failures between processes through
// Redis. Sponsorship ids live in a set and insufficient deposits in a hash
// keyed by chain id.
type FailedPaymasterCache struct {
	redis           *redis.Client
	sponsorshipsKey string
	insufficientKey string
}

func NewFailedPaymasterCache(redis *redis.Client, prefix string) *FailedPaymasterCache {
	return &FailedPaymasterCache{
		redis:           redis,
		sponsorshipsKey: prefix + ":failed_sponsorships",
		insufficientKey: prefix + ":insufficient_funds",
	}
}

func (r *FailedPaymasterCache) MarkSponsorshipFailed(ctx context.Context, id string) error {
	return r.redis.SAdd(ctx, r.sponsorshipsKey, id).Err()
}

func (r *FailedPaymasterCache) HasFailedSponsorship(ctx context.Context, id string) (bool, error) {
	return r.redis.SIsMember(ctx, r.sponsorshipsKey, id).Result()
}

// MarkInsufficientFunds records balance for the chain, keeping the larger of
// the stored and the new value
func (r *FailedPaymasterCache) MarkInsufficientFunds(ctx context.Context, chainID uint64, balance *big.Int) error {
	if balance == nil {
		balance = new(big.Int)
	}
	field := strconv.FormatUint(chainID, 10)
	if err := raiseBalanceScript.Run(ctx, r.redis, []string{r.insufficientKey}, field, balance.String()).Err(); err != nil {
		return fmt.Errorf("failed to mark insufficient funds on %d: %w", chainID, err)
	}
	return nil
}

func (r *FailedPaymasterCache) InsufficientFunds(ctx context.Context, chainID uint64) (*big.Int, bool, error) {
	raw, err := r.redis.HGet(ctx, r.insufficientKey, strconv.FormatUint(chainID, 10)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	balance, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, false, fmt.Errorf("invalid balance %q stored for chain %d", raw, chainID)
	}
	return balance, true, nil
}

func (r *FailedPaymasterCache) ClearInsufficientFunds(ctx context.Context, chainID uint64) error {
	return r.redis.HDel(ctx, r.insufficientKey, strconv.FormatUint(chainID, 10)).Err()
}
