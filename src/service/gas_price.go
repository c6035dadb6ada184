package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethaccount/walletcore/erc4337"
	"github.com/ethaccount/walletcore/src/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	gasPriceRaceTimeout  = 6 * time.Second
	// bounds the bundler race plus the node fallback
	gasPriceFetchTimeout = 10 * time.Second
	gasPriceCacheTTL     = 12 * time.Second
	gasPriceCacheSize    = 256
)

var (
	minPriorityFee = big.NewInt(1_000_000_000)
	// base fee multipliers in percent for slow, medium, fast and ape
	baseFeeMultipliers = [4]int64{110, 150, 200, 250}
)

// GasPriceService resolves tiered gas prices per chain. Bundlers are raced
// and the node's EIP-1559 data is the fallback.
type GasPriceService struct {
	bundlers  BundlerSource
	providers ProviderSource
	cache     *expirable.LRU[uint64, *domain.GasPriceTiers]
	group     singleflight.Group
}

func NewGasPriceService(bundlers BundlerSource, providers ProviderSource) *GasPriceService {
	return &GasPriceService{
		bundlers:  bundlers,
		providers: providers,
		cache:     expirable.NewLRU[uint64, *domain.GasPriceTiers](gasPriceCacheSize, nil, gasPriceCacheTTL),
	}
}

// logger wraps the execution context with component info
func (s *GasPriceService) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("service", "gas-price").Logger()
	return &l
}

func (s *GasPriceService) Fetch(ctx context.Context, network *domain.Network) (*domain.GasPriceTiers, error) {
	if tiers, ok := s.cache.Get(network.ChainID); ok {
		return tiers, nil
	}

	// the shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends
	results := s.group.DoChan(strconv.FormatUint(network.ChainID, 10), func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gasPriceFetchTimeout)
		defer cancel()

		tiers, err := s.fetch(fetchCtx, network)
		if err != nil {
			return nil, err
		}
		s.cache.Add(network.ChainID, tiers)
		return tiers, nil
	})

	select {
	case r := <-results:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*domain.GasPriceTiers), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *GasPriceService) fetch(ctx context.Context, network *domain.Network) (*domain.GasPriceTiers, error) {
	if network.Erc4337.Enabled && len(network.Erc4337.Bundlers) > 0 {
		tiers, err := s.race(ctx, network)
		if err == nil {
			return tiers, nil
		}
		s.logger(ctx).Warn().Err(err).
			Uint64("chain_id", network.ChainID).
			Msg("bundler gas price unavailable, falling back to node")
	}

	provider, err := s.providers.GetProvider(ctx, network.ChainID)
	if err != nil {
		return nil, err
	}
	return SuggestGasPriceTiers(ctx, provider)
}

// race returns the first bundler gas price to arrive
func (s *GasPriceService) race(ctx context.Context, network *domain.Network) (*domain.GasPriceTiers, error) {
	raceCtx, cancel := context.WithTimeout(ctx, gasPriceRaceTimeout)
	defer cancel()

	type result struct {
		tiers *domain.GasPriceTiers
		err   error
	}

	ids := network.BundlerIDs()
	results := make(chan result, len(ids))
	for _, id := range ids {
		go func(id domain.BundlerID) {
			bundler, err := s.bundlers.GetBundlerClient(raceCtx, network, id)
			if err != nil {
				results <- result{err: err}
				return
			}
			price, err := bundler.GetUserOperationGasPrice(raceCtx)
			if err != nil {
				results <- result{err: &domain.BundlerError{Bundler: id, Err: err}}
				return
			}
			results <- result{tiers: tiersFromBundler(price)}
		}(id)
	}

	var errs []error
	for range ids {
		select {
		case r := <-results:
			if r.err == nil {
				return r.tiers, nil
			}
			errs = append(errs, r.err)
		case <-raceCtx.Done():
			return nil, fmt.Errorf("bundler gas price race: %w", raceCtx.Err())
		}
	}
	return nil, errors.Join(errs...)
}

func tiersFromBundler(price *erc4337.UserOperationGasPrice) *domain.GasPriceTiers {
	toPrice := func(t erc4337.GasPriceTier) domain.GasPrice {
		return domain.GasPrice{
			MaxFeePerGas:         bigOrZero(t.MaxFeePerGas.ToInt()),
			MaxPriorityFeePerGas: bigOrZero(t.MaxPriorityFeePerGas.ToInt()),
		}
	}
	return &domain.GasPriceTiers{
		Slow:   toPrice(price.Slow),
		Medium: toPrice(price.Standard),
		Fast:   toPrice(price.Fast),
		Ape:    toPrice(price.Fast),
	}
}

// SuggestGasPriceTiers derives the tiers from the latest base fee and the
// node's suggested tip
func SuggestGasPriceTiers(ctx context.Context, provider Provider) (*domain.GasPriceTiers, error) {
	tip, err := provider.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	if tip.Cmp(minPriorityFee) < 0 {
		tip = new(big.Int).Set(minPriorityFee)
	}

	header, err := provider.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	var prices [4]domain.GasPrice
	for i, pct := range baseFeeMultipliers {
		maxFee := new(big.Int).Set(tip)
		if header.BaseFee != nil {
			scaled := new(big.Int).Mul(header.BaseFee, big.NewInt(pct))
			scaled.Div(scaled, big.NewInt(100))
			maxFee.Add(maxFee, scaled)
		}
		prices[i] = domain.GasPrice{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: new(big.Int).Set(tip)}
	}

	return &domain.GasPriceTiers{Slow: prices[0], Medium: prices[1], Fast: prices[2], Ape: prices[3]}, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
