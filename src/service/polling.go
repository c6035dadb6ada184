package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// NetworkRefresher reloads the network registry on a fixed interval.
type NetworkRefresher struct {
	registry        *NetworkRegistry
	refreshInterval time.Duration
}

type RefresherConfig struct {
	RefreshInterval time.Duration
}

func NewNetworkRefresher(registry *NetworkRegistry, config RefresherConfig) *NetworkRefresher {
	return &NetworkRefresher{
		registry:        registry,
		refreshInterval: config.RefreshInterval,
	}
}

// logger wraps the execution context with component info
func (s *NetworkRefresher) logger(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx).With().Str("component", "network-refresher").Logger()
	return &l
}

// Start blocks until ctx is done, reloading the registry on every tick
func (s *NetworkRefresher) Start(ctx context.Context) error {
	s.logger(ctx).Info().
		Dur("refresh_interval", s.refreshInterval).
		Msg("starting network refresher")

	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger(ctx).Info().Msg("network refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil {
				s.logger(ctx).Error().Err(err).Msg("network refresh failed")
			}
		}
	}
}

func (s *NetworkRefresher) refresh(ctx context.Context) error {
	if err := s.registry.Load(ctx); err != nil {
		return err
	}
	s.logger(ctx).Debug().Int("network_count", len(s.registry.List())).Msg("network refresh completed")
	return nil
}
