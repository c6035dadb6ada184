package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const namespace = "walletcore"

type Collector interface {
	EstimationSourceFailed(source string)
	BundlerSwitched(chainID uint64)
	PaymasterAttempted(paymasterType string, status string)
	MeasureEstimationDuration(start time.Time)
}

type DefaultCollector struct {
	sourceFailures      *prometheus.CounterVec
	bundlerSwitches     *prometheus.CounterVec
	paymasterAttempts   *prometheus.CounterVec
	estimationDurations prometheus.Histogram
}

// NewCollector registers the collectors on reg, falling back to a noop
// collector when registration fails
func NewCollector(logger zerolog.Logger, reg prometheus.Registerer) Collector {
	sourceFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "estimation_source_failures_total",
		Help:      "Total number of failed estimation sources",
	}, []string{"source"})

	bundlerSwitches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bundler_switches_total",
		Help:      "Total number of fallbacks to another bundler",
	}, []string{"chain_id"})

	paymasterAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "paymaster_attempts_total",
		Help:      "Total number of paymaster requests by outcome",
	}, []string{"type", "status"})

	estimationDurations := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "estimation_duration_seconds",
		Help:      "Duration of full estimations",
		Buckets:   prometheus.DefBuckets,
	})

	metrics := []prometheus.Collector{sourceFailures, bundlerSwitches, paymasterAttempts, estimationDurations}
	if err := registerMetrics(logger, reg, metrics...); err != nil {
		logger.Info().Msg("using noop collector as metric register failed")
		return NewNoopCollector()
	}

	return &DefaultCollector{
		sourceFailures:      sourceFailures,
		bundlerSwitches:     bundlerSwitches,
		paymasterAttempts:   paymasterAttempts,
		estimationDurations: estimationDurations,
	}
}

func registerMetrics(logger zerolog.Logger, reg prometheus.Registerer, metrics ...prometheus.Collector) error {
	for _, m := range metrics {
		if err := reg.Register(m); err != nil {
			logger.Err(err).Msg("failed to register metric")
			return err
		}
	}
	return nil
}

func (c *DefaultCollector) EstimationSourceFailed(source string) {
	c.sourceFailures.With(prometheus.Labels{"source": source}).Inc()
}

func (c *DefaultCollector) BundlerSwitched(chainID uint64) {
	c.bundlerSwitches.With(prometheus.Labels{"chain_id": strconv.FormatUint(chainID, 10)}).Inc()
}

func (c *DefaultCollector) PaymasterAttempted(paymasterType string, status string) {
	c.paymasterAttempts.With(prometheus.Labels{"type": paymasterType, "status": status}).Inc()
}

func (c *DefaultCollector) MeasureEstimationDuration(start time.Time) {
	c.estimationDurations.Observe(time.Since(start).Seconds())
}
