package metrics

import "time"

type NoopCollector struct{}

var _ Collector = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (c *NoopCollector) EstimationSourceFailed(string)      {}
func (c *NoopCollector) BundlerSwitched(uint64)             {}
func (c *NoopCollector) PaymasterAttempted(string, string)  {}
func (c *NoopCollector) MeasureEstimationDuration(time.Time) {}
