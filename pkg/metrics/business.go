package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Business holds the sync engine counters. A nil *Business is valid and
// records nothing, which keeps tests free of registry setup.
type Business struct {
	webhookEvents  *prometheus.CounterVec
	fanoutFailures prometheus.Counter
	retryItems     *prometheus.CounterVec
	providerDur    *prometheus.HistogramVec
}

var (
	webhookEventsTotal = &Metric{
		ID:          "webhookEvents",
		Name:        "webhook_events_total",
		Description: "Webhook deliveries partitioned by event kind and outcome.",
		Type:        "counter_vec",
		Args:        []string{"kind", "outcome"},
	}
	fanoutBatchFailuresTotal = &Metric{
		ID:          "fanoutFailures",
		Name:        "fanout_batch_failures_total",
		Description: "Daily stat fan-out batches that failed to commit.",
		Type:        "counter",
	}
	retryItemsTotal = &Metric{
		ID:          "retryItems",
		Name:        "retry_items_total",
		Description: "Retry queue transitions partitioned by outcome.",
		Type:        "counter_vec",
		Args:        []string{"outcome"},
	}
	providerCallDur = &Metric{
		ID:          "providerDur",
		Name:        "provider_call_dur_ms",
		Description: "Billing provider API latency in milliseconds.",
		Type:        "histogram_vec",
		Args:        []string{"op", "code"},
	}
)

// NewBusiness registers the counters on reg. Collisions with an already
// registered collector reuse the existing one.
func NewBusiness(reg prometheus.Registerer) (*Business, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	b := &Business{}
	for _, def := range []*Metric{webhookEventsTotal, fanoutBatchFailuresTotal, retryItemsTotal, providerCallDur} {
		c := NewMetric(def, "billing")
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			c = are.ExistingCollector
		}
		switch def {
		case webhookEventsTotal:
			b.webhookEvents = c.(*prometheus.CounterVec)
		case fanoutBatchFailuresTotal:
			b.fanoutFailures = c.(prometheus.Counter)
		case retryItemsTotal:
			b.retryItems = c.(*prometheus.CounterVec)
		case providerCallDur:
			b.providerDur = c.(*prometheus.HistogramVec)
		}
	}
	return b, nil
}

func (b *Business) WebhookEvent(kind, outcome string) {
	if b == nil {
		return
	}
	b.webhookEvents.WithLabelValues(kind, outcome).Inc()
}

func (b *Business) FanoutBatchFailed(n int) {
	if b == nil || n <= 0 {
		return
	}
	b.fanoutFailures.Add(float64(n))
}

func (b *Business) RetryItem(outcome string) {
	if b == nil {
		return
	}
	b.retryItems.WithLabelValues(outcome).Inc()
}

func (b *Business) ProviderCall(op, code string, ms float64) {
	if b == nil {
		return
	}
	b.providerDur.WithLabelValues(op, code).Observe(ms)
}

var Module = fx.Options(
	fx.Provide(func() (*Business, error) { return NewBusiness(prometheus.DefaultRegisterer) }),
)
