package handler

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/swatto/smsbridge/internal/sms"
)

// Metrics holds Prometheus counters for the service. Safe for concurrent use.
type Metrics struct {
	callsTotal          atomic.Uint64
	smsSentTotal        atomic.Uint64
	smsFailedTotal      atomic.Uint64
	invalidArgsTotal    atomic.Uint64
	notImplementedTotal atomic.Uint64
	segmentsSentTotal   atomic.Uint64
}

// NewMetrics returns a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Observe counts one dispatched call by its outcome.
func (m *Metrics) Observe(out sms.Outcome) {
	m.callsTotal.Add(1)
	switch out.Kind {
	case sms.KindSuccess:
		m.smsSentTotal.Add(1)
		m.segmentsSentTotal.Add(uint64(out.Parts))
	case sms.KindPlatformSendError:
		m.smsFailedTotal.Add(1)
	case sms.KindInvalidArguments:
		m.invalidArgsTotal.Add(1)
	case sms.KindNotImplemented:
		m.notImplementedTotal.Add(1)
	}
}

type counter struct {
	name  string
	help  string
	value uint64
}

// Metrics serves GET /metrics in Prometheus text exposition format.
func (h *Handler) Metrics(w http.ResponseWriter, _ *http.Request) {
	counters := []counter{
		{"smsbridge_calls_total", "Total number of method calls dispatched.", h.metrics.callsTotal.Load()},
		{"smsbridge_sms_sent_total", "Total SMS messages sent successfully.", h.metrics.smsSentTotal.Load()},
		{"smsbridge_sms_failed_total", "Total SMS messages that failed to send.", h.metrics.smsFailedTotal.Load()},
		{"smsbridge_invalid_args_total", "Total calls rejected for missing phone or message.", h.metrics.invalidArgsTotal.Load()},
		{"smsbridge_not_implemented_total", "Total calls naming an unknown method.", h.metrics.notImplementedTotal.Load()},
		{"smsbridge_segments_sent_total", "Total SMS segments in successfully sent messages.", h.metrics.segmentsSentTotal.Load()},
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	for _, c := range counters {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
		_, _ = fmt.Fprintf(w, "%s %d\n", c.name, c.value)
	}
}
