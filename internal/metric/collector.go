// Package metric exposes the ingest counters to Prometheus. A custom
// collector reads point-in-time snapshots at scrape time, so the pipeline
// hot path never touches a metric.
package metric

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aiswatch/internal/ingest"
)

// StatsSource is the slice of the ingest manager the collector reads.
type StatsSource interface {
	Stats() ingest.Stats
	Sources() []ingest.SourceSnapshot
}

type Collector struct {
	src StatsSource

	parsed       *prometheus.Desc
	errors       *prometheus.Desc
	byType       *prometheus.Desc
	fragBuffered *prometheus.Desc
	fragDone     *prometheus.Desc
	fragExpired  *prometheus.Desc
	fragDropped  *prometheus.Desc
	fragLive     *prometheus.Desc
	invalid      *prometheus.Desc

	srcConnected *prometheus.Desc
	srcMessages  *prometheus.Desc
	srcAttempts  *prometheus.Desc
}

func NewCollector(src StatsSource) *Collector {
	ns := "aiswatch"
	return &Collector{
		src: src,
		parsed: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "messages", "parsed_total"),
			"Decoded AIS messages forwarded downstream.", nil, nil),
		errors: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "messages", "errors_total"),
			"Sentences dropped by the pipeline.", nil, nil),
		byType: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "messages", "by_type_total"),
			"Decoded messages per AIS type.", []string{"type"}, nil),
		fragBuffered: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "fragments", "buffered_total"),
			"Multi-part fragments accepted into the buffer.", nil, nil),
		fragDone: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "fragments", "assembled_total"),
			"Multi-part groups completed.", nil, nil),
		fragExpired: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "fragments", "expired_total"),
			"Incomplete groups purged by timeout.", nil, nil),
		fragDropped: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "fragments", "dropped_total"),
			"Fragments dropped by capacity eviction.", nil, nil),
		fragLive: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "fragments", "in_buffer"),
			"Incomplete groups currently buffered.", nil, nil),
		invalid: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "sentences", "invalid_total"),
			"Rejected input by reason.", []string{"reason"}, nil),
		srcConnected: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "source", "connected"),
			"Whether the feed is currently connected.", []string{"source"}, nil),
		srcMessages: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "source", "messages_total"),
			"Lines received per feed.", []string{"source"}, nil),
		srcAttempts: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "source", "reconnect_attempts"),
			"Consecutive failed connection attempts.", []string{"source"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.parsed
	ch <- c.errors
	ch <- c.byType
	ch <- c.fragBuffered
	ch <- c.fragDone
	ch <- c.fragExpired
	ch <- c.fragDropped
	ch <- c.fragLive
	ch <- c.invalid
	ch <- c.srcConnected
	ch <- c.srcMessages
	ch <- c.srcAttempts
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.parsed, st.TotalParsed)
	counter(c.errors, st.TotalErrors)
	for typ, n := range st.ByType {
		counter(c.byType, n, strconv.Itoa(typ))
	}
	counter(c.fragBuffered, st.FragmentsBuffered)
	counter(c.fragDone, st.FragmentsAssembled)
	counter(c.fragExpired, st.FragmentsExpired)
	counter(c.fragDropped, st.FragmentsDropped)
	ch <- prometheus.MustNewConstMetric(c.fragLive, prometheus.GaugeValue, float64(st.FragmentsInBuffer))
	counter(c.invalid, st.InvalidSentences, "sentence")
	counter(c.invalid, st.InvalidChecksum, "checksum")
	counter(c.invalid, st.InvalidMMSI, "mmsi")

	for _, s := range c.src.Sources() {
		connected := 0.0
		if s.Connected {
			connected = 1
		}
		ch <- prometheus.MustNewConstMetric(c.srcConnected, prometheus.GaugeValue, connected, s.Name)
		counter(c.srcMessages, s.MessagesReceived, s.Name)
		ch <- prometheus.MustNewConstMetric(c.srcAttempts, prometheus.GaugeValue, float64(s.ReconnectAttempts), s.Name)
	}
}

// NewRegistry builds a registry with the runtime collectors plus the
// ingest collector, and Handler serves it in Prometheus exposition format.
func NewRegistry(src StatsSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NewCollector(src),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
