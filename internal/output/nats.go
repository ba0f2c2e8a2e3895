package output

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"aiswatch/internal/ingest"
)

type NATSConfig struct {
	URL string
	// SubjectPrefix is prepended to the vessel MMSI, e.g.
	// "ais.reports" publishes to "ais.reports.244660123".
	SubjectPrefix string
	Name          string
}

// NATS publishes each forwarded record to a per-vessel subject. Publish
// failures are counted and the record dropped; the client's own
// reconnect/buffering handles broker outages.
type NATS struct {
	nc      *nats.Conn
	prefix  string
	dropped atomic.Uint64
}

func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "ais.reports"
	}
	if cfg.Name == "" {
		cfg.Name = "aiswatch"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NATS{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

func (p *NATS) Update(rec ingest.Record) {
	b, err := json.Marshal(rec)
	if err != nil {
		p.dropped.Add(1)
		return
	}
	if err := p.nc.Publish(p.prefix+"."+rec.MMSI, b); err != nil {
		p.dropped.Add(1)
	}
}

// Dropped reports records that could not be published.
func (p *NATS) Dropped() uint64 {
	return p.dropped.Load()
}

// Close flushes pending publishes and closes the connection.
func (p *NATS) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}
