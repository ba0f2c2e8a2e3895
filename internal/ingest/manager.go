package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aiswatch/internal/ais"
	"aiswatch/internal/nmea"
)

// Record is one decoded message tagged with its originating feed: the
// output record handed to the track collaborator and the outputs.
type Record struct {
	ais.Report
	TimestampMS int64  `json:"timestamp"`
	Source      string `json:"source"`
	OwnShip     bool   `json:"isOwnShip,omitempty"`
}

// RecordSink receives forwarded records. Implementations must be safe for
// concurrent use; both feeds' reader goroutines call it.
type RecordSink interface {
	Update(Record)
}

// Tee fans one record out to several sinks in order.
type Tee []RecordSink

func (t Tee) Update(rec Record) {
	for _, s := range t {
		s.Update(rec)
	}
}

// Stats is the shared parser counter snapshot.
type Stats struct {
	TotalParsed        uint64         `json:"totalParsed"`
	TotalErrors        uint64         `json:"totalErrors"`
	ByType             map[int]uint64 `json:"byType"`
	FragmentsBuffered  uint64         `json:"fragmentsBuffered"`
	FragmentsAssembled uint64         `json:"fragmentsAssembled"`
	FragmentsExpired   uint64         `json:"fragmentsExpired"`
	FragmentsDropped   uint64         `json:"fragmentsDropped"`
	InvalidSentences   uint64         `json:"invalidSentences"`
	InvalidChecksum    uint64         `json:"invalidChecksum"`
	InvalidMMSI        uint64         `json:"invalidMmsi"`
	FragmentsInBuffer  int            `json:"fragmentsInBuffer"`
}

type ManagerConfig struct {
	// FragmentTimeout bounds how long an incomplete multi-part group is
	// buffered.
	FragmentTimeout time.Duration
}

// Manager owns the shared decode pipeline (validator, assembler, decoder)
// and up to two Sources. Every line is fully validated, reassembled,
// decoded and forwarded under one mutex, so the assembler needs no locking
// of its own and lines are never interleaved mid-pipeline.
type Manager struct {
	mu        sync.Mutex
	assembler *ais.Assembler
	sink      RecordSink
	now       func() time.Time

	sources map[string]*Source

	totalParsed      uint64
	totalErrors      uint64
	byType           map[int]uint64
	invalidSentences uint64
	invalidChecksum  uint64
	invalidMMSI      uint64
}

func NewManager(cfg ManagerConfig, sink RecordSink) *Manager {
	return &Manager{
		assembler: ais.NewAssembler(ais.AssemblerConfig{Timeout: cfg.FragmentTimeout}),
		sink:      sink,
		now:       func() time.Time { return time.Now().UTC() },
		sources:   make(map[string]*Source),
		byType:    make(map[int]uint64),
	}
}

// AddSource creates and starts a feed whose lines flow into the shared
// pipeline tagged with cfg.Name.
func (m *Manager) AddSource(ctx context.Context, cfg SourceConfig) error {
	m.mu.Lock()
	_, dup := m.sources[cfg.Name]
	m.mu.Unlock()
	if dup {
		return fmt.Errorf("source %q already registered", cfg.Name)
	}

	src, err := NewSource(cfg)
	if err != nil {
		return err
	}
	if err := src.Start(ctx, m.HandleLine); err != nil {
		return err
	}

	m.mu.Lock()
	m.sources[cfg.Name] = src
	m.mu.Unlock()
	return nil
}

// Source returns the named feed, or nil.
func (m *Manager) Source(name string) *Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources[name]
}

// Sources returns a snapshot per registered feed, collector first.
func (m *Manager) Sources() []SourceSnapshot {
	m.mu.Lock()
	srcs := make([]*Source, 0, len(m.sources))
	for _, name := range []string{SourceCollector, SourceLocal} {
		if s, ok := m.sources[name]; ok {
			srcs = append(srcs, s)
		}
	}
	for name, s := range m.sources {
		if name != SourceCollector && name != SourceLocal {
			srcs = append(srcs, s)
		}
	}
	m.mu.Unlock()

	out := make([]SourceSnapshot, 0, len(srcs))
	for _, s := range srcs {
		out = append(out, s.Snapshot())
	}
	return out
}

// HandleLine runs one raw line through the pipeline. A malformed sentence
// is counted and dropped; it never stops ingestion, including on an
// unexpected decode panic.
func (m *Manager) HandleLine(source string, line []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			m.totalErrors++
		}
	}()

	now := m.now()
	m.assembler.Sweep(now)

	s, err := nmea.Parse(string(line))
	if err != nil {
		m.totalErrors++
		if errors.Is(err, nmea.ErrChecksum) {
			m.invalidChecksum++
		} else {
			m.invalidSentences++
		}
		return
	}

	payload, ownShip, ok := m.assembler.Add(now, s)
	if !ok {
		return
	}

	rep, err := ais.Decode(payload)
	if err != nil {
		m.totalErrors++
		if errors.Is(err, ais.ErrInvalidMMSI) {
			m.invalidMMSI++
		}
		return
	}

	m.totalParsed++
	m.byType[rep.Type]++

	if m.sink != nil {
		m.sink.Update(Record{
			Report:      rep,
			TimestampMS: now.UnixMilli(),
			Source:      source,
			OwnShip:     ownShip,
		})
	}
}

// Stats returns the shared parser counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[int]uint64, len(m.byType))
	for k, v := range m.byType {
		byType[k] = v
	}
	fc := m.assembler.Counters()
	return Stats{
		TotalParsed:        m.totalParsed,
		TotalErrors:        m.totalErrors,
		ByType:             byType,
		FragmentsBuffered:  fc.Buffered,
		FragmentsAssembled: fc.Assembled,
		FragmentsExpired:   fc.Expired,
		FragmentsDropped:   fc.Dropped,
		InvalidSentences:   m.invalidSentences,
		InvalidChecksum:    m.invalidChecksum,
		InvalidMMSI:        m.invalidMMSI,
		FragmentsInBuffer:  fc.InBuffer,
	}
}

// ResetStats zeroes the shared parser counters and every source's
// counters. It is not atomic with respect to in-flight reconnects.
func (m *Manager) ResetStats() {
	m.mu.Lock()
	m.totalParsed = 0
	m.totalErrors = 0
	m.byType = make(map[int]uint64)
	m.invalidSentences = 0
	m.invalidChecksum = 0
	m.invalidMMSI = 0
	m.assembler.Reset()
	srcs := make([]*Source, 0, len(m.sources))
	for _, s := range m.sources {
		srcs = append(srcs, s)
	}
	m.mu.Unlock()

	for _, s := range srcs {
		s.ResetCounters()
	}
}

// Close stops every source and waits for their reader goroutines.
func (m *Manager) Close() {
	m.mu.Lock()
	srcs := make([]*Source, 0, len(m.sources))
	for _, s := range m.sources {
		srcs = append(srcs, s)
	}
	m.mu.Unlock()

	for _, s := range srcs {
		s.Close()
	}
}
