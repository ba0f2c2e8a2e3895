package ingest

import (
	"sync"
	"time"
)

// DefaultLocalGrace is how long a local sighting of a vessel suppresses
// collector updates for the same MMSI. A direct VHF reception is fresher
// than the same message relayed through the collector.
const DefaultLocalGrace = 5 * time.Second

// Arbiter resolves, per vessel, which feed currently wins, and forwards
// only winning records to next. Local always wins; collector wins only
// when no local sighting landed inside the grace window.
type Arbiter struct {
	mu     sync.Mutex
	next   RecordSink
	grace  time.Duration
	owners map[string]ownership
}

type ownership struct {
	source string
	at     time.Time
}

func NewArbiter(next RecordSink, grace time.Duration) *Arbiter {
	if grace <= 0 {
		grace = DefaultLocalGrace
	}
	return &Arbiter{
		next:   next,
		grace:  grace,
		owners: make(map[string]ownership),
	}
}

func (a *Arbiter) Update(rec Record) {
	t := time.UnixMilli(rec.TimestampMS)

	a.mu.Lock()
	if rec.Source != SourceLocal {
		if own, ok := a.owners[rec.MMSI]; ok && own.source == SourceLocal && t.Sub(own.at) < a.grace {
			a.mu.Unlock()
			return
		}
	}
	a.owners[rec.MMSI] = ownership{source: rec.Source, at: t}
	a.mu.Unlock()

	if a.next != nil {
		a.next.Update(rec)
	}
}

// Owner reports the feed that last won for mmsi.
func (a *Arbiter) Owner(mmsi string) (source string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	own, ok := a.owners[mmsi]
	return own.source, ok
}
