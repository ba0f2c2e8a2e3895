package ais

import (
	"sort"
	"strings"
	"time"

	"aiswatch/internal/nmea"
)

// AssemblerConfig bounds the multi-part reassembly buffer.
type AssemblerConfig struct {
	// Timeout controls how long an incomplete group may wait for its
	// remaining fragments.
	Timeout time.Duration
	// MaxGroups limits memory use. When exceeded, the oldest EvictBatch
	// groups are evicted and the incoming fragment is dropped.
	MaxGroups  int
	EvictBatch int
}

// Assembler buffers multi-part sentences until every declared fragment has
// arrived, then hands back the concatenated payload. Single-fragment
// sentences pass straight through.
//
// Not safe for concurrent use; the ingest manager serializes access.
type Assembler struct {
	cfg    AssemblerConfig
	groups map[groupKey]*fragmentGroup

	buffered  uint64
	assembled uint64
	expired   uint64
	dropped   uint64
}

// Counters is a point-in-time view of the assembler counters.
type Counters struct {
	Buffered  uint64
	Assembled uint64
	Expired   uint64
	Dropped   uint64
	InBuffer  int
}

type groupKey struct {
	count   int
	seqID   string
	channel string
}

type fragmentGroup struct {
	parts     map[int]string
	firstSeen time.Time
	ownShip   bool
}

func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxGroups <= 0 {
		cfg.MaxGroups = 1000
	}
	if cfg.EvictBatch <= 0 {
		cfg.EvictBatch = 100
	}
	return &Assembler{
		cfg:    cfg,
		groups: make(map[groupKey]*fragmentGroup),
	}
}

// Sweep purges groups older than the configured timeout. The caller runs it
// once per processed sentence, before field parsing, so no group outlives
// the timeout by more than one inbound line.
func (a *Assembler) Sweep(nowUTC time.Time) {
	if len(a.groups) == 0 {
		return
	}
	cutoff := nowUTC.Add(-a.cfg.Timeout)
	for k, g := range a.groups {
		if g.firstSeen.Before(cutoff) {
			delete(a.groups, k)
			a.expired++
		}
	}
}

// Add offers one parsed sentence. ok is true when a complete payload is
// available: immediately for single-fragment sentences, or once the last
// fragment of a group lands. ownShip is the OR of the contributing
// sentences' own-ship flags.
func (a *Assembler) Add(nowUTC time.Time, s nmea.Sentence) (payload string, ownShip bool, ok bool) {
	if s.FragmentCount <= 1 {
		return s.Payload, s.OwnShip, true
	}

	key := groupKey{count: s.FragmentCount, seqID: s.SequenceID, channel: s.Channel}
	g, exists := a.groups[key]
	if !exists {
		if len(a.groups) >= a.cfg.MaxGroups {
			a.evictOldest(a.cfg.EvictBatch)
			a.dropped++
			return "", false, false
		}
		g = &fragmentGroup{parts: make(map[int]string), firstSeen: nowUTC}
		a.groups[key] = g
	}

	g.parts[s.FragmentIndex] = s.Payload
	g.ownShip = g.ownShip || s.OwnShip
	a.buffered++

	if len(g.parts) < s.FragmentCount {
		return "", false, false
	}

	// All fragments present; concatenate in index order. A missing index
	// here means the group was fed indices outside 1..N, so reassembly
	// would be corrupt: discard instead of emitting.
	var b strings.Builder
	for i := 1; i <= s.FragmentCount; i++ {
		part, present := g.parts[i]
		if !present {
			delete(a.groups, key)
			return "", false, false
		}
		b.WriteString(part)
	}
	delete(a.groups, key)
	a.assembled++
	return b.String(), g.ownShip, true
}

func (a *Assembler) evictOldest(n int) {
	if n >= len(a.groups) {
		a.groups = make(map[groupKey]*fragmentGroup)
		return
	}
	type aged struct {
		key groupKey
		at  time.Time
	}
	all := make([]aged, 0, len(a.groups))
	for k, g := range a.groups {
		all = append(all, aged{key: k, at: g.firstSeen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	for i := 0; i < n; i++ {
		delete(a.groups, all[i].key)
	}
}

func (a *Assembler) Counters() Counters {
	return Counters{
		Buffered:  a.buffered,
		Assembled: a.assembled,
		Expired:   a.expired,
		Dropped:   a.dropped,
		InBuffer:  len(a.groups),
	}
}

// Reset zeroes the counters. Buffered groups are left in place.
func (a *Assembler) Reset() {
	a.buffered = 0
	a.assembled = 0
	a.expired = 0
	a.dropped = 0
}
