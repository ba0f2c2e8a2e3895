package track

import (
	"sort"
	"sync"
	"time"

	"aiswatch/internal/ingest"
)

type StoreConfig struct {
	// MaxVessels limits memory use. When exceeded, the vessels seen
	// longest ago are evicted.
	MaxVessels int
	// TTL controls how long a vessel is kept without updates.
	TTL time.Duration
}

// Store holds the merged per-vessel state built from forwarded records:
// the latest position/motion fields plus sticky static data (name,
// callsign, dimensions) that arrives in separate message types.
type Store struct {
	mu sync.RWMutex

	cfg StoreConfig

	vessels map[string]*vessel
}

type vessel struct {
	state  Vessel
	seenAt time.Time
}

// Vessel is the merged state for one MMSI.
type Vessel struct {
	MMSI    string `json:"mmsi"`
	Source  string `json:"source"`
	OwnShip bool   `json:"isOwnShip,omitempty"`

	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	SpeedKt    *float64 `json:"speed,omitempty"`
	CourseDeg  *float64 `json:"course,omitempty"`
	HeadingDeg *int     `json:"heading,omitempty"`
	Status     *int     `json:"status,omitempty"`

	Name        string   `json:"name,omitempty"`
	IMO         string   `json:"imo,omitempty"`
	Callsign    string   `json:"callsign,omitempty"`
	ShipType    *int     `json:"shiptype,omitempty"`
	LengthM     *int     `json:"length,omitempty"`
	WidthM      *int     `json:"width,omitempty"`
	Draught     *float64 `json:"draught,omitempty"`
	Destination string   `json:"destination,omitempty"`

	LastSeenUTC string `json:"lastSeen"`
}

func NewStore(cfg StoreConfig) *Store {
	if cfg.MaxVessels <= 0 {
		cfg.MaxVessels = 5000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &Store{
		cfg:     cfg,
		vessels: make(map[string]*vessel),
	}
}

// Update merges one forwarded record into the vessel state. Position and
// motion fields replace the previous values when present; static fields
// stick until a newer static report overwrites them.
func (s *Store) Update(rec ingest.Record) {
	if s == nil || rec.MMSI == "" {
		return
	}
	seen := time.UnixMilli(rec.TimestampMS).UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vessels[rec.MMSI]
	if !ok {
		v = &vessel{state: Vessel{MMSI: rec.MMSI}}
		s.vessels[rec.MMSI] = v
	}
	v.seenAt = seen
	st := &v.state
	st.Source = rec.Source
	st.OwnShip = st.OwnShip || rec.OwnShip
	st.LastSeenUTC = seen.Format(time.RFC3339Nano)

	if rec.Lat != nil && rec.Lon != nil {
		st.Lat = rec.Lat
		st.Lon = rec.Lon
	}
	if rec.SpeedKt != nil {
		st.SpeedKt = rec.SpeedKt
	}
	if rec.CourseDeg != nil {
		st.CourseDeg = rec.CourseDeg
	}
	if rec.HeadingDeg != nil {
		st.HeadingDeg = rec.HeadingDeg
	}
	if rec.Status != nil {
		st.Status = rec.Status
	}
	if rec.Name != nil {
		st.Name = *rec.Name
	}
	if rec.IMO != nil {
		st.IMO = *rec.IMO
	}
	if rec.Callsign != nil {
		st.Callsign = *rec.Callsign
	}
	if rec.ShipType != nil {
		st.ShipType = rec.ShipType
	}
	if rec.LengthM != nil {
		st.LengthM = rec.LengthM
	}
	if rec.WidthM != nil {
		st.WidthM = rec.WidthM
	}
	if rec.Draught != nil {
		st.Draught = rec.Draught
	}
	if rec.Destination != nil {
		st.Destination = *rec.Destination
	}

	// Evict oldest until within limit.
	for len(s.vessels) > s.cfg.MaxVessels {
		var oldestMMSI string
		var oldestAt time.Time
		first := true
		for k, v := range s.vessels {
			if first || v.seenAt.Before(oldestAt) {
				oldestMMSI = k
				oldestAt = v.seenAt
				first = false
			}
		}
		delete(s.vessels, oldestMMSI)
	}
}

// Snapshot purges stale vessels and returns the rest sorted by MMSI.
func (s *Store) Snapshot(nowUTC time.Time) []Vessel {
	if s == nil {
		return nil
	}
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	s.mu.Lock()
	cutoff := nowUTC.UTC().Add(-s.cfg.TTL)
	for k, v := range s.vessels {
		if v.seenAt.Before(cutoff) {
			delete(s.vessels, k)
		}
	}
	out := make([]Vessel, 0, len(s.vessels))
	for _, v := range s.vessels {
		out = append(out, v.state)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].MMSI < out[j].MMSI })
	return out
}

// Len reports the live vessel count without purging.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vessels)
}
