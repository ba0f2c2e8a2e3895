// Package output forwards decoded records to external consumers. Every
// sink here is fire-and-forget: a slow or dead consumer never stalls the
// feeds (the pipeline carries no backpressure).
package output

import (
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"

	"aiswatch/internal/ingest"
)

// UDP sends each forwarded record as one JSON datagram.
type UDP struct {
	dest    string
	conn    *net.UDPConn
	dropped atomic.Uint64
}

func NewUDP(dest string) (*UDP, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &UDP{dest: dest, conn: conn}, nil
}

func (u *UDP) Update(rec ingest.Record) {
	b, err := json.Marshal(rec)
	if err != nil {
		u.dropped.Add(1)
		return
	}
	if _, err := u.conn.Write(b); err != nil {
		u.dropped.Add(1)
	}
}

// Dropped reports records that could not be sent.
func (u *UDP) Dropped() uint64 {
	return u.dropped.Load()
}

func (u *UDP) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}
