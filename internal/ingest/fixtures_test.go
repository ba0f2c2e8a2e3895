package ingest

import (
	"fmt"
	"math"
	"sync"
)

// captureSink records every forwarded record.
type captureSink struct {
	mu   sync.Mutex
	recs []Record
}

func (c *captureSink) Update(rec Record) {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
}

func (c *captureSink) records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.recs...)
}

// armorBits packs bits into 6-bit armored ASCII.
func armorBits(bits []bool) string {
	out := make([]byte, 0, (len(bits)+5)/6)
	for i := 0; i < len(bits); i += 6 {
		v := byte(0)
		for b := 0; b < 6; b++ {
			v <<= 1
			if i+b < len(bits) && bits[i+b] {
				v |= 1
			}
		}
		if v < 40 {
			out = append(out, v+48)
		} else {
			out = append(out, v+56)
		}
	}
	return string(out)
}

func putBits(bits []bool, offset, length int, v uint32) {
	for i := 0; i < length; i++ {
		bits[offset+i] = v&(1<<(length-1-i)) != 0
	}
}

// positionPayload builds a minimal 168-bit type 1 report at a fixed
// position so pipeline tests have a decodable payload.
func positionPayload(mmsi uint32) string {
	bits := make([]bool, 168)
	putBits(bits, 0, 6, 1)
	putBits(bits, 8, 30, mmsi)
	putBits(bits, 50, 10, 100)
	lon := uint32(int32(math.Round(4.5*600000))) & (1<<28 - 1)
	lat := uint32(int32(math.Round(52.0*600000))) & (1<<27 - 1)
	putBits(bits, 61, 28, lon)
	putBits(bits, 89, 27, lat)
	putBits(bits, 116, 12, 900)
	putBits(bits, 128, 9, 90)
	return armorBits(bits)
}

// vdm frames one AIVDM sentence with a correct checksum.
func vdm(talker string, count, index int, seqID, channel, payload string, fill int) string {
	body := fmt.Sprintf("%s,%d,%d,%s,%s,%s,%d", talker, count, index, seqID, channel, payload, fill)
	x := byte(0)
	for i := 0; i < len(body); i++ {
		x ^= body[i]
	}
	return fmt.Sprintf("!%s*%02X", body, x)
}
