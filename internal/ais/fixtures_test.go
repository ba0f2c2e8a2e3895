package ais

// Test-side encoders: the exact inverse of the armor and field extraction
// rules, used to synthesize payloads at known field values.

// armor packs bits into 6-bit armored ASCII. Short final groups are padded
// with zero bits.
func armor(bits []bool) string {
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

func putUint(bits []bool, offset, length int, v uint32) {
	for i := 0; i < length; i++ {
		bits[offset+i] = v&(1<<(length-1-i)) != 0
	}
}

func putInt(bits []bool, offset, length int, v int32) {
	mask := uint32(uint64(1)<<length - 1)
	putUint(bits, offset, length, uint32(v)&mask)
}

func putText(bits []bool, offset, length int, s string) {
	for i := 0; i*6+6 <= length; i++ {
		var code byte
		if i < len(s) {
			c := s[i]
			switch {
			case c >= 64 && c < 96:
				code = c - 64
			case c >= 32 && c < 64:
				code = c
			}
		}
		putUint(bits, offset+i*6, 6, uint32(code))
	}
}

// classAPayload builds a 168-bit type 1 position report.
func classAPayload(mmsi uint32, status uint32, sogTenths uint32, lonRaw, latRaw int32, cogTenths, heading uint32) string {
	bits := make([]bool, 168)
	putUint(bits, 0, 6, 1)
	putUint(bits, 8, 30, mmsi)
	putUint(bits, 38, 4, status)
	putUint(bits, 50, 10, sogTenths)
	putInt(bits, 61, 28, lonRaw)
	putInt(bits, 89, 27, latRaw)
	putUint(bits, 116, 12, cogTenths)
	putUint(bits, 128, 9, heading)
	return armor(bits)
}

// voyagePayload builds a 424-bit type 5 static/voyage report.
func voyagePayload(mmsi, imo uint32, callsign, name string, shipType uint32, toBow, toStern, toPort, toStarboard uint32, draughtTenths uint32, destination string) string {
	bits := make([]bool, 424)
	putUint(bits, 0, 6, 5)
	putUint(bits, 8, 30, mmsi)
	putUint(bits, 40, 30, imo)
	putText(bits, 70, 42, callsign)
	putText(bits, 112, 120, name)
	putUint(bits, 232, 8, shipType)
	putUint(bits, 240, 9, toBow)
	putUint(bits, 249, 9, toStern)
	putUint(bits, 258, 6, toPort)
	putUint(bits, 264, 6, toStarboard)
	putUint(bits, 294, 8, draughtTenths)
	putText(bits, 302, 120, destination)
	return armor(bits)
}
