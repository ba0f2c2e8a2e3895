package ais

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Report is one decoded AIS message. Type and MMSI are always present;
// everything else is optional and nil when the message class does not carry
// it or the raw value was the "unavailable" sentinel. Downstream code
// switches on Type.
type Report struct {
	Type int    `json:"type"`
	MMSI string `json:"mmsi"`

	Status     *int     `json:"status,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	SpeedKt    *float64 `json:"speed,omitempty"`
	CourseDeg  *float64 `json:"course,omitempty"`
	HeadingDeg *int     `json:"heading,omitempty"`

	Name        *string  `json:"name,omitempty"`
	IMO         *string  `json:"imo,omitempty"`
	Callsign    *string  `json:"callsign,omitempty"`
	ShipType    *int     `json:"shiptype,omitempty"`
	LengthM     *int     `json:"length,omitempty"`
	WidthM      *int     `json:"width,omitempty"`
	Draught     *float64 `json:"draught,omitempty"`
	Destination *string  `json:"destination,omitempty"`

	// PartNumber is set for type 24 static data reports (0=name, 1=static).
	PartNumber *int `json:"part,omitempty"`
}

// HasPosition reports whether both coordinates survived sentinel and range
// filtering.
func (r Report) HasPosition() bool {
	return r.Lat != nil && r.Lon != nil
}

// ErrInvalidMMSI marks a message whose MMSI failed validation; the whole
// message is dropped.
var ErrInvalidMMSI = errors.New("ais: invalid mmsi")

var mmsiPattern = regexp.MustCompile(`^\d{9}$`)

// Raw "unavailable" sentinels per ITU-R M.1371.
const (
	sogUnavailable     = 1023
	cogUnavailable     = 3600
	headingUnavailable = 511
	latUnavailable     = 91.0
	lonUnavailable     = 181.0
)

// Minimum total bit lengths per message type. Below the minimum, the
// decoder emits the bare {Type, MMSI} stub so vessel identity survives a
// truncated payload.
const (
	minBitsPosition   = 168
	minBitsVoyage     = 424
	minBitsExtClassB  = 312
	minBitsStaticData = 160
)

// Decode turns one armored payload (already reassembled if multi-part)
// into a Report.
func Decode(payload string) (Report, error) {
	f := newBitField(payload)

	mmsi := fmt.Sprintf("%09d", f.Uint(8, 30))
	if !validMMSI(mmsi) {
		return Report{}, fmt.Errorf("%w: %q", ErrInvalidMMSI, mmsi)
	}

	r := Report{Type: int(f.Uint(0, 6)), MMSI: mmsi}
	switch r.Type {
	case 1, 2, 3:
		decodeClassAPosition(f, &r)
	case 5:
		decodeStaticVoyage(f, &r)
	case 18:
		decodeClassBPosition(f, &r)
	case 19:
		decodeExtendedClassB(f, &r)
	case 24:
		decodeStaticDataReport(f, &r)
	}
	return r, nil
}

// validMMSI accepts exactly nine digits in [1, 999999998]. Zero and the
// all-nines broadcast value identify no vessel.
func validMMSI(s string) bool {
	if !mmsiPattern.MatchString(s) {
		return false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 999999998
}

func decodeClassAPosition(f bitField, r *Report) {
	if f.n < minBitsPosition {
		return
	}
	status := int(f.Uint(38, 4))
	r.Status = &status
	setMotion(f, r, 50, 61, 89, 116, 128)
}

func decodeClassBPosition(f bitField, r *Report) {
	if f.n < minBitsPosition {
		return
	}
	setMotion(f, r, 46, 57, 85, 112, 124)
}

func decodeExtendedClassB(f bitField, r *Report) {
	if f.n < minBitsExtClassB {
		return
	}
	setMotion(f, r, 46, 57, 85, 112, 124)
	if name := f.Text(143, 120); name != "" {
		r.Name = &name
	}
	shipType := int(f.Uint(263, 8))
	r.ShipType = &shipType
	setDimensions(f, r, 271)
}

func decodeStaticVoyage(f bitField, r *Report) {
	if f.n < minBitsVoyage {
		return
	}
	if imo := f.Uint(40, 30); imo != 0 {
		s := strconv.FormatUint(uint64(imo), 10)
		r.IMO = &s
	}
	if cs := f.Text(70, 42); cs != "" {
		r.Callsign = &cs
	}
	if name := f.Text(112, 120); name != "" {
		r.Name = &name
	}
	shipType := int(f.Uint(232, 8))
	r.ShipType = &shipType
	setDimensions(f, r, 240)
	if d := f.Uint(294, 8); d != 0 {
		v := float64(d) / 10
		r.Draught = &v
	}
	if dest := f.Text(302, 120); dest != "" {
		r.Destination = &dest
	}
}

func decodeStaticDataReport(f bitField, r *Report) {
	if f.n < minBitsStaticData {
		return
	}
	part := int(f.Uint(38, 2))
	r.PartNumber = &part
	switch part {
	case 0:
		if name := f.Text(40, 120); name != "" {
			r.Name = &name
		}
	case 1:
		shipType := int(f.Uint(40, 8))
		r.ShipType = &shipType
		if cs := f.Text(90, 42); cs != "" {
			r.Callsign = &cs
		}
		setDimensions(f, r, 132)
	}
}

// setMotion extracts the shared speed/position/course/heading block used by
// types 1/2/3, 18 and 19, filtering sentinels.
func setMotion(f bitField, r *Report, sogOff, lonOff, latOff, cogOff, hdgOff int) {
	if sog := f.Uint(sogOff, 10); sog != sogUnavailable {
		v := float64(sog) / 10
		r.SpeedKt = &v
	}
	lon := float64(f.Int(lonOff, 28)) / 600000
	lat := float64(f.Int(latOff, 27)) / 600000
	setPosition(r, lat, lon)
	if cog := f.Uint(cogOff, 12); cog != cogUnavailable {
		v := float64(cog) / 10
		r.CourseDeg = &v
	}
	if hdg := f.Uint(hdgOff, 9); hdg != headingUnavailable {
		v := int(hdg)
		r.HeadingDeg = &v
	}
}

// setPosition attaches both coordinates only when both are in range and
// neither equals its sentinel.
func setPosition(r *Report, lat, lon float64) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return
	}
	if lat == latUnavailable || lon == lonUnavailable {
		return
	}
	r.Lat = &lat
	r.Lon = &lon
}

// setDimensions reads the to-bow/to-stern/to-port/to-starboard block at
// base and reports overall length and width when either pair is non-zero.
func setDimensions(f bitField, r *Report, base int) {
	toBow := int(f.Uint(base, 9))
	toStern := int(f.Uint(base+9, 9))
	toPort := int(f.Uint(base+18, 6))
	toStarboard := int(f.Uint(base+24, 6))
	if l := toBow + toStern; l > 0 {
		r.LengthM = &l
	}
	if w := toPort + toStarboard; w > 0 {
		r.WidthM = &w
	}
}
