package ais

import (
	"errors"
	"math"
	"testing"
)

func TestSixBit(t *testing.T) {
	tests := []struct {
		c    byte
		want byte
	}{
		{'0', 0},
		{'9', 9},
		{'W', 39},
		{'`', 40},
		{'w', 63},
		{'*', 0},
		{'X', 0},
	}
	for _, tc := range tests {
		if got := sixBit(tc.c); got != tc.want {
			t.Fatalf("sixBit(%q)=%d want %d", tc.c, got, tc.want)
		}
	}
}

func TestDecode_ClassAPositionRoundTrip(t *testing.T) {
	const (
		lat = 37.8083
		lon = -122.4194
	)
	latRaw := int32(math.Round(lat * 600000))
	lonRaw := int32(math.Round(lon * 600000))

	payload := classAPayload(123456789, 5, 123, lonRaw, latRaw, 2501, 251)
	r, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Type != 1 {
		t.Fatalf("type=%d want 1", r.Type)
	}
	if r.MMSI != "123456789" {
		t.Fatalf("mmsi=%q want 123456789", r.MMSI)
	}
	if r.Status == nil || *r.Status != 5 {
		t.Fatalf("status=%v want 5", r.Status)
	}
	if !r.HasPosition() {
		t.Fatalf("no position attached")
	}
	if math.Abs(*r.Lat-lat) > 1.0/600000 {
		t.Fatalf("lat=%v want %v", *r.Lat, lat)
	}
	if math.Abs(*r.Lon-lon) > 1.0/600000 {
		t.Fatalf("lon=%v want %v", *r.Lon, lon)
	}
	if r.SpeedKt == nil || math.Abs(*r.SpeedKt-12.3) > 0.05 {
		t.Fatalf("speed=%v want 12.3", r.SpeedKt)
	}
	if r.CourseDeg == nil || math.Abs(*r.CourseDeg-250.1) > 0.05 {
		t.Fatalf("course=%v want 250.1", r.CourseDeg)
	}
	if r.HeadingDeg == nil || *r.HeadingDeg != 251 {
		t.Fatalf("heading=%v want 251", r.HeadingDeg)
	}
}

func TestDecode_SentinelsOmitted(t *testing.T) {
	payload := classAPayload(123456789, 0,
		sogUnavailable,
		int32(181*600000), // lon sentinel
		int32(91*600000),  // lat sentinel
		cogUnavailable,
		headingUnavailable)
	r, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.SpeedKt != nil {
		t.Fatalf("speed=%v want nil", *r.SpeedKt)
	}
	if r.CourseDeg != nil {
		t.Fatalf("course=%v want nil", *r.CourseDeg)
	}
	if r.HeadingDeg != nil {
		t.Fatalf("heading=%v want nil", *r.HeadingDeg)
	}
	if r.Lat != nil || r.Lon != nil {
		t.Fatalf("position attached for sentinel lat/lon")
	}
}

func TestDecode_MMSIValidation(t *testing.T) {
	reject := []uint32{0, 999999999, 1073741823}
	for _, mmsi := range reject {
		payload := classAPayload(mmsi, 0, 0, 0, 0, 0, 0)
		if _, err := Decode(payload); !errors.Is(err, ErrInvalidMMSI) {
			t.Fatalf("mmsi %d: err=%v want ErrInvalidMMSI", mmsi, err)
		}
	}

	r, err := Decode(classAPayload(123456789, 0, 0, 0, 0, 0, 0))
	if err != nil {
		t.Fatalf("mmsi 123456789 rejected: %v", err)
	}
	if r.MMSI != "123456789" {
		t.Fatalf("mmsi=%q", r.MMSI)
	}

	// MMSI 1 zero-pads to nine digits.
	r, err = Decode(classAPayload(1, 0, 0, 0, 0, 0, 0))
	if err != nil {
		t.Fatalf("mmsi 1 rejected: %v", err)
	}
	if r.MMSI != "000000001" {
		t.Fatalf("mmsi=%q want 000000001", r.MMSI)
	}
}

func TestValidMMSI_Strings(t *testing.T) {
	bad := []string{"000000000", "999999999", "12345678", "1234567890", "12345678a", ""}
	for _, s := range bad {
		if validMMSI(s) {
			t.Fatalf("accepted %q", s)
		}
	}
	if !validMMSI("123456789") {
		t.Fatalf("rejected 123456789")
	}
}

func TestDecode_TruncatedPayloadYieldsStub(t *testing.T) {
	// 7 armor characters = 42 bits: enough for type+MMSI, far below the
	// 168-bit position minimum.
	bits := make([]bool, 42)
	putUint(bits, 0, 6, 1)
	putUint(bits, 8, 30, 123456789)
	r, err := Decode(armor(bits))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Type != 1 || r.MMSI != "123456789" {
		t.Fatalf("stub=%+v", r)
	}
	if r.HasPosition() || r.SpeedKt != nil || r.Status != nil {
		t.Fatalf("truncated payload produced fields: %+v", r)
	}
}

func TestDecode_StaticVoyage(t *testing.T) {
	payload := voyagePayload(123456789, 9311767, "H3RC", "EVER GIVEN", 70, 200, 100, 20, 20, 120, "ROTTERDAM")
	r, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Type != 5 {
		t.Fatalf("type=%d want 5", r.Type)
	}
	if r.Name == nil || *r.Name != "EVER GIVEN" {
		t.Fatalf("name=%v", r.Name)
	}
	if r.IMO == nil || *r.IMO != "9311767" {
		t.Fatalf("imo=%v want 9311767", r.IMO)
	}
	if r.Callsign == nil || *r.Callsign != "H3RC" {
		t.Fatalf("callsign=%v", r.Callsign)
	}
	if r.ShipType == nil || *r.ShipType != 70 {
		t.Fatalf("shiptype=%v want 70", r.ShipType)
	}
	if r.LengthM == nil || *r.LengthM != 300 {
		t.Fatalf("length=%v want 300", r.LengthM)
	}
	if r.WidthM == nil || *r.WidthM != 40 {
		t.Fatalf("width=%v want 40", r.WidthM)
	}
	if r.Draught == nil || *r.Draught != 12.0 {
		t.Fatalf("draught=%v want 12.0", r.Draught)
	}
	if r.Destination == nil || *r.Destination != "ROTTERDAM" {
		t.Fatalf("destination=%v", r.Destination)
	}
}

func TestDecode_StaticVoyageZeroIMOAndDraught(t *testing.T) {
	payload := voyagePayload(123456789, 0, "", "SLOOP", 36, 0, 0, 0, 0, 0, "")
	r, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.IMO != nil {
		t.Fatalf("imo=%v want nil", *r.IMO)
	}
	if r.Draught != nil {
		t.Fatalf("draught=%v want nil", *r.Draught)
	}
	if r.LengthM != nil || r.WidthM != nil {
		t.Fatalf("zero dimensions attached: %+v", r)
	}
}

func TestDecode_ClassBPosition(t *testing.T) {
	bits := make([]bool, 168)
	putUint(bits, 0, 6, 18)
	putUint(bits, 8, 30, 123456789)
	putUint(bits, 46, 10, 57) // 5.7 kt
	putInt(bits, 57, 28, int32(math.Round(4.899*600000)))
	putInt(bits, 85, 27, int32(math.Round(52.37*600000)))
	putUint(bits, 112, 12, 900) // 90.0 deg
	putUint(bits, 124, 9, 91)
	r, err := Decode(armor(bits))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Type != 18 {
		t.Fatalf("type=%d want 18", r.Type)
	}
	if r.Status != nil {
		t.Fatalf("class B report carries status %v", *r.Status)
	}
	if !r.HasPosition() || math.Abs(*r.Lat-52.37) > 1.0/600000 || math.Abs(*r.Lon-4.899) > 1.0/600000 {
		t.Fatalf("position=%v,%v", r.Lat, r.Lon)
	}
	if r.SpeedKt == nil || math.Abs(*r.SpeedKt-5.7) > 0.05 {
		t.Fatalf("speed=%v", r.SpeedKt)
	}
	if r.HeadingDeg == nil || *r.HeadingDeg != 91 {
		t.Fatalf("heading=%v", r.HeadingDeg)
	}
}

func TestDecode_ExtendedClassB(t *testing.T) {
	bits := make([]bool, 312)
	putUint(bits, 0, 6, 19)
	putUint(bits, 8, 30, 123456789)
	putUint(bits, 46, 10, 40)
	putInt(bits, 57, 28, int32(1.5*600000))
	putInt(bits, 85, 27, int32(43.25*600000))
	putUint(bits, 112, 12, 1800)
	putUint(bits, 124, 9, 180)
	putText(bits, 143, 120, "PILOT ONE")
	putUint(bits, 263, 8, 50)
	putUint(bits, 271, 9, 10)
	putUint(bits, 280, 9, 5)
	putUint(bits, 289, 6, 2)
	putUint(bits, 295, 6, 2)
	r, err := Decode(armor(bits))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Name == nil || *r.Name != "PILOT ONE" {
		t.Fatalf("name=%v", r.Name)
	}
	if r.ShipType == nil || *r.ShipType != 50 {
		t.Fatalf("shiptype=%v", r.ShipType)
	}
	if r.LengthM == nil || *r.LengthM != 15 {
		t.Fatalf("length=%v want 15", r.LengthM)
	}
	if r.WidthM == nil || *r.WidthM != 4 {
		t.Fatalf("width=%v want 4", r.WidthM)
	}
	if !r.HasPosition() {
		t.Fatalf("no position")
	}
}

func TestDecode_StaticDataReport(t *testing.T) {
	// Part 0: name.
	bits := make([]bool, 160)
	putUint(bits, 0, 6, 24)
	putUint(bits, 8, 30, 123456789)
	putUint(bits, 38, 2, 0)
	putText(bits, 40, 120, "SEA OTTER")
	r, err := Decode(armor(bits))
	if err != nil {
		t.Fatalf("Decode part 0: %v", err)
	}
	if r.PartNumber == nil || *r.PartNumber != 0 {
		t.Fatalf("part=%v want 0", r.PartNumber)
	}
	if r.Name == nil || *r.Name != "SEA OTTER" {
		t.Fatalf("name=%v", r.Name)
	}

	// Part 1: ship type, callsign, dimensions.
	bits = make([]bool, 168)
	putUint(bits, 0, 6, 24)
	putUint(bits, 8, 30, 123456789)
	putUint(bits, 38, 2, 1)
	putUint(bits, 40, 8, 37)
	putText(bits, 90, 42, "PD2366")
	putUint(bits, 132, 9, 8)
	putUint(bits, 141, 9, 4)
	putUint(bits, 150, 6, 2)
	putUint(bits, 156, 6, 1)
	r, err = Decode(armor(bits))
	if err != nil {
		t.Fatalf("Decode part 1: %v", err)
	}
	if r.PartNumber == nil || *r.PartNumber != 1 {
		t.Fatalf("part=%v want 1", r.PartNumber)
	}
	if r.ShipType == nil || *r.ShipType != 37 {
		t.Fatalf("shiptype=%v", r.ShipType)
	}
	if r.Callsign == nil || *r.Callsign != "PD2366" {
		t.Fatalf("callsign=%v", r.Callsign)
	}
	if r.LengthM == nil || *r.LengthM != 12 || r.WidthM == nil || *r.WidthM != 3 {
		t.Fatalf("dims=%v/%v want 12/3", r.LengthM, r.WidthM)
	}
}

func TestDecode_UnknownTypePassThrough(t *testing.T) {
	bits := make([]bool, 168)
	putUint(bits, 0, 6, 9)
	putUint(bits, 8, 30, 123456789)
	putUint(bits, 50, 10, 100)
	r, err := Decode(armor(bits))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Type != 9 || r.MMSI != "123456789" {
		t.Fatalf("stub=%+v", r)
	}
	if r.SpeedKt != nil || r.HasPosition() {
		t.Fatalf("unknown type decoded fields: %+v", r)
	}
}
