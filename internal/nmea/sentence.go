package nmea

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentence carries the framing fields of one AIVDM/AIVDO sentence.
//
// SequenceID is kept as the raw field text (it may be empty for
// single-fragment sentences) because it only matters as part of the
// multi-part group key.
type Sentence struct {
	Talker        string
	FragmentCount int
	FragmentIndex int
	SequenceID    string
	Channel       string
	Payload       string
	FillBits      int
	OwnShip       bool
}

var (
	// ErrChecksum marks a sentence whose XOR checksum does not match the
	// two hex digits after '*'. Callers count it separately from other
	// framing failures.
	ErrChecksum = errors.New("nmea: checksum mismatch")

	ErrFraming = errors.New("nmea: bad framing")
)

const (
	minSentenceLen = 15
	maxSentenceLen = 256
)

var talkers = []string{"AIVDM", "ABVDM", "AIVDO", "ABVDO"}

// Validate checks the framing and checksum of one trimmed line without
// splitting its fields. Checksum is verified against the sentence as
// received; no repair of a corrupted prefix is attempted.
func Validate(line string) error {
	if len(line) < minSentenceLen || len(line) > maxSentenceLen {
		return fmt.Errorf("%w: length %d", ErrFraming, len(line))
	}
	if line[0] != '!' && line[0] != '$' {
		return fmt.Errorf("%w: missing leading delimiter", ErrFraming)
	}
	found := false
	for _, t := range talkers {
		if strings.Contains(line, t) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: not an AIS talker", ErrFraming)
	}
	star := strings.IndexByte(line, '*')
	if star == -1 {
		return fmt.Errorf("%w: missing checksum", ErrFraming)
	}
	if star+3 > len(line) {
		return fmt.Errorf("%w: short checksum", ErrFraming)
	}
	want, err := hex.DecodeString(line[star+1 : star+3])
	if err != nil || len(want) != 1 {
		return fmt.Errorf("%w: bad checksum digits", ErrFraming)
	}
	got := byte(0)
	for i := 1; i < star; i++ {
		got ^= line[i]
	}
	if got != want[0] {
		return ErrChecksum
	}
	return nil
}

// Parse validates line and splits it into Sentence fields.
//
// Expected shape:
//
//	!AIVDM,<fragCount>,<fragIndex>,<seqID>,<channel>,<payload>,<fillBits>*<hex>
func Parse(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if err := Validate(line); err != nil {
		return Sentence{}, err
	}

	star := strings.IndexByte(line, '*')
	body := line[1:star]
	parts := strings.Split(body, ",")
	if len(parts) < 7 {
		return Sentence{}, fmt.Errorf("%w: %d fields", ErrFraming, len(parts))
	}

	count, err := strconv.Atoi(parts[1])
	if err != nil || count < 1 {
		return Sentence{}, fmt.Errorf("%w: fragment count %q", ErrFraming, parts[1])
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 1 || index > count {
		return Sentence{}, fmt.Errorf("%w: fragment index %q", ErrFraming, parts[2])
	}
	fill, err := strconv.Atoi(parts[6])
	if err != nil || fill < 0 || fill > 5 {
		return Sentence{}, fmt.Errorf("%w: fill bits %q", ErrFraming, parts[6])
	}
	if parts[5] == "" {
		return Sentence{}, fmt.Errorf("%w: empty payload", ErrFraming)
	}

	return Sentence{
		Talker:        parts[0],
		FragmentCount: count,
		FragmentIndex: index,
		SequenceID:    parts[3],
		Channel:       parts[4],
		Payload:       parts[5],
		FillBits:      fill,
		OwnShip:       strings.Contains(parts[0], "VDO"),
	}, nil
}
