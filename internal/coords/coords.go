// Package coords is for ordered sets of (start, stop, strand) segments, the
// coordinate representation shared by seeds, flanks and joined alignments.
//
// The textual form of a Coords is "start..stop:strand[,start..stop:strand]*",
// eg: "1..40:+,45..100:+". Positions are 1-based and inclusive.
package coords

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by every MalformedError.
var ErrMalformed = errors.New("malformed coords")

// MalformedError is returned when a segment or coords string can't be normalized.
type MalformedError struct {
	// Coords is the offending text (or a rendering of the offending segments)
	Coords string

	// Reason is what was wrong with it
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed coords %q: %s", e.Coords, e.Reason)
}

// Unwrap lets errors.Is match ErrMalformed.
func (e *MalformedError) Unwrap() error { return ErrMalformed }

// Strand is the direction a segment is read in.
type Strand byte

const (
	// Plus is the forward strand, start <= stop
	Plus Strand = '+'

	// Minus is the reverse strand, start >= stop
	Minus Strand = '-'
)

// ParseStrand turns a single character into a Strand.
func ParseStrand(s string) (Strand, error) {
	switch s {
	case "+":
		return Plus, nil
	case "-":
		return Minus, nil
	}
	return 0, &MalformedError{Coords: s, Reason: "unknown strand symbol"}
}

func (s Strand) String() string { return string(rune(s)) }

// Segment is a single contiguous interval on one strand.
type Segment struct {
	Start  int
	Stop   int
	Strand Strand
}

// NewSegment makes and validates a segment.
func NewSegment(start, stop int, strand Strand) (Segment, error) {
	seg := Segment{Start: start, Stop: stop, Strand: strand}
	return seg, seg.Validate()
}

// Validate checks that the segment has a known strand and a positive length
// once its strand is taken into account.
func (s Segment) Validate() error {
	if s.Start < 1 || s.Stop < 1 {
		return &MalformedError{Coords: s.String(), Reason: "positions are 1-based"}
	}
	switch s.Strand {
	case Plus:
		if s.Start > s.Stop {
			return &MalformedError{Coords: s.String(), Reason: "start after stop on + strand"}
		}
	case Minus:
		if s.Start < s.Stop {
			return &MalformedError{Coords: s.String(), Reason: "start before stop on - strand"}
		}
	default:
		return &MalformedError{Coords: s.String(), Reason: "unknown strand symbol"}
	}
	return nil
}

// Len is the number of positions in the segment.
func (s Segment) Len() int {
	if s.Strand == Minus {
		return s.Start - s.Stop + 1
	}
	return s.Stop - s.Start + 1
}

// Low is the smallest position in the segment, regardless of strand.
func (s Segment) Low() int {
	if s.Strand == Minus {
		return s.Stop
	}
	return s.Start
}

// High is the largest position in the segment, regardless of strand.
func (s Segment) High() int {
	if s.Strand == Minus {
		return s.Start
	}
	return s.Stop
}

// Contains reports whether pos falls inside the segment.
func (s Segment) Contains(pos int) bool {
	return pos >= s.Low() && pos <= s.High()
}

// Overlaps reports whether two segments share at least one position.
func (s Segment) Overlaps(o Segment) bool {
	return s.Low() <= o.High() && o.Low() <= s.High()
}

func (s Segment) String() string {
	return fmt.Sprintf("%d..%d:%c", s.Start, s.Stop, s.Strand)
}

// Coords is an ordered list of segments, 5' to 3' along the strand.
type Coords []Segment

// Parse reads a Coords from its textual form.
func Parse(text string) (Coords, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &MalformedError{Coords: text, Reason: "empty"}
	}

	var c Coords
	for _, tok := range strings.Split(text, ",") {
		seg, err := parseSegment(tok)
		if err != nil {
			return nil, err
		}
		c = append(c, seg)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// parseSegment reads "start..stop:strand".
func parseSegment(tok string) (Segment, error) {
	span, strand, ok := strings.Cut(tok, ":")
	if !ok {
		return Segment{}, &MalformedError{Coords: tok, Reason: "missing strand"}
	}
	startS, stopS, ok := strings.Cut(span, "..")
	if !ok {
		return Segment{}, &MalformedError{Coords: tok, Reason: "missing '..'"}
	}
	start, err := strconv.Atoi(startS)
	if err != nil {
		return Segment{}, &MalformedError{Coords: tok, Reason: "bad start"}
	}
	stop, err := strconv.Atoi(stopS)
	if err != nil {
		return Segment{}, &MalformedError{Coords: tok, Reason: "bad stop"}
	}
	st, err := ParseStrand(strand)
	if err != nil {
		return Segment{}, &MalformedError{Coords: tok, Reason: "unknown strand symbol"}
	}
	return NewSegment(start, stop, st)
}

// FromArrays builds a Coords from parallel slices of starts, stops and strands.
func FromArrays(starts, stops []int, strands []Strand) (Coords, error) {
	if len(starts) != len(stops) || len(starts) != len(strands) {
		return nil, &MalformedError{
			Coords: fmt.Sprintf("%v %v %v", starts, stops, strands),
			Reason: "array lengths differ",
		}
	}

	c := make(Coords, 0, len(starts))
	for i := range starts {
		c = append(c, Segment{Start: starts[i], Stop: stops[i], Strand: strands[i]})
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every segment, that they share a strand, and that they're
// in traversal order without overlapping.
func (c Coords) Validate() error {
	if len(c) == 0 {
		return &MalformedError{Coords: "", Reason: "no segments"}
	}
	for i, seg := range c {
		if err := seg.Validate(); err != nil {
			return err
		}
		if i == 0 {
			continue
		}

		prev := c[i-1]
		if seg.Strand != prev.Strand {
			return &MalformedError{Coords: c.String(), Reason: "mixed strands"}
		}
		if seg.Overlaps(prev) {
			return &MalformedError{Coords: c.String(), Reason: "overlapping segments"}
		}
		if (seg.Strand == Plus && seg.Start < prev.Stop) || (seg.Strand == Minus && seg.Start > prev.Stop) {
			return &MalformedError{Coords: c.String(), Reason: "segments out of order"}
		}
	}
	return nil
}

// Append adds a segment to the end. Adjacent segments are not merged.
func (c Coords) Append(seg Segment) (Coords, error) {
	if err := seg.Validate(); err != nil {
		return c, err
	}
	if len(c) > 0 && c[len(c)-1].Strand != seg.Strand {
		return c, &MalformedError{Coords: c.String() + "," + seg.String(), Reason: "mixed strands"}
	}
	return append(c, seg), nil
}

// String is the textual form, the inverse of Parse.
func (c Coords) String() string {
	parts := make([]string, len(c))
	for i, seg := range c {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ",")
}

// Len is the summed length of all segments.
func (c Coords) Len() (n int) {
	for _, seg := range c {
		n += seg.Len()
	}
	return
}

// Bounds returns the 5'-most and 3'-most positions.
func (c Coords) Bounds() (start, stop int) {
	if len(c) == 0 {
		return 0, 0
	}
	return c[0].Start, c[len(c)-1].Stop
}

// Strand of the first segment, all segments share it once validated.
func (c Coords) Strand() Strand {
	if len(c) == 0 {
		return 0
	}
	return c[0].Strand
}

// Longest returns the longest segment, its index and its length. Ties go to
// the first occurring segment.
func (c Coords) Longest() (seg Segment, index, length int) {
	index = -1
	for i, s := range c {
		if l := s.Len(); l > length {
			seg, index, length = s, i, l
		}
	}
	return
}

// Clone returns a copy that doesn't share a backing array with c.
func (c Coords) Clone() Coords {
	if c == nil {
		return nil
	}
	return append(Coords(nil), c...)
}
