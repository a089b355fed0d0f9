package seed

import (
	"fmt"
	"strconv"
	"strings"
)

// End of a sequence a flank covers.
type End int

const (
	// FivePrime is the start of the sequence through some model position
	FivePrime End = iota

	// ThreePrime is some model position through the end of the sequence
	ThreePrime

	// Full is the whole sequence, used when two flanks would overlap
	Full
)

func (e End) String() string {
	switch e {
	case FivePrime:
		return "5'"
	case ThreePrime:
		return "3'"
	case Full:
		return "full"
	}
	return "?"
}

// ParseEnd is the inverse of End.String.
func ParseEnd(s string) (End, error) {
	switch s {
	case "5'", "5":
		return FivePrime, nil
	case "3'", "3":
		return ThreePrime, nil
	case "full":
		return Full, nil
	}
	return 0, fmt.Errorf("unknown sequence end %q", s)
}

// Subseq is a request for a precise realignment of part of a sequence.
type Subseq struct {
	// Name is "<seq>/<start>-<stop>"
	Name string

	// SeqName is the full sequence's name
	SeqName string

	End   End
	Start int
	Stop  int
}

// SubseqName is the name a subsequence request, and its alignment, goes by.
func SubseqName(seqName string, start, stop int) string {
	return fmt.Sprintf("%s/%d-%d", seqName, start, stop)
}

// ParseSubseqName is the inverse of SubseqName.
func ParseSubseqName(name string) (seqName string, start, stop int, err error) {
	slash := strings.LastIndex(name, "/")
	if slash < 1 {
		return "", 0, 0, fmt.Errorf("%q is not <seq>/<start>-<stop>", name)
	}
	startS, stopS, ok := strings.Cut(name[slash+1:], "-")
	if !ok {
		return "", 0, 0, fmt.Errorf("%q is not <seq>/<start>-<stop>", name)
	}
	if start, err = strconv.Atoi(startS); err != nil {
		return "", 0, 0, fmt.Errorf("%q has a bad start: %v", name, err)
	}
	if stop, err = strconv.Atoi(stopS); err != nil {
		return "", 0, 0, fmt.Errorf("%q has a bad stop: %v", name, err)
	}
	if start < 1 || stop < start {
		return "", 0, 0, fmt.Errorf("%q is not a forward span", name)
	}
	return name[:slash], start, stop, nil
}

func newSubseq(seqName string, end End, start, stop int) Subseq {
	return Subseq{
		Name:    SubseqName(seqName, start, stop),
		SeqName: seqName,
		End:     end,
		Start:   start,
		Stop:    stop,
	}
}

// SubseqPlan is the set of realignments a seed needs.
type SubseqPlan struct {
	// Subseqs are the requested realignments, 5' before 3'. Empty if the
	// seed already covers the whole sequence.
	Subseqs []Subseq

	// Full is true when the only request is the whole sequence and the seed
	// is advisory only
	Full bool
}

// NoFlanks reports whether the seed alone spans the sequence.
func (p SubseqPlan) NoFlanks() bool { return len(p.Subseqs) == 0 }

// Plan decides which flanks of a sequence need realigning around its seed.
//
// Each flank overlaps the seed by overhang residues. On the 5' end the
// overhang grows by twice the unaligned length when the seed starts at model
// position 1, on the 3' end when it stops at mdlLen. If both flanks are
// needed and they'd overlap, one full-sequence realignment is requested.
func Plan(sd Seed, seqLen, mdlLen, overhang int) SubseqPlan {
	s, e := sd.SeqBounds()
	ms, me := sd.MdlBounds()

	need5 := s > 1
	need3 := e < seqLen
	if !need5 && !need3 {
		return SubseqPlan{}
	}

	over5 := overhang
	if ms == 1 {
		over5 += 2 * (s - 1)
	}
	over3 := overhang
	if me == mdlLen {
		over3 += 2 * (seqLen - e)
	}

	stop5 := min(seqLen, s-1+over5)
	start3 := max(1, e+1-over3)

	full := SubseqPlan{
		Subseqs: []Subseq{newSubseq(sd.SeqName, Full, 1, seqLen)},
		Full:    true,
	}

	switch {
	case need5 && need3:
		if stop5 >= start3 {
			return full
		}
		return SubseqPlan{Subseqs: []Subseq{
			newSubseq(sd.SeqName, FivePrime, 1, stop5),
			newSubseq(sd.SeqName, ThreePrime, start3, seqLen),
		}}
	case need5:
		if stop5 >= seqLen {
			return full
		}
		return SubseqPlan{Subseqs: []Subseq{newSubseq(sd.SeqName, FivePrime, 1, stop5)}}
	default:
		if start3 <= 1 {
			return full
		}
		return SubseqPlan{Subseqs: []Subseq{newSubseq(sd.SeqName, ThreePrime, start3, seqLen)}}
	}
}
