// Package alignment holds a single gapped pairwise alignment of a sequence to
// a model (sequence, reference/consensus and posterior probability tracks) and
// the insert tokens describing residues that sit between model positions.
package alignment

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// SeqGap is written to the sequence track where a model position is deleted
	SeqGap = '-'

	// RFGap is written to the model track where a residue is inserted
	RFGap = '.'

	// PPGap is written to the confidence track where the sequence has a gap
	PPGap = '.'

	// PPSeed is the confidence written for residues placed by a seed
	PPSeed = '*'
)

// IsGap reports whether c is a gap character in any track.
func IsGap(c byte) bool {
	return c == '-' || c == '.' || c == '~'
}

// Alignment is one sequence aligned to one model. All tracks have equal
// length. PP is empty when the aligner didn't emit confidences.
type Alignment struct {
	// Seq is the aligned sequence
	Seq string

	// RF is the aligned model consensus
	RF string

	// PP is the aligned per-residue confidence (optional)
	PP string

	// SeqStart is the sequence coordinate of the first residue in Seq
	SeqStart int

	// MdlStart is the model coordinate of the first non-gap in RF
	MdlStart int
}

// Column is one alignment column's coordinates. Zero means a gap in that track.
type Column struct {
	SeqPos int
	MdlPos int
}

// Validate checks that the tracks line up.
func (a *Alignment) Validate() error {
	if len(a.Seq) != len(a.RF) {
		return fmt.Errorf("sequence track is %d columns but model track is %d", len(a.Seq), len(a.RF))
	}
	if a.PP != "" && len(a.PP) != len(a.Seq) {
		return fmt.Errorf("confidence track is %d columns but sequence track is %d", len(a.PP), len(a.Seq))
	}
	if a.SeqStart < 1 || a.MdlStart < 1 {
		return fmt.Errorf("alignment starts at seq %d, model %d: positions are 1-based", a.SeqStart, a.MdlStart)
	}
	return nil
}

// Len is the number of columns.
func (a *Alignment) Len() int { return len(a.Seq) }

// Residues is the number of non-gap sequence characters.
func (a *Alignment) Residues() (n int) {
	for i := 0; i < len(a.Seq); i++ {
		if !IsGap(a.Seq[i]) {
			n++
		}
	}
	return
}

// ModelPositions is the number of non-gap model characters.
func (a *Alignment) ModelPositions() (n int) {
	for i := 0; i < len(a.RF); i++ {
		if !IsGap(a.RF[i]) {
			n++
		}
	}
	return
}

// Columns walks the alignment and returns the coordinates of each column.
func (a *Alignment) Columns() []Column {
	cols := make([]Column, len(a.Seq))
	seqPos, mdlPos := a.SeqStart, a.MdlStart
	for i := range cols {
		if !IsGap(a.Seq[i]) {
			cols[i].SeqPos = seqPos
			seqPos++
		}
		if !IsGap(a.RF[i]) {
			cols[i].MdlPos = mdlPos
			mdlPos++
		}
	}
	return cols
}

// HasPP reports whether the confidence track is present.
func (a *Alignment) HasPP() bool { return a.PP != "" }

// Insert is a run of Len sequence residues, starting at sequence position
// SeqPos, that sit after model position MdlPos (0 is before the first
// model position).
type Insert struct {
	MdlPos int
	SeqPos int
	Len    int
}

func (i Insert) String() string {
	return fmt.Sprintf("%d:%d:%d", i.MdlPos, i.SeqPos, i.Len)
}

// ParseInsert reads the "mdlpos:seqpos:len" form of an Insert.
func ParseInsert(tok string) (Insert, error) {
	fields := strings.Split(tok, ":")
	if len(fields) != 3 {
		return Insert{}, fmt.Errorf("insert token %q is not mdlpos:seqpos:len", tok)
	}
	var vals [3]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return Insert{}, fmt.Errorf("insert token %q has a bad field %q", tok, f)
		}
		vals[i] = v
	}
	if vals[2] < 1 || vals[1] < 1 {
		return Insert{}, fmt.Errorf("insert token %q is empty", tok)
	}
	return Insert{MdlPos: vals[0], SeqPos: vals[1], Len: vals[2]}, nil
}

// InsertRecord is the full insert description of one aligned sequence.
type InsertRecord struct {
	SeqName string
	SeqLen  int

	// MdlStart and MdlStop bound the model positions with an aligned residue
	MdlStart int
	MdlStop  int

	Inserts []Insert
}

// String is the record as a single line of an insert file.
func (r InsertRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d %d %d", r.SeqName, r.SeqLen, r.MdlStart, r.MdlStop)
	for _, ins := range r.Inserts {
		b.WriteByte(' ')
		b.WriteString(ins.String())
	}
	return b.String()
}

// InsertsFromColumns reads insert tokens and the aligned model span off a
// walked alignment. A run of columns with a residue but no model position is
// one insert, anchored at the last model position seen before it.
func InsertsFromColumns(cols []Column) (inserts []Insert, mdlStart, mdlStop int) {
	lastMdl := 0
	var cur *Insert
	for _, c := range cols {
		if c.MdlPos != 0 {
			lastMdl = c.MdlPos
			cur = nil
			if c.SeqPos != 0 {
				if mdlStart == 0 {
					mdlStart = c.MdlPos
				}
				mdlStop = c.MdlPos
			}
			continue
		}
		if c.SeqPos == 0 {
			continue
		}
		if cur != nil && cur.SeqPos+cur.Len == c.SeqPos {
			cur.Len++
			continue
		}
		inserts = append(inserts, Insert{MdlPos: lastMdl, SeqPos: c.SeqPos, Len: 1})
		cur = &inserts[len(inserts)-1]
	}
	return
}
