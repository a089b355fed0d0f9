// Package join splices a seed's reconstructed alignment together with the
// realignments of a sequence's flanks into one alignment of the whole
// sequence to the whole model.
package join

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ncbi/vadr-sub003/internal/alignment"
	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

// ErrFlankSpan is an input flank that doesn't cover the part of the
// sequence it has to, or a flank missing where the seed doesn't reach a
// sequence terminus.
var ErrFlankSpan = errors.New("flank does not span its end of the sequence")

// Flank is a realignment of part of a sequence.
type Flank struct {
	End seed.End

	// SeqStart and SeqStop are the subsequence's span in the full sequence
	SeqStart int
	SeqStop  int

	// Aln is the subsequence aligned to the model, with SeqStart matching
	// the flank's
	Aln alignment.Alignment
}

// Span is the flank's sequence span.
func (f *Flank) Span() string {
	return fmt.Sprintf("%d..%d", f.SeqStart, f.SeqStop)
}

// Input is everything needed to join one sequence.
type Input struct {
	Seed seed.Seed

	// Seq is the full sequence and Cons the full model consensus
	Seq  string
	Cons string

	// Five and Three are the flanks, nil when the seed reaches that end
	Five  *Flank
	Three *Flank

	// Full is set when the whole sequence was realigned instead of flanks
	Full *Flank
}

// Joined is a sequence aligned to its full model.
type Joined struct {
	SeqName string
	MdlName string
	Aln     alignment.Alignment
	Inserts alignment.InsertRecord
}

// Unjoinable is a flank whose boundary disagrees with the seed's offset.
type Unjoinable struct {
	SeqName string
	MdlName string
	End     seed.End

	// SeqPos and MdlPos are the flank's boundary column
	SeqPos int
	MdlPos int

	// ExpectedMdlPos is where the seed puts SeqPos
	ExpectedMdlPos int

	FlankSpan string
	SeedSpan  string
	Detail    string
}

func (u *Unjoinable) String() string {
	return fmt.Sprintf("%s %s boundary: flank %s has %d at model %d, seed %s expects model %d: %s",
		u.SeqName, u.End, u.FlankSpan, u.SeqPos, u.MdlPos, u.SeedSpan, u.ExpectedMdlPos, u.Detail)
}

// Result is exactly one of Joined and Unjoinable.
type Result struct {
	Joined     *Joined
	Unjoinable *Unjoinable
}

// column is one joined column with its coordinates.
type column struct {
	seq, rf, pp byte
	pos         alignment.Column
}

func columnsOf(a *alignment.Alignment) []column {
	walked := a.Columns()
	cols := make([]column, len(walked))
	for i, c := range walked {
		cols[i] = column{seq: a.Seq[i], rf: a.RF[i], pos: c, pp: alignment.PPGap}
		if a.HasPP() {
			cols[i].pp = a.PP[i]
		}
	}
	return cols
}

// boundary is where one end of the joined alignment switches between flank
// and seed.
type boundary struct {
	// index of the flank column, -1 without a flank
	index  int
	seqPos int
	mdlPos int
}

// Join builds one full alignment from a seed and the flanks its plan asked
// for. A flank whose boundary disagrees with the seed is reported as
// Unjoinable. Flanks that don't cover their end of the sequence, and seeds
// that can't be reconstructed, are errors.
func Join(in Input) (Result, error) {
	sd := in.Seed
	seqLen, mdlLen := len(in.Seq), len(in.Cons)

	if in.Full != nil {
		if err := checkFlank(in.Full, seed.Full, seqLen); err != nil {
			return Result{}, fmt.Errorf("%s: %w", sd.SeqName, err)
		}
		joined, err := finish(sd, seqLen, mdlLen, in.Cons, columnsOf(&in.Full.Aln), in.Full.Aln.HasPP())
		if err != nil {
			return Result{}, err
		}
		return Result{Joined: joined}, nil
	}

	seedAln, _, err := seed.Reconstruct(sd, in.Seq, in.Cons)
	if err != nil {
		return Result{}, err
	}
	s, e := sd.SeqBounds()
	ms, me := sd.MdlBounds()

	if s > 1 && in.Five == nil {
		return Result{}, fmt.Errorf("%s: seed starts at %d and there's no 5' flank: %w", sd.SeqName, s, ErrFlankSpan)
	}
	if e < seqLen && in.Three == nil {
		return Result{}, fmt.Errorf("%s: seed stops at %d of %d and there's no 3' flank: %w", sd.SeqName, e, seqLen, ErrFlankSpan)
	}

	blocks := sd.Blocks()
	first, last := blocks[0], blocks[len(blocks)-1]

	// where the seed alone would cut
	b5 := boundary{index: -1, seqPos: s - 1, mdlPos: ms - 1}
	b3 := boundary{index: -1, seqPos: e + 1, mdlPos: me + 1}

	keepPP := true
	var fiveCols, threeCols []column

	if in.Five != nil {
		if err := checkFlank(in.Five, seed.FivePrime, seqLen); err != nil {
			return Result{}, fmt.Errorf("%s: %w", sd.SeqName, err)
		}
		fiveCols = columnsOf(&in.Five.Aln)
		keepPP = keepPP && in.Five.Aln.HasPP()

		b5 = boundary{index: -1}
		for i := len(fiveCols) - 1; i >= 0; i-- {
			if c := fiveCols[i].pos; c.SeqPos != 0 && c.MdlPos != 0 {
				b5 = boundary{index: i, seqPos: c.SeqPos, mdlPos: c.MdlPos}
				break
			}
		}
		if u := check(sd, in.Five, first, b5, s-1, first.Seq.Stop); u != nil {
			return Result{Unjoinable: u}, nil
		}
	}

	if in.Three != nil {
		if err := checkFlank(in.Three, seed.ThreePrime, seqLen); err != nil {
			return Result{}, fmt.Errorf("%s: %w", sd.SeqName, err)
		}
		threeCols = columnsOf(&in.Three.Aln)
		keepPP = keepPP && in.Three.Aln.HasPP()

		b3 = boundary{index: -1}
		for i, c := range threeCols {
			if c.pos.SeqPos != 0 && c.pos.MdlPos != 0 {
				b3 = boundary{index: i, seqPos: c.pos.SeqPos, mdlPos: c.pos.MdlPos}
				break
			}
		}
		if u := check(sd, in.Three, last, b3, last.Seq.Start, e+1); u != nil {
			return Result{Unjoinable: u}, nil
		}
	}

	if b5.seqPos >= b3.seqPos || b5.mdlPos >= b3.mdlPos {
		return Result{Unjoinable: &Unjoinable{
			SeqName:        sd.SeqName,
			MdlName:        sd.MdlName,
			End:            seed.ThreePrime,
			SeqPos:         b3.seqPos,
			MdlPos:         b3.mdlPos,
			ExpectedMdlPos: b3.seqPos + (last.Mdl.Start - last.Seq.Start),
			FlankSpan:      flankSpan(in.Three),
			SeedSpan:       blockSpan(last),
			Detail:         fmt.Sprintf("3' boundary %d/%d doesn't follow 5' boundary %d/%d", b3.seqPos, b3.mdlPos, b5.seqPos, b5.mdlPos),
		}}, nil
	}

	var cols []column
	if b5.index >= 0 {
		cols = append(cols, fiveCols[:b5.index+1]...)
	}
	for _, c := range columnsOf(seedAln) {
		if c.pos.SeqPos != 0 && (c.pos.SeqPos <= b5.seqPos || c.pos.SeqPos >= b3.seqPos) {
			continue
		}
		if c.pos.MdlPos != 0 && (c.pos.MdlPos <= b5.mdlPos || c.pos.MdlPos >= b3.mdlPos) {
			continue
		}
		cols = append(cols, c)
	}
	if b3.index >= 0 {
		cols = append(cols, threeCols[b3.index:]...)
	}

	joined, err := finish(sd, seqLen, mdlLen, in.Cons, cols, keepPP)
	if err != nil {
		return Result{}, err
	}
	return Result{Joined: joined}, nil
}

// check compares a flank's boundary with the seed block it lands in. The
// boundary residue has to be in [lo, hi] and sit at the model position the
// block's offset predicts.
func check(sd seed.Seed, f *Flank, b seed.Block, at boundary, lo, hi int) *Unjoinable {
	offset := b.Mdl.Start - b.Seq.Start
	u := &Unjoinable{
		SeqName:        sd.SeqName,
		MdlName:        sd.MdlName,
		End:            f.End,
		SeqPos:         at.seqPos,
		MdlPos:         at.mdlPos,
		ExpectedMdlPos: at.seqPos + offset,
		FlankSpan:      f.Span(),
		SeedSpan:       blockSpan(b),
	}

	switch {
	case at.index < 0:
		u.Detail = "flank has no residue aligned to the model"
	case at.seqPos < lo || at.seqPos > hi:
		u.Detail = fmt.Sprintf("boundary residue %d is outside %d..%d", at.seqPos, lo, hi)
	case at.mdlPos != at.seqPos+offset:
		u.Detail = fmt.Sprintf("model position %d differs from seed's %d", at.mdlPos, at.seqPos+offset)
	default:
		return nil
	}
	return u
}

// checkFlank makes sure a flank reaches its sequence terminus and holds the
// residues of its span.
func checkFlank(f *Flank, end seed.End, seqLen int) error {
	if f.End != end {
		return fmt.Errorf("%s flank given as %s: %w", f.End, end, ErrFlankSpan)
	}
	if f.SeqStart < 1 || f.SeqStop > seqLen || f.SeqStart > f.SeqStop {
		return fmt.Errorf("%s flank %s is outside 1..%d: %w", end, f.Span(), seqLen, ErrFlankSpan)
	}
	if end != seed.ThreePrime && f.SeqStart != 1 {
		return fmt.Errorf("%s flank %s doesn't start at 1: %w", end, f.Span(), ErrFlankSpan)
	}
	if end != seed.FivePrime && f.SeqStop != seqLen {
		return fmt.Errorf("%s flank %s doesn't stop at %d: %w", end, f.Span(), seqLen, ErrFlankSpan)
	}
	if err := f.Aln.Validate(); err != nil {
		return fmt.Errorf("%s flank %s: %v: %w", end, f.Span(), err, ErrFlankSpan)
	}
	if f.Aln.SeqStart != f.SeqStart {
		return fmt.Errorf("%s flank %s alignment starts at %d: %w", end, f.Span(), f.Aln.SeqStart, ErrFlankSpan)
	}
	if n := f.Aln.Residues(); n != f.SeqStop-f.SeqStart+1 {
		return fmt.Errorf("%s flank %s aligns %d residues: %w", end, f.Span(), n, ErrFlankSpan)
	}
	return nil
}

// finish pads the model track out to 1..mdlLen, checks every residue and
// model position appears once and in order, and reads off the inserts.
func finish(sd seed.Seed, seqLen, mdlLen int, cons string, cols []column, keepPP bool) (*Joined, error) {
	firstMdl, lastMdl := mdlLen+1, 0
	for _, c := range cols {
		if c.pos.MdlPos != 0 {
			if c.pos.MdlPos < firstMdl {
				firstMdl = c.pos.MdlPos
			}
			lastMdl = c.pos.MdlPos
		}
	}
	if lastMdl == 0 {
		firstMdl, lastMdl = 1, 0
	}

	pad := func(from, to int) []column {
		var p []column
		for m := from; m <= to; m++ {
			p = append(p, column{seq: alignment.SeqGap, rf: cons[m-1], pp: alignment.PPGap, pos: alignment.Column{MdlPos: m}})
		}
		return p
	}
	padded := pad(1, firstMdl-1)
	padded = append(padded, cols...)
	padded = append(padded, pad(lastMdl+1, mdlLen)...)

	var (
		seqB, rfB, ppB strings.Builder
		walked         = make([]alignment.Column, len(padded))
		nextSeq        = 1
		nextMdl        = 1
	)
	for i, c := range padded {
		if c.pos.SeqPos != 0 {
			if c.pos.SeqPos != nextSeq {
				return nil, fmt.Errorf("%s: joined alignment has residue %d where %d belongs: %w", sd.SeqName, c.pos.SeqPos, nextSeq, ErrFlankSpan)
			}
			nextSeq++
		}
		if c.pos.MdlPos != 0 {
			if c.pos.MdlPos != nextMdl {
				return nil, fmt.Errorf("%s: joined alignment has model position %d where %d belongs: %w", sd.SeqName, c.pos.MdlPos, nextMdl, ErrFlankSpan)
			}
			nextMdl++
		}
		seqB.WriteByte(c.seq)
		rfB.WriteByte(c.rf)
		ppB.WriteByte(c.pp)
		walked[i] = c.pos
	}
	if nextSeq != seqLen+1 || nextMdl != mdlLen+1 {
		return nil, fmt.Errorf("%s: joined alignment covers %d of %d residues and %d of %d model positions: %w",
			sd.SeqName, nextSeq-1, seqLen, nextMdl-1, mdlLen, ErrFlankSpan)
	}

	inserts, mdlStart, mdlStop := alignment.InsertsFromColumns(walked)
	aln := alignment.Alignment{
		Seq:      seqB.String(),
		RF:       rfB.String(),
		SeqStart: 1,
		MdlStart: 1,
	}
	if keepPP {
		aln.PP = ppB.String()
	}

	return &Joined{
		SeqName: sd.SeqName,
		MdlName: sd.MdlName,
		Aln:     aln,
		Inserts: alignment.InsertRecord{
			SeqName:  sd.SeqName,
			SeqLen:   seqLen,
			MdlStart: mdlStart,
			MdlStop:  mdlStop,
			Inserts:  inserts,
		},
	}, nil
}

func blockSpan(b seed.Block) string {
	return coords.Coords{b.Seq}.String() + "/" + coords.Coords{b.Mdl}.String()
}

func flankSpan(f *Flank) string {
	if f == nil {
		return "-"
	}
	return f.Span()
}
