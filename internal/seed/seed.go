// Package seed is for the fast, approximate alignments (seeds) of a sequence
// to a model: rebuilding their gapped alignment, pruning untrustworthy blocks,
// picking between candidate seeds and planning the flank realignments that
// complete them.
package seed

import (
	"errors"
	"fmt"

	"github.com/ncbi/vadr-sub003/internal/coords"
)

// ErrSegmentLengthMismatch is wrapped by LengthMismatchError. It means the
// aligner's own report was inconsistent and is never expected on good input.
var ErrSegmentLengthMismatch = errors.New("segment length mismatch")

// LengthMismatchError is a block whose sequence and model spans differ in length.
type LengthMismatchError struct {
	Block int
	Seq   coords.Segment
	Mdl   coords.Segment
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf(
		"seed block %d: sequence span %s (length %d) and model span %s (length %d) differ",
		e.Block+1, e.Seq, e.Seq.Len(), e.Mdl, e.Mdl.Len(),
	)
}

// Unwrap lets errors.Is match ErrSegmentLengthMismatch.
func (e *LengthMismatchError) Unwrap() error { return ErrSegmentLengthMismatch }

// Method is the fast aligner that produced a seed.
type Method int

const (
	// Blastn seeds come from the tabular blastn summary
	Blastn Method = iota

	// Minimap2 seeds come from run-length (CIGAR) records
	Minimap2
)

func (m Method) String() string {
	switch m {
	case Blastn:
		return "blastn"
	case Minimap2:
		return "minimap2"
	}
	return "unknown"
}

// ParseMethod is the inverse of Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "blastn":
		return Blastn, nil
	case "minimap2":
		return Minimap2, nil
	}
	return 0, fmt.Errorf("unknown seed method %q", s)
}

// Seed is the ungapped blocks of one pairwise alignment. Seq[i] and Mdl[i]
// describe the same run of aligned positions.
type Seed struct {
	SeqName string
	MdlName string
	Method  Method

	Seq coords.Coords
	Mdl coords.Coords
}

// Block is one ungapped run.
type Block struct {
	Seq coords.Segment
	Mdl coords.Segment
}

// Len of the block.
func (b Block) Len() int { return b.Seq.Len() }

// New makes a seed and validates it.
func New(seqName, mdlName string, method Method, seq, mdl coords.Coords) (Seed, error) {
	sd := Seed{SeqName: seqName, MdlName: mdlName, Method: method, Seq: seq, Mdl: mdl}
	return sd, sd.Validate()
}

// Validate checks both coords and that they describe the same blocks.
func (s Seed) Validate() error {
	if err := s.Seq.Validate(); err != nil {
		return fmt.Errorf("seed %s/%s sequence coords: %w", s.SeqName, s.MdlName, err)
	}
	if err := s.Mdl.Validate(); err != nil {
		return fmt.Errorf("seed %s/%s model coords: %w", s.SeqName, s.MdlName, err)
	}
	if len(s.Seq) != len(s.Mdl) {
		return fmt.Errorf(
			"seed %s/%s has %d sequence blocks and %d model blocks: %w",
			s.SeqName, s.MdlName, len(s.Seq), len(s.Mdl), ErrSegmentLengthMismatch,
		)
	}
	for i := range s.Seq {
		if s.Seq[i].Len() != s.Mdl[i].Len() {
			return &LengthMismatchError{Block: i, Seq: s.Seq[i], Mdl: s.Mdl[i]}
		}
	}
	return nil
}

// Blocks pairs up the sequence and model segments.
func (s Seed) Blocks() []Block {
	blocks := make([]Block, len(s.Seq))
	for i := range s.Seq {
		blocks[i] = Block{Seq: s.Seq[i], Mdl: s.Mdl[i]}
	}
	return blocks
}

// NumBlocks in the seed.
func (s Seed) NumBlocks() int { return len(s.Seq) }

// SeqBounds is the first and last sequence position covered.
func (s Seed) SeqBounds() (int, int) { return s.Seq.Bounds() }

// MdlBounds is the first and last model position covered.
func (s Seed) MdlBounds() (int, int) { return s.Mdl.Bounds() }

// MdlSpan is the number of model positions from the first to the last block.
func (s Seed) MdlSpan() int {
	if len(s.Mdl) == 0 {
		return 0
	}
	start, stop := s.Mdl.Bounds()
	return stop - start + 1
}

// withBlocks returns a copy of the seed holding only blocks[from:to].
func (s Seed) withBlocks(from, to int) Seed {
	out := s
	out.Seq = s.Seq[from:to].Clone()
	out.Mdl = s.Mdl[from:to].Clone()
	return out
}

// MaxBlock returns a seed made of only the longest block (first on ties).
func (s Seed) MaxBlock() Seed {
	_, i, _ := s.Seq.Longest()
	if i < 0 {
		return s
	}
	return s.withBlocks(i, i+1)
}

func (s Seed) String() string {
	return fmt.Sprintf("%s %s %s %s %s", s.SeqName, s.MdlName, s.Method, s.Seq, s.Mdl)
}
