package seed

import (
	"github.com/ncbi/vadr-sub003/internal/coords"
)

// PruneOpts are the floors used when pruning a seed.
type PruneOpts struct {
	// MinBlockLen is the shortest block kept next to the longest block
	MinBlockLen int

	// MinTermLen is the shortest first/last block kept when it doesn't reach
	// a sequence terminus
	MinTermLen int

	// Codons are start and stop codon intervals in model coordinates. A seed
	// with a gap inside any of them collapses to its longest block.
	Codons coords.Coords
}

// Prune applies the codon check, then the short block and terminal passes.
// It never returns a seed without blocks: if nothing survives, or a gap
// splits a codon, the result is the longest block of the input seed.
func Prune(sd Seed, seqLen, mdlLen int, opts PruneOpts) Seed {
	if len(opts.Codons) > 0 && SplitsCodon(sd, opts.Codons) {
		return sd.MaxBlock()
	}

	pruned := PruneShortBlocks(sd, opts.MinBlockLen)
	pruned = PruneTerminal(pruned, seqLen, mdlLen, opts.MinTermLen)
	if pruned.NumBlocks() == 0 {
		return sd.MaxBlock()
	}
	return pruned
}

// PruneShortBlocks keeps the run of blocks around the longest block. The run
// extends outward one block at a time and stops at the first block shorter
// than minLen on each side.
func PruneShortBlocks(sd Seed, minLen int) Seed {
	if sd.NumBlocks() <= 1 {
		return sd
	}

	_, longest, _ := sd.Seq.Longest()
	first, last := longest, longest
	for first > 0 && sd.Seq[first-1].Len() >= minLen {
		first--
	}
	for last < sd.NumBlocks()-1 && sd.Seq[last+1].Len() >= minLen {
		last++
	}
	return sd.withBlocks(first, last+1)
}

// PruneTerminal drops untrusted blocks from both ends of a seed. The first
// block is untrusted if it doesn't start at sequence position 1 and is
// shorter than minLen. When that block starts at model position 1 the
// missing residues must be insertions before the model, so the floor is
// widened to twice their number. The check repeats inward until a block
// passes. The last block is treated the same against seqLen and mdlLen.
//
// The result may have no blocks, see Prune.
func PruneTerminal(sd Seed, seqLen, mdlLen, minLen int) Seed {
	first, last := 0, sd.NumBlocks()-1

	for first <= last {
		b := Block{Seq: sd.Seq[first], Mdl: sd.Mdl[first]}
		if b.Seq.Start == 1 {
			break
		}
		floor := minLen
		if b.Mdl.Start == 1 {
			floor = max(floor, 2*(b.Seq.Start-1))
		}
		if b.Len() >= floor {
			break
		}
		first++
	}

	for last >= first {
		b := Block{Seq: sd.Seq[last], Mdl: sd.Mdl[last]}
		if b.Seq.Stop == seqLen {
			break
		}
		floor := minLen
		if b.Mdl.Stop == mdlLen {
			floor = max(floor, 2*(seqLen-b.Seq.Stop))
		}
		if b.Len() >= floor {
			break
		}
		last--
	}

	return sd.withBlocks(first, last+1)
}

// SplitsCodon reports whether any break in model coordinates between two
// consecutive blocks falls inside one of the codons. A break between model
// positions p and q (the last of one block and the first of the next)
// splits codon [a, b] when p < b and q > a.
func SplitsCodon(sd Seed, codons coords.Coords) bool {
	for i := 1; i < sd.NumBlocks(); i++ {
		p, q := sd.Mdl[i-1].Stop, sd.Mdl[i].Start
		for _, c := range codons {
			if p < c.High() && q > c.Low() {
				return true
			}
		}
	}
	return false
}

// CollapseCodonGaps returns the seed's longest block, and true, if a gap
// splits one of the codons. Otherwise the seed is returned untouched.
func CollapseCodonGaps(sd Seed, codons coords.Coords) (Seed, bool) {
	if SplitsCodon(sd, codons) {
		return sd.MaxBlock(), true
	}
	return sd, false
}
