package seed

import (
	"fmt"
	"strings"

	"github.com/ncbi/vadr-sub003/internal/alignment"
	"github.com/ncbi/vadr-sub003/internal/coords"
)

// Reconstruct materializes the gapped alignment a seed describes. seq is the
// full sequence and cons the full model consensus, both indexed from 1 by
// the seed's coords.
//
// Blocks are copied verbatim. Between blocks, inserted residues go into
// columns with an RF gap and deleted model positions into columns with a
// sequence gap. The returned inserts are anchored to the model position
// before each insertion.
func Reconstruct(sd Seed, seq, cons string) (*alignment.Alignment, []alignment.Insert, error) {
	if err := sd.Validate(); err != nil {
		return nil, nil, err
	}
	if sd.Seq.Strand() != coords.Plus || sd.Mdl.Strand() != coords.Plus {
		return nil, nil, fmt.Errorf("seed %s/%s: only + strand seeds can be reconstructed", sd.SeqName, sd.MdlName)
	}
	if _, stop := sd.Seq.Bounds(); stop > len(seq) {
		return nil, nil, fmt.Errorf("seed %s/%s reaches sequence position %d past its length %d", sd.SeqName, sd.MdlName, stop, len(seq))
	}
	if _, stop := sd.Mdl.Bounds(); stop > len(cons) {
		return nil, nil, fmt.Errorf("seed %s/%s reaches model position %d past its length %d", sd.SeqName, sd.MdlName, stop, len(cons))
	}

	var (
		alnSeq  strings.Builder
		alnRF   strings.Builder
		alnPP   strings.Builder
		inserts []alignment.Insert
	)

	blocks := sd.Blocks()
	for i, b := range blocks {
		if i > 0 {
			prev := blocks[i-1]

			// residues between the blocks are inserted after the previous block's last model position
			if n := b.Seq.Start - prev.Seq.Stop - 1; n > 0 {
				alnSeq.WriteString(seq[prev.Seq.Stop : b.Seq.Start-1])
				alnRF.WriteString(strings.Repeat(string(alignment.RFGap), n))
				alnPP.WriteString(strings.Repeat(string(alignment.PPSeed), n))
				inserts = append(inserts, alignment.Insert{
					MdlPos: prev.Mdl.Stop,
					SeqPos: prev.Seq.Stop + 1,
					Len:    n,
				})
			}

			// model positions between the blocks are deleted from the sequence
			if n := b.Mdl.Start - prev.Mdl.Stop - 1; n > 0 {
				alnSeq.WriteString(strings.Repeat(string(alignment.SeqGap), n))
				alnRF.WriteString(cons[prev.Mdl.Stop : b.Mdl.Start-1])
				alnPP.WriteString(strings.Repeat(string(alignment.PPGap), n))
			}
		}

		alnSeq.WriteString(seq[b.Seq.Start-1 : b.Seq.Stop])
		alnRF.WriteString(cons[b.Mdl.Start-1 : b.Mdl.Stop])
		alnPP.WriteString(strings.Repeat(string(alignment.PPSeed), b.Len()))
	}

	seqStart, _ := sd.Seq.Bounds()
	mdlStart, _ := sd.Mdl.Bounds()
	return &alignment.Alignment{
		Seq:      alnSeq.String(),
		RF:       alnRF.String(),
		PP:       alnPP.String(),
		SeqStart: seqStart,
		MdlStart: mdlStart,
	}, inserts, nil
}
