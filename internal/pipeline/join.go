package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ncbi/vadr-sub003/internal/alignment"
	"github.com/ncbi/vadr-sub003/internal/join"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

// JoinInputs are the parsed files the join stage draws its inputs from.
type JoinInputs struct {
	Seeds   []seed.Seed
	Subseqs []seed.Subseq

	// Flanks are realigned subsequences by subsequence name
	Flanks map[string]alignment.Alignment

	// Seqs and Cons are full sequences and model consensus sequences by name
	Seqs map[string]string
	Cons map[string]string
}

// Inputs makes one join input per seed, in seed order. A planned flank
// without a realignment is left nil for Join to report.
func (in JoinInputs) Inputs() ([]join.Input, error) {
	bySeq := make(map[string][]seed.Subseq)
	for _, sub := range in.Subseqs {
		bySeq[sub.SeqName] = append(bySeq[sub.SeqName], sub)
	}

	inputs := make([]join.Input, 0, len(in.Seeds))
	for _, sd := range in.Seeds {
		seq, ok := in.Seqs[sd.SeqName]
		if !ok {
			return nil, fmt.Errorf("no sequence named %s", sd.SeqName)
		}
		cons, ok := in.Cons[sd.MdlName]
		if !ok {
			return nil, fmt.Errorf("no model consensus named %s for %s", sd.MdlName, sd.SeqName)
		}

		ji := join.Input{Seed: sd, Seq: seq, Cons: cons}
		for _, sub := range bySeq[sd.SeqName] {
			aln, ok := in.Flanks[sub.Name]
			if !ok {
				continue
			}
			f := &join.Flank{End: sub.End, SeqStart: sub.Start, SeqStop: sub.Stop, Aln: aln}
			switch sub.End {
			case seed.FivePrime:
				ji.Five = f
			case seed.ThreePrime:
				ji.Three = f
			case seed.Full:
				ji.Full = f
			}
		}
		inputs = append(inputs, ji)
	}
	return inputs, nil
}

// JoinResult is one sequence's joined alignment, its unjoinable flank, or
// the error that stopped it.
type JoinResult struct {
	SeqName string
	Result  join.Result
	Err     error
}

// Join joins every input. Results are in input order.
func (r *Runner) Join(ctx context.Context, inputs []join.Input) ([]JoinResult, error) {
	return run(ctx, r.workers, inputs, r.join, r.done)
}

func (r *Runner) join(in join.Input) JoinResult {
	log := r.logger.With(zap.String("seq", in.Seed.SeqName), zap.String("mdl", in.Seed.MdlName))

	res, err := join.Join(in)
	if err != nil {
		log.Warn("failed to join", zap.Error(err))
		return JoinResult{SeqName: in.Seed.SeqName, Err: fmt.Errorf("%s: %w", in.Seed.SeqName, err)}
	}
	if u := res.Unjoinable; u != nil {
		log.Info("unjoinable flank",
			zap.Stringer("end", u.End),
			zap.Int("seqpos", u.SeqPos),
			zap.Int("mdlpos", u.MdlPos),
			zap.Int("expected", u.ExpectedMdlPos),
		)
	} else {
		log.Debug("joined", zap.Int("columns", len(res.Joined.Aln.Seq)))
	}
	return JoinResult{SeqName: in.Seed.SeqName, Result: res}
}
