package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ncbi/vadr-sub003/internal/alnio"
	"github.com/ncbi/vadr-sub003/internal/blastn"
	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/minimap"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

// ErrNoSeed is a sequence with neither a blastn nor a minimap2 alignment.
var ErrNoSeed = errors.New("no seed alignment")

// PlanJob is one sequence's candidate seeds.
type PlanJob struct {
	SeqName string
	MdlName string
	SeqLen  int
	MdlLen  int

	// Blastn is the sequence's best HSP against its model, if any. Failing
	// that it's the sequence's first line against any other model
	Blastn *blastn.IndelLine

	// Minimap is the sequence's primary record, if any
	Minimap *minimap.Record

	// Codons are the model's start and stop codons
	Codons coords.Coords
}

// PlanResult is the seed picked for a sequence and the realignments it needs.
type PlanResult struct {
	SeqName string
	MdlName string

	Seed seed.Seed

	// Overwritten is the candidate that lost selection, if there were two
	Overwritten *seed.Seed

	Plan seed.SubseqPlan

	// Err is set when the sequence couldn't be planned, the rest is empty
	Err error
}

// PlanInputs are the parsed files the plan stage draws its jobs from.
type PlanInputs struct {
	Assignments []alnio.Assignment

	// SeqLens and MdlLens are lengths by name
	SeqLens map[string]int
	MdlLens map[string]int

	// Blastn is every indel line, best first within a sequence
	Blastn []blastn.IndelLine

	// Minimap is every SAM record
	Minimap []minimap.Record

	Codons map[string]coords.Coords
}

// Jobs makes one job per assigned sequence, in assignment order. A sequence
// or model without a length is an error.
func (in PlanInputs) Jobs() ([]PlanJob, error) {
	type seqMdl struct{ seq, mdl string }
	best := make(map[seqMdl]*blastn.IndelLine)
	first := make(map[string]*blastn.IndelLine)
	for i := range in.Blastn {
		l := &in.Blastn[i]
		if _, ok := best[seqMdl{l.SeqName, l.MdlName}]; !ok {
			best[seqMdl{l.SeqName, l.MdlName}] = l
		}
		if _, ok := first[l.SeqName]; !ok {
			first[l.SeqName] = l
		}
	}
	primary := minimap.Primary(in.Minimap)

	jobs := make([]PlanJob, 0, len(in.Assignments))
	for _, a := range in.Assignments {
		seqLen, ok := in.SeqLens[a.Seq]
		if !ok {
			return nil, fmt.Errorf("no sequence named %s", a.Seq)
		}
		mdlLen, ok := in.MdlLens[a.Mdl]
		if !ok {
			return nil, fmt.Errorf("no model consensus named %s for %s", a.Mdl, a.Seq)
		}

		job := PlanJob{
			SeqName: a.Seq,
			MdlName: a.Mdl,
			SeqLen:  seqLen,
			MdlLen:  mdlLen,
			Blastn:  best[seqMdl{a.Seq, a.Mdl}],
			Codons:  in.Codons[a.Mdl],
		}
		if job.Blastn == nil {
			job.Blastn = first[a.Seq]
		}
		if rec, ok := primary[a.Seq]; ok {
			job.Minimap = &rec
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Plan extracts, prunes and picks a seed for every job and plans its flank
// realignments. Results are in job order.
func (r *Runner) Plan(ctx context.Context, jobs []PlanJob) ([]PlanResult, error) {
	return run(ctx, r.workers, jobs, r.plan, r.done)
}

func (r *Runner) plan(job PlanJob) PlanResult {
	res := PlanResult{SeqName: job.SeqName, MdlName: job.MdlName}
	log := r.logger.With(zap.String("seq", job.SeqName), zap.String("mdl", job.MdlName))

	opts := r.opts.Prune
	opts.Codons = nil
	if r.opts.CodonCheck {
		opts.Codons = job.Codons
	}

	var candidates []seed.Seed
	if job.Blastn != nil {
		sd, err := blastn.SeedFromIndels(*job.Blastn)
		if err != nil {
			log.Warn("failed to rebuild blastn seed", zap.Error(err))
			res.Err = err
			return res
		}
		candidates = append(candidates, sd)
	}
	if job.Minimap != nil {
		sd, err := minimap.SeedFromRecord(*job.Minimap)
		if err != nil {
			log.Warn("failed to rebuild minimap2 seed", zap.Error(err))
			res.Err = err
			return res
		}
		candidates = append(candidates, sd)
	}
	for _, sd := range candidates {
		if sd.MdlName != job.MdlName {
			res.Err = fmt.Errorf("%s: %s aligned it to %s, not %s", job.SeqName, sd.Method, sd.MdlName, job.MdlName)
			log.Warn("seed against the wrong model", zap.Error(res.Err))
			return res
		}
	}
	if len(candidates) == 0 {
		res.Err = fmt.Errorf("%s: %w", job.SeqName, ErrNoSeed)
		log.Info("no seed")
		return res
	}

	for i, sd := range candidates {
		if _, stop := sd.SeqBounds(); stop > job.SeqLen {
			res.Err = fmt.Errorf("%s: %s seed reaches %d past the sequence length %d", job.SeqName, sd.Method, stop, job.SeqLen)
			return res
		}
		if _, stop := sd.MdlBounds(); stop > job.MdlLen {
			res.Err = fmt.Errorf("%s: %s seed reaches model position %d past the model length %d", job.SeqName, sd.Method, stop, job.MdlLen)
			return res
		}

		pruned := seed.Prune(sd, job.SeqLen, job.MdlLen, opts)
		if pruned.NumBlocks() != sd.NumBlocks() {
			log.Debug("pruned seed",
				zap.Stringer("method", sd.Method),
				zap.Int("blocks", sd.NumBlocks()),
				zap.Int("kept", pruned.NumBlocks()),
			)
		}
		candidates[i] = pruned
	}

	res.Seed = candidates[0]
	if len(candidates) == 2 {
		kept, over := seed.Select(candidates[0], candidates[1])
		res.Seed = kept
		res.Overwritten = &over
	}

	res.Plan = seed.Plan(res.Seed, job.SeqLen, job.MdlLen, r.opts.Overhang)
	log.Debug("planned",
		zap.Stringer("method", res.Seed.Method),
		zap.Stringer("seq", res.Seed.Seq),
		zap.Int("flanks", len(res.Plan.Subseqs)),
		zap.Bool("full", res.Plan.Full),
	)
	return res
}
