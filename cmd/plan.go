package cmd

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ncbi/vadr-sub003/internal/alnio"
	"github.com/ncbi/vadr-sub003/internal/blastn"
	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/fasta"
	"github.com/ncbi/vadr-sub003/internal/minimap"
	"github.com/ncbi/vadr-sub003/internal/pipeline"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

// planCmd is for picking each sequence's seed and the flanks to realign.
var planCmd = &cobra.Command{
	Use:                        "plan",
	Short:                      "Pick a seed per sequence and plan its flank realignments",
	SuggestionsMinimumDistance: 3,
	Long: `Pick a seed per sequence and plan its flank realignments.

Seeds are rebuilt from the best blastn HSP of each sequence (the indel files
written by 'vadr-seed coverage') and from the primary minimap2 record, if
given. Each is pruned of short blocks and, with seed.codon-check, collapsed
to its longest block if a gap falls inside a start or stop codon. Of two
seeds the one spanning more of the model is kept, minimap2's on a tie.

The output directory gets:
  seeds.tsv        the kept seed of each sequence
  overwritten.tsv  seeds that lost to the other aligner
  subseqs.tsv      the flanks to realign, named <seq>/<start>-<stop>
  subseqs.fa       the residues of those flanks`,
	Example: "  vadr-seed plan -q seqs.fa -m models.fa -a seqs.assign.tsv -b coverage/NC_045512.indel -d plan/",
	RunE:    planExec,
}

func init() {
	planCmd.Flags().StringP("seqs", "q", "", "FASTA of the sequences")
	planCmd.Flags().StringP("models", "m", "", "FASTA of the model consensus sequences")
	planCmd.Flags().StringP("assign", "a", "", "sequence to model assignments, <seq><TAB><model> per line")
	planCmd.Flags().StringSliceP("indels", "b", nil, "blastn indel files, comma separated or repeated")
	planCmd.Flags().StringP("sam", "r", "", "minimap2 SAM output")
	planCmd.Flags().StringP("codons", "c", "", "start and stop codons, <model><TAB><coords> per line")
	planCmd.Flags().StringP("dir", "d", ".", "output directory")

	planCmd.Flags().Int("overhang", 100, "residues a flank reaches into the seed")
	planCmd.Flags().Int("min-block-len", 10, "shortest block kept next to the longest")
	planCmd.Flags().Int("min-term-len", 10, "shortest first or last block kept short of a terminus")
	planCmd.Flags().Bool("codon-check", true, "collapse seeds with a gap in a start or stop codon")

	planCmd.MarkFlagRequired("seqs")
	planCmd.MarkFlagRequired("models")
	planCmd.MarkFlagRequired("assign")

	viper.BindPFlag("seed.overhang", planCmd.Flags().Lookup("overhang"))
	viper.BindPFlag("seed.min-block-len", planCmd.Flags().Lookup("min-block-len"))
	viper.BindPFlag("seed.min-term-len", planCmd.Flags().Lookup("min-term-len"))
	viper.BindPFlag("seed.codon-check", planCmd.Flags().Lookup("codon-check"))

	RootCmd.AddCommand(planCmd)
}

func planExec(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	seqsPath, _ := flags.GetString("seqs")
	modelsPath, _ := flags.GetString("models")
	assignPath, _ := flags.GetString("assign")
	indelPaths, _ := flags.GetStringSlice("indels")
	samPath, _ := flags.GetString("sam")
	codonsPath, _ := flags.GetString("codons")
	dir, _ := flags.GetString("dir")

	seqs, err := fasta.ReadFile(seqsPath)
	if err != nil {
		return err
	}
	models, err := fasta.ReadFile(modelsPath)
	if err != nil {
		return err
	}
	in := pipeline.PlanInputs{
		SeqLens: lengths(seqs),
		MdlLens: lengths(models),
		Codons:  map[string]coords.Coords{},
	}
	if in.Assignments, err = readFile(assignPath, alnio.ReadAssignments); err != nil {
		return err
	}
	for _, path := range indelPaths {
		lines, err := readFile(path, blastn.ReadIndelLines)
		if err != nil {
			return err
		}
		in.Blastn = append(in.Blastn, lines...)
	}
	if samPath != "" {
		if in.Minimap, err = readFile(samPath, minimap.Parse); err != nil {
			return err
		}
	}
	if codonsPath != "" {
		if in.Codons, err = readFile(codonsPath, alnio.ReadCodons); err != nil {
			return err
		}
	}

	jobs, err := in.Jobs()
	if err != nil {
		return err
	}

	runner := pipeline.New(conf.Workers, pipeline.Opts{
		Overhang: conf.Seed.Overhang,
		Prune: seed.PruneOpts{
			MinBlockLen: conf.Seed.MinBlockLen,
			MinTermLen:  conf.Seed.MinTermLen,
		},
		CodonCheck: conf.Seed.CodonCheck,
	})
	runner.SetLogger(logger)
	tick, finish := progress(len(jobs))
	runner.OnDone(tick)

	results, err := runner.Plan(context.Background(), jobs)
	finish()
	if err != nil {
		return err
	}

	seqIdx := fasta.Index(seqs)
	var (
		kept, overwritten []seed.Seed
		subseqs           []seed.Subseq
		flanks            []fasta.Record
		failed            int
	)
	for _, res := range results {
		if res.Err != nil {
			failed++
			logger.Warn("no seed plan", zap.String("seq", res.SeqName), zap.Error(res.Err))
			continue
		}
		kept = append(kept, res.Seed)
		if res.Overwritten != nil {
			overwritten = append(overwritten, *res.Overwritten)
		}
		for _, sub := range res.Plan.Subseqs {
			subseqs = append(subseqs, sub)
			flanks = append(flanks, fasta.Record{Name: sub.Name, Seq: seqIdx[sub.SeqName][sub.Start-1 : sub.Stop]})
		}
	}

	if err := writeFile(filepath.Join(dir, "seeds.tsv"), func(w io.Writer) error {
		return alnio.WriteSeeds(w, kept)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "overwritten.tsv"), func(w io.Writer) error {
		return alnio.WriteSeeds(w, overwritten)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "subseqs.tsv"), func(w io.Writer) error {
		return alnio.WriteSubseqs(w, subseqs)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "subseqs.fa"), func(w io.Writer) error {
		return fasta.Write(w, flanks, 60)
	}); err != nil {
		return err
	}

	logger.Info("planned seeds",
		zap.Int("seqs", len(results)),
		zap.Int("failed", failed),
		zap.Int("overwritten", len(overwritten)),
		zap.Int("subseqs", len(subseqs)),
	)
	return nil
}

func lengths(records []fasta.Record) map[string]int {
	lens := make(map[string]int, len(records))
	for _, r := range records {
		lens[r.Name] = len(r.Seq)
	}
	return lens
}
