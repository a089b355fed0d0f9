package cmd

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ncbi/vadr-sub003/internal/alignment"
	"github.com/ncbi/vadr-sub003/internal/alnio"
	"github.com/ncbi/vadr-sub003/internal/fasta"
	"github.com/ncbi/vadr-sub003/internal/join"
	"github.com/ncbi/vadr-sub003/internal/pipeline"
)

// joinCmd is for splicing flank realignments onto seeds.
var joinCmd = &cobra.Command{
	Use:                        "join",
	Short:                      "Join flank realignments onto seeds as whole-sequence alignments",
	SuggestionsMinimumDistance: 3,
	Long: `Join flank realignments onto seeds as whole-sequence alignments.

Takes the seeds and subsequences written by 'vadr-seed plan' and the
Stockholm realignments of those subsequences, rows named <seq>/<start>-<stop>.
Each flank must place the residue at its seed boundary at the model position
the seed does. Flanks that don't are reported as unjoinable and their
sequence is left out.

The output directory gets:
  joined.stk       one alignment block per joined sequence
  <model>.ifile    insert records of each model's joined sequences
  unjoinable.tsv   flanks that disagreed with their seed`,
	Example: "  vadr-seed join -q seqs.fa -m models.fa -e plan/seeds.tsv -u plan/subseqs.tsv -f flanks.stk -d join/",
	Aliases: []string{"splice"},
	RunE:    joinExec,
}

func init() {
	joinCmd.Flags().StringP("seqs", "q", "", "FASTA of the sequences")
	joinCmd.Flags().StringP("models", "m", "", "FASTA of the model consensus sequences")
	joinCmd.Flags().StringP("seeds", "e", "", "seed table from 'vadr-seed plan'")
	joinCmd.Flags().StringP("subseqs", "u", "", "subsequence table from 'vadr-seed plan'")
	joinCmd.Flags().StringSliceP("flanks", "f", nil, "Stockholm realignments of the subsequences, comma separated or repeated")
	joinCmd.Flags().StringP("dir", "d", ".", "output directory")

	joinCmd.MarkFlagRequired("seqs")
	joinCmd.MarkFlagRequired("models")
	joinCmd.MarkFlagRequired("seeds")
	joinCmd.MarkFlagRequired("subseqs")

	RootCmd.AddCommand(joinCmd)
}

func joinExec(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	seqsPath, _ := flags.GetString("seqs")
	modelsPath, _ := flags.GetString("models")
	seedsPath, _ := flags.GetString("seeds")
	subseqsPath, _ := flags.GetString("subseqs")
	flankPaths, _ := flags.GetStringSlice("flanks")
	dir, _ := flags.GetString("dir")

	seqs, err := fasta.ReadFile(seqsPath)
	if err != nil {
		return err
	}
	models, err := fasta.ReadFile(modelsPath)
	if err != nil {
		return err
	}
	in := pipeline.JoinInputs{
		Seqs:   fasta.Index(seqs),
		Cons:   fasta.Index(models),
		Flanks: make(map[string]alignment.Alignment),
	}
	if in.Seeds, err = readFile(seedsPath, alnio.ReadSeeds); err != nil {
		return err
	}
	if in.Subseqs, err = readFile(subseqsPath, alnio.ReadSubseqs); err != nil {
		return err
	}
	for _, path := range flankPaths {
		flanks, err := readFile(path, alnio.Flanks)
		if err != nil {
			return err
		}
		for name, aln := range flanks {
			in.Flanks[name] = aln
		}
	}

	inputs, err := in.Inputs()
	if err != nil {
		return err
	}

	runner := pipeline.New(conf.Workers, pipeline.Opts{})
	runner.SetLogger(logger)
	tick, finish := progress(len(inputs))
	runner.OnDone(tick)

	results, err := runner.Join(context.Background(), inputs)
	finish()
	if err != nil {
		return err
	}

	var (
		joined     []*join.Joined
		unjoinable []*join.Unjoinable
		failed     int
		mdlOrder   []string
		byModel    = make(map[string][]alignment.InsertRecord)
	)
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
			logger.Warn("not joined", zap.String("seq", res.SeqName), zap.Error(res.Err))
		case res.Result.Unjoinable != nil:
			unjoinable = append(unjoinable, res.Result.Unjoinable)
		default:
			j := res.Result.Joined
			joined = append(joined, j)
			if _, ok := byModel[j.MdlName]; !ok {
				mdlOrder = append(mdlOrder, j.MdlName)
			}
			byModel[j.MdlName] = append(byModel[j.MdlName], j.Inserts)
		}
	}

	if err := writeFile(filepath.Join(dir, "joined.stk"), func(w io.Writer) error {
		return alnio.WriteStockholm(w, joined)
	}); err != nil {
		return err
	}
	for _, mdl := range mdlOrder {
		mdlLen := len(in.Cons[mdl])
		if err := writeFile(filepath.Join(dir, modelFile.Replace(mdl)+".ifile"), func(w io.Writer) error {
			return alnio.WriteInserts(w, mdl, mdlLen, byModel[mdl])
		}); err != nil {
			return err
		}
	}
	if err := writeFile(filepath.Join(dir, "unjoinable.tsv"), func(w io.Writer) error {
		return alnio.WriteUnjoinable(w, unjoinable)
	}); err != nil {
		return err
	}

	logger.Info("joined seeds",
		zap.Int("seqs", len(results)),
		zap.Int("joined", len(joined)),
		zap.Int("unjoinable", len(unjoinable)),
		zap.Int("failed", failed),
	)
	return nil
}
