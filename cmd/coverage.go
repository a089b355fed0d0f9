package cmd

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ncbi/vadr-sub003/internal/alnio"
	"github.com/ncbi/vadr-sub003/internal/blastn"
)

// coverageCmd is for splitting blastn output into per-model hits and seeds.
var coverageCmd = &cobra.Command{
	Use:                        "coverage",
	Short:                      "Split a blastn summary into per-model hits and indel lines",
	SuggestionsMinimumDistance: 3,
	Long: `Split a blastn summary into per-model hits and indel lines.

Only + strand HSPs of a sequence against the model it's assigned to, and
with at least seed.min-score bits, are kept. For each model two files are
written to the output directory: <model>.tblout, the hit list, and
<model>.indel, one line per HSP with its insertions and deletions. Within a
sequence HSPs are best first, the first is the sequence's blastn seed.`,
	Example: "  vadr-seed coverage -i seqs.blastn.summary -a seqs.assign.tsv -d coverage/",
	RunE:    coverageExec,
}

func init() {
	coverageCmd.Flags().StringP("in", "i", "", "blastn summary file")
	coverageCmd.Flags().StringP("assign", "a", "", "sequence to model assignments, <seq><TAB><model> per line")
	coverageCmd.Flags().StringP("dir", "d", ".", "output directory")
	coverageCmd.Flags().Float64("min-score", 50, "lowest bit score of a kept HSP")
	coverageCmd.MarkFlagRequired("in")
	coverageCmd.MarkFlagRequired("assign")

	viper.BindPFlag("seed.min-score", coverageCmd.Flags().Lookup("min-score"))

	RootCmd.AddCommand(coverageCmd)
}

// modelFile makes a model name safe to use in a file name.
var modelFile = strings.NewReplacer("/", "_", "|", "_", " ", "_")

func coverageExec(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	assignPath, _ := cmd.Flags().GetString("assign")
	dir, _ := cmd.Flags().GetString("dir")

	hsps, err := readFile(in, blastn.Parse)
	if err != nil {
		return err
	}
	warnFailed(hsps)
	assignments, err := readFile(assignPath, alnio.ReadAssignments)
	if err != nil {
		return err
	}
	assigned := make(map[string]string, len(assignments))
	for _, a := range assignments {
		assigned[a.Seq] = a.Mdl
	}

	for _, mc := range blastn.Coverage(hsps, assigned, conf.Seed.MinScore) {
		base := filepath.Join(dir, modelFile.Replace(mc.Model))
		err := writeFile(base+".tblout", func(tbl io.Writer) error {
			return writeFile(base+".indel", func(indels io.Writer) error {
				return blastn.WriteCoverage(tbl, indels, mc)
			})
		})
		if err != nil {
			return err
		}
		logger.Info("wrote model coverage", zap.String("mdl", mc.Model), zap.Int("hits", len(mc.Hits)))
	}
	return nil
}
