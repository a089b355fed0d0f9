package cmd

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ncbi/vadr-sub003/internal/blastn"
)

// summaryCmd is for turning blastn output into classification hits.
var summaryCmd = &cobra.Command{
	Use:                        "summary",
	Short:                      "Convert a blastn summary into classification hits",
	SuggestionsMinimumDistance: 3,
	Long: `Convert a blastn summary into classification hits.

Every HSP of every sequence becomes one row of a cmsearch style hit list. The
bit scores of all HSPs of a sequence against a model on one strand are summed
onto the first row of that group and later rows score 0, so that the top
scoring model can be picked per sequence. Both strands are kept.`,
	Example: "  vadr-seed summary -i seqs.blastn.summary -o seqs.blastn.tblout",
	Aliases: []string{"classify"},
	RunE:    summaryExec,
}

func init() {
	summaryCmd.Flags().StringP("in", "i", "", "blastn summary file")
	summaryCmd.Flags().StringP("out", "o", "-", "output hit list")
	summaryCmd.MarkFlagRequired("in")

	RootCmd.AddCommand(summaryCmd)
}

func summaryExec(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")

	hsps, err := readFile(in, blastn.Parse)
	if err != nil {
		return err
	}
	logger.Info("read blastn summary", zap.String("file", in), zap.Int("hsps", len(hsps)))
	warnFailed(hsps)

	return writeFile(out, func(w io.Writer) error {
		return blastn.WriteClassification(w, hsps)
	})
}

// warnFailed logs each query of a summary whose record couldn't be read.
func warnFailed(hsps []blastn.HSP) {
	for _, h := range hsps {
		if h.Err != nil {
			logger.Warn("skipped blastn record", zap.String("seq", h.Query), zap.Error(h.Err))
		}
	}
}
