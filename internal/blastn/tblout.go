package blastn

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/ncbi/vadr-sub003/internal/coords"
)

// Hit is one row of a cmsearch style tabular hit list. Target is the
// sequence and query the model, as in the model search this stands in for.
type Hit struct {
	SeqName string
	MdlName string

	// MdlFrom <= MdlTo always
	MdlFrom int
	MdlTo   int

	// SeqFrom > SeqTo on the - strand
	SeqFrom int
	SeqTo   int

	Strand coords.Strand
	Score  float64
	EValue float64
}

// hitFromHSP flips an HSP into model/sequence orientation. blastn reports
// the query increasing and the subject decreasing on the - strand, the hit
// list wants the model increasing and the sequence decreasing.
func hitFromHSP(h HSP) Hit {
	hit := Hit{
		SeqName: h.Query,
		MdlName: h.Subject,
		MdlFrom: h.SubjectRange.Low(),
		MdlTo:   h.SubjectRange.High(),
		SeqFrom: h.QueryRange.Start,
		SeqTo:   h.QueryRange.Stop,
		Strand:  h.Strand,
		Score:   h.BitScore,
		EValue:  h.EValue,
	}
	if h.Strand == coords.Minus {
		hit.SeqFrom, hit.SeqTo = hit.SeqTo, hit.SeqFrom
	}
	return hit
}

type triple struct {
	seq, mdl string
	strand   coords.Strand
}

// Classification converts HSPs into classification rows, one per HSP in
// input order. The bit scores of all HSPs of a (model, sequence, strand)
// are summed onto the first row of that triple, later rows score 0. Failed
// queries have no rows.
func Classification(hsps []HSP) []Hit {
	totals := make(map[triple]float64)
	for _, h := range hsps {
		totals[triple{h.Query, h.Subject, h.Strand}] += h.BitScore
	}

	seen := make(map[triple]bool)
	hits := make([]Hit, 0, len(hsps))
	for _, h := range hsps {
		if h.Err != nil {
			continue
		}
		hit := hitFromHSP(h)
		t := triple{h.Query, h.Subject, h.Strand}
		if seen[t] {
			hit.Score = 0
		} else {
			hit.Score = totals[t]
			seen[t] = true
		}
		hits = append(hits, hit)
	}
	return hits
}

// ModelCoverage is everything written for one model in coverage mode.
type ModelCoverage struct {
	Model  string
	Hits   []Hit
	Indels []IndelLine
}

// Coverage keeps the + strand HSPs of each sequence against the model it's
// assigned to, with bit score at least minScore. Within a sequence the HSPs
// are ordered best first so the first indel line of a sequence is its seed.
// Models come back in the order they were first hit. Failed queries are
// left out.
func Coverage(hsps []HSP, assigned map[string]string, minScore float64) []*ModelCoverage {
	seqOrder := make(map[string]int)
	var kept []HSP
	for _, h := range hsps {
		if h.Err != nil || h.Strand != coords.Plus || h.BitScore < minScore {
			continue
		}
		if mdl, ok := assigned[h.Query]; !ok || mdl != h.Subject {
			continue
		}
		if _, ok := seqOrder[h.Query]; !ok {
			seqOrder[h.Query] = len(seqOrder)
		}
		kept = append(kept, h)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		oi, oj := seqOrder[kept[i].Query], seqOrder[kept[j].Query]
		if oi != oj {
			return oi < oj
		}
		return kept[i].BitScore > kept[j].BitScore
	})

	var models []*ModelCoverage
	byModel := make(map[string]*ModelCoverage)
	for _, h := range kept {
		mc, ok := byModel[h.Subject]
		if !ok {
			mc = &ModelCoverage{Model: h.Subject}
			byModel[h.Subject] = mc
			models = append(models, mc)
		}
		mc.Hits = append(mc.Hits, hitFromHSP(h))
		mc.Indels = append(mc.Indels, IndelLineFromHSP(h))
	}
	return models
}

// WriteTblout writes hits as whitespace aligned rows with the column layout
// of cmsearch --tblout.
func WriteTblout(w io.Writer, hits []Hit) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintln(tw, "#target name\taccession\tquery name\taccession\tmdl\tmdl from\tmdl to\tseq from\tseq to\tstrand\ttrunc\tpass\tgc\tbias\tscore\tE-value\tinc\tdescription of target")
	fmt.Fprintln(tw, "#-------------------\t---------\t--------------------\t---------\t---\t--------\t--------\t--------\t--------\t------\t-----\t----\t----\t-----\t------\t---------\t---\t---------------------")
	for _, h := range hits {
		_, err := fmt.Fprintf(tw, "%s\t-\t%s\t-\tblastn\t%d\t%d\t%d\t%d\t%s\tno\t1\t-\t0.0\t%.1f\t%s\t!\t-\n",
			h.SeqName, h.MdlName, h.MdlFrom, h.MdlTo, h.SeqFrom, h.SeqTo, h.Strand, h.Score, formatEValue(h.EValue))
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func formatEValue(e float64) string {
	return strconv.FormatFloat(e, 'g', 3, 64)
}

// WriteClassification writes the classification rows of parsed HSPs.
func WriteClassification(w io.Writer, hsps []HSP) error {
	return WriteTblout(w, Classification(hsps))
}

// WriteCoverage writes one model's hit list and indel file.
func WriteCoverage(tbl, indels io.Writer, mc *ModelCoverage) error {
	if err := WriteTblout(tbl, mc.Hits); err != nil {
		return fmt.Errorf("failed to write hits for %s: %v", mc.Model, err)
	}
	if err := WriteIndelLines(indels, mc.Indels); err != nil {
		return fmt.Errorf("failed to write indels for %s: %v", mc.Model, err)
	}
	return nil
}
