// Package alnio reads and writes the files passed between the seed and join
// stages and the external aligners: Stockholm alignments, insert files and
// the tab separated seed, subsequence, codon and failure tables.
package alnio

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ncbi/vadr-sub003/internal/alignment"
	"github.com/ncbi/vadr-sub003/internal/join"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

// FormatError is a line of an input file that couldn't be parsed.
type FormatError struct {
	File   string
	Line   int
	Raw    string
	Reason string

	// Err is the parse error behind Reason, if any
	Err error
}

func (e *FormatError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Raw)
	}
	return fmt.Sprintf("%s:%d: %s: %q", e.File, e.Line, e.Reason, e.Raw)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Row is one sequence of a multiple alignment.
type Row struct {
	Name string
	Seq  string
	PP   string
}

// Stockholm is one multiple alignment of sequences to a model.
type Stockholm struct {
	RF   string
	Rows []Row
}

// ReadStockholm reads every alignment in r. Interleaved blocks are joined.
// Per-file and per-sequence markup other than RF and PP is ignored.
func ReadStockholm(r io.Reader) (alns []*Stockholm, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 256*1024*1024)

	var (
		cur    *Stockholm
		rowIdx map[string]int
		lineNo int
	)
	fail := func(line, format string, args ...interface{}) error {
		return &FormatError{Line: lineNo, Raw: line, Reason: fmt.Sprintf(format, args...)}
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "# STOCKHOLM"):
			if cur != nil {
				return nil, fail(line, "alignment not closed with //")
			}
			cur = &Stockholm{}
			rowIdx = make(map[string]int)
			continue
		case cur == nil:
			return nil, fail(line, "expected a # STOCKHOLM header")
		case trimmed == "//":
			for _, row := range cur.Rows {
				if len(row.Seq) != len(cur.RF) {
					return nil, fail(line, "row %s is %d columns but RF is %d", row.Name, len(row.Seq), len(cur.RF))
				}
				if row.PP != "" && len(row.PP) != len(row.Seq) {
					return nil, fail(line, "PP of %s is %d columns but the row is %d", row.Name, len(row.PP), len(row.Seq))
				}
			}
			alns = append(alns, cur)
			cur = nil
			continue
		}

		fields := strings.Fields(trimmed)
		switch {
		case fields[0] == "#=GC":
			if len(fields) != 3 {
				return nil, fail(line, "malformed #=GC line")
			}
			if fields[1] == "RF" {
				cur.RF += fields[2]
			}
		case fields[0] == "#=GR":
			if len(fields) != 4 {
				return nil, fail(line, "malformed #=GR line")
			}
			if fields[2] != "PP" {
				continue
			}
			i, ok := rowIdx[fields[1]]
			if !ok {
				return nil, fail(line, "PP for unknown sequence %s", fields[1])
			}
			cur.Rows[i].PP += fields[3]
		case strings.HasPrefix(fields[0], "#"):
			// #=GF, #=GS and comments
		default:
			if len(fields) != 2 {
				return nil, fail(line, "expected <name> <aligned sequence>")
			}
			i, ok := rowIdx[fields[0]]
			if !ok {
				i = len(cur.Rows)
				rowIdx[fields[0]] = i
				cur.Rows = append(cur.Rows, Row{Name: fields[0]})
			}
			cur.Rows[i].Seq += fields[1]
		}
	}
	if err = sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read Stockholm alignment: %v", err)
	}
	if cur != nil {
		return nil, &FormatError{Line: lineNo, Reason: "alignment not closed with //"}
	}
	return alns, nil
}

// Alignment pulls row i out as a pairwise alignment to the model. Columns
// gapped in both the row and RF belong to other rows and are dropped. Rows
// named <seq>/<start>-<stop> start at sequence position start.
func (s *Stockholm) Alignment(i int) (alignment.Alignment, error) {
	row := s.Rows[i]
	var seqB, rfB, ppB strings.Builder
	for c := 0; c < len(row.Seq); c++ {
		if alignment.IsGap(row.Seq[c]) && alignment.IsGap(s.RF[c]) {
			continue
		}
		seqB.WriteByte(row.Seq[c])
		rfB.WriteByte(s.RF[c])
		if row.PP != "" {
			ppB.WriteByte(row.PP[c])
		}
	}

	seqStart := 1
	if _, start, _, err := seed.ParseSubseqName(row.Name); err == nil {
		seqStart = start
	}

	aln := alignment.Alignment{
		Seq:      seqB.String(),
		RF:       rfB.String(),
		PP:       ppB.String(),
		SeqStart: seqStart,
		MdlStart: 1,
	}
	return aln, aln.Validate()
}

// Flanks reads the flank realignments in r, keyed by row name.
func Flanks(r io.Reader) (map[string]alignment.Alignment, error) {
	alns, err := ReadStockholm(r)
	if err != nil {
		return nil, err
	}
	flanks := make(map[string]alignment.Alignment)
	for _, sto := range alns {
		for i, row := range sto.Rows {
			aln, err := sto.Alignment(i)
			if err != nil {
				return nil, fmt.Errorf("flank %s: %v", row.Name, err)
			}
			flanks[row.Name] = aln
		}
	}
	return flanks, nil
}

// WriteStockholm writes each joined sequence as its own alignment.
func WriteStockholm(w io.Writer, joined []*join.Joined) error {
	bw := bufio.NewWriter(w)
	for _, j := range joined {
		width := max(len(j.SeqName), len("#=GR  PP")+len(j.SeqName), len("#=GC RF"))
		pad := func(s string) string { return s + strings.Repeat(" ", width-len(s)+1) }

		fmt.Fprintln(bw, "# STOCKHOLM 1.0")
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "#=GS %s DE aligned to %s\n", j.SeqName, j.MdlName)
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, pad(j.SeqName)+j.Aln.Seq)
		if j.Aln.HasPP() {
			fmt.Fprintln(bw, pad("#=GR "+j.SeqName+" PP")+j.Aln.PP)
		}
		fmt.Fprintln(bw, pad("#=GC RF")+j.Aln.RF)
		if _, err := fmt.Fprintln(bw, "//"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
