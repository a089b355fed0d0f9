package alnio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ncbi/vadr-sub003/internal/alignment"
	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/join"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

// readTable calls fn with the tab separated fields of every line that isn't
// blank or a # comment. fn's errors become FormatErrors.
func readTable(r io.Reader, nFields int, fn func(fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != nFields {
			return &FormatError{Line: lineNo, Raw: line, Reason: fmt.Sprintf("%d fields, expected %d", len(fields), nFields)}
		}
		if err := fn(fields); err != nil {
			return &FormatError{Line: lineNo, Raw: line, Reason: err.Error(), Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read table: %v", err)
	}
	return nil
}

// writeTable writes a header and rows, tab separated.
func writeTable(w io.Writer, header []string, rows [][]string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#"+strings.Join(header, "\t"))
	for _, row := range rows {
		if _, err := fmt.Fprintln(bw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

var seedHeader = []string{"seq", "mdl", "method", "seqcoords", "mdlcoords"}

// WriteSeeds writes one seed per line.
func WriteSeeds(w io.Writer, seeds []seed.Seed) error {
	rows := make([][]string, len(seeds))
	for i, sd := range seeds {
		rows[i] = []string{sd.SeqName, sd.MdlName, sd.Method.String(), sd.Seq.String(), sd.Mdl.String()}
	}
	return writeTable(w, seedHeader, rows)
}

// ReadSeeds reads a table written by WriteSeeds.
func ReadSeeds(r io.Reader) (seeds []seed.Seed, err error) {
	err = readTable(r, len(seedHeader), func(f []string) error {
		method, err := seed.ParseMethod(f[2])
		if err != nil {
			return err
		}
		sc, err := coords.Parse(f[3])
		if err != nil {
			return err
		}
		mc, err := coords.Parse(f[4])
		if err != nil {
			return err
		}
		sd, err := seed.New(f[0], f[1], method, sc, mc)
		if err != nil {
			return err
		}
		seeds = append(seeds, sd)
		return nil
	})
	return seeds, err
}

var subseqHeader = []string{"name", "seq", "end", "start", "stop"}

// WriteSubseqs writes the realignment requests.
func WriteSubseqs(w io.Writer, subseqs []seed.Subseq) error {
	rows := make([][]string, len(subseqs))
	for i, s := range subseqs {
		rows[i] = []string{s.Name, s.SeqName, s.End.String(), strconv.Itoa(s.Start), strconv.Itoa(s.Stop)}
	}
	return writeTable(w, subseqHeader, rows)
}

// ReadSubseqs reads a table written by WriteSubseqs.
func ReadSubseqs(r io.Reader) (subseqs []seed.Subseq, err error) {
	err = readTable(r, len(subseqHeader), func(f []string) error {
		end, err := seed.ParseEnd(f[2])
		if err != nil {
			return err
		}
		start, err := strconv.Atoi(f[3])
		if err != nil {
			return fmt.Errorf("bad start %q", f[3])
		}
		stop, err := strconv.Atoi(f[4])
		if err != nil {
			return fmt.Errorf("bad stop %q", f[4])
		}
		if start < 1 || stop < start {
			return fmt.Errorf("bad span %d-%d", start, stop)
		}
		subseqs = append(subseqs, seed.Subseq{Name: f[0], SeqName: f[1], End: end, Start: start, Stop: stop})
		return nil
	})
	return subseqs, err
}

var unjoinableHeader = []string{"seq", "mdl", "end", "seqpos", "mdlpos", "expected_mdlpos", "flank_span", "seed_span", "detail"}

// WriteUnjoinable writes one line per failed join.
func WriteUnjoinable(w io.Writer, failed []*join.Unjoinable) error {
	rows := make([][]string, len(failed))
	for i, u := range failed {
		rows[i] = []string{
			u.SeqName,
			u.MdlName,
			u.End.String(),
			strconv.Itoa(u.SeqPos),
			strconv.Itoa(u.MdlPos),
			strconv.Itoa(u.ExpectedMdlPos),
			u.FlankSpan,
			u.SeedSpan,
			u.Detail,
		}
	}
	return writeTable(w, unjoinableHeader, rows)
}

// ReadCodons reads "model<TAB>coords" lines of start and stop codon spans.
// A model may appear on more than one line.
func ReadCodons(r io.Reader) (map[string]coords.Coords, error) {
	codons := make(map[string]coords.Coords)
	err := readTable(r, 2, func(f []string) error {
		c, err := coords.Parse(f[1])
		if err != nil {
			return err
		}
		codons[f[0]] = append(codons[f[0]], c...)
		return nil
	})
	return codons, err
}

// Assignment is a sequence and the model it was classified to.
type Assignment struct {
	Seq string
	Mdl string
}

// ReadAssignments reads "seq<TAB>model" lines, in file order.
func ReadAssignments(r io.Reader) (assigned []Assignment, err error) {
	seen := make(map[string]bool)
	err = readTable(r, 2, func(f []string) error {
		if seen[f[0]] {
			return fmt.Errorf("%s is assigned twice", f[0])
		}
		seen[f[0]] = true
		assigned = append(assigned, Assignment{Seq: f[0], Mdl: f[1]})
		return nil
	})
	return assigned, err
}

// WriteInserts writes the insert records of one model's sequences, laid out
// like Infernal's cmalign --ifile with each insert as one token.
func WriteInserts(w io.Writer, mdlName string, mdlLen int, records []alignment.InsertRecord) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# one model line, one line per sequence, then //")
	fmt.Fprintln(bw, "# <mdlname> <mdllen>")
	fmt.Fprintln(bw, "# <seqname> <seqlen> <mdlstart> <mdlstop> [<mdlpos>:<seqpos>:<len> ...]")
	fmt.Fprintf(bw, "%s %d\n", mdlName, mdlLen)
	for _, rec := range records {
		fmt.Fprintln(bw, rec.String())
	}
	if _, err := fmt.Fprintln(bw, "//"); err != nil {
		return err
	}
	return bw.Flush()
}
