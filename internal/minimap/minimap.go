// Package minimap reads the SAM records minimap2 writes for sequences mapped
// to model consensus sequences and turns their CIGAR strings into seeds.
package minimap

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"

	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

const (
	// FlagPrimary is the only flag of a record used as a seed
	FlagPrimary = 0

	// FlagSupplementary marks minimap2's secondary alignments of a sequence,
	// SAM's supplementary bit. These records are skipped.
	FlagSupplementary = 2048
)

// FormatError is a SAM line that couldn't be used.
type FormatError struct {
	Line   int
	Raw    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Raw)
}

// Record is the part of a SAM line that makes a seed.
type Record struct {
	QName string
	Flag  int
	RName string

	// Pos is the 1-based model position of the first aligned residue
	Pos   int
	MapQ  int
	Cigar sam.Cigar
	Seq   string

	// Line is the record's line number in its file
	Line int
	raw  string

	// Err is set when the line names its sequence but is otherwise unusable.
	// Only QName, Line and Err are meaningful then.
	Err error
}

// Primary reports whether the record is the sequence's primary alignment.
func (r Record) Primary() bool { return r.Flag == FlagPrimary }

// ParseRecord reads one tab separated alignment line. Optional fields
// after the sequence are ignored. A line without a sequence name is an
// error; any other problem is kept on the record's Err.
func ParseRecord(line string) (Record, error) {
	return parseRecord(line, 0)
}

func parseRecord(line string, lineNo int) (Record, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if strings.TrimSpace(fields[0]) == "" {
		return Record{}, &FormatError{Line: lineNo, Raw: line, Reason: "no sequence name"}
	}
	bad := func(format string, args ...interface{}) (Record, error) {
		return Record{
			QName: fields[0],
			Line:  lineNo,
			raw:   line,
			Err:   &FormatError{Line: lineNo, Raw: line, Reason: fmt.Sprintf(format, args...)},
		}, nil
	}
	if len(fields) < 10 {
		return bad("%d fields, expected at least 10", len(fields))
	}

	flag, err := strconv.Atoi(fields[1])
	if err != nil {
		return bad("bad flag %q", fields[1])
	}
	if flag != FlagPrimary && flag != FlagSupplementary {
		return bad("unexpected flag %d", flag)
	}
	pos, err := strconv.Atoi(fields[3])
	if err != nil || pos < 0 {
		return bad("bad position %q", fields[3])
	}
	mapq, err := strconv.Atoi(fields[4])
	if err != nil {
		return bad("bad mapping quality %q", fields[4])
	}
	cigar, err := sam.ParseCigar([]byte(fields[5]))
	if err != nil {
		return bad("bad CIGAR %q: %v", fields[5], err)
	}

	return Record{
		QName: fields[0],
		Flag:  flag,
		RName: fields[2],
		Pos:   pos,
		MapQ:  mapq,
		Cigar: cigar,
		Seq:   fields[9],
		Line:  lineNo,
		raw:   line,
	}, nil
}

// Parse reads every alignment record. Header lines, starting with @, are
// skipped. Only a line without a sequence name fails the whole file, other
// bad lines come back as records with Err set.
func Parse(r io.Reader) (records []Record, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 256*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.HasPrefix(line, "@") || strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := parseRecord(line, lineNo)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err = sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alignments: %v", err)
	}
	return records, nil
}

// SeedFromRecord walks the CIGAR of a primary record. Matches extend both
// coordinate spaces, insertions and clips the sequence, deletions the model.
// Clips may only be the first or last operation.
func SeedFromRecord(rec Record) (seed.Seed, error) {
	fail := func(format string, args ...interface{}) (seed.Seed, error) {
		return seed.Seed{}, &FormatError{Line: rec.Line, Raw: rec.raw, Reason: fmt.Sprintf(format, args...)}
	}

	if rec.Err != nil {
		return seed.Seed{}, rec.Err
	}
	if !rec.Primary() {
		return fail("record of %s is not primary", rec.QName)
	}
	if len(rec.Cigar) == 0 {
		return fail("record of %s has no CIGAR", rec.QName)
	}
	if rec.Pos < 1 {
		return fail("record of %s is unmapped", rec.QName)
	}
	if rec.Seq == "*" || rec.Seq == "" {
		return fail("record of %s has no sequence", rec.QName)
	}

	var (
		seqC, mdlC coords.Coords
		curSeq     = 1
		curMdl     = rec.Pos
		hardClips  int
		lastMatch  bool
	)
	for i, op := range rec.Cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch:
			if lastMatch {
				seqC[len(seqC)-1].Stop += n
				mdlC[len(mdlC)-1].Stop += n
			} else {
				seqC = append(seqC, coords.Segment{Start: curSeq, Stop: curSeq + n - 1, Strand: coords.Plus})
				mdlC = append(mdlC, coords.Segment{Start: curMdl, Stop: curMdl + n - 1, Strand: coords.Plus})
			}
			curSeq += n
			curMdl += n
			lastMatch = true
			continue
		case sam.CigarInsertion:
			curSeq += n
		case sam.CigarDeletion:
			curMdl += n
		case sam.CigarSoftClipped, sam.CigarHardClipped:
			if i != 0 && i != len(rec.Cigar)-1 {
				return fail("clip %s inside the alignment", op)
			}
			if op.Type() == sam.CigarHardClipped {
				hardClips += n
			}
			curSeq += n
		default:
			return fail("unsupported CIGAR operation %s", op)
		}
		lastMatch = false
	}

	if consumed := curSeq - 1; consumed != len(rec.Seq)+hardClips {
		return fail("CIGAR consumes %d residues but %s has %d", consumed, rec.QName, len(rec.Seq)+hardClips)
	}

	sd, err := seed.New(rec.QName, rec.RName, seed.Minimap2, seqC, mdlC)
	if err != nil {
		return seed.Seed{}, fmt.Errorf("line %d: %w", rec.Line, err)
	}
	return sd, nil
}

// Primary picks out each sequence's primary record. A sequence with a bad
// line, or with two primary records, gets a record carrying the error
// instead.
func Primary(records []Record) map[string]Record {
	primary := make(map[string]Record)
	for _, rec := range records {
		prev, seen := primary[rec.QName]
		switch {
		case seen && prev.Err != nil:
			// the first error sticks
		case rec.Err != nil:
			primary[rec.QName] = rec
		case !rec.Primary():
		case seen:
			primary[rec.QName] = Record{
				QName: rec.QName,
				Line:  rec.Line,
				raw:   rec.raw,
				Err:   &FormatError{Line: rec.Line, Raw: rec.raw, Reason: "second primary record for " + rec.QName},
			}
		default:
			primary[rec.QName] = rec
		}
	}
	return primary
}
