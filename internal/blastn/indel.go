package blastn

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

// Indel is a single gap in an HSP.
//
// An insertion "Q<q>:S<s>+<n>" is n query residues, starting at q, that sit
// after subject position s. A deletion "Q<q>:S<s>-<n>" is n subject
// positions, starting at s, missing after query position q.
type Indel struct {
	SeqPos    int
	MdlPos    int
	Len       int
	Insertion bool
}

func (d Indel) String() string {
	sign := "-"
	if d.Insertion {
		sign = "+"
	}
	return fmt.Sprintf("Q%d:S%d%s%d", d.SeqPos, d.MdlPos, sign, d.Len)
}

var indelToken = regexp.MustCompile(`^Q(\d+):S(\d+)([+-])(\d+)$`)

// ParseIndel reads a single indel token.
func ParseIndel(tok string) (Indel, error) {
	m := indelToken.FindStringSubmatch(tok)
	if m == nil {
		return Indel{}, fmt.Errorf("indel token %q is not Q<pos>:S<pos>(+|-)<len>", tok)
	}
	seqPos, _ := strconv.Atoi(m[1])
	mdlPos, _ := strconv.Atoi(m[2])
	n, _ := strconv.Atoi(m[4])
	if seqPos < 1 || mdlPos < 1 || n < 1 {
		return Indel{}, fmt.Errorf("indel token %q has a zero field", tok)
	}
	return Indel{SeqPos: seqPos, MdlPos: mdlPos, Len: n, Insertion: m[3] == "+"}, nil
}

// ParseIndels reads a ";" separated list of tokens. "-" is an empty list.
func ParseIndels(s string) ([]Indel, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil, nil
	}
	var indels []Indel
	for _, tok := range strings.Split(s, ";") {
		if tok == "" {
			continue
		}
		d, err := ParseIndel(tok)
		if err != nil {
			return nil, err
		}
		indels = append(indels, d)
	}
	return indels, nil
}

// FormatIndels is the inverse of ParseIndels.
func FormatIndels(indels []Indel) string {
	if len(indels) == 0 {
		return "-"
	}
	toks := make([]string, len(indels))
	for i, d := range indels {
		toks[i] = d.String()
	}
	return strings.Join(toks, ";")
}

// IndelLine is one + strand HSP of a sequence against its assigned model:
// the spans it covers and its gaps.
type IndelLine struct {
	SeqName string
	MdlName string

	Seq coords.Segment
	Mdl coords.Segment

	Indels []Indel

	// Err is set when the line names its sequence but is otherwise unusable.
	// Only SeqName, MdlName and Err are meaningful then.
	Err error
}

func (l IndelLine) String() string {
	return strings.Join([]string{
		l.SeqName,
		l.MdlName,
		coords.Coords{l.Seq}.String(),
		coords.Coords{l.Mdl}.String(),
		FormatIndels(l.Indels),
	}, "\t")
}

// IndelLineFromHSP keeps the spans and gaps of an HSP. Insertions and
// deletions are merged and sorted by sequence position.
func IndelLineFromHSP(h HSP) IndelLine {
	var indels []Indel
	indels = append(indels, h.Ins...)
	indels = append(indels, h.Del...)
	sort.SliceStable(indels, func(i, j int) bool { return indels[i].SeqPos < indels[j].SeqPos })
	return IndelLine{
		SeqName: h.Query,
		MdlName: h.Subject,
		Seq:     h.QueryRange,
		Mdl:     h.SubjectRange,
		Indels:  indels,
	}
}

// ParseIndelLine reads a line written by IndelLine.String.
func ParseIndelLine(line string) (IndelLine, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) != 5 {
		return IndelLine{}, fmt.Errorf("indel line has %d fields, expected 5", len(fields))
	}

	seqC, err := coords.Parse(fields[2])
	if err != nil {
		return IndelLine{}, err
	}
	mdlC, err := coords.Parse(fields[3])
	if err != nil {
		return IndelLine{}, err
	}
	if len(seqC) != 1 || len(mdlC) != 1 {
		return IndelLine{}, fmt.Errorf("indel line spans must be single segments: %s %s", seqC, mdlC)
	}
	indels, err := ParseIndels(fields[4])
	if err != nil {
		return IndelLine{}, err
	}

	return IndelLine{
		SeqName: fields[0],
		MdlName: fields[1],
		Seq:     seqC[0],
		Mdl:     mdlC[0],
		Indels:  indels,
	}, nil
}

// ReadIndelLines reads an indel file. Lines are returned in file order. A
// line without a sequence name fails the file, other bad lines come back
// with Err set so only their sequence fails.
func ReadIndelLines(r io.Reader) (lines []IndelLine, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		l, err := ParseIndelLine(raw)
		if err != nil {
			fe := &FormatError{Line: lineNo, Raw: raw, Reason: err.Error()}
			fields := strings.Split(raw, "\t")
			if strings.TrimSpace(fields[0]) == "" {
				return nil, fe
			}
			l = IndelLine{SeqName: fields[0], Err: fe}
			if len(fields) > 1 {
				l.MdlName = fields[1]
			}
		}
		lines = append(lines, l)
	}
	if err = sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read indel file: %v", err)
	}
	return lines, nil
}

// WriteIndelLines writes one line per IndelLine.
func WriteIndelLines(w io.Writer, lines []IndelLine) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if l.Err != nil {
			return fmt.Errorf("indel line of %s can't be written: %w", l.SeqName, l.Err)
		}
		if _, err := fmt.Fprintln(bw, l.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// gapEvent ends one block and says where the next begins.
type gapEvent struct {
	seqEnd, mdlEnd   int
	seqNext, mdlNext int
}

// SeedFromIndels rebuilds the ungapped blocks of a + strand indel line.
func SeedFromIndels(l IndelLine) (seed.Seed, error) {
	if l.Err != nil {
		return seed.Seed{}, l.Err
	}
	if l.Seq.Strand != coords.Plus || l.Mdl.Strand != coords.Plus {
		return seed.Seed{}, fmt.Errorf("indel line %s/%s: only + strand HSPs make seeds", l.SeqName, l.MdlName)
	}

	events := make([]gapEvent, len(l.Indels))
	for i, d := range l.Indels {
		if d.Insertion {
			events[i] = gapEvent{
				seqEnd: d.SeqPos - 1, mdlEnd: d.MdlPos,
				seqNext: d.SeqPos + d.Len, mdlNext: d.MdlPos + 1,
			}
		} else {
			events[i] = gapEvent{
				seqEnd: d.SeqPos, mdlEnd: d.MdlPos - 1,
				seqNext: d.SeqPos + 1, mdlNext: d.MdlPos + d.Len,
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].seqEnd != events[j].seqEnd {
			return events[i].seqEnd < events[j].seqEnd
		}
		return events[i].mdlEnd < events[j].mdlEnd
	})

	var seqC, mdlC coords.Coords
	curSeq, curMdl := l.Seq.Start, l.Mdl.Start
	addBlock := func(seqEnd, mdlEnd int) error {
		// two gaps back to back leave nothing between them
		if seqEnd == curSeq-1 && mdlEnd == curMdl-1 {
			return nil
		}
		s := coords.Segment{Start: curSeq, Stop: seqEnd, Strand: coords.Plus}
		m := coords.Segment{Start: curMdl, Stop: mdlEnd, Strand: coords.Plus}
		if s.Validate() != nil || m.Validate() != nil || s.Len() != m.Len() {
			return &seed.LengthMismatchError{Block: len(seqC), Seq: s, Mdl: m}
		}
		seqC = append(seqC, s)
		mdlC = append(mdlC, m)
		return nil
	}

	for _, ev := range events {
		if err := addBlock(ev.seqEnd, ev.mdlEnd); err != nil {
			return seed.Seed{}, fmt.Errorf("indel line %s/%s: %w", l.SeqName, l.MdlName, err)
		}
		curSeq, curMdl = ev.seqNext, ev.mdlNext
	}
	if err := addBlock(l.Seq.Stop, l.Mdl.Stop); err != nil {
		return seed.Seed{}, fmt.Errorf("indel line %s/%s: %w", l.SeqName, l.MdlName, err)
	}

	return seed.New(l.SeqName, l.MdlName, seed.Blastn, seqC, mdlC)
}
