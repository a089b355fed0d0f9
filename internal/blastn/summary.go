// Package blastn reads the summarized output of a blastn run (one query
// sequence against model sequences), turns it into rows for the
// classification stage and into per-model coverage/indel files, and rebuilds
// seeds from those indel files.
package blastn

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ncbi/vadr-sub003/internal/coords"
)

// FormatError is a line of blastn output that couldn't be parsed.
type FormatError struct {
	// Line number, 1-based
	Line int

	// Raw is the offending line
	Raw string

	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Raw)
}

// HSP is one high-scoring pair from the summary: a single local alignment
// of the query (a sequence) to a subject (a model).
type HSP struct {
	Query    string
	QueryLen int

	Subject    string
	SubjectLen int

	// Index of the HSP within its query/subject pair, as numbered by blastn
	Index int

	BitScore float64
	EValue   float64
	Strand   coords.Strand

	// QueryRange is always increasing
	QueryRange coords.Segment

	// SubjectRange runs in the direction of Strand
	SubjectRange coords.Segment

	// Insertions in the query relative to the subject
	Ins []Indel

	// Deletions from the query relative to the subject
	Del []Indel

	// Err is set on the one HSP standing in for a query whose record
	// couldn't be read. Only Query and Err are meaningful then.
	Err error
}

// key is a summary line's leading field.
type key int

const (
	keyNone key = iota
	keyQACC
	keyQLEN
	keyHACC
	keySLEN
	keyHSP
	keyBITSCORE
	keyEVALUE
	keySTRAND
	keyQRANGE
	keySRANGE
	keyINS
	keyDEL
	keyEND
)

var keyNames = map[string]key{
	"QACC":      keyQACC,
	"QLEN":      keyQLEN,
	"HACC":      keyHACC,
	"SLEN":      keySLEN,
	"HSP":       keyHSP,
	"BITSCORE":  keyBITSCORE,
	"EVALUE":    keyEVALUE,
	"STRAND":    keySTRAND,
	"QRANGE":    keyQRANGE,
	"SRANGE":    keySRANGE,
	"INS":       keyINS,
	"DEL":       keyDEL,
	"END_MATCH": keyEND,
}

// follows lists the keys allowed after each key.
var follows = map[key][]key{
	keyNone:     {keyQACC},
	keyQACC:     {keyQLEN},
	keyQLEN:     {keyHACC, keyQACC},
	keyHACC:     {keySLEN},
	keySLEN:     {keyHSP},
	keyHSP:      {keyBITSCORE},
	keyBITSCORE: {keyEVALUE},
	keyEVALUE:   {keySTRAND},
	keySTRAND:   {keyQRANGE},
	keyQRANGE:   {keySRANGE},
	keySRANGE:   {keyINS, keyDEL, keyEND},
	keyINS:      {keyDEL, keyEND},
	keyDEL:      {keyEND},
	keyEND:      {keyQACC, keyHACC, keyHSP},
}

// state is what's known about the record being read.
type state struct {
	last key

	query    string
	queryLen int

	subject    string
	subjectLen int

	hsp HSP
}

// step consumes one line. A completed HSP is returned on END_MATCH.
func step(st state, lineNo int, line string) (state, *HSP, error) {
	fail := func(format string, args ...interface{}) (state, *HSP, error) {
		return st, nil, &FormatError{Line: lineNo, Raw: line, Reason: fmt.Sprintf(format, args...)}
	}

	name, value, _ := strings.Cut(line, "\t")
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	k, ok := keyNames[name]
	if !ok {
		return fail("unknown key %q", name)
	}
	allowed := false
	for _, f := range follows[st.last] {
		if f == k {
			allowed = true
			break
		}
	}
	if !allowed {
		return fail("%s out of order", name)
	}
	if value == "" && k != keyEND {
		return fail("%s without a value", name)
	}

	var err error
	switch k {
	case keyQACC:
		st = state{query: value}
	case keyQLEN:
		if st.queryLen, err = parsePositive(value); err != nil {
			return fail("bad query length: %v", err)
		}
	case keyHACC:
		st.subject = value
		st.subjectLen = 0
	case keySLEN:
		if st.subjectLen, err = parsePositive(value); err != nil {
			return fail("bad subject length: %v", err)
		}
	case keyHSP:
		st.hsp = HSP{
			Query:      st.query,
			QueryLen:   st.queryLen,
			Subject:    st.subject,
			SubjectLen: st.subjectLen,
		}
		if st.hsp.Index, err = parsePositive(value); err != nil {
			return fail("bad HSP index: %v", err)
		}
	case keyBITSCORE:
		if st.hsp.BitScore, err = strconv.ParseFloat(value, 64); err != nil {
			return fail("bad bit score")
		}
	case keyEVALUE:
		if st.hsp.EValue, err = strconv.ParseFloat(value, 64); err != nil {
			return fail("bad E-value")
		}
	case keySTRAND:
		if st.hsp.Strand, err = parseStrand(value); err != nil {
			return fail("%v", err)
		}
	case keyQRANGE:
		if st.hsp.QueryRange, err = parseRange(value, coords.Plus); err != nil {
			return fail("bad query range: %v", err)
		}
		if st.hsp.QueryRange.Stop > st.queryLen {
			return fail("query range past query length %d", st.queryLen)
		}
	case keySRANGE:
		if st.hsp.SubjectRange, err = parseRange(value, st.hsp.Strand); err != nil {
			return fail("bad subject range: %v", err)
		}
		if st.hsp.SubjectRange.High() > st.subjectLen {
			return fail("subject range past subject length %d", st.subjectLen)
		}
	case keyINS:
		if st.hsp.Ins, err = ParseIndels(value); err != nil {
			return fail("%v", err)
		}
		for _, in := range st.hsp.Ins {
			if !in.Insertion {
				return fail("deletion token in INS")
			}
		}
	case keyDEL:
		if st.hsp.Del, err = ParseIndels(value); err != nil {
			return fail("%v", err)
		}
		for _, d := range st.hsp.Del {
			if d.Insertion {
				return fail("insertion token in DEL")
			}
		}
	case keyEND:
		st.last = k
		done := st.hsp
		st.hsp = HSP{}
		return st, &done, nil
	}

	st.last = k
	return st, nil, nil
}

// Parse reads every HSP in a blastn summary. A bad line inside a query's
// record fails only that query: its HSPs are replaced by one HSP carrying
// the error and reading resumes at the next QACC. Bad lines outside any
// query fail the whole summary.
func Parse(r io.Reader) (hsps []HSP, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var (
		st       state
		lineNo   int
		last     string
		first    int // index of the current query's first HSP
		skipping bool
	)
	failQuery := func(qerr error) {
		hsps = append(hsps[:first], HSP{Query: st.query, Err: qerr})
		st = state{}
		skipping = true
	}

	for sc.Scan() {
		lineNo++
		line := sc.Text()

		// comment lines start with a #
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if skipping {
			if lineKey(line) != keyQACC {
				continue
			}
			skipping = false
		}

		next, done, err := step(st, lineNo, line)
		if err != nil && st.query != "" {
			failQuery(err)
			if lineKey(line) != keyQACC {
				continue
			}
			skipping = false
			next, done, err = step(st, lineNo, line)
		}
		if err != nil {
			return nil, err
		}
		if next.last == keyQACC {
			first = len(hsps)
		}
		st = next
		if done != nil {
			hsps = append(hsps, *done)
		}
		last = line
	}
	if err = sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blastn summary: %v", err)
	}

	switch st.last {
	case keyNone, keyQLEN, keyEND:
	default:
		failQuery(&FormatError{Line: lineNo, Raw: last, Reason: "summary ends inside a record"})
	}
	return hsps, nil
}

// lineKey is the key of a summary line, keyNone if it has none.
func lineKey(line string) key {
	name, _, _ := strings.Cut(line, "\t")
	return keyNames[strings.TrimSpace(name)]
}

func parsePositive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}

// parseStrand accepts "+", "-" or blastn's "Plus/Plus" and "Plus/Minus".
func parseStrand(s string) (coords.Strand, error) {
	switch s {
	case "+", "Plus/Plus":
		return coords.Plus, nil
	case "-", "Plus/Minus":
		return coords.Minus, nil
	}
	return 0, fmt.Errorf("unknown strand %q", s)
}

// parseRange reads "start..stop" as a segment on the given strand.
func parseRange(s string, strand coords.Strand) (coords.Segment, error) {
	startS, stopS, ok := strings.Cut(s, "..")
	if !ok {
		return coords.Segment{}, fmt.Errorf("%q is not start..stop", s)
	}
	start, err := strconv.Atoi(startS)
	if err != nil {
		return coords.Segment{}, err
	}
	stop, err := strconv.Atoi(stopS)
	if err != nil {
		return coords.Segment{}, err
	}
	return coords.NewSegment(start, stop, strand)
}
