package alnio

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ncbi/vadr-sub003/internal/alignment"
	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/join"
	"github.com/ncbi/vadr-sub003/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flanks = `# STOCKHOLM 1.0
#=GF AU Infernal 1.1.5

seq1/1-6         ACG.TAC---
#=GR seq1/1-6 PP 999.999...
seq2/92-100      --GatTAC-G
#=GR seq2/92-100 PP ..8889999.9
#=GC RF          xxx.xxxxxx

seq1/1-6         --
#=GR seq1/1-6 PP ..
seq2/92-100      TT
#=GR seq2/92-100 PP 99
#=GC RF          xx
//
`

func TestReadStockholm(t *testing.T) {
	_, err := ReadStockholm(strings.NewReader(flanks))
	require.Error(t, err, "PP of seq2 is a column too long")

	fixed := strings.Replace(flanks, "..8889999.9", "..889999.9", 1)
	alns, err := ReadStockholm(strings.NewReader(fixed))
	require.NoError(t, err)
	require.Len(t, alns, 1)

	sto := alns[0]
	assert.Equal(t, "xxx.xxxxxxxx", sto.RF)
	require.Len(t, sto.Rows, 2)
	assert.Equal(t, "ACG.TAC-----", sto.Rows[0].Seq)
	assert.Equal(t, "--GatTAC-GTT", sto.Rows[1].Seq)

	// seq1 has a gap in the insert column, it isn't part of its alignment
	aln, err := sto.Alignment(0)
	require.NoError(t, err)
	assert.Equal(t, "ACGTAC-----", aln.Seq)
	assert.Equal(t, "xxxxxxxxxxx", aln.RF)
	assert.Equal(t, "999999.....", aln.PP)
	assert.Equal(t, 1, aln.SeqStart)
	assert.Equal(t, 1, aln.MdlStart)

	aln, err = sto.Alignment(1)
	require.NoError(t, err)
	assert.Equal(t, "--GatTAC-GTT", aln.Seq)
	assert.Equal(t, 92, aln.SeqStart)
	cols := aln.Columns()
	assert.Equal(t, alignment.Column{SeqPos: 93, MdlPos: 0}, cols[3])
	assert.Equal(t, alignment.Column{SeqPos: 100, MdlPos: 11}, cols[11])

	byName, err := Flanks(strings.NewReader(fixed))
	require.NoError(t, err)
	assert.Len(t, byName, 2)
	assert.Equal(t, aln, byName["seq2/92-100"])
}

func TestReadStockholm_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no header", "seq1 ACGT\n//\n"},
		{"unclosed", "# STOCKHOLM 1.0\nseq1 ACGT\n#=GC RF xxxx\n"},
		{"ragged", "# STOCKHOLM 1.0\nseq1 ACGT\n#=GC RF xxx\n//\n"},
		{"PP for nobody", "# STOCKHOLM 1.0\n#=GR seq1 PP 9999\n//\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadStockholm(strings.NewReader(tt.input))
			require.Error(t, err)
			var fe *FormatError
			assert.True(t, errors.As(err, &fe))
		})
	}
}

func TestWriteStockholm(t *testing.T) {
	joined := []*join.Joined{
		{SeqName: "seq1", MdlName: "mdl1", Aln: alignment.Alignment{Seq: "AC-gT", RF: "AC.GT", PP: "99.*9", SeqStart: 1, MdlStart: 1}},
		{SeqName: "sequence2", MdlName: "mdl1", Aln: alignment.Alignment{Seq: "--GT", RF: "ACGT", SeqStart: 1, MdlStart: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStockholm(&buf, joined))
	assert.Equal(t, 2, strings.Count(buf.String(), "//\n"))

	alns, err := ReadStockholm(&buf)
	require.NoError(t, err)
	require.Len(t, alns, 2)
	assert.Equal(t, "AC.GT", alns[0].RF)
	assert.Equal(t, Row{Name: "seq1", Seq: "AC-gT", PP: "99.*9"}, alns[0].Rows[0])
	assert.Equal(t, Row{Name: "sequence2", Seq: "--GT"}, alns[1].Rows[0])
}

func TestSeeds(t *testing.T) {
	sc, _ := coords.Parse("1..40:+,45..100:+")
	mc, _ := coords.Parse("1..40:+,41..96:+")
	sd, err := seed.New("seq1", "mdl1", seed.Minimap2, sc, mc)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSeeds(&buf, []seed.Seed{sd}))
	assert.Contains(t, buf.String(), "seq1\tmdl1\tminimap2\t1..40:+,45..100:+\t1..40:+,41..96:+\n")

	seeds, err := ReadSeeds(&buf)
	require.NoError(t, err)
	assert.Equal(t, []seed.Seed{sd}, seeds)

	_, err = ReadSeeds(strings.NewReader("seq1\tmdl1\tblastn\t1..40:+\t1..41:+\n"))
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Line)
	assert.ErrorIs(t, err, seed.ErrSegmentLengthMismatch)
}

func TestSubseqs(t *testing.T) {
	want := []seed.Subseq{
		{Name: "seq1/1-300", SeqName: "seq1", End: seed.FivePrime, Start: 1, Stop: 300},
		{Name: "seq1/701-1000", SeqName: "seq1", End: seed.ThreePrime, Start: 701, Stop: 1000},
		{Name: "seq2/1-500", SeqName: "seq2", End: seed.Full, Start: 1, Stop: 500},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSubseqs(&buf, want))
	got, err := ReadSubseqs(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteUnjoinable(t *testing.T) {
	u := &join.Unjoinable{
		SeqName:        "seq1",
		MdlName:        "mdl1",
		End:            seed.FivePrime,
		SeqPos:         120,
		MdlPos:         199,
		ExpectedMdlPos: 200,
		FlankSpan:      "1..250",
		SeedSpan:       "121..400:+/201..480:+",
		Detail:         "model position 199 differs from seed's 200",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteUnjoinable(&buf, []*join.Unjoinable{u}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "#seq\tmdl\tend"))
	assert.Equal(t, "seq1\tmdl1\t5'\t120\t199\t200\t1..250\t121..400:+/201..480:+\tmodel position 199 differs from seed's 200", lines[1])
}

func TestReadCodonsAndAssignments(t *testing.T) {
	codons, err := ReadCodons(strings.NewReader("# model\tcoords\nmdl1\t266..268:+\nmdl1\t21553..21555:+\nmdl2\t10..12:+\n"))
	require.NoError(t, err)
	assert.Equal(t, "266..268:+,21553..21555:+", codons["mdl1"].String())
	assert.Len(t, codons["mdl2"], 1)

	assigned, err := ReadAssignments(strings.NewReader("seq1\tmdl1\nseq2\tmdl2\n"))
	require.NoError(t, err)
	assert.Equal(t, []Assignment{{Seq: "seq1", Mdl: "mdl1"}, {Seq: "seq2", Mdl: "mdl2"}}, assigned)

	_, err = ReadAssignments(strings.NewReader("seq1\tmdl1\nseq1\tmdl2\n"))
	assert.Error(t, err)
}

func TestWriteInserts(t *testing.T) {
	recs := []alignment.InsertRecord{
		{SeqName: "seq1", SeqLen: 300, MdlStart: 1, MdlStop: 293, Inserts: []alignment.Insert{{MdlPos: 140, SeqPos: 141, Len: 4}}},
		{SeqName: "seq2", SeqLen: 100, MdlStart: 4, MdlStop: 103},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteInserts(&buf, "mdl1", 300, recs))

	var body []string
	for _, l := range strings.Split(buf.String(), "\n") {
		if l != "" && !strings.HasPrefix(l, "#") {
			body = append(body, l)
		}
	}
	assert.Equal(t, []string{"mdl1 300", "seq1 300 1 293 140:141:4", "seq2 100 4 103", "//"}, body)
}
