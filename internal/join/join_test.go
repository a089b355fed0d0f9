package join

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/ncbi/vadr-sub003/internal/alignment"
	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func residues(n int) string {
	return strings.Repeat("ACGT", n/4+1)[:n]
}

func mustSeed(t *testing.T, seq, mdl string) seed.Seed {
	t.Helper()
	sc, err := coords.Parse(seq)
	require.NoError(t, err)
	mc, err := coords.Parse(mdl)
	require.NoError(t, err)
	sd, err := seed.New("seq1", "mdl1", seed.Blastn, sc, mc)
	require.NoError(t, err)
	return sd
}

var opRe = regexp.MustCompile(`(\d+)([MID])`)

// build aligns seq, from seqStart, to cons, from mdlStart, following ops:
// M pairs a residue with a model position, I is a residue alone and D a
// model position alone.
func build(t *testing.T, seq, cons string, seqStart, mdlStart int, ops string, withPP bool) alignment.Alignment {
	t.Helper()
	var s, rf, pp strings.Builder
	si, mi := seqStart-1, mdlStart-1
	for _, m := range opRe.FindAllStringSubmatch(ops, -1) {
		n, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		for k := 0; k < n; k++ {
			switch m[2] {
			case "M":
				s.WriteByte(seq[si])
				rf.WriteByte(cons[mi])
				pp.WriteByte('9')
				si++
				mi++
			case "I":
				s.WriteByte(seq[si] + 'a' - 'A')
				rf.WriteByte('.')
				pp.WriteByte('8')
				si++
			case "D":
				s.WriteByte('-')
				rf.WriteByte(cons[mi])
				pp.WriteByte('.')
				mi++
			}
		}
	}
	aln := alignment.Alignment{Seq: s.String(), RF: rf.String(), SeqStart: seqStart, MdlStart: mdlStart}
	if withPP {
		aln.PP = pp.String()
	}
	return aln
}

func ungap(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", ".", "").Replace(s))
}

func TestJoin_FivePrimeBoundary(t *testing.T) {
	seq := strings.ToUpper(residues(400))
	cons := strings.ToUpper(residues(600))

	// the seed puts sequence 121 at model 201, an offset of 80
	sd := mustSeed(t, "121..400:+", "201..480:+")

	t.Run("consistent", func(t *testing.T) {
		five := &Flank{End: seed.FivePrime, SeqStart: 1, SeqStop: 120, Aln: build(t, seq, cons, 1, 1, "80D120M400D", true)}
		res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Five: five})
		require.NoError(t, err)
		require.Nil(t, res.Unjoinable)
		require.NotNil(t, res.Joined)

		aln := res.Joined.Aln
		require.NoError(t, aln.Validate())
		assert.Equal(t, 600, aln.Len())
		assert.Equal(t, strings.Repeat("-", 80), aln.Seq[:80])
		assert.Equal(t, seq, ungap(aln.Seq))
		assert.Equal(t, cons, aln.RF)
		assert.Len(t, aln.PP, 600)

		ins := res.Joined.Inserts
		assert.Empty(t, ins.Inserts)
		assert.Equal(t, 400, ins.SeqLen)
		assert.Equal(t, 81, ins.MdlStart)
		assert.Equal(t, 480, ins.MdlStop)
	})

	t.Run("off by one", func(t *testing.T) {
		five := &Flank{End: seed.FivePrime, SeqStart: 1, SeqStop: 120, Aln: build(t, seq, cons, 1, 1, "79D120M401D", true)}
		res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Five: five})
		require.NoError(t, err)
		require.Nil(t, res.Joined)
		require.NotNil(t, res.Unjoinable)

		u := res.Unjoinable
		assert.Equal(t, seed.FivePrime, u.End)
		assert.Equal(t, 120, u.SeqPos)
		assert.Equal(t, 199, u.MdlPos)
		assert.Equal(t, 200, u.ExpectedMdlPos)
		assert.Equal(t, "1..120", u.FlankSpan)
		assert.Equal(t, "121..400:+/201..480:+", u.SeedSpan)
	})

	t.Run("boundary short of the seed", func(t *testing.T) {
		five := &Flank{End: seed.FivePrime, SeqStart: 1, SeqStop: 120, Aln: build(t, seq, cons, 1, 1, "80D100M20I420D", true)}
		res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Five: five})
		require.NoError(t, err)
		require.NotNil(t, res.Unjoinable)
		assert.Equal(t, 100, res.Unjoinable.SeqPos)
	})
}

func TestJoin_TwoFlanks(t *testing.T) {
	seq := strings.ToUpper(residues(300))
	cons := strings.ToUpper(residues(300))

	sd := mustSeed(t, "101..140:+,145..200:+", "101..140:+,141..196:+")
	five := &Flank{End: seed.FivePrime, SeqStart: 1, SeqStop: 130, Aln: build(t, seq, cons, 1, 1, "130M170D", true)}
	three := &Flank{End: seed.ThreePrime, SeqStart: 150, SeqStop: 300, Aln: build(t, seq, cons, 150, 1, "145D50M3I98M7D", true)}

	res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Five: five, Three: three})
	require.NoError(t, err)
	require.NotNil(t, res.Joined)

	aln := res.Joined.Aln
	require.NoError(t, aln.Validate())
	assert.Equal(t, 307, aln.Len())
	assert.Equal(t, 300, aln.Residues())
	assert.Equal(t, 300, aln.ModelPositions())
	assert.Equal(t, seq, ungap(aln.Seq))
	assert.Len(t, aln.PP, 307)

	// the seed's insert keeps its coordinates, the 3' flank's lands after model 195
	assert.Equal(t, []alignment.Insert{
		{MdlPos: 140, SeqPos: 141, Len: 4},
		{MdlPos: 195, SeqPos: 200, Len: 3},
	}, res.Joined.Inserts.Inserts)
	assert.Equal(t, 1, res.Joined.Inserts.MdlStart)
	assert.Equal(t, 293, res.Joined.Inserts.MdlStop)
	assert.Equal(t, "seq1 300 1 293 140:141:4 195:200:3", res.Joined.Inserts.String())

	t.Run("confidence dropped when a flank has none", func(t *testing.T) {
		noPP := *three
		noPP.Aln = build(t, seq, cons, 150, 1, "145D50M3I98M7D", false)
		res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Five: five, Three: &noPP})
		require.NoError(t, err)
		require.NotNil(t, res.Joined)
		assert.False(t, res.Joined.Aln.HasPP())
	})

	t.Run("3' boundary off the seed offset", func(t *testing.T) {
		bad := *three
		bad.Aln = build(t, seq, cons, 150, 1, "146D50M3I98M6D", true)
		res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Five: five, Three: &bad})
		require.NoError(t, err)
		require.NotNil(t, res.Unjoinable)
		assert.Equal(t, seed.ThreePrime, res.Unjoinable.End)
		assert.Equal(t, 150, res.Unjoinable.SeqPos)
		assert.Equal(t, 147, res.Unjoinable.MdlPos)
		assert.Equal(t, 146, res.Unjoinable.ExpectedMdlPos)
	})
}

func TestJoin_CrossedBoundaries(t *testing.T) {
	seq := strings.ToUpper(residues(300))
	cons := strings.ToUpper(residues(300))

	sd := mustSeed(t, "101..200:+", "101..200:+")
	five := &Flank{End: seed.FivePrime, SeqStart: 1, SeqStop: 190, Aln: build(t, seq, cons, 1, 1, "190M110D", true)}
	three := &Flank{End: seed.ThreePrime, SeqStart: 110, SeqStop: 300, Aln: build(t, seq, cons, 110, 1, "109D191M", true)}

	res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Five: five, Three: three})
	require.NoError(t, err)
	require.NotNil(t, res.Unjoinable)
	assert.Equal(t, seed.ThreePrime, res.Unjoinable.End)
}

func TestJoin_NoFlanks(t *testing.T) {
	seq := strings.ToUpper(residues(100))

	t.Run("identity", func(t *testing.T) {
		cons := strings.ToUpper(residues(96))
		sd := mustSeed(t, "1..40:+,45..100:+", "1..40:+,41..96:+")
		seedAln, seedInserts, err := seed.Reconstruct(sd, seq, cons)
		require.NoError(t, err)

		res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons})
		require.NoError(t, err)
		require.NotNil(t, res.Joined)
		assert.Equal(t, *seedAln, res.Joined.Aln)
		assert.Equal(t, seedInserts, res.Joined.Inserts.Inserts)
		assert.Equal(t, 1, res.Joined.Inserts.MdlStart)
		assert.Equal(t, 96, res.Joined.Inserts.MdlStop)
	})

	t.Run("padded to the model ends", func(t *testing.T) {
		cons := strings.ToUpper(residues(110))
		sd := mustSeed(t, "1..100:+", "4..103:+")

		res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons})
		require.NoError(t, err)
		require.NotNil(t, res.Joined)

		aln := res.Joined.Aln
		assert.Equal(t, "---"+seq+"-------", aln.Seq)
		assert.Equal(t, cons, aln.RF)
		assert.Equal(t, "..."+strings.Repeat("*", 100)+".......", aln.PP)
		assert.Equal(t, 4, res.Joined.Inserts.MdlStart)
		assert.Equal(t, 103, res.Joined.Inserts.MdlStop)
	})
}

func TestJoin_Full(t *testing.T) {
	seq := strings.ToUpper(residues(100))
	cons := strings.ToUpper(residues(100))
	sd := mustSeed(t, "41..60:+", "41..60:+")

	full := &Flank{End: seed.Full, SeqStart: 1, SeqStop: 100, Aln: build(t, seq, cons, 1, 1, "100M", true)}
	res, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Full: full})
	require.NoError(t, err)
	require.NotNil(t, res.Joined)
	assert.Equal(t, seq, res.Joined.Aln.Seq)
}

func TestJoin_FlankSpanErrors(t *testing.T) {
	seq := strings.ToUpper(residues(400))
	cons := strings.ToUpper(residues(600))
	sd := mustSeed(t, "121..400:+", "201..480:+")

	tests := []struct {
		name string
		five *Flank
	}{
		{"missing", nil},
		{"not from 1", &Flank{End: seed.FivePrime, SeqStart: 2, SeqStop: 120, Aln: build(t, seq, cons, 2, 1, "81D119M400D", true)}},
		{"residue count", &Flank{End: seed.FivePrime, SeqStart: 1, SeqStop: 130, Aln: build(t, seq, cons, 1, 1, "80D120M400D", true)}},
		{"wrong end", &Flank{End: seed.ThreePrime, SeqStart: 1, SeqStop: 120, Aln: build(t, seq, cons, 1, 1, "80D120M400D", true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Join(Input{Seed: sd, Seq: seq, Cons: cons, Five: tt.five})
			assert.ErrorIs(t, err, ErrFlankSpan)
		})
	}
}
