package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ncbi/vadr-sub003/internal/alnio"
	"github.com/ncbi/vadr-sub003/internal/blastn"
	"github.com/ncbi/vadr-sub003/internal/coords"
	"github.com/ncbi/vadr-sub003/internal/minimap"
	"github.com/ncbi/vadr-sub003/internal/seed"
)

func residues(n int) string {
	return strings.Repeat("ACGT", n/4+1)[:n]
}

func TestRun_Order(t *testing.T) {
	jobs := make([]int, 50)
	for i := range jobs {
		jobs[i] = i
	}

	ticks := 0
	out, err := run(context.Background(), 4, jobs, func(i int) int { return i * i }, func() { ticks++ })
	require.NoError(t, err)
	require.Len(t, out, 50)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
	assert.Equal(t, 50, ticks)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := run(ctx, 2, []int{1, 2, 3}, func(i int) int { return i }, func() {})
	assert.ErrorIs(t, err, context.Canceled)
}

// fixture is one model of length 120 and seq1, model positions 11..110.
type fixture struct {
	cons string
	seq1 string
}

func newFixture() fixture {
	cons := residues(120)
	return fixture{cons: cons, seq1: cons[10:110]}
}

func (f fixture) planInputs(t *testing.T) PlanInputs {
	t.Helper()

	// minimap2 maps less of seq1 than blastn does
	rec, err := minimap.ParseRecord("seq1\t0\tmdl1\t41\t60\t30S70M\t*\t0\t0\t" + f.seq1 + "\t*")
	require.NoError(t, err)
	// seq3 is mapped to a model it wasn't assigned
	wrong, err := minimap.ParseRecord("seq3\t0\tmdl2\t1\t60\t50M\t*\t0\t0\t" + residues(50) + "\t*")
	require.NoError(t, err)

	return PlanInputs{
		Assignments: []alnio.Assignment{
			{Seq: "seq1", Mdl: "mdl1"},
			{Seq: "seq2", Mdl: "mdl1"},
			{Seq: "seq3", Mdl: "mdl1"},
		},
		SeqLens: map[string]int{"seq1": 100, "seq2": 80, "seq3": 50},
		MdlLens: map[string]int{"mdl1": 120},
		Blastn: []blastn.IndelLine{
			{
				SeqName: "seq1",
				MdlName: "mdl1",
				Seq:     coords.Segment{Start: 21, Stop: 100, Strand: coords.Plus},
				Mdl:     coords.Segment{Start: 31, Stop: 110, Strand: coords.Plus},
			},
			{
				// a lower scoring HSP of the same sequence is ignored
				SeqName: "seq1",
				MdlName: "mdl1",
				Seq:     coords.Segment{Start: 1, Stop: 10, Strand: coords.Plus},
				Mdl:     coords.Segment{Start: 11, Stop: 20, Strand: coords.Plus},
			},
		},
		Minimap: []minimap.Record{rec, wrong},
	}
}

func TestPlanInputs_Jobs(t *testing.T) {
	f := newFixture()
	jobs, err := f.planInputs(t).Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "seq1", jobs[0].SeqName)
	require.NotNil(t, jobs[0].Blastn)
	assert.Equal(t, 21, jobs[0].Blastn.Seq.Start)
	require.NotNil(t, jobs[0].Minimap)
	assert.Equal(t, 41, jobs[0].Minimap.Pos)

	assert.Nil(t, jobs[1].Blastn)
	assert.Nil(t, jobs[1].Minimap)

	in := f.planInputs(t)
	in.SeqLens = map[string]int{"seq1": 100}
	_, err = in.Jobs()
	assert.Error(t, err)
}

func TestRunner_Plan(t *testing.T) {
	f := newFixture()
	jobs, err := f.planInputs(t).Jobs()
	require.NoError(t, err)

	r := New(2, Opts{Overhang: 10})
	r.SetLogger(zaptest.NewLogger(t))
	results, err := r.Plan(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	seq1 := results[0]
	require.NoError(t, seq1.Err)
	assert.Equal(t, seed.Blastn, seq1.Seed.Method)
	assert.Equal(t, "21..100:+", seq1.Seed.Seq.String())
	require.NotNil(t, seq1.Overwritten)
	assert.Equal(t, seed.Minimap2, seq1.Overwritten.Method)
	assert.Equal(t, "31..100:+", seq1.Overwritten.Seq.String())
	assert.Equal(t, []seed.Subseq{{
		Name:    "seq1/1-30",
		SeqName: "seq1",
		End:     seed.FivePrime,
		Start:   1,
		Stop:    30,
	}}, seq1.Plan.Subseqs)

	assert.ErrorIs(t, results[1].Err, ErrNoSeed)
	assert.Error(t, results[2].Err)
}

// TestRunner_Plan_BadSeeds checks that a sequence whose seed can't be used
// fails on its own and the rest are still planned.
func TestRunner_Plan_BadSeeds(t *testing.T) {
	f := newFixture()
	in := f.planInputs(t)
	in.Assignments = append(in.Assignments,
		alnio.Assignment{Seq: "seq4", Mdl: "mdl1"},
		alnio.Assignment{Seq: "seq5", Mdl: "mdl1"},
		alnio.Assignment{Seq: "seq6", Mdl: "mdl1"},
	)
	for _, name := range []string{"seq4", "seq5", "seq6"} {
		in.SeqLens[name] = 50
	}

	// seq4 only has a blastn line against a model it wasn't assigned
	in.Blastn = append(in.Blastn, blastn.IndelLine{
		SeqName: "seq4",
		MdlName: "other",
		Seq:     coords.Segment{Start: 1, Stop: 50, Strand: coords.Plus},
		Mdl:     coords.Segment{Start: 1, Stop: 50, Strand: coords.Plus},
	})

	lines, err := blastn.ReadIndelLines(strings.NewReader("seq5\tmdl1\t1..10:+\t1..10:+\tQ5:S5*2\n"))
	require.NoError(t, err)
	in.Blastn = append(in.Blastn, lines...)

	sam := "seq6\t0\tmdl1\t1\t60\t10Q\t*\t0\t0\t" + residues(50) + "\t*\n"
	records, err := minimap.Parse(strings.NewReader(sam))
	require.NoError(t, err)
	in.Minimap = append(in.Minimap, records...)

	jobs, err := in.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 6)

	r := New(2, Opts{Overhang: 10})
	r.SetLogger(zaptest.NewLogger(t))
	results, err := r.Plan(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "21..100:+", results[0].Seed.Seq.String())

	require.Error(t, results[3].Err)
	assert.Contains(t, results[3].Err.Error(), "other")
	assert.Empty(t, results[3].Plan.Subseqs)

	var indelErr *blastn.FormatError
	assert.ErrorAs(t, results[4].Err, &indelErr)

	var samErr *minimap.FormatError
	assert.ErrorAs(t, results[5].Err, &samErr)
}

// stockholmFlank is seq1 residues 1..30 aligned to model positions 11..40.
func (f fixture) stockholmFlank() string {
	row := strings.Repeat("-", 10) + f.seq1[:30] + strings.Repeat("-", 80)
	return "# STOCKHOLM 1.0\n\n" +
		"seq1/1-30 " + row + "\n" +
		"#=GC RF   " + f.cons + "\n" +
		"//\n"
}

func TestEndToEnd(t *testing.T) {
	f := newFixture()
	jobs, err := f.planInputs(t).Jobs()
	require.NoError(t, err)

	r := New(0, Opts{Overhang: 10})
	done := 0
	r.OnDone(func() { done++ })

	planned, err := r.Plan(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, 3, done)

	var seeds []seed.Seed
	var subseqs []seed.Subseq
	for _, p := range planned {
		if p.Err != nil {
			continue
		}
		seeds = append(seeds, p.Seed)
		subseqs = append(subseqs, p.Plan.Subseqs...)
	}

	flanks, err := alnio.Flanks(strings.NewReader(f.stockholmFlank()))
	require.NoError(t, err)

	inputs, err := JoinInputs{
		Seeds:   seeds,
		Subseqs: subseqs,
		Flanks:  flanks,
		Seqs:    map[string]string{"seq1": f.seq1},
		Cons:    map[string]string{"mdl1": f.cons},
	}.Inputs()
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.NotNil(t, inputs[0].Five)
	assert.Nil(t, inputs[0].Three)

	joined, err := r.Join(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, joined, 1)
	require.NoError(t, joined[0].Err)

	j := joined[0].Result.Joined
	require.NotNil(t, j)
	gaps := strings.Repeat("-", 10)
	assert.Equal(t, gaps+f.seq1+gaps, j.Aln.Seq)
	assert.Equal(t, f.cons, j.Aln.RF)
	assert.Empty(t, j.Inserts.Inserts)
}

func TestEndToEnd_MissingFlank(t *testing.T) {
	f := newFixture()
	jobs, err := f.planInputs(t).Jobs()
	require.NoError(t, err)

	r := New(1, Opts{Overhang: 10})
	planned, err := r.Plan(context.Background(), jobs[:1])
	require.NoError(t, err)

	inputs, err := JoinInputs{
		Seeds:   []seed.Seed{planned[0].Seed},
		Subseqs: planned[0].Plan.Subseqs,
		Seqs:    map[string]string{"seq1": f.seq1},
		Cons:    map[string]string{"mdl1": f.cons},
	}.Inputs()
	require.NoError(t, err)

	joined, err := r.Join(context.Background(), inputs)
	require.NoError(t, err)
	assert.Error(t, joined[0].Err)
	assert.Nil(t, joined[0].Result.Joined)
}
