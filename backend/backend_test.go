package backend

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/shapes/variable"
)

func fixture() *Memory {
	m := NewMemory()
	m.Put("a.root", "mt_nominal/ntuple", Table{
		Columns: []string{"q_1", "q_2", "m_vis", "w"},
		Rows: [][]float64{
			{1, -1, 10, 1},
			{1, 1, 20, 2},
			{-1, 1, 30, 0.5},
			{-1, -1, 40, 1},
			{1, -1, 70, 3},
		},
	})
	m.Put("b.root", "mt_nominal/ntuple", Table{
		Columns: []string{"w", "m_vis", "q_2", "q_1"},
		Rows: [][]float64{
			{1, 15, 1, -1},
			{1, 90, 1, -1},
		},
	})
	return m
}

func TestCompile(t *testing.T) {
	p := NewProgram()
	for _, tc := range []struct {
		src  string
		want float64
	}{
		{"", 1},
		{"q_1*q_2<0", 1},
		{"q_1*q_2>0", 0},
		{"(x == 5)*0.95 + (x != 5)", 0.95},
		{"TMath::Abs(q_2)", 1},
		{"x^2", 25},
		{"pow(x, 2) - max(x, 7)", 18},
		{"!(x > 3) || q_1 > 0", 1},
		{"x > 3 && q_1 < 0", 0},
		{"sqrt(abs(-16))", 4},
	} {
		e, err := p.Compile(tc.src)
		require.NoError(t, err, tc.src)
		ev := make([]float64, 3)
		for i, v := range p.Vars() {
			ev[i] = map[string]float64{"q_1": 1, "q_2": -1, "x": 5}[v]
		}
		assert.Equal(t, tc.want, e(ev), tc.src)
	}
	assert.Equal(t, []string{"q_1", "q_2", "x"}, p.Vars(), "branches are indexed once, in first-use order")

	for _, bad := range []string{"q_1 <", `"text"`, "frobnicate(x)", "a.b"} {
		_, err := p.Compile(bad)
		assert.Error(t, err, bad)
	}
}

func TestExecuteHistogram(t *testing.T) {
	e := NewEngine(fixture())
	r, err := e.Execute(context.Background(), Request{
		Files:     []string{"a.root", "b.root"},
		Tree:      "mt_nominal/ntuple",
		Selection: "(q_1*q_2<0)",
		Weight:    "(w)",
		Variable:  "m_vis",
		Binning:   variable.ConstantBinning{NBins: 4, Low: 0, High: 80},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, r.NBins())
	assert.Equal(t, 2.0, r.BinContent(1))
	assert.Equal(t, 0.5, r.BinContent(2))
	assert.Equal(t, 0.0, r.BinContent(3))
	assert.Equal(t, 3.0, r.BinContent(4))
	assert.Equal(t, 5.5, r.Integral(), "overflow at 90 stays out of the integral")
}

func TestExecuteCount(t *testing.T) {
	e := NewEngine(fixture())
	r, err := e.Execute(context.Background(), Request{
		Files:     []string{"a.root", "b.root"},
		Tree:      "mt_nominal/ntuple",
		Selection: "q_1*q_2>0",
		Weight:    "w",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.NBins())
	assert.Equal(t, 3.0, r.Integral())
}

func TestExecuteErrors(t *testing.T) {
	e := NewEngine(fixture())
	ctx := context.Background()

	_, err := e.Execute(ctx, Request{Files: []string{"missing.root"}, Tree: "mt_nominal/ntuple"})
	assert.True(t, errors.Is(err, ErrNoSuchTree))

	_, err = e.Execute(ctx, Request{Files: []string{"a.root"}, Tree: "mt_nominal/ntuple", Selection: "nbtag==0"})
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Execute(cancelled, Request{Files: []string{"a.root"}, Tree: "mt_nominal/ntuple"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFrameMatchesExecute(t *testing.T) {
	e := NewEngine(fixture())
	ctx := context.Background()
	edges, err := variable.NewVariableBinning(0, 25, 50, 100)
	require.NoError(t, err)
	reqs := []Request{
		{Selection: "q_1*q_2<0", Weight: "w", Variable: "m_vis", Binning: variable.ConstantBinning{NBins: 8, Low: 0, High: 100}},
		{Selection: "q_1*q_2>0", Weight: "w*w", Variable: "m_vis", Binning: edges},
		{Selection: "m_vis>15", Weight: "0.5"},
	}

	f := e.NewFrame([]string{"a.root", "b.root"}, "mt_nominal/ntuple")
	var bookings []*Booking
	for _, req := range reqs {
		req.Files = []string{"a.root", "b.root"}
		req.Tree = "mt_nominal/ntuple"
		b, err := f.Book(req)
		require.NoError(t, err)
		_, err = b.Result()
		assert.True(t, errors.Is(err, ErrNotRun))
		bookings = append(bookings, b)
	}
	require.NoError(t, f.Run(ctx))
	assert.True(t, errors.Is(f.Run(ctx), ErrFrameDone))

	for _, b := range bookings {
		got, err := b.Result()
		require.NoError(t, err)
		want, err := e.Execute(ctx, b.Request())
		require.NoError(t, err)
		for i := 1; i <= want.NBins(); i++ {
			assert.Equal(t, want.BinContent(i), got.BinContent(i))
		}
	}
}

func TestResultArithmetic(t *testing.T) {
	b := variable.ConstantBinning{NBins: 2, Low: 0, High: 2}
	r := NewResult(b)
	r.fill(0.5, 2)
	r.fill(1.5, 3)

	c := r.Clone()
	c.Scale(2)
	assert.Equal(t, 5.0, r.Integral(), "clones are independent")
	assert.Equal(t, 10.0, c.Integral())

	require.NoError(t, r.Add(c, -1))
	assert.Equal(t, -2.0, r.BinContent(1))
	assert.Equal(t, -3.0, r.BinContent(2))

	assert.Error(t, r.Add(NewResult(nil), 1))
	assert.Error(t, r.Add(NewResult(variable.ConstantBinning{NBins: 2, Low: 0, High: 4}), 1))

	r.SetName("ZTT")
	assert.Equal(t, "ZTT", r.Name())
}

func TestResultStatistics(t *testing.T) {
	r := NewResult(variable.ConstantBinning{NBins: 2, Low: 0, High: 2})
	for i := 0; i < 4; i++ {
		r.fill(0.5, 1)
	}
	r.fill(5, 1)

	c := r.Clone()
	bins := c.H1D().Binning.Bins
	assert.Equal(t, 4.0, bins[0].Dist.Dist.SumW2)
	assert.EqualValues(t, 4, bins[0].Dist.Dist.N)
	assert.EqualValues(t, 5, c.H1D().Entries())
	assert.Equal(t, 5.0, c.H1D().SumW2())
	outflows := c.H1D().Binning.Outflows
	assert.EqualValues(t, 1, outflows[0].Dist.N+outflows[1].Dist.N)

	require.NoError(t, c.Add(r, 2))
	bins = c.H1D().Binning.Bins
	assert.Equal(t, 12.0, bins[0].Dist.Dist.SumW)
	assert.Equal(t, 20.0, bins[0].Dist.Dist.SumW2)
	assert.EqualValues(t, 8, bins[0].Dist.Dist.N)
	assert.EqualValues(t, 10, c.H1D().Entries())
	assert.Equal(t, 25.0, c.H1D().SumW2())

	assert.Equal(t, 4.0, r.H1D().Binning.Bins[0].Dist.Dist.SumW2, "adding to a clone leaves the source alone")
	c.SetName("QCD")
	assert.Equal(t, "", r.Name())
}
