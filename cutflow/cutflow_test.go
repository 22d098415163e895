package cutflow

import (
	"bytes"
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/shapes/backend"
	"github.com/decibelcooper/shapes/histo"
	"github.com/decibelcooper/shapes/selection"
)

const tree = "mt_nominal/ntuple"

func cuts() *selection.Cuts {
	return selection.MustCuts(
		selection.NewCut("q_1*q_2<0", "os"),
		selection.NewCut("nbtag==0", "nobtag"),
		selection.NewCut("mt_1<40", "mt"),
	)
}

func engine(rows [][]float64) *backend.Engine {
	m := backend.NewMemory()
	m.Put("f.root", tree, backend.Table{Columns: []string{"q_1", "q_2", "nbtag", "mt_1", "w"}, Rows: rows})
	return backend.NewEngine(m)
}

func TestCompute(t *testing.T) {
	b := engine([][]float64{
		{1, -1, 0, 20, 1},
		{1, -1, 0, 60, 1},
		{1, -1, 1, 20, 2},
		{1, 1, 0, 20, 4},
	})
	c := New("mt_incl", []string{"f.root"}, tree, cuts(),
		selection.MustWeights(selection.NewWeight("w", "w")))
	require.NoError(t, c.Run(context.Background(), b, 2))

	stages, err := c.Compute(Options{})
	require.NoError(t, err)
	require.Len(t, stages, 4)

	assert.Equal(t, []string{"none", "os", "nobtag", "mt"},
		[]string{stages[0].Name, stages[1].Name, stages[2].Name, stages[3].Name})
	assert.Equal(t, 8.0, stages[0].Yield)
	assert.Equal(t, 4.0, stages[1].Yield)
	assert.Equal(t, 2.0, stages[2].Yield)
	assert.Equal(t, 1.0, stages[3].Yield)

	assert.Equal(t, 1.0, stages[0].Relative)
	assert.Equal(t, 0.5, stages[2].Relative)
	assert.Equal(t, 0.125, stages[3].Efficiency)

	stages, err = c.Compute(Options{BaseStage: 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, stages[0].Efficiency)
	assert.Equal(t, 0.25, stages[3].Efficiency)

	_, err = c.Compute(Options{BaseStage: 4})
	assert.Error(t, err)

	var buf bytes.Buffer
	Table(&buf, stages)
	assert.Contains(t, buf.String(), "nobtag")
	assert.Contains(t, buf.String(), "0.2500")
}

func TestZeroYield(t *testing.T) {
	b := engine([][]float64{{1, 1, 1, 80, 1}})
	c := New("empty", []string{"f.root"}, tree, cuts(), nil)
	require.NoError(t, c.Run(context.Background(), b, 1))
	stages, err := c.Compute(Options{})
	require.NoError(t, err)
	for _, s := range stages[1:] {
		assert.Zero(t, s.Yield)
	}
	assert.Zero(t, stages[2].Relative)
	assert.Zero(t, stages[3].Efficiency)
}

func TestNotProduced(t *testing.T) {
	c := New("pending", []string{"f.root"}, tree, cuts(), nil)
	_, err := c.Compute(Options{})
	assert.True(t, errors.Is(err, histo.ErrNotReady))

	holder := histo.NewHolder()
	require.NoError(t, c.Register(holder))
	assert.Equal(t, 4, holder.Len())
	assert.Equal(t, "(1.0)", c.Handles()[0].Cuts())
}

func TestYieldsNeverIncrease(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("stage yields are non-increasing for non-negative weights", prop.ForAll(
		func(signs []int, mts []float64) bool {
			n := len(signs)
			if len(mts) < n {
				n = len(mts)
			}
			rows := make([][]float64, n)
			for i := range rows {
				rows[i] = []float64{1, float64(2*signs[i] - 1), float64(i % 2), mts[i], 1}
			}
			c := New("p", []string{"f.root"}, tree, cuts(), nil)
			if err := c.Run(context.Background(), engine(rows), 1); err != nil {
				return false
			}
			stages, err := c.Compute(Options{})
			if err != nil {
				return false
			}
			for i := 1; i < len(stages); i++ {
				if stages[i].Yield > stages[i-1].Yield {
					return false
				}
			}
			return stages[0].Yield == float64(n)
		},
		gen.SliceOf(gen.IntRange(0, 1)),
		gen.SliceOf(gen.Float64Range(0, 100)),
	))
	properties.TestingRun(t)
}
