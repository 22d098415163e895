package selection

import (
	"strconv"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var supported = []string{"<", ">", "&&", "||", "==", "!="}

func TestCutParse(t *testing.T) {
	tests := []struct {
		text   string
		parsed bool
		left   string
		op     string
	}{
		{"pt_1>22", true, "pt_1", ">"},
		{"q_1*q_2<0", true, "q_1*q_2", "<"},
		{"nbtag==0", true, "nbtag", "=="},
		{"gen_match_2 != 5", true, "gen_match_2", "!="},
		{"a&&b", true, "a", "&&"},
		{"(gen_match_2<5||gen_match_2==6)", false, "", ""},
		{"pt_1>=22", false, "", ""},
		{"0<eta_1<2", false, "", ""},
		{"m_vis<40&&m_vis>10", false, "", ""},
		{"isZTT", false, "", ""},
	}
	for _, tt := range tests {
		c := NewCut(tt.text, "")
		assert.Equal(t, tt.parsed, c.Parsed(), tt.text)
		assert.Equal(t, tt.left, c.Variable(), tt.text)
		assert.Equal(t, tt.op, c.Operator(), tt.text)
		assert.Equal(t, tt.text, c.Text(), "construction keeps the text")
	}
}

func TestCutDerivedName(t *testing.T) {
	assert.Equal(t, "q1q20", NewCut("q_1*q_2<0", "").Name())
	assert.Equal(t, "os", NewCut("q_1*q_2<0", "os").Name())
}

func TestCutInvert(t *testing.T) {
	os := NewCut("q_1*q_2<0", "os")
	ss, err := os.Invert()
	require.NoError(t, err)
	assert.Equal(t, "q_1*q_2>0", ss.Text())
	assert.Equal(t, "os", ss.Name())
	assert.Equal(t, "q_1*q_2<0", os.Text(), "inversion does not touch the original")

	_, err = NewCut("(a<1||b>2)", "ab").Invert()
	assert.True(t, errors.Is(err, ErrUnparsableExpression))
}

func TestCutMutators(t *testing.T) {
	mt := NewCut("mt_1<40", "mt")
	moved, err := mt.WithValue(70)
	require.NoError(t, err)
	assert.Equal(t, "mt_1<70", moved.Text())
	v, err := moved.Value()
	require.NoError(t, err)
	assert.Equal(t, 70.0, v)

	renamed, err := mt.WithVariable("mt_2")
	require.NoError(t, err)
	assert.Equal(t, "mt_2<40", renamed.Text())

	_, err = NewCut("pt_1>=22", "pt").WithValue(1)
	assert.True(t, errors.Is(err, ErrUnparsableExpression))
}

func TestDoubleInversionProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("invert twice restores operator and operands", prop.ForAll(
		func(variable string, opIndex int, value int) bool {
			op := supported[opIndex]
			c := NewCut(variable+op+strconv.Itoa(value), "c")
			if !c.Parsed() {
				return false
			}
			once, err := c.Invert()
			if err != nil || once.Operator() == c.Operator() {
				return false
			}
			twice, err := once.Invert()
			if err != nil {
				return false
			}
			return twice.Operator() == c.Operator() &&
				twice.Variable() == c.Variable() &&
				twice.Text() == c.Text()
		},
		gen.Identifier(),
		gen.IntRange(0, len(supported)-1),
		gen.IntRange(0, 1000),
	))
	properties.TestingRun(t)
}

func TestConstantInvert(t *testing.T) {
	assert.Equal(t, "0.5", NewConstant("2", "two").Invert().Text())
	assert.Equal(t, "1.0/lumi", NewConstant("lumi", "").Invert().Text())
	assert.Equal(t, "lumi", NewConstant("lumi", "").Invert().Invert().Text())
}

func TestEmptyExpandIsNeutral(t *testing.T) {
	assert.Equal(t, "(1.0)", (&Cuts{}).Expand())
	assert.Equal(t, "(1.0)", (&Weights{}).Extract())
}

func TestSingleElementExpandProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("one cut expands to its parenthesised text", prop.ForAll(
		func(variable string, value int) bool {
			text := variable + ">" + strconv.Itoa(value)
			c, err := NewCuts(NewCut(text, "x"))
			if err != nil {
				return false
			}
			w, err := NewWeights(NewWeight(variable, "w"))
			if err != nil {
				return false
			}
			return c.Expand() == "("+text+")" && w.Extract() == "("+variable+")"
		},
		gen.Identifier(),
		gen.IntRange(-50, 50),
	))
	properties.TestingRun(t)
}

func TestExpandKeepsOrder(t *testing.T) {
	c := MustCuts(NewCut("nbtag==0", "nobtag"), NewCut("mt_1<40", "mt"))
	assert.Equal(t, "(nbtag==0)*(mt_1<40)", c.Expand())
	assert.Equal(t, []string{"nbtag==0", "mt_1<40"}, c.Extract())
	assert.Equal(t, []string{"nobtag", "mt"}, c.Names())
}

func TestDuplicateWeightLeavesSetUnchanged(t *testing.T) {
	w := MustWeights(NewWeight("eventWeight", "eventWeight"), NewConstant("35870", "lumi"))
	before := w.Extract()

	err := w.Add(NewWeight("2*eventWeight", "eventWeight"))
	assert.True(t, errors.Is(err, ErrDuplicateName))
	assert.Equal(t, before, w.Extract())
	assert.Equal(t, 2, w.Len())

	_, err = NewWeights(NewWeight("a", "x"), NewWeight("b", "x"))
	assert.True(t, errors.Is(err, ErrDuplicateName))
}

func TestGetRemoveReplace(t *testing.T) {
	c := MustCuts(NewCut("nbtag==0", "nobtag"), NewCut("q_1*q_2<0", "os"))

	_, err := c.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(c.Remove("missing"), ErrNotFound))

	os, err := c.Get("os")
	require.NoError(t, err)
	ss, err := os.Invert()
	require.NoError(t, err)
	require.NoError(t, c.Replace("os", ss.Renamed("ss")))
	assert.Equal(t, []string{"nobtag", "ss"}, c.Names())
	assert.Equal(t, "(nbtag==0)*(q_1*q_2>0)", c.Expand())

	err = c.Replace("ss", NewCut("nbtag>0", "nobtag"))
	assert.True(t, errors.Is(err, ErrDuplicateName))

	require.NoError(t, c.Remove("nobtag"))
	assert.Equal(t, []string{"ss"}, c.Names())
}

func TestCopyIsIndependent(t *testing.T) {
	c := MustCuts(NewCut("nbtag==0", "nobtag"))
	cp := c.Copy()
	require.NoError(t, cp.Add(NewCut("mt_1<40", "mt")))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 2, cp.Len())
}

func TestConcat(t *testing.T) {
	a := MustCuts(NewCut("nbtag==0", "nobtag"))
	b := MustCuts(NewCut("mt_1<40", "mt"))
	ab, err := a.Concat(b)
	require.NoError(t, err)
	assert.Equal(t, "(nbtag==0)*(mt_1<40)", ab.Expand())
	assert.Equal(t, 1, a.Len())

	_, err = ab.Concat(b)
	assert.True(t, errors.Is(err, ErrDuplicateName))
}

func TestWeightsSquareAndRemove(t *testing.T) {
	w := MustWeights(NewWeight("eventWeight", "eventWeight"), NewWeight("zPtReweightWeight", "zPt"))

	up := w.Copy()
	require.NoError(t, up.Square("zPt"))
	assert.Equal(t, "(eventWeight)*((zPtReweightWeight)*(zPtReweightWeight))", up.Extract())

	down := w.Copy()
	require.NoError(t, down.Remove("zPt"))
	assert.Equal(t, "(eventWeight)", down.Extract())

	assert.Equal(t, "(eventWeight)*(zPtReweightWeight)", w.Extract())
	assert.True(t, errors.Is(w.Square("missing"), ErrNotFound))
}
