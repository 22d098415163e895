package query

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/shapes/selection"
)

func TestResolve(t *testing.T) {
	calls := 0
	s := Spec{
		Name: Literal("ZTT_incl"),
		InputFiles: Deferred(func() ([]string, error) {
			calls++
			return []string{"a.root"}, nil
		}),
		Channel:  "mt",
		Pipeline: Literal("nominal"),
		Cuts:     Literal(selection.MustCuts(selection.NewCut("nbtag==0", "nobtag"))),
	}
	assert.Equal(t, 0, calls, "deferred fields are not evaluated on construction")

	r, err := s.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "ZTT_incl", r.Name)
	assert.Equal(t, []string{"a.root"}, r.InputFiles)
	assert.Equal(t, "mt_nominal/ntuple", r.Folder)
	assert.Equal(t, "(nbtag==0)", r.Cuts.Expand())
	assert.Equal(t, "(1.0)", r.Weights.Extract(), "missing weights resolve to the neutral element")
	assert.Nil(t, r.Variable)
}

func TestResolveError(t *testing.T) {
	boom := errors.New("catalog down")
	s := Spec{
		Name:       Literal("x"),
		InputFiles: Deferred(func() ([]string, error) { return nil, boom }),
	}
	_, err := s.Resolve()
	assert.True(t, errors.Is(err, boom))
}

func TestMap(t *testing.T) {
	f := Map(Literal("nominal"), func(s string) (string, error) { return s + "_shifted", nil })
	assert.True(t, f.IsDeferred())
	v, err := f.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "nominal_shifted", v)
}
