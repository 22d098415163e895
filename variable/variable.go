// Package variable describes the observable a category is histogrammed in.
package variable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/hbook"
)

var ErrInvalidBinning = errors.New("invalid binning")

// Binning is either a ConstantBinning or a VariableBinning.
type Binning interface {
	NBinsX() int
	Edges() []float64
	// String is the canonical text of the binning, used in cache keys.
	String() string
	// NewH1D returns an empty histogram with this binning.
	NewH1D() *hbook.H1D

	binning()
}

// ConstantBinning has NBins bins of equal width in [Low, High).
type ConstantBinning struct {
	NBins int
	Low   float64
	High  float64
}

func NewConstantBinning(nbins int, low, high float64) (ConstantBinning, error) {
	if nbins < 1 || !(high > low) {
		return ConstantBinning{}, errors.Wrapf(ErrInvalidBinning, "%d bins in [%v, %v)", nbins, low, high)
	}
	return ConstantBinning{NBins: nbins, Low: low, High: high}, nil
}

func (b ConstantBinning) NBinsX() int { return b.NBins }

func (b ConstantBinning) Edges() []float64 {
	edges := make([]float64, b.NBins+1)
	width := (b.High - b.Low) / float64(b.NBins)
	for i := range edges {
		edges[i] = b.Low + float64(i)*width
	}
	edges[b.NBins] = b.High
	return edges
}

func (b ConstantBinning) String() string {
	return fmt.Sprintf("(%d,%s,%s)", b.NBins, formatFloat(b.Low), formatFloat(b.High))
}

func (b ConstantBinning) NewH1D() *hbook.H1D {
	return hbook.NewH1D(b.NBins, b.Low, b.High)
}

func (ConstantBinning) binning() {}

// VariableBinning has explicit, strictly increasing bin edges.
type VariableBinning struct {
	edges []float64
}

func NewVariableBinning(edges ...float64) (VariableBinning, error) {
	if len(edges) < 2 {
		return VariableBinning{}, errors.Wrapf(ErrInvalidBinning, "need at least two edges, got %v", edges)
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return VariableBinning{}, errors.Wrapf(ErrInvalidBinning,
				"edges must be strictly increasing without repetitions, got %v", edges)
		}
	}
	return VariableBinning{edges: append([]float64(nil), edges...)}, nil
}

func (b VariableBinning) NBinsX() int { return len(b.edges) - 1 }

func (b VariableBinning) Edges() []float64 {
	return append([]float64(nil), b.edges...)
}

func (b VariableBinning) String() string {
	parts := make([]string, len(b.edges))
	for i, e := range b.edges {
		parts[i] = formatFloat(e)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (b VariableBinning) NewH1D() *hbook.H1D {
	return hbook.NewH1DFromEdges(b.edges)
}

func (VariableBinning) binning() {}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Variable is an observable together with its binning.
type Variable struct {
	Name    string
	Binning Binning
}

func New(name string, binning Binning) Variable {
	return Variable{Name: name, Binning: binning}
}

func (v Variable) String() string {
	if v.Binning == nil {
		return v.Name
	}
	return v.Name + v.Binning.String()
}
