// Package backend executes selection queries over flat per-event n-tuples:
// it applies a selection, weights the surviving events and histograms (or
// counts) them.
package backend

import (
	"context"

	"github.com/cockroachdb/errors"
	"go-hep.org/x/hep/hbook"

	"github.com/decibelcooper/shapes/variable"
)

// Request is one query against a set of files sharing a tree.
type Request struct {
	Files     []string
	Tree      string
	Selection string
	Weight    string
	// Variable and Binning are empty for counts.
	Variable string
	Binning  variable.Binning
}

// IsCount reports whether the request asks for a weighted event count
// rather than a histogram.
func (r Request) IsCount() bool {
	return r.Binning == nil
}

// Backend executes single requests. Implementations must allow concurrent
// calls to Execute.
type Backend interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

// FrameBackend shares one pass over the events of a (files, tree) group
// between many requests.
type FrameBackend interface {
	NewFrame(files []string, tree string) Frame
}

// Frame collects bookings and fills all of them in one event loop.
type Frame interface {
	Book(req Request) (*Booking, error)
	Run(ctx context.Context) error
}

// countBinning is the single bin a count is filled into.
var countBinning = variable.ConstantBinning{NBins: 1, Low: 0, High: 1}

// Result is the numeric outcome of a request: a histogram, or a single-bin
// histogram for counts. Bin contents follow the ROOT convention: bins are
// numbered from 1 and under- and overflow do not enter the integral.
type Result struct {
	edges []float64
	h     *hbook.H1D
}

// NewResult returns an empty result with the given binning. A nil binning
// gives a count.
func NewResult(b variable.Binning) *Result {
	if b == nil {
		b = countBinning
	}
	return &Result{edges: b.Edges(), h: b.NewH1D()}
}

func (r *Result) fill(x, w float64) {
	r.h.Fill(x, w)
}

// H1D exposes the underlying histogram, e.g. for plotting.
func (r *Result) H1D() *hbook.H1D {
	return r.h
}

func (r *Result) Edges() []float64 {
	return append([]float64(nil), r.edges...)
}

func (r *Result) NBins() int {
	return len(r.edges) - 1
}

// BinContent returns the sum of weights in bin i, 1 <= i <= NBins.
func (r *Result) BinContent(i int) float64 {
	if i < 1 || i > r.NBins() {
		return 0
	}
	_, y := r.h.XY(i - 1)
	return y
}

// Integral sums the contents of all in-range bins.
func (r *Result) Integral() float64 {
	sum := 0.0
	for i := 1; i <= r.NBins(); i++ {
		sum += r.BinContent(i)
	}
	return sum
}

// Add adds scale times other bin by bin. Both results must have the same
// bin edges.
func (r *Result) Add(other *Result, scale float64) error {
	if len(other.edges) != len(r.edges) {
		return errors.Newf("cannot add results with %d and %d bins", other.NBins(), r.NBins())
	}
	for i := range r.edges {
		if r.edges[i] != other.edges[i] {
			return errors.Newf("cannot add results with different bin edges %v and %v", r.edges, other.edges)
		}
	}
	dst, src := &r.h.Binning, &other.h.Binning
	for i := range dst.Bins {
		addDist(&dst.Bins[i].Dist, src.Bins[i].Dist, scale)
	}
	for i := range dst.Outflows {
		addDist(&dst.Outflows[i], src.Outflows[i], scale)
	}
	addDist(&dst.Dist, src.Dist, scale)
	return nil
}

// addDist accumulates scale times src into dst. Entry counts add up
// unscaled, squared weights scale quadratically.
func addDist(dst *hbook.Dist1D, src hbook.Dist1D, scale float64) {
	dst.Dist.N += src.Dist.N
	dst.Dist.SumW += scale * src.Dist.SumW
	dst.Dist.SumW2 += scale * scale * src.Dist.SumW2
	dst.SumWX += scale * src.SumWX
	dst.SumWX2 += scale * src.SumWX2
}

func (r *Result) Scale(factor float64) {
	r.h.Scale(factor)
}

// Clone returns an independent copy carrying the full statistics of every
// bin, the outflows and the annotations.
func (r *Result) Clone() *Result {
	h := &hbook.H1D{Binning: r.h.Binning, Ann: make(hbook.Annotation, len(r.h.Ann))}
	h.Binning.Bins = append([]hbook.Bin1D(nil), r.h.Binning.Bins...)
	for k, v := range r.h.Ann {
		h.Ann[k] = v
	}
	return &Result{edges: r.Edges(), h: h}
}

// SetName sets the name carried into the output container.
func (r *Result) SetName(name string) {
	r.h.Annotation()["name"] = name
}

func (r *Result) Name() string {
	return r.h.Name()
}
