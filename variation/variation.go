// Package variation rewrites query specs into their systematically shifted
// siblings: another input pipeline, a reapplied or removed weight, or
// nothing at all for the nominal shape.
package variation

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/query"
	"github.com/decibelcooper/shapes/selection"
)

// ErrMissingDirection is returned when a variation that needs a direction
// is built without one.
var ErrMissingDirection = errors.New("variation needs an up or down direction")

type Direction int

const (
	None Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "Up"
	case Down:
		return "Down"
	}
	return ""
}

// ParseDirection accepts "Up", "Down" and the empty string.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "":
		return None, nil
	case "Up", "up":
		return Up, nil
	case "Down", "down":
		return Down, nil
	}
	return None, errors.Newf("unknown direction %q", s)
}

// Variation is a named transformation of the query specs of a systematic.
// Shift never modifies its argument.
type Variation interface {
	// Name is the base name, suffixed with _Up or _Down when a direction
	// is attached.
	Name() string
	BaseName() string
	Direction() Direction
	Shift(specs []query.Spec) ([]query.Spec, error)
}

type named struct {
	name      string
	direction Direction
}

func (n named) Name() string {
	if n.direction == None {
		return n.name
	}
	return n.name + "_" + n.direction.String()
}

func (n named) BaseName() string     { return n.name }
func (n named) Direction() Direction { return n.direction }

func shiftEach(specs []query.Spec, f func(*query.Spec)) []query.Spec {
	out := make([]query.Spec, len(specs))
	for i, s := range specs {
		f(&s)
		out[i] = s
	}
	return out
}

// Nominal leaves the queries alone.
type Nominal struct {
	named
}

func NewNominal() *Nominal {
	return &Nominal{named{name: "Nominal"}}
}

// NewNominalWithDirection labels an unshifted shape as Up or Down.
func NewNominalWithDirection(d Direction) *Nominal {
	return &Nominal{named{name: "Nominal", direction: d}}
}

func (v *Nominal) Shift(specs []query.Spec) ([]query.Spec, error) {
	return shiftEach(specs, func(*query.Spec) {}), nil
}

// DifferentPipeline reads the n-tuples written by another pipeline, e.g. one
// with shifted tau energy scale.
type DifferentPipeline struct {
	named
	pipeline string
}

func NewDifferentPipeline(name, pipeline string, d Direction) *DifferentPipeline {
	return &DifferentPipeline{named: named{name: name, direction: d}, pipeline: pipeline}
}

func (v *DifferentPipeline) Pipeline() string { return v.pipeline }

func (v *DifferentPipeline) Shift(specs []query.Spec) ([]query.Spec, error) {
	return shiftEach(specs, func(s *query.Spec) {
		s.Pipeline = query.Literal(v.pipeline)
	}), nil
}

// ReapplyRemoveWeight approximates the uncertainty of a reweighting: Up
// applies the weight twice, Down drops it. Inputs that never applied the
// weight, data or a data-driven estimate among them, are left as they are
// unless Strict is set.
type ReapplyRemoveWeight struct {
	named
	weight string

	// Strict makes a missing weight an error.
	Strict bool
}

func NewReapplyRemoveWeight(name, weight string, d Direction) (*ReapplyRemoveWeight, error) {
	if d == None {
		return nil, errors.Wrapf(ErrMissingDirection, "reweighting %s", name)
	}
	return &ReapplyRemoveWeight{named: named{name: name, direction: d}, weight: weight}, nil
}

func (v *ReapplyRemoveWeight) Weight() string { return v.weight }

func (v *ReapplyRemoveWeight) reweight(w *selection.Weights) (*selection.Weights, error) {
	if w == nil {
		w = &selection.Weights{}
	}
	shifted := w.Copy()
	if !shifted.Has(v.weight) && !v.Strict {
		slog.Debug("weight not applied, nothing to vary", "variation", v.Name(), "weight", v.weight)
		return shifted, nil
	}
	var err error
	switch v.direction {
	case Up:
		err = shifted.Square(v.weight)
	case Down:
		err = shifted.Remove(v.weight)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "applying %s", v.Name())
	}
	return shifted, nil
}

func (v *ReapplyRemoveWeight) Shift(specs []query.Spec) ([]query.Spec, error) {
	return shiftEach(specs, func(s *query.Spec) {
		s.Weights = query.Map(s.Weights, v.reweight)
	}), nil
}

// Factory builds the variation called name in direction d; shift
// identifies the shifted input.
type Factory func(name, shift string, d Direction) (Variation, error)

// CreateVariations returns the Down and Up variations of name, passing
// name+"Down" and name+"Up" as shift identifiers.
func CreateVariations(name string, f Factory) (down, up Variation, err error) {
	if down, err = f(name, name+"Down", Down); err != nil {
		return nil, nil, err
	}
	if up, err = f(name, name+"Up", Up); err != nil {
		return nil, nil, err
	}
	return down, up, nil
}

// DifferentPipelineFactory reads the pipeline named by the shift
// identifier.
func DifferentPipelineFactory(name, shift string, d Direction) (Variation, error) {
	return NewDifferentPipeline(name, shift, d), nil
}

// ReapplyRemoveWeightFactory shifts the weight called name.
func ReapplyRemoveWeightFactory(name, _ string, d Direction) (Variation, error) {
	v, err := NewReapplyRemoveWeight(name, name, d)
	if err != nil {
		return nil, err
	}
	return v, nil
}
