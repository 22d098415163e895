// Package systematics estimates the shape of every (category, process,
// variation) combination of an analysis. Estimation methods turn a
// systematic into backend queries and, once those are produced, into a
// shape; the registry pools the queries of all systematics so that each
// distinct one runs once.
package systematics

import (
	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/histo"
	"github.com/decibelcooper/shapes/query"
	"github.com/decibelcooper/shapes/selection"
)

var (
	// ErrNotReady is returned when estimating before the queries of a
	// method were produced.
	ErrNotReady = errors.New("estimation method has no produced results")
	// ErrAmbiguousResult is returned when a method produced several results
	// and none of them matches the category's variable.
	ErrAmbiguousResult = errors.New("ambiguous estimation result")
	// ErrNotImplemented is returned by methods a data-driven estimator
	// does not provide.
	ErrNotImplemented = errors.New("not implemented by estimation method")
)

// Method estimates the shape of a process for a systematic. Each Systematic
// owns its own Method obtained through Clone.
type Method interface {
	Name() string
	Weights() (*selection.Weights, error)
	Cuts() *selection.Cuts
	Files() ([]string, error)

	// DefineRootObjects returns the unshifted query specs for s.
	DefineRootObjects(s *Systematic) ([]query.Spec, error)
	// ApplySystematicVariations shifts specs by the variation of s.
	ApplySystematicVariations(s *Systematic, specs []query.Spec) ([]query.Spec, error)
	// CreateRootObjects resolves the shifted specs into result handles.
	CreateRootObjects(s *Systematic) error
	RootObjects() []*histo.Handle
	SetRootObjects(handles []*histo.Handle)
	// DoEstimation computes the shape of s from the produced handles.
	// Derived shapes are recorded into holder.
	DoEstimation(s *Systematic, holder *histo.Holder) (*histo.Handle, error)

	// Clone returns an unconfigured copy.
	Clone() Method
}

type state int

const (
	unconfigured state = iota
	queriesDefined
	resultsProduced
	estimationDone
)

// base carries the name and the lifecycle shared by all methods.
type base struct {
	name     string
	pipeline string
	state    state
	handles  []*histo.Handle
}

func (b *base) Name() string { return b.name }

func (b *base) RootObjects() []*histo.Handle {
	return append([]*histo.Handle(nil), b.handles...)
}

func (b *base) SetRootObjects(handles []*histo.Handle) {
	b.handles = append([]*histo.Handle(nil), handles...)
}

func (b *base) ApplySystematicVariations(s *Systematic, specs []query.Spec) ([]query.Spec, error) {
	return s.Variation().Shift(specs)
}

func (b *base) ready() error {
	if b.state < resultsProduced {
		return errors.Wrapf(ErrNotReady, "%s", b.name)
	}
	return nil
}

// pick returns the one produced handle of s: the only one, or the only one
// histogramming the category's variable.
func (b *base) pick(s *Systematic) (*histo.Handle, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	var h *histo.Handle
	switch len(b.handles) {
	case 0:
		return nil, errors.Wrapf(ErrNotReady, "%s produced no results", b.name)
	case 1:
		h = b.handles[0]
	default:
		var matches []*histo.Handle
		for _, c := range b.handles {
			if c.VariableName() == s.Category().VariableName() {
				matches = append(matches, c)
			}
		}
		if len(matches) != 1 {
			return nil, errors.Wrapf(ErrAmbiguousResult, "%s produced %d results, %d in variable %s",
				b.name, len(b.handles), len(matches), s.Category().VariableName())
		}
		h = matches[0]
	}
	if _, err := h.Result(); err != nil {
		return nil, err
	}
	b.state = estimationDone
	return h, nil
}

func (b *base) reset() base {
	return base{name: b.name, pipeline: b.pipeline}
}
