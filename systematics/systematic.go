package systematics

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/category"
	"github.com/decibelcooper/shapes/era"
	"github.com/decibelcooper/shapes/histo"
	"github.com/decibelcooper/shapes/variation"
)

// Process is a physics process under the name used in the final shapes,
// together with the method estimating it.
type Process struct {
	Name   string
	Method Method
}

func NewProcess(name string, m Method) *Process {
	return &Process{Name: name, Method: m}
}

// Systematic is the shape of one process in one category, era and
// variation.
type Systematic struct {
	category  *category.Category
	process   *Process
	analysis  string
	era       *era.Era
	variation variation.Variation

	method Method
	shape  *histo.Handle
}

// NewSystematic creates a systematic with its own copy of the process's
// method. A nil variation means the nominal shape.
func NewSystematic(c *category.Category, p *Process, analysis string, e *era.Era, v variation.Variation) *Systematic {
	if v == nil {
		v = variation.NewNominal()
	}
	return &Systematic{
		category:  c,
		process:   p,
		analysis:  analysis,
		era:       e,
		variation: v,
		method:    p.Method.Clone(),
	}
}

// Name identifies the shape. Systematics sharing a name share their query.
func (s *Systematic) Name() string {
	return strings.Join([]string{
		s.process.Name,
		s.category.Name(),
		s.analysis,
		s.era.Name,
		s.category.VariableName(),
		s.variation.Name(),
	}, "_")
}

func (s *Systematic) Category() *category.Category   { return s.category }
func (s *Systematic) Process() *Process              { return s.process }
func (s *Systematic) Analysis() string               { return s.analysis }
func (s *Systematic) Era() *era.Era                  { return s.era }
func (s *Systematic) Channel() string                { return s.category.ChannelName() }
func (s *Systematic) Variation() variation.Variation { return s.variation }
func (s *Systematic) Method() Method                 { return s.method }

// RootObjects lets the method build the handles of s.
func (s *Systematic) RootObjects() ([]*histo.Handle, error) {
	if err := s.method.CreateRootObjects(s); err != nil {
		return nil, errors.Wrapf(err, "creating queries of %s", s.Name())
	}
	return s.method.RootObjects(), nil
}

// Estimate binds the results produced in holder to the handles of s and
// computes its shape. Handles folded away by deduplication take the result
// of the survivor with the same key.
func (s *Systematic) Estimate(holder *histo.Holder) error {
	handles := s.method.RootObjects()
	for _, h := range handles {
		if h.Ready() {
			continue
		}
		survivor, ok := holder.Lookup(h.Key())
		if !ok {
			return errors.Wrapf(histo.ErrNotReady, "%s was never produced", h.Name())
		}
		r, err := survivor.Result()
		if err != nil {
			return err
		}
		h.Bind(r)
	}
	s.method.SetRootObjects(handles)

	slog.Debug("estimating", "systematic", s.Name(), "method", s.method.Name())
	shape, err := s.method.DoEstimation(s, holder)
	if err != nil {
		return errors.Wrapf(err, "estimating %s", s.Name())
	}
	s.shape = shape
	return nil
}

// Shape is the estimated shape.
func (s *Systematic) Shape() (*histo.Handle, error) {
	if s.shape == nil {
		return nil, errors.Wrapf(ErrNotReady, "%s not estimated", s.Name())
	}
	return s.shape, nil
}

// WithVariation returns an unestimated copy of s shifted by v.
func (s *Systematic) WithVariation(v variation.Variation) *Systematic {
	return NewSystematic(s.category, s.process, s.analysis, s.era, v)
}

// Attributes lists the names accepted by Attribute.
var Attributes = []string{"process", "category", "analysis", "era", "channel", "variable", "syst_var"}

// Attribute returns the name of the named component of s.
func (s *Systematic) Attribute(name string) (string, bool) {
	switch name {
	case "process":
		return s.process.Name, true
	case "category":
		return s.category.Name(), true
	case "analysis":
		return s.analysis, true
	case "era":
		return s.era.Name, true
	case "channel":
		return s.Channel(), true
	case "variable":
		return s.category.VariableName(), true
	case "syst_var":
		return s.variation.Name(), true
	}
	return "", false
}

// Summary is the row of s in the registry summary.
func (s *Systematic) Summary() ([]string, error) {
	shape, err := s.Shape()
	if err != nil {
		return nil, err
	}
	r, err := shape.Result()
	if err != nil {
		return nil, err
	}
	return []string{
		s.Name(),
		s.category.Name(),
		s.process.Name,
		s.era.Name,
		s.Channel(),
		s.variation.Name(),
		fmt.Sprintf("%d bins, integral %.6g", r.NBins(), r.Integral()),
	}, nil
}

func (s *Systematic) String() string {
	return s.Name()
}
