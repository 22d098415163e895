package systematics

import (
	"github.com/cockroachdb/errors"

	"github.com/decibelcooper/shapes/backend"
	"github.com/decibelcooper/shapes/category"
	"github.com/decibelcooper/shapes/histo"
	"github.com/decibelcooper/shapes/query"
	"github.com/decibelcooper/shapes/selection"
)

// QCDOptions configures the same-sign QCD estimate.
type QCDOptions struct {
	// ExtrapolationFactor scales the same-sign shape into the opposite-sign
	// region. Zero means 1.
	ExtrapolationFactor float64
	// OSCut names the opposite-sign cut of the category. Empty means "os".
	OSCut string
}

func (o QCDOptions) withDefaults() QCDOptions {
	if o.ExtrapolationFactor == 0 {
		o.ExtrapolationFactor = 1.0
	}
	if o.OSCut == "" {
		o.OSCut = "os"
	}
	return o
}

// sameSign derives the same-sign control region of c.
func sameSign(c *category.Category, osCut string) (*category.Category, error) {
	return c.Derive("_ss", category.InvertCut(osCut, "ss"))
}

// composite is a data-driven method estimating its shape from the shapes
// of other processes in derived regions.
type composite struct {
	base
	subs []*Systematic
}

func (c *composite) Weights() (*selection.Weights, error) {
	return nil, errors.Wrapf(ErrNotImplemented, "weights of data-driven %s", c.name)
}

func (c *composite) Files() ([]string, error) {
	return nil, errors.Wrapf(ErrNotImplemented, "files of data-driven %s", c.name)
}

func (c *composite) Cuts() *selection.Cuts {
	return &selection.Cuts{}
}

// specs returns the shifted specs of the sub-systematics.
func (c *composite) specs() ([]query.Spec, error) {
	var specs []query.Spec
	for _, sub := range c.subs {
		defined, err := sub.method.DefineRootObjects(sub)
		if err != nil {
			return nil, err
		}
		shifted, err := sub.method.ApplySystematicVariations(sub, defined)
		if err != nil {
			return nil, err
		}
		specs = append(specs, shifted...)
	}
	return specs, nil
}

// create produces the handles of every sub-systematic.
func (c *composite) create() error {
	var handles []*histo.Handle
	for _, sub := range c.subs {
		h, err := sub.RootObjects()
		if err != nil {
			return err
		}
		handles = append(handles, h...)
	}
	c.handles = handles
	c.state = resultsProduced
	return nil
}

// estimate estimates every sub-systematic; the first failure aborts.
func (c *composite) estimate(holder *histo.Holder) error {
	if err := c.ready(); err != nil {
		return err
	}
	for _, sub := range c.subs {
		if err := sub.Estimate(holder); err != nil {
			return err
		}
	}
	return nil
}

// QCD estimates multijet events from same-sign data: the same-sign shape
// of data minus the same-sign shapes of all simulated backgrounds.
type QCD struct {
	composite
	data        *Process
	backgrounds []*Process
	opts        QCDOptions
}

func NewQCD(data *Process, backgrounds []*Process, opts QCDOptions) *QCD {
	return &QCD{
		composite:   composite{base: base{name: "QCD", pipeline: "nominal"}},
		data:        data,
		backgrounds: append([]*Process(nil), backgrounds...),
		opts:        opts.withDefaults(),
	}
}

func (q *QCD) DefineRootObjects(s *Systematic) ([]query.Spec, error) {
	ss, err := sameSign(s.Category(), q.opts.OSCut)
	if err != nil {
		return nil, err
	}
	q.subs = nil
	for _, p := range append([]*Process{q.data}, q.backgrounds...) {
		q.subs = append(q.subs, NewSystematic(ss, p, s.Analysis(), s.Era(), s.Variation()))
	}
	q.state = queriesDefined
	return q.specs()
}

func (q *QCD) CreateRootObjects(s *Systematic) error {
	if _, err := q.DefineRootObjects(s); err != nil {
		return err
	}
	return q.create()
}

func (q *QCD) DoEstimation(s *Systematic, holder *histo.Holder) (*histo.Handle, error) {
	if err := q.estimate(holder); err != nil {
		return nil, errors.Wrapf(err, "same-sign region of %s", s.Name())
	}
	shape, err := subtract(q.subs[0], q.subs[1:])
	if err != nil {
		return nil, err
	}
	shape.Scale(q.opts.ExtrapolationFactor)

	h := histo.Derive(s.Name(), shape)
	holder.Record(h)
	q.state = estimationDone
	return h, nil
}

// subtract returns a copy of the shape of minuend minus the shapes of
// subtrahends.
func subtract(minuend *Systematic, subtrahends []*Systematic) (*backend.Result, error) {
	shape, err := minuend.Shape()
	if err != nil {
		return nil, err
	}
	r, err := shape.Result()
	if err != nil {
		return nil, err
	}
	diff := r.Clone()
	for _, sub := range subtrahends {
		shape, err := sub.Shape()
		if err != nil {
			return nil, err
		}
		r, err := shape.Result()
		if err != nil {
			return nil, err
		}
		if err := diff.Add(r, -1); err != nil {
			return nil, errors.Wrapf(err, "subtracting %s", sub.Name())
		}
	}
	return diff, nil
}

func (q *QCD) Clone() Method {
	n := *q
	n.composite = composite{base: q.reset()}
	n.backgrounds = append([]*Process(nil), q.backgrounds...)
	return &n
}
